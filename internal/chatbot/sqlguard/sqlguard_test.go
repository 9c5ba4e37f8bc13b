package sqlguard

import (
	"strings"
	"testing"
)

func testSchema() Schema {
	return Schema{
		"drugs":       {"id", "name", "stock", "batch_no", "exp_date", "price", "category", "created_by"},
		"orders":      {"id", "order_no", "user_id", "recipient_id", "total_amount", "created_at"},
		"order_items": {"id", "order_id", "drug_id", "quantity", "unit_price", "status", "seller_id"},
	}
}

func TestValidateAcceptsAliasedSelect(t *testing.T) {
	result := Validate("SELECT d.stock, d.name FROM drugs d WHERE d.id = 1 LIMIT 20", testSchema())
	if !result.Valid {
		t.Fatalf("expected valid, got invalid tokens %v", result.Invalid)
	}
}

func TestValidateRejectsHallucinatedColumn(t *testing.T) {
	result := Validate("SELECT o.order_id FROM orders o LIMIT 20", testSchema())
	if result.Valid {
		t.Fatalf("expected rejection of order_id")
	}
	joined := strings.Join(result.Invalid, "; ")
	if !strings.Contains(joined, "order_id") {
		t.Fatalf("expected order_id flagged, got %v", result.Invalid)
	}
}

func TestValidateRejectsDDL(t *testing.T) {
	result := Validate("DROP TABLE drugs", testSchema())
	if result.Valid {
		t.Fatalf("expected rejection of DROP")
	}
}

func TestValidateRejectsMutationsInsideSelect(t *testing.T) {
	for _, query := range []string{
		"SELECT id FROM drugs; DELETE FROM drugs",
		"SELECT id FROM drugs WHERE name = name; update drugs set stock = 0",
	} {
		if result := Validate(query, testSchema()); result.Valid {
			t.Fatalf("expected rejection of %q", query)
		}
	}
}

func TestValidateIgnoresStringLiterals(t *testing.T) {
	// "drop table" inside the literal must not trip the keyword check, and
	// identifiers inside the literal must not be scanned.
	result := Validate("SELECT d.name FROM drugs d WHERE d.name = 'drop table bogus_column'", testSchema())
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Invalid)
	}
}

func TestValidateStripsDollarQuotes(t *testing.T) {
	result := Validate("SELECT d.name FROM drugs d WHERE d.category = $tag$nonsense_column here$tag$", testSchema())
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Invalid)
	}
}

func TestValidateRejectsUnknownTable(t *testing.T) {
	result := Validate("SELECT p.id FROM patients p", testSchema())
	if result.Valid {
		t.Fatalf("expected rejection of unknown table")
	}
}

func TestValidateRejectsUnknownTableWithKnownColumnNames(t *testing.T) {
	// Every column named here exists on an allow-listed table, so the table
	// itself must be what gets the query rejected.
	for _, query := range []string{
		"SELECT name FROM users",
		"SELECT id, status FROM shipments LIMIT 5",
	} {
		result := Validate(query, testSchema())
		if result.Valid {
			t.Fatalf("expected rejection of %q", query)
		}
		joined := strings.Join(result.Invalid, "; ")
		if !strings.Contains(joined, "unknown table") {
			t.Fatalf("expected unknown table flagged for %q, got %v", query, result.Invalid)
		}
	}
}

func TestValidateHandlesJoins(t *testing.T) {
	query := "SELECT d.name, oi.quantity FROM order_items oi JOIN drugs d ON oi.drug_id = d.id WHERE oi.status = 'pending'"
	result := Validate(query, testSchema())
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Invalid)
	}
}

func TestValidateRejectsBareUnknownIdentifier(t *testing.T) {
	result := Validate("SELECT shelf_life FROM drugs", testSchema())
	if result.Valid {
		t.Fatalf("expected rejection of shelf_life")
	}
}

func TestValidateAcceptsBareKnownColumn(t *testing.T) {
	result := Validate("SELECT name, stock FROM drugs WHERE stock > 0 ORDER BY name", testSchema())
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Invalid)
	}
}
