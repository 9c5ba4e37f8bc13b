package chatbot

import (
	"strings"

	"github.com/tsheringp/pharmstock-backend/internal/chatbot/sqlguard"
	"github.com/tsheringp/pharmstock-backend/pkg/enums"
)

// CanonicalSchema is the hard-coded allow-list the SQL validator checks
// generated queries against. It mirrors the migration DDL; a column missing
// here is a column the chatbot can never read.
var CanonicalSchema = sqlguard.Schema{
	"drugs": {
		"id", "drug_type", "name", "batch_no", "description", "stock",
		"mfg_date", "exp_date", "price", "category", "created_by",
		"created_at", "updated_at",
	},
	"orders": {
		"id", "order_no", "user_id", "recipient_id", "transaction_type",
		"total_amount", "created_at", "updated_at",
	},
	"order_items": {
		"id", "order_id", "drug_id", "name", "quantity", "unit_price",
		"status", "seller_id", "category", "created_at", "updated_at",
	},
	"dispensing_records": {
		"id", "drug_id", "quantity_dispensed", "dispensing_date", "category",
		"notes", "recorded_by", "created_at", "updated_at",
	},
}

// PredefinedQuery is a parameterized question the chatbot can answer without
// generating SQL. The single parameter is always the caller's user id.
type PredefinedQuery struct {
	Key      string
	Keywords []string
	SQL      string
	Roles    []enums.UserRole
}

var predefinedQueries = []PredefinedQuery{
	{
		Key:      "low_stock",
		Keywords: []string{"low stock", "running out", "out of stock", "restock"},
		SQL: `SELECT name, batch_no, stock FROM drugs
			WHERE created_by = ? AND stock <= 10
			ORDER BY stock ASC LIMIT 20`,
		Roles: []enums.UserRole{enums.UserRoleInstitute, enums.UserRolePharmacy, enums.UserRoleAdmin},
	},
	{
		Key:      "expiring_soon",
		Keywords: []string{"expiring", "expiry", "expire", "expiration"},
		SQL: `SELECT name, batch_no, exp_date, stock FROM drugs
			WHERE created_by = ? AND exp_date IS NOT NULL
			AND exp_date <= CURRENT_DATE + INTERVAL '90 days'
			ORDER BY exp_date ASC LIMIT 20`,
		Roles: []enums.UserRole{enums.UserRoleInstitute, enums.UserRolePharmacy, enums.UserRoleAdmin},
	},
	{
		Key:      "stock_overview",
		Keywords: []string{"stock", "inventory", "how many", "available"},
		SQL: `SELECT name, batch_no, stock, price FROM drugs
			WHERE created_by = ?
			ORDER BY name ASC LIMIT 20`,
		Roles: []enums.UserRole{enums.UserRoleInstitute, enums.UserRolePharmacy, enums.UserRoleAdmin},
	},
	{
		Key:      "pending_orders",
		Keywords: []string{"pending", "awaiting", "approve", "orders waiting"},
		SQL: `SELECT o.order_no, oi.name, oi.quantity, oi.status
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE oi.seller_id = ? AND oi.status = 'pending'
			ORDER BY o.created_at DESC LIMIT 20`,
		Roles: []enums.UserRole{enums.UserRoleSeller, enums.UserRoleAdmin},
	},
	{
		Key:      "today_dispensing",
		Keywords: []string{"dispensed today", "today's dispensing", "dispensing today", "dispensed"},
		SQL: `SELECT d.name, dr.quantity_dispensed, dr.category
			FROM dispensing_records dr
			JOIN drugs d ON d.id = dr.drug_id
			WHERE d.created_by = ? AND dr.dispensing_date = CURRENT_DATE
			ORDER BY d.name ASC LIMIT 20`,
		Roles: []enums.UserRole{enums.UserRoleInstitute, enums.UserRolePharmacy, enums.UserRoleAdmin},
	},
}

// matchPredefined picks the first predefined query whose keywords appear in
// the question and whose role list admits the caller.
func matchPredefined(question string, role enums.UserRole) *PredefinedQuery {
	lowered := strings.ToLower(question)
	for i := range predefinedQueries {
		query := &predefinedQueries[i]
		if !roleAllowed(query.Roles, role) {
			continue
		}
		for _, keyword := range query.Keywords {
			if strings.Contains(lowered, keyword) {
				return query
			}
		}
	}
	return nil
}

// fallbackPredefined returns the default query for a role when generated SQL
// fails validation.
func fallbackPredefined(role enums.UserRole) *PredefinedQuery {
	key := "stock_overview"
	if role == enums.UserRoleSeller {
		key = "pending_orders"
	}
	for i := range predefinedQueries {
		if predefinedQueries[i].Key == key {
			return &predefinedQueries[i]
		}
	}
	return &predefinedQueries[0]
}

func roleAllowed(roles []enums.UserRole, role enums.UserRole) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// schemaPrompt renders the allow-list for the generation prompt.
func schemaPrompt() string {
	var b strings.Builder
	for table, cols := range CanonicalSchema {
		b.WriteString(table)
		b.WriteString(": ")
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
