package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestParseRoundTrip(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC), ID: uuid.New()}

	parsed, err := Parse(cursor.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.CreatedAt.Equal(cursor.CreatedAt) || parsed.ID != cursor.ID {
		t.Fatalf("round trip mismatch: %+v", parsed)
	}
}

func TestParseEmptyMeansFirstPage(t *testing.T) {
	parsed, err := Parse("  ")
	if err != nil || parsed != nil {
		t.Fatalf("expected nil cursor, got %+v, %v", parsed, err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm9wZQ=="} {
		if _, err := Parse(token); err == nil {
			t.Fatalf("expected error for %q", token)
		}
	}
}

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default, got %d", got)
	}
	if got := NormalizeLimit(500); got != MaxLimit {
		t.Fatalf("expected cap, got %d", got)
	}
	if got := NormalizeLimit(10); got != 10 {
		t.Fatalf("expected passthrough, got %d", got)
	}
}
