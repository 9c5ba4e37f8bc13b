package csvx

import (
	"fmt"
	"strings"
	"time"
)

// Header maps normalized column names to their position in the CSV header row.
type Header map[string]int

// normalize lowercases a header cell and collapses spaces/dashes to underscores
// so that "Drug Type", "Drug_Type" and "drug-type" all resolve the same way.
func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

// ParseHeader indexes a header row for case-insensitive alias lookup.
func ParseHeader(row []string) Header {
	h := make(Header, len(row))
	for i, cell := range row {
		key := normalize(cell)
		if key == "" {
			continue
		}
		if _, exists := h[key]; !exists {
			h[key] = i
		}
	}
	return h
}

// Lookup returns the index of the first alias present in the header.
func (h Header) Lookup(aliases ...string) (int, bool) {
	for _, alias := range aliases {
		if idx, ok := h[normalize(alias)]; ok {
			return idx, true
		}
	}
	return 0, false
}

// Field returns the trimmed cell for the first matching alias, or "" when the
// column is absent or the row is short.
func (h Header) Field(row []string, aliases ...string) string {
	idx, ok := h.Lookup(aliases...)
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate accepts DD-MM-YYYY, DD/MM/YYYY, YYYY-MM-DD and YYYY/MM/DD.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ParseOptionalDate returns nil for an empty cell and errors only on a
// non-empty unparseable value.
func ParseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
