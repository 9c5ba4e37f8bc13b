package enums

import (
	"fmt"
	"strings"
)

// DispensingCategory identifies the service point a quantity was dispensed from.
type DispensingCategory string

const (
	DispensingCategoryOPD      DispensingCategory = "OPD"
	DispensingCategoryIPD      DispensingCategory = "IPD"
	DispensingCategoryOutreach DispensingCategory = "OUTREACH"
)

var validDispensingCategories = []DispensingCategory{
	DispensingCategoryOPD,
	DispensingCategoryIPD,
	DispensingCategoryOutreach,
}

// String implements fmt.Stringer.
func (c DispensingCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known DispensingCategory.
func (c DispensingCategory) IsValid() bool {
	for _, candidate := range validDispensingCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseDispensingCategory converts raw input into a DispensingCategory,
// accepting any casing.
func ParseDispensingCategory(value string) (DispensingCategory, error) {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validDispensingCategories {
		if string(candidate) == upper {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispensing category %q", value)
}
