package enums

import (
	"fmt"
	"strings"
)

// Category groups menu items on the storefront.
type Category string

const (
	CategoryAll    Category = "All"
	CategoryGrains Category = "Grains"
	CategorySides  Category = "Sides"
	CategoryDrinks Category = "Drinks"
)

var validCategories = []Category{
	CategoryAll,
	CategoryGrains,
	CategorySides,
	CategoryDrinks,
}

// String implements fmt.Stringer.
func (c Category) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Category.
func (c Category) IsValid() bool {
	for _, candidate := range validCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCategory converts raw input into a Category. Matching ignores case
// because the upstream catalog is not consistent about it.
func ParseCategory(value string) (Category, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validCategories {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", value)
}
