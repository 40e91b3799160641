package domain

import (
	"fmt"
	"strings"
)

// Category is a transaction label drawn from a fixed, closed set.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryTransport     Category = "Transport"
	CategoryBills         Category = "Bills"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealth        Category = "Health"
	CategoryIncome        Category = "Income"
	CategoryTransfers     Category = "Transfers"
	CategoryEatingOut     Category = "Eating Out"
	CategoryGeneral       Category = "General"
	CategoryOther         Category = "Other"
)

// Categories lists the closed category set in prompt order.
var Categories = []Category{
	CategoryGroceries,
	CategoryTransport,
	CategoryBills,
	CategoryShopping,
	CategoryEntertainment,
	CategoryHealth,
	CategoryIncome,
	CategoryTransfers,
	CategoryEatingOut,
	CategoryGeneral,
	CategoryOther,
}

var categoryIndex = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[normalizeCategory(string(c))] = c
	}
	return m
}()

// ParseCategory resolves name to its canonical label.
// Matching ignores case and surrounding whitespace.
func ParseCategory(name string) (Category, error) {
	c, ok := categoryIndex[normalizeCategory(name)]
	if !ok {
		return "", fmt.Errorf("invalid category: %q", name)
	}
	return c, nil
}

// Valid reports whether c is a canonical member of the closed set.
func (c Category) Valid() bool {
	got, ok := categoryIndex[normalizeCategory(string(c))]
	return ok && got == c
}

// CategoryNames returns the labels as plain strings, e.g. for schema enums.
func CategoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}

// normalizeCategory normalizes a category name for comparison.
func normalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
