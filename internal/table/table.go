// Package table filters and sorts converted transactions for display and export.
package table

import (
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-converter/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey names the transaction field rows are ordered by.
type SortKey string

const (
	SortByDate        SortKey = "date"
	SortByDescription SortKey = "description"
	SortByDebit       SortKey = "debit"
	SortByCredit      SortKey = "credit"
	SortByCategory    SortKey = "category"
)

// Direction is the sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Filter keeps transactions whose date lies within [StartDate, EndDate].
// Either bound may be empty, meaning unbounded. Dates are YYYY-MM-DD strings
// compared lexicographically.
type Filter struct {
	StartDate string
	EndDate   string
}

// Match reports whether t satisfies the date range.
func (f Filter) Match(t domain.Transaction) bool {
	if f.StartDate != "" && t.Date < f.StartDate {
		return false
	}
	if f.EndDate != "" && t.Date > f.EndDate {
		return false
	}
	return true
}

// Sort selects the ordering. The zero value orders by date, newest first.
type Sort struct {
	Key       SortKey
	Direction Direction
}

// DefaultSort is the ordering used when none is chosen.
var DefaultSort = Sort{Key: SortByDate, Direction: Descending}

func (s Sort) normalize() Sort {
	if s.Key == "" {
		s.Key = DefaultSort.Key
	}
	if s.Direction == "" {
		s.Direction = DefaultSort.Direction
	}
	return s
}

// Apply returns the transactions matching f, ordered by s.
//
// The sort is stable. Absent debit or credit values always sort after present
// ones, whichever the direction. The input slice is never modified.
func Apply(txs []domain.Transaction, f Filter, s Sort) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if f.Match(t) {
			out = append(out, t)
		}
	}

	cmp := comparator(s.normalize())
	sort.SliceStable(out, func(i, j int) bool {
		return cmp(out[i], out[j]) < 0
	})

	return out
}

// comparator builds a three-way comparison for s.
func comparator(s Sort) func(a, b domain.Transaction) int {
	sign := 1
	if s.Direction == Descending {
		sign = -1
	}

	// A Collator keeps internal buffers, so each Apply gets its own.
	col := collate.New(language.English)
	strCmp := func(a, b string) int {
		return col.CompareString(a, b) * sign
	}

	switch s.Key {
	case SortByDescription:
		return func(a, b domain.Transaction) int { return strCmp(a.Description, b.Description) }
	case SortByCategory:
		return func(a, b domain.Transaction) int { return strCmp(string(a.Category), string(b.Category)) }
	case SortByDebit:
		return func(a, b domain.Transaction) int { return compareOptional(a.Debit, b.Debit, sign) }
	case SortByCredit:
		return func(a, b domain.Transaction) int { return compareOptional(a.Credit, b.Credit, sign) }
	default:
		return func(a, b domain.Transaction) int { return strCmp(a.Date, b.Date) }
	}
}

// compareOptional orders nil after any value; the nil policy ignores sign.
func compareOptional(a, b *float64, sign int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -sign
	case *a > *b:
		return sign
	default:
		return 0
	}
}

// ParseSortKey validates a sort key from user input. Empty selects the default.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return DefaultSort.Key, nil
	case SortByDate, SortByDescription, SortByDebit, SortByCredit, SortByCategory:
		return k, nil
	default:
		return "", fmt.Errorf("invalid sort key %q", s)
	}
}

// ParseDirection validates a direction from user input. Empty selects the default.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultSort.Direction, nil
	case "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("invalid sort direction %q", s)
	}
}

// ParseFilter validates optional YYYY-MM-DD bounds. A start after the end is
// accepted and simply matches nothing.
func ParseFilter(start, end string) (Filter, error) {
	f := Filter{StartDate: strings.TrimSpace(start), EndDate: strings.TrimSpace(end)}
	for _, d := range []string{f.StartDate, f.EndDate} {
		if d == "" {
			continue
		}
		if _, err := civil.ParseDate(d); err != nil {
			return Filter{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", d)
		}
	}
	return f, nil
}

// ParseSort validates a key and direction pair from user input.
func ParseSort(key, direction string) (Sort, error) {
	k, err := ParseSortKey(key)
	if err != nil {
		return Sort{}, err
	}
	d, err := ParseDirection(direction)
	if err != nil {
		return Sort{}, err
	}
	return Sort{Key: k, Direction: d}, nil
}

// DateBounds returns the earliest and latest dates in txs, or empty strings
// when txs is empty.
func DateBounds(txs []domain.Transaction) (minDate, maxDate string) {
	for i, t := range txs {
		if i == 0 || t.Date < minDate {
			minDate = t.Date
		}
		if i == 0 || t.Date > maxDate {
			maxDate = t.Date
		}
	}
	return minDate, maxDate
}
