package domain

import (
	"github.com/shopspring/decimal"
)

// Summarize recomputes a Summary over txs.
// Amounts are summed as decimals so two-decimal statement values add up exactly.
// Only debits count toward SpendingByCategory, and only categories with
// non-zero spending appear as keys.
func Summarize(txs []Transaction) Summary {
	income := decimal.Zero
	spending := decimal.Zero
	byCategory := make(map[Category]decimal.Decimal)

	for _, t := range txs {
		if t.Credit != nil {
			income = income.Add(decimal.NewFromFloat(*t.Credit))
		}
		if t.Debit != nil {
			d := decimal.NewFromFloat(*t.Debit)
			spending = spending.Add(d)
			byCategory[t.Category] = byCategory[t.Category].Add(d)
		}
	}

	s := Summary{
		TotalIncome:        income.InexactFloat64(),
		TotalSpending:      spending.InexactFloat64(),
		SpendingByCategory: make(map[Category]float64, len(byCategory)),
	}
	for c, v := range byCategory {
		if v.IsZero() {
			continue
		}
		s.SpendingByCategory[c] = v.InexactFloat64()
	}
	return s
}
