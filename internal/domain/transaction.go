package domain

// Transaction is one ledger entry returned by the model.
// Debit and Credit are nil when the statement line carries no such amount;
// a well-formed entry has exactly one of them, but neither is enforced.
type Transaction struct {
	Date        string   `json:"date"` // YYYY-MM-DD, compared lexicographically
	Description string   `json:"description"`
	Debit       *float64 `json:"debit"`
	Credit      *float64 `json:"credit"`
	Balance     float64  `json:"balance"` // 0 when the statement has no running balance
	Category    Category `json:"category"`
}

// Summary aggregates all transactions of one conversion.
type Summary struct {
	TotalIncome        float64              `json:"totalIncome"`
	TotalSpending      float64              `json:"totalSpending"`
	SpendingByCategory map[Category]float64 `json:"spendingByCategory"`
}

// NetFlow is income minus spending.
func (s Summary) NetFlow() float64 {
	return s.TotalIncome - s.TotalSpending
}

// Spending returns the spending recorded for a category, zero when absent.
func (s Summary) Spending(c Category) float64 {
	return s.SpendingByCategory[c]
}

// ConversionResult is the structured output of one successful conversion.
// It is treated as immutable once produced.
type ConversionResult struct {
	Transactions []Transaction `json:"transactions"`
	Summary      Summary       `json:"summary"`
}

// Float returns a pointer to v, for building optional amounts.
func Float(v float64) *float64 {
	return &v
}
