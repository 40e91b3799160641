package export

import (
	"fmt"
	"io"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/gocarina/gocsv"
)

// csvRow is the CSV shape of a transaction. Amounts are pre-rendered so that
// absent values stay empty instead of printing as 0.
type csvRow struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Debit       string `csv:"debit"`
	Credit      string `csv:"credit"`
	Balance     string `csv:"balance"`
	Category    string `csv:"category"`
}

// WriteCSV writes txs as CSV with a header row.
func WriteCSV(w io.Writer, txs []domain.Transaction) error {
	rows := make([]*csvRow, 0, len(txs))
	for _, t := range txs {
		c := Cells(t)
		rows = append(rows, &csvRow{
			Date:        c[0],
			Description: c[1],
			Debit:       c[2],
			Credit:      c[3],
			Balance:     balanceCell(t.Balance),
			Category:    c[5],
		})
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}

// balanceCell keeps a zero balance visible in CSV, unlike the width hints.
func balanceCell(v float64) string {
	if v == 0 {
		return "0"
	}
	return formatAmount(v)
}
