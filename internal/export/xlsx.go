package export

import (
	"fmt"
	"io"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported transactions.
const SheetName = "Transactions"

// WriteXLSX writes txs as a single-sheet workbook with a bold header row and
// auto-sized columns.
func WriteXLSX(w io.Writer, txs []domain.Transaction, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("WriteXLSX: rename sheet: %w", err)
	}

	for col, h := range Headers {
		if err := setCell(f, sheet, col+1, 1, h); err != nil {
			return fmt.Errorf("WriteXLSX: header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(Headers), 1)
	if err != nil {
		return fmt.Errorf("WriteXLSX: header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("WriteXLSX: apply header style: %w", err)
	}

	for i, t := range txs {
		row := i + 2
		values := []interface{}{t.Date, t.Description, optional(t.Debit), optional(t.Credit), t.Balance, string(t.Category)}
		for col, v := range values {
			if v == nil {
				continue
			}
			if err := setCell(f, sheet, col+1, row, v); err != nil {
				return fmt.Errorf("WriteXLSX: row %d: %w", row, err)
			}
		}
	}

	for i, width := range ColumnWidths(Rows(txs)) {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("WriteXLSX: column name: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return fmt.Errorf("WriteXLSX: column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

// optional unwraps an amount, returning an untyped nil when absent so the
// cell is left empty.
func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
