// Package export writes transformed transactions as downloadable spreadsheets.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/statement-converter/internal/domain"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// MessageNoRows is shown when a view leaves nothing to export.
const MessageNoRows = "There are no transactions to export for the selected dates."

// DefaultBaseName names exports of statements without a usable file name.
const DefaultBaseName = "converted-statement"

// Headers are the column titles, in column order.
var Headers = []string{"date", "description", "debit", "credit", "balance", "category"}

// ParseFormat validates a format from user input. Empty selects xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write encodes txs in format f. Rows are written in the given order.
func Write(w io.Writer, f Format, txs []domain.Transaction) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, txs)
	case FormatXLSX:
		return WriteXLSX(w, txs, SheetName)
	default:
		return fmt.Errorf("Write: unsupported export format %q", f)
	}
}

var pdfSuffix = regexp.MustCompile(`(?i)\.pdf$`)

// BaseName derives the export base name from an uploaded file name.
func BaseName(uploadName string) string {
	name := strings.TrimSpace(uploadName)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return pdfSuffix.ReplaceAllString(name, "")
}

// FileName returns base with the extension of f, falling back to DefaultBaseName.
func FileName(base string, f Format) string {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseName
	}
	return base + "." + string(f)
}

// Cells renders one transaction as display strings, in Headers order.
// Zero and absent values render empty.
func Cells(t domain.Transaction) []string {
	return []string{
		t.Date,
		t.Description,
		formatOptional(t.Debit),
		formatOptional(t.Credit),
		formatAmount(t.Balance),
		string(t.Category),
	}
}

// Rows renders every transaction with Cells.
func Rows(txs []domain.Transaction) [][]string {
	rows := make([][]string, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, Cells(t))
	}
	return rows
}

// ColumnWidths returns per-column width hints: the longest of the header and
// every cell in that column, plus 2. Lengths are counted in characters.
func ColumnWidths(rows [][]string) []int {
	widths := make([]int, len(Headers))
	for i, h := range Headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}
	return widths
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatAmount(*v)
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
