// Package export writes transactions and extraction candidates as CSV or
// XLSX documents.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/receipt-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/repository"
)

// SheetName is the worksheet XLSX exports are written to.
const SheetName = "Transactions"

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Row is one exported line.
type Row struct {
	Date     string `csv:"date"`
	Type     string `csv:"type"`
	Category string `csv:"category"`
	Label    string `csv:"label"`
	Amount   string `csv:"amount"`
	Currency string `csv:"currency"`
	Note     string `csv:"note"`
}

var headers = []any{"Date", "Type", "Category", "Label", "Amount", "Currency", "Note"}

// FromCandidates converts engine output. Candidates carry no currency, so
// the caller supplies the document's.
func FromCandidates(candidates []extraction.Candidate, currency string) []Row {
	rows := make([]Row, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, Row{
			Date:     c.Date,
			Type:     string(c.Type),
			Category: c.Category,
			Amount:   c.Amount.StringFixed(2),
			Currency: currency,
			Note:     c.Note,
		})
	}
	return rows
}

// FromTransactions converts stored transactions.
func FromTransactions(txs []*repository.Transaction) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, Row{
			Date:     tx.Date.Format("2006-01-02"),
			Type:     string(tx.Type),
			Category: tx.Category,
			Label:    tx.Label,
			Amount:   tx.Amount.StringFixed(2),
			Currency: tx.Currency,
			Note:     tx.Note,
		})
	}
	return rows
}

// Write encodes rows in the given format.
func Write(w io.Writer, format Format, rows []Row) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes rows to a single worksheet. Amounts are stored as numbers.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Date, r.Type, r.Category, r.Label, amountCell(r.Amount), r.Currency, r.Note}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "G", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}

// amountCell keeps parseable amounts numeric so spreadsheets can sum them.
func amountCell(s string) any {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}
