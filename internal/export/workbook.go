// Package export renders batch results and archived records as XLSX
// workbooks.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

const (
	ItemsSheet   = "Invoices"
	SummarySheet = "Summary"
)

// row is one line of the items sheet.
type row struct {
	id      string
	status  string
	errCode string
	record  *entity.InvoiceRecord
}

func fixedHeaders() []string {
	return []string{"ID", "Status", "Error", "Type Code", "Type", "Confidence"}
}

func headers() []string {
	h := fixedHeaders()
	for _, name := range constants.AllFields {
		label := constants.FieldLabels[name]
		h = append(h, label, label+" Valid")
	}
	return append(h, "Warnings")
}

type workbook struct {
	f *excelize.File
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(ItemsSheet)
	f.SetActiveSheet(idx)
	// drop the default sheet so the items sheet comes first
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return &workbook{f: f}, nil
}

func (w *workbook) writeRow(sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(sheet, cell, &values)
}

func (w *workbook) writeItems(rows []row) error {
	hs := headers()
	hv := make([]any, len(hs))
	for i, h := range hs {
		hv[i] = h
	}
	if err := w.writeRow(ItemsSheet, 1, hv); err != nil {
		return err
	}
	for i, r := range rows {
		if err := w.writeRow(ItemsSheet, i+2, r.values()); err != nil {
			return err
		}
	}

	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(hs), 1)
		_ = w.f.SetCellStyle(ItemsSheet, "A1", last, style)
	}
	_ = w.f.SetPanes(ItemsSheet, &excelize.Panes{Freeze: true, Split: false, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	lastCol, _ := excelize.ColumnNumberToName(len(hs))
	_ = w.f.SetColWidth(ItemsSheet, "A", "A", 28) // id
	_ = w.f.SetColWidth(ItemsSheet, "B", "D", 14)
	_ = w.f.SetColWidth(ItemsSheet, "E", "E", 22) // type name
	_ = w.f.SetColWidth(ItemsSheet, "G", lastCol, 16)
	_ = w.f.SetColWidth(ItemsSheet, lastCol, lastCol, 60) // warnings
	return nil
}

func (r row) values() []any {
	out := []any{r.id, r.status, r.errCode}
	rec := r.record
	if rec == nil {
		out = append(out, "", "", "")
		for range constants.AllFields {
			out = append(out, "", "")
		}
		return append(out, "")
	}
	out = append(out, rec.Type.Code, rec.Type.Name, round(rec.OverallConfidence))
	for _, name := range constants.AllFields {
		f, ok := rec.Fields[name]
		if !ok {
			out = append(out, "", "")
			continue
		}
		out = append(out, f.NormalizedValue, f.Valid)
	}
	msgs := make([]string, 0, len(rec.Warnings))
	for _, w := range rec.Warnings {
		msgs = append(msgs, fmt.Sprintf("%s: %s", w.Code, w.Message))
	}
	return append(out, strings.Join(msgs, "; "))
}

func round(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}

func (w *workbook) bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
