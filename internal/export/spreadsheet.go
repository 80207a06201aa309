package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

const (
	reportSheet  = "Report"
	summarySheet = "Summary"

	defaultColWidth = 16.0
)

var numFormats = map[domain.DataType]string{
	domain.TypeCurrency:   "#,##0.00",
	domain.TypePercentage: "0.0%",
	domain.TypeNumber:     "#,##0.##",
	domain.TypeDate:       "yyyy-mm-dd hh:mm",
}

// renderSpreadsheet writes a workbook with a Report sheet holding the rows
// and a Summary sheet holding filters and summary metrics.
func (s *Serializer) renderSpreadsheet(w io.Writer, doc domain.ExportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("failed to name report sheet: %w", err)
	}
	if err := writeReportSheet(f, doc); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, doc); err != nil {
		return err
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeReportSheet(f *excelize.File, doc domain.ExportDocument) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"305496"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, col := range doc.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(reportSheet, cell, col.Header); err != nil {
			return err
		}

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width := col.Width
		if width <= 0 {
			width = defaultColWidth
		}
		if err := f.SetColWidth(reportSheet, name, name, width); err != nil {
			return err
		}
	}

	if len(doc.Columns) == 0 {
		return nil
	}

	last, err := excelize.CoordinatesToCellName(len(doc.Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(reportSheet, "A1", last, headerStyle); err != nil {
		return err
	}
	if err := f.SetPanes(reportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if err := f.AutoFilter(reportSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("failed to set auto filter: %w", err)
	}

	for r, row := range doc.Rows {
		for c, col := range doc.Columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(reportSheet, cell, sheetValue(row, col)); err != nil {
				return err
			}
		}
	}

	if len(doc.Rows) == 0 {
		return nil
	}
	for c, col := range doc.Columns {
		format, ok := numFormats[col.DataType]
		if !ok || col.Formatter != nil {
			continue
		}
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: &format})
		if err != nil {
			return fmt.Errorf("failed to create column style: %w", err)
		}
		top, _ := excelize.CoordinatesToCellName(c+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(c+1, len(doc.Rows)+1)
		if err := f.SetCellStyle(reportSheet, top, bottom, style); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, doc domain.ExportDocument) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	set := func(col int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(summarySheet, cell, v)
	}

	if err := set(1, doc.Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", bold); err != nil {
		return err
	}
	row += 2

	if len(doc.Filters) > 0 {
		if err := set(1, "Filters"); err != nil {
			return err
		}
		row++
		for _, kv := range doc.Filters {
			if err := set(1, kv.Key); err != nil {
				return err
			}
			if err := set(2, kv.Value); err != nil {
				return err
			}
			row++
		}
		row++
	}

	if err := set(1, "Metric"); err != nil {
		return err
	}
	if err := set(2, "Value"); err != nil {
		return err
	}
	header, _ := excelize.CoordinatesToCellName(2, row)
	first, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetCellStyle(summarySheet, first, header, bold); err != nil {
		return err
	}
	row++
	for _, m := range doc.Summary {
		if err := set(1, m.Label); err != nil {
			return err
		}
		if err := set(2, FormatCell(m.Value, domain.ColumnSpec{DataType: m.DataType})); err != nil {
			return err
		}
		row++
	}
	return f.SetColWidth(summarySheet, "A", "B", 28)
}

// sheetValue keeps numbers and dates typed so the column formats apply.
// Percentages are stored as fractions for the 0.0% format.
func sheetValue(row domain.Row, col domain.ColumnSpec) any {
	v, ok := ResolvePath(row, col.Key)
	if !ok || isNil(v) {
		return Placeholder
	}
	if col.Formatter != nil {
		return col.Formatter(v)
	}
	switch col.DataType {
	case domain.TypeCurrency, domain.TypeNumber:
		if n, ok := number(v); ok {
			return n
		}
	case domain.TypePercentage:
		if n, ok := number(v); ok {
			return n / 100
		}
	case domain.TypeDate:
		if t, ok := timeValue(v); ok {
			return t.UTC()
		}
	}
	return FormatCell(v, col)
}
