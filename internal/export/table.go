package export

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// renderTable writes the paged text document: title, filters, summary and
// then one table per page with the header repeated.
func (s *Serializer) renderTable(w io.Writer, doc domain.ExportDocument) error {
	var b strings.Builder

	b.WriteString(doc.Title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", utf8.RuneCountInString(doc.Title)))
	b.WriteString("\n\n")

	if len(doc.Filters) > 0 {
		b.WriteString("Filters\n")
		for _, kv := range doc.Filters {
			fmt.Fprintf(&b, "  %s: %s\n", kv.Key, kv.Value)
		}
		b.WriteString("\n")
	}

	if len(doc.Summary) > 0 {
		summary := table.NewWriter()
		summary.SetStyle(documentStyle())
		summary.SetTitle("Summary")
		summary.AppendHeader(table.Row{"Metric", "Value"})
		for _, m := range doc.Summary {
			summary.AppendRow(table.Row{m.Label, FormatCell(m.Value, domain.ColumnSpec{DataType: m.DataType})})
		}
		summary.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		b.WriteString(summary.Render())
		b.WriteString("\n\n")
	}

	header := headerRow(doc.Columns)
	configs := columnConfigs(doc.Columns)
	pages := pageCount(len(doc.Rows), s.pageSize())

	if len(doc.Rows) == 0 {
		t := table.NewWriter()
		t.SetStyle(documentStyle())
		t.AppendHeader(header)
		t.SetColumnConfigs(configs)
		t.AppendFooter(table.Row{"Page 1 of 1 · 0 rows"})
		b.WriteString(t.Render())
		b.WriteString("\n")
	}

	for page := 0; page < pages; page++ {
		start := page * s.pageSize()
		end := start + s.pageSize()
		if end > len(doc.Rows) {
			end = len(doc.Rows)
		}

		t := table.NewWriter()
		t.SetStyle(documentStyle())
		t.AppendHeader(header)
		for _, row := range doc.Rows[start:end] {
			t.AppendRow(dataRow(row, doc.Columns))
		}
		t.SetColumnConfigs(configs)
		t.AppendFooter(table.Row{fmt.Sprintf("Page %d of %d · %d rows", page+1, pages, len(doc.Rows))})
		b.WriteString(t.Render())
		b.WriteString("\n")
		if page < pages-1 {
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// renderCSV writes the header and every row; filters and summary are left out
// so the output stays a plain grid.
func (s *Serializer) renderCSV(w io.Writer, doc domain.ExportDocument) error {
	t := table.NewWriter()
	t.SetStyle(documentStyle())
	t.AppendHeader(headerRow(doc.Columns))
	for _, row := range doc.Rows {
		t.AppendRow(dataRow(row, doc.Columns))
	}
	out := t.RenderCSV()
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}

// documentStyle is the light box style with headers and footers left as written.
func documentStyle() table.Style {
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	style.Title.Format = text.FormatDefault
	return style
}

func headerRow(cols []domain.ColumnSpec) table.Row {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c.Header
	}
	return row
}

func dataRow(row domain.Row, cols []domain.ColumnSpec) table.Row {
	out := make(table.Row, len(cols))
	for i, c := range cols {
		out[i] = Cell(row, c)
	}
	return out
}

func columnConfigs(cols []domain.ColumnSpec) []table.ColumnConfig {
	var configs []table.ColumnConfig
	for i, c := range cols {
		if numericType(c.DataType) {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	return configs
}

func numericType(dt domain.DataType) bool {
	switch dt {
	case domain.TypeNumber, domain.TypeCurrency, domain.TypePercentage, domain.TypeDuration:
		return true
	}
	return false
}

func pageCount(rows, size int) int {
	if rows == 0 || size <= 0 {
		return 0
	}
	return (rows + size - 1) / size
}
