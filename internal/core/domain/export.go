package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// ColumnSpec describes one exported column. Key may be a dotted path into a Row.
type ColumnSpec struct {
	Key       string
	Header    string
	DataType  DataType
	Width     float64
	Formatter func(v any) string
}

// KeyValue is a rendered filter or header entry.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExportDocument is everything a serializer needs. It carries no view semantics.
type ExportDocument struct {
	Title   string
	Filters []KeyValue
	Summary []Metric
	Columns []ColumnSpec
	Rows    []Row
}

// ExportFormat selects the serializer output.
type ExportFormat string

const (
	FormatTable       ExportFormat = "table"
	FormatCSV         ExportFormat = "csv"
	FormatSpreadsheet ExportFormat = "spreadsheet"
)

// ParseExportFormat resolves a format name; empty means table.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatTable, "txt", "text":
		return FormatTable, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatSpreadsheet, "xlsx", "excel":
		return FormatSpreadsheet, nil
	}
	return "", apperrors.NewInvalidFilterError(apperrors.ErrInvalidFormat, fmt.Sprintf("unknown export format %q", name), map[string]interface{}{
		"format":  name,
		"allowed": []string{string(FormatTable), string(FormatCSV), string(FormatSpreadsheet)},
	})
}

// ContentType is the MIME type of the rendered document.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/plain; charset=utf-8"
}

// Extension is the file extension used in download names.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatSpreadsheet:
		return "xlsx"
	}
	return "txt"
}
