// Package export turns an ExportDocument into a paged text table, CSV or a
// spreadsheet workbook. It formats values and never derives metrics.
package export

import (
	"fmt"
	"io"

	"github.com/lorrc/field-metrics/internal/core/domain"
	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// DefaultPageSize is the number of rows per page of the text document.
const DefaultPageSize = 40

// Serializer renders export documents.
type Serializer struct {
	PageSize int
}

// NewSerializer returns a serializer with the given text page size.
func NewSerializer(pageSize int) *Serializer {
	return &Serializer{PageSize: pageSize}
}

func (s *Serializer) pageSize() int {
	if s == nil || s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// Render writes doc to w in the requested format.
func (s *Serializer) Render(w io.Writer, doc domain.ExportDocument, format domain.ExportFormat) error {
	switch format {
	case domain.FormatTable:
		return s.renderTable(w, doc)
	case domain.FormatCSV:
		return s.renderCSV(w, doc)
	case domain.FormatSpreadsheet:
		return s.renderSpreadsheet(w, doc)
	}
	return fmt.Errorf("%w: %q", apperrors.ErrInvalidFormat, format)
}
