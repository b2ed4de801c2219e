package document

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
)

// Inspector implements port.DocumentInspector. Archived onboarding paperwork
// arrives either as a PDF (scanned/signed uploads) or a generated workbook;
// the magic bytes decide which reader validates it.
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new document inspector
func NewInspector(logger *zap.Logger) port.DocumentInspector {
	return &Inspector{logger: logger}
}

// Inspect returns the page count, or an error when the document is
// unreadable or empty.
func (i *Inspector) Inspect(ctx context.Context, doc []byte) (int, error) {
	if len(doc) == 0 {
		return 0, fmt.Errorf("document is empty")
	}

	if bytes.HasPrefix(doc, []byte("%PDF")) {
		return i.inspectPDF(doc)
	}

	// Workbooks (and any OOXML container) start with the zip signature.
	if bytes.HasPrefix(doc, []byte("PK")) {
		return i.inspectWorkbook(doc)
	}

	return 0, fmt.Errorf("unrecognized document format")
}

func (i *Inspector) inspectPDF(doc []byte) (int, error) {
	pdf, err := fitz.NewFromMemory(doc)
	if err != nil {
		i.logger.Error("Failed to open PDF for inspection", zap.Error(err))
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer pdf.Close()

	pages := pdf.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}

	return pages, nil
}

func (i *Inspector) inspectWorkbook(doc []byte) (int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(doc))
	if err != nil {
		i.logger.Error("Failed to open workbook for inspection", zap.Error(err))
		return 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return 0, fmt.Errorf("failed to read workbook rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("workbook is empty")
	}

	return len(sheets), nil
}
