// Package document renders completed onboarding forms into archival
// workbooks and validates rendered output before it is stored.
package document

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/crestlinehotels/onboarding/internal/application/port"
)

// formTitles maps form types to the human-readable document heading.
var formTitles = map[string]string{
	"PERSONAL_INFO":         "Personal Information",
	"I9_SECTION1":           "Form I-9 Section 1 - Employee Attestation",
	"I9_SECTION2":           "Form I-9 Section 2 - Employer Verification",
	"W4":                    "Form W-4 - Employee's Withholding Certificate",
	"DIRECT_DEPOSIT":        "Direct Deposit Authorization",
	"HEALTH_INSURANCE":      "Health Insurance Enrollment",
	"EMERGENCY_CONTACTS":    "Emergency Contacts",
	"POLICY_ACKNOWLEDGMENT": "Policy Acknowledgment",
	"MANAGER_SIGNOFF":       "Manager Sign-off",
}

// ExcelGenerator implements port.DocumentGenerator by rendering a form-data
// snapshot into a workbook. The same snapshot always renders the same cells.
type ExcelGenerator struct {
	companyName string
	logger      *zap.Logger
}

// NewExcelGenerator creates a new Excel document generator
func NewExcelGenerator(companyName string, logger *zap.Logger) port.DocumentGenerator {
	return &ExcelGenerator{
		companyName: companyName,
		logger:      logger,
	}
}

// Generate renders the snapshot into workbook bytes
func (g *ExcelGenerator) Generate(ctx context.Context, formType string, snapshot map[string]interface{}) (*port.GeneratedDocument, error) {
	if len(snapshot) == 0 {
		return nil, fmt.Errorf("empty snapshot for form %s", formType)
	}

	title, ok := formTitles[formType]
	if !ok {
		title = formType
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	g.setCell(f, sheet, "A1", g.companyName)
	g.setCell(f, sheet, "A2", title)
	g.setCell(f, sheet, "A3", fmt.Sprintf("Generated %s", time.Now().Format("2006-01-02")))

	// Field rows, sorted for stable output.
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := 5
	for _, key := range keys {
		g.setCell(f, sheet, fmt.Sprintf("A%d", row), key)
		g.setCell(f, sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("%v", snapshot[key]))
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		g.logger.Error("Failed to render workbook",
			zap.String("form_type", formType),
			zap.Error(err))
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	g.logger.Debug("Document generated",
		zap.String("form_type", formType),
		zap.Int("fields", len(snapshot)),
		zap.Int("size", buf.Len()))

	return &port.GeneratedDocument{
		Bytes:     buf.Bytes(),
		Extension: ".xlsx",
	}, nil
}

func (g *ExcelGenerator) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		g.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
