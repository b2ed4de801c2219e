package document

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExcelGenerator_Generate(t *testing.T) {
	logger := zap.NewNop()
	gen := NewExcelGenerator("Crestline Hotels", logger)
	ctx := context.Background()

	snapshot := map[string]interface{}{
		"filing_status": "single",
		"first_name":    "Dana",
		"last_name":     "Okafor",
		"signature":     "Dana Okafor",
	}

	t.Run("renders the snapshot into a workbook", func(t *testing.T) {
		doc, err := gen.Generate(ctx, "W4", snapshot)
		require.NoError(t, err)
		assert.Equal(t, ".xlsx", doc.Extension)
		assert.NotEmpty(t, doc.Bytes)

		f, err := excelize.OpenReader(bytes.NewReader(doc.Bytes))
		require.NoError(t, err)
		defer f.Close()

		sheet := f.GetSheetName(0)
		company, err := f.GetCellValue(sheet, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Crestline Hotels", company)

		title, err := f.GetCellValue(sheet, "A2")
		require.NoError(t, err)
		assert.Equal(t, "Form W-4 - Employee's Withholding Certificate", title)

		// Field rows are sorted by key from row 5.
		firstKey, err := f.GetCellValue(sheet, "A5")
		require.NoError(t, err)
		assert.Equal(t, "filing_status", firstKey)

		firstVal, err := f.GetCellValue(sheet, "B5")
		require.NoError(t, err)
		assert.Equal(t, "single", firstVal)
	})

	t.Run("unknown form type falls back to its name as title", func(t *testing.T) {
		doc, err := gen.Generate(ctx, "SOMETHING_ELSE", snapshot)
		require.NoError(t, err)

		f, err := excelize.OpenReader(bytes.NewReader(doc.Bytes))
		require.NoError(t, err)
		defer f.Close()

		title, err := f.GetCellValue(f.GetSheetName(0), "A2")
		require.NoError(t, err)
		assert.Equal(t, "SOMETHING_ELSE", title)
	})

	t.Run("empty snapshot is rejected", func(t *testing.T) {
		_, err := gen.Generate(ctx, "W4", nil)
		assert.Error(t, err)
	})
}

func TestInspector_Inspect(t *testing.T) {
	logger := zap.NewNop()
	gen := NewExcelGenerator("Crestline Hotels", logger)
	inspector := NewInspector(logger)
	ctx := context.Background()

	t.Run("accepts a generated workbook", func(t *testing.T) {
		doc, err := gen.Generate(ctx, "I9_SECTION1", map[string]interface{}{
			"citizenship_status": "citizen",
		})
		require.NoError(t, err)

		pages, err := inspector.Inspect(ctx, doc.Bytes)
		require.NoError(t, err)
		assert.Equal(t, 1, pages)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := inspector.Inspect(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("rejects an unrecognized format", func(t *testing.T) {
		_, err := inspector.Inspect(ctx, []byte("hello, not a document"))
		assert.ErrorContains(t, err, "unrecognized document format")
	})

	t.Run("rejects zip bytes that are not a workbook", func(t *testing.T) {
		_, err := inspector.Inspect(ctx, []byte("PK\x03\x04garbage"))
		assert.Error(t, err)
	})
}
