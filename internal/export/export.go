package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/proofscout/amazon-proof-scraper/internal/progress"
)

const sheetName = "Results"

// WriteWorkbook dumps recorded results to a local .xlsx workbook, one
// row per ASIN, for offline copies of a finished run.
func WriteWorkbook(path string, results []*progress.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := []interface{}{"Row", "ASIN", "Status", "Result", "Updated At"}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		f.SetCellStyle(sheetName, "A1", "E1", bold)
	}

	for i, r := range results {
		row := []interface{}{
			r.Row,
			r.ASIN,
			string(r.Status),
			r.Text,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	return nil
}
