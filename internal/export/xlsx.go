// Package export renders priced series as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/goldrush/polyprice/internal/pricing"
)

const sheetName = "Fair Price"

var columns = []string{
	"Date",
	"Reference Index (USD)",
	"FX Rate",
	"Base Price (USD/kg)",
	"CFR (USD/kg)",
	"Landed Cost",
	"Operational Cost",
	"Net Price",
	"Final Price",
	"7-Day Average",
}

// WriteXLSX writes a priced series as a spreadsheet. Dates are rendered as
// plain YYYY-MM-DD strings; missing trailing averages become empty cells.
func WriteXLSX(w io.Writer, priced pricing.PricedSeries) error {
	if priced.Empty() {
		return fmt.Errorf("cannot export an empty series")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	for i, title := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("resolving header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for rowIdx, row := range priced {
		values := []interface{}{
			row.Date.Format("2006-01-02"),
			row.ReferenceIndex,
			row.FXRate,
			row.BasePrice,
			row.CFR,
			row.LandedCost,
			row.OperationalCost,
			row.NetPrice,
			row.FinalPrice,
			row.TrailingAverage,
		}
		for colIdx, value := range values {
			if v, ok := value.(float64); ok && math.IsNaN(v) {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("resolving cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("writing row %d: %w", rowIdx+1, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
