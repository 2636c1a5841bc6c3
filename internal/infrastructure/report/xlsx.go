package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
)

// ContentTypeXLSX is the MIME type of the workbook
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetInventory is the name of the only sheet
const SheetInventory = "Inventory"

var inventoryHeader = []any{
	"Product ID", "Name", "Category", "Location", "Quantity",
	"SRP", "Value", "Stock Status", "Expiry Status", "Expiration Date",
}

// WriteInventoryXLSX renders the inventory report as a single-sheet
// workbook: a header row, one row per product and a totals row.
func WriteInventoryXLSX(w io.Writer, report *application.InventoryReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInventory); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetInventory, "A1", &inventoryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := f.SetCellStyle(SheetInventory, "A1", "J1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range report.Rows {
		expiration := ""
		if row.ExpirationDate != nil {
			expiration = row.ExpirationDate.Format("2006-01-02")
		}
		values := []any{
			row.ProductID, row.Name, row.Category, row.Location, row.Quantity,
			row.SRP.InexactFloat64(), row.Value.InexactFloat64(),
			row.StockStatus, row.ExpiryStatus, expiration,
		}
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}

	totalsRow := len(report.Rows) + 2
	totals := []any{
		"Total", fmt.Sprintf("%d products", report.Totals.Products), "", "",
		report.Totals.Units, "", report.Totals.Value.InexactFloat64(),
	}
	if err := setRow(f, totalsRow, totals); err != nil {
		return err
	}
	totalsStart, _ := excelize.CoordinatesToCellName(1, totalsRow)
	totalsEnd, _ := excelize.CoordinatesToCellName(len(inventoryHeader), totalsRow)
	if err := f.SetCellStyle(SheetInventory, totalsStart, totalsEnd, bold); err != nil {
		return fmt.Errorf("failed to style totals: %w", err)
	}

	if err := f.SetColWidth(SheetInventory, "B", "B", 32); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(SheetInventory, "C", "J", 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(SheetInventory, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
