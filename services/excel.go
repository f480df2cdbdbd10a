package services

import (
	"fmt"
	"io"

	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
	"github.com/xuri/excelize/v2"
)

// WriteTaxReportWorkbook writes a two-sheet workbook: the quarter's summary
// figures and the transactions they were computed from.
func WriteTaxReportWorkbook(w io.Writer, report *models.TaxReport, transactions []models.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}

	f.SetCellValue(summary, "A1", "Quarterly Tax Report")
	f.SetCellValue(summary, "A2", fmt.Sprintf("%d Q%d", report.Year, report.Quarter))
	f.SetCellValue(summary, "A3", "Status")
	f.SetCellValue(summary, "B3", string(report.Status))
	f.SetCellValue(summary, "A5", "Total income")
	f.SetCellValue(summary, "B5", utils.FormatCents(report.TotalIncome))
	f.SetCellValue(summary, "A6", "Total expenses")
	f.SetCellValue(summary, "B6", utils.FormatCents(report.TotalExpenses))
	f.SetCellValue(summary, "A7", "Net income")
	f.SetCellValue(summary, "B7", utils.FormatCents(report.NetIncome))
	f.SetCellValue(summary, "A8", "Estimated tax")
	f.SetCellValue(summary, "B8", utils.FormatCents(report.EstimatedTax))

	sheet := "Transactions"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", "Date")
	f.SetCellValue(sheet, "B1", "Type")
	f.SetCellValue(sheet, "C1", "Category")
	f.SetCellValue(sheet, "D1", "Description")
	f.SetCellValue(sheet, "E1", "Amount")
	f.SetCellValue(sheet, "F1", "Currency")

	for i, t := range transactions {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, t.OccurredAt.Format("2006-01-02"))
		f.SetCellValue(sheet, "B"+row, string(t.Type))
		f.SetCellValue(sheet, "C"+row, t.Category)
		f.SetCellValue(sheet, "D"+row, t.Description)
		f.SetCellValue(sheet, "E"+row, utils.FormatCents(t.Amount))
		f.SetCellValue(sheet, "F"+row, t.Currency)
	}

	return f.Write(w)
}
