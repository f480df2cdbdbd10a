package services_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
	"github.com/xuri/excelize/v2"
)

func sampleInvoice() *models.Invoice {
	due := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)
	return &models.Invoice{
		InvoiceNumber: "INV-007",
		ClientName:    "Acme Corp",
		ClientEmail:   "billing@acme.test",
		ClientAddress: "1 Coyote Canyon, Tucson",
		IssueDate:     time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		Subtotal:      1100,
		TaxRate:       decimal.NewFromInt(10),
		TaxAmount:     110,
		Total:         1210,
		Currency:      "USD",
		Status:        models.InvoiceStatusDraft,
		DueDate:       &due,
		Notes:         "Thanks for your business",
		Items: []models.InvoiceItem{
			{Description: "Design", Quantity: 10, UnitPrice: 50, Amount: 500},
			{Description: "Hosting", Quantity: 3, UnitPrice: 200, Amount: 600},
		},
	}
}

func TestInvoiceEmailHTML(t *testing.T) {
	html, err := services.InvoiceEmailHTML(sampleInvoice(), "Jo Freelancer", "https://app.test/pay/invoice/x")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"INV-007",
		"Acme Corp",
		"Jo Freelancer",
		"Design",
		"Hosting",
		"5.00",  // subtotal line items in display units
		"12.10", // total
		"https://app.test/pay/invoice/x",
		"September 15, 2026",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("email html missing %q", want)
		}
	}
}

func TestRenderInvoiceHTML(t *testing.T) {
	html, err := services.RenderInvoiceHTML(sampleInvoice(), "Jo Freelancer", "Jo Studio")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"INV-007", "Jo Studio", "billing@acme.test", "1 Coyote Canyon, Tucson", "Aug 20, 2026", "11.00", "1.10", "12.10"} {
		if !strings.Contains(html, want) {
			t.Errorf("invoice html missing %q", want)
		}
	}
}

func TestRenderTaxReportHTML(t *testing.T) {
	report := &models.TaxReport{
		Year:          2026,
		Quarter:       2,
		TotalIncome:   150000,
		TotalExpenses: 30000,
		NetIncome:     120000,
		TaxRate:       decimal.NewFromFloat(0.25),
		EstimatedTax:  30000,
		Status:        models.TaxReportStatusDraft,
	}
	html, err := services.RenderTaxReportHTML(report)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"2026 Q2", "1500.00", "300.00", "1200.00", "25%"} {
		if !strings.Contains(html, want) {
			t.Errorf("tax report html missing %q", want)
		}
	}
}

func TestWriteTaxReportWorkbook(t *testing.T) {
	report := &models.TaxReport{
		Year:         2026,
		Quarter:      1,
		TotalIncome:  50000,
		NetIncome:    50000,
		TaxRate:      decimal.NewFromFloat(0.25),
		EstimatedTax: 12500,
		Status:       models.TaxReportStatusFinalized,
	}
	transactions := []models.Transaction{
		{Type: models.TransactionTypeIncome, Amount: 50000, Currency: "USD", Category: "invoice", Description: "Big payment", OccurredAt: time.Date(2026, time.February, 3, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	if err := services.WriteTaxReportWorkbook(&buf, report, transactions); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	income, err := f.GetCellValue("Summary", "B5")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if income != "500.00" {
		t.Fatalf("summary income = %q, want 500.00", income)
	}

	desc, err := f.GetCellValue("Transactions", "D2")
	if err != nil {
		t.Fatalf("read transactions: %v", err)
	}
	if desc != "Big payment" {
		t.Fatalf("transaction description = %q", desc)
	}
	category, err := f.GetCellValue("Transactions", "C2")
	if err != nil {
		t.Fatalf("read transactions: %v", err)
	}
	if category != "invoice" {
		t.Fatalf("transaction category = %q", category)
	}
}
