package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os/exec"

	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
)

var hundred = decimal.NewFromInt(100)

// DocumentRenderer turns pre-rendered HTML into a PDF on disk. The data is
// computed by the caller; the renderer never touches the database.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, html string, outputPath string) error
}

// WkhtmltopdfRenderer shells out to wkhtmltopdf, reading HTML on stdin.
type WkhtmltopdfRenderer struct {
	Binary string
}

func NewWkhtmltopdfRenderer() *WkhtmltopdfRenderer {
	return &WkhtmltopdfRenderer{Binary: "wkhtmltopdf"}
}

func (r *WkhtmltopdfRenderer) RenderPDF(ctx context.Context, html string, outputPath string) error {
	cmd := exec.CommandContext(ctx, r.Binary, "--quiet", "--encoding", "utf-8", "-", outputPath)
	cmd.Stdin = bytes.NewBufferString(html)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wkhtmltopdf: %w: %s", err, stderr.String())
	}
	return nil
}

var invoicePDFTemplate = template.Must(template.New("invoicePDF").Funcs(template.FuncMap{
	"money": utils.FormatCents,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 40px; }
  h1 { font-size: 28px; margin-bottom: 0; }
  .muted { color: #8a8a9e; }
  table { width: 100%; border-collapse: collapse; margin-top: 24px; }
  th, td { padding: 8px; }
  th { text-align: left; background: #f4f4f8; }
  td.num, th.num { text-align: right; }
  tr.total { font-weight: bold; border-top: 2px solid #1a1a2e; }
</style></head>
<body>
  <h1>{{.Invoice.InvoiceNumber}}</h1>
  <p class="muted">Status: {{.Invoice.Status}} · Issued {{.Invoice.IssueDate.Format "Jan 2, 2006"}}{{if .Invoice.DueDate}} · Due {{.Invoice.DueDate.Format "Jan 2, 2006"}}{{end}}</p>
  <p><strong>From</strong><br>{{.SenderName}}{{if .SenderCompany}}<br>{{.SenderCompany}}{{end}}</p>
  <p><strong>Bill to</strong><br>{{.Invoice.ClientName}}<br>{{.Invoice.ClientEmail}}{{if .Invoice.ClientAddress}}<br>{{.Invoice.ClientAddress}}{{end}}</p>
  <table>
    <tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr>
    {{range .Invoice.Items}}
    <tr><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Amount}}</td></tr>
    {{end}}
    <tr><td colspan="3" class="num">Subtotal</td><td class="num">{{money .Invoice.Subtotal}}</td></tr>
    {{if .Invoice.TaxAmount}}<tr><td colspan="3" class="num">Tax ({{.Invoice.TaxRate}}%)</td><td class="num">{{money .Invoice.TaxAmount}}</td></tr>{{end}}
    <tr class="total"><td colspan="3" class="num">Total</td><td class="num">{{money .Invoice.Total}} {{.Invoice.Currency}}</td></tr>
  </table>
  {{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}
</body>
</html>`))

type invoicePDFData struct {
	Invoice       *models.Invoice
	SenderName    string
	SenderCompany string
}

// RenderInvoiceHTML produces the printable invoice document.
func RenderInvoiceHTML(invoice *models.Invoice, senderName string, senderCompany string) (string, error) {
	var buf bytes.Buffer
	err := invoicePDFTemplate.Execute(&buf, invoicePDFData{
		Invoice:       invoice,
		SenderName:    senderName,
		SenderCompany: senderCompany,
	})
	if err != nil {
		return "", fmt.Errorf("render invoice document: %w", err)
	}
	return buf.String(), nil
}

var taxReportPDFTemplate = template.Must(template.New("taxReportPDF").Funcs(template.FuncMap{
	"money": utils.FormatCents,
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1a1a2e; margin: 40px; }
  h1 { font-size: 24px; }
  table { width: 60%; border-collapse: collapse; margin-top: 24px; }
  td { padding: 8px; border-bottom: 1px solid #e4e4ec; }
  td.num { text-align: right; }
</style></head>
<body>
  <h1>Quarterly Tax Report — {{.Report.Year}} Q{{.Report.Quarter}}</h1>
  <p>Status: {{.Report.Status}}{{if .Report.FinalizedAt}} (finalized {{.Report.FinalizedAt.Format "Jan 2, 2006"}}){{end}}</p>
  <table>
    <tr><td>Total income</td><td class="num">{{money .Report.TotalIncome}}</td></tr>
    <tr><td>Total expenses</td><td class="num">{{money .Report.TotalExpenses}}</td></tr>
    <tr><td>Net income</td><td class="num">{{money .Report.NetIncome}}</td></tr>
    <tr><td>Estimated tax ({{.RatePercent}}%)</td><td class="num">{{money .Report.EstimatedTax}}</td></tr>
  </table>
  <p style="color: #8a8a9e; font-size: 12px;">Estimates only; consult a tax professional before filing.</p>
</body>
</html>`))

type taxReportPDFData struct {
	Report      *models.TaxReport
	RatePercent string
}

// RenderTaxReportHTML produces the printable quarterly summary.
func RenderTaxReportHTML(report *models.TaxReport) (string, error) {
	var buf bytes.Buffer
	err := taxReportPDFTemplate.Execute(&buf, taxReportPDFData{
		Report:      report,
		RatePercent: report.TaxRate.Mul(hundred).StringFixed(0),
	})
	if err != nil {
		return "", fmt.Errorf("render tax report document: %w", err)
	}
	return buf.String(), nil
}
