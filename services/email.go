package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
)

// Mailer sends already-rendered HTML mail. Invoice sending depends on this
// interface so the status transition can be tested without a provider
// account.
type Mailer interface {
	SendEmail(ctx context.Context, to string, subject string, html string) error
}

// ResendMailer delivers through the Resend API.
type ResendMailer struct {
	client  *resend.Client
	from    string
	replyTo string
}

func NewResendMailer(apiKey string, from string, replyTo string) *ResendMailer {
	return &ResendMailer{client: resend.NewClient(apiKey), from: from, replyTo: replyTo}
}

func (m *ResendMailer) SendEmail(ctx context.Context, to string, subject string, html string) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		ReplyTo: m.replyTo,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return &utils.UpstreamError{Provider: "resend", Err: err}
	}
	return nil
}

var invoiceEmailTemplate = template.Must(template.New("invoiceEmail").Funcs(template.FuncMap{
	"money": utils.FormatCents,
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1a1a2e; max-width: 600px; margin: 0 auto;">
  <h2>Invoice {{.Invoice.InvoiceNumber}}</h2>
  <p>Hi {{.Invoice.ClientName}},</p>
  <p>{{.SenderName}} has sent you an invoice.</p>
  <table width="100%" cellpadding="8" style="border-collapse: collapse;">
    <tr style="background: #f4f4f8;">
      <th align="left">Description</th>
      <th align="right">Qty</th>
      <th align="right">Unit price</th>
      <th align="right">Amount</th>
    </tr>
    {{range .Invoice.Items}}
    <tr style="border-bottom: 1px solid #e4e4ec;">
      <td>{{.Description}}</td>
      <td align="right">{{.Quantity}}</td>
      <td align="right">{{money .UnitPrice}}</td>
      <td align="right">{{money .Amount}}</td>
    </tr>
    {{end}}
    <tr>
      <td colspan="3" align="right">Subtotal</td>
      <td align="right">{{money .Invoice.Subtotal}}</td>
    </tr>
    {{if .Invoice.TaxAmount}}
    <tr>
      <td colspan="3" align="right">Tax</td>
      <td align="right">{{money .Invoice.TaxAmount}}</td>
    </tr>
    {{end}}
    <tr style="font-weight: bold;">
      <td colspan="3" align="right">Total</td>
      <td align="right">{{money .Invoice.Total}} {{.Invoice.Currency}}</td>
    </tr>
  </table>
  {{if .Invoice.DueDate}}<p>Due by {{.Invoice.DueDate.Format "January 2, 2006"}}.</p>{{end}}
  {{if .Invoice.Notes}}<p>{{.Invoice.Notes}}</p>{{end}}
  {{if .PayURL}}<p><a href="{{.PayURL}}" style="background: #4f46e5; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 6px;">Pay now</a></p>{{end}}
  <p style="color: #8a8a9e; font-size: 12px;">Sent via TichPay</p>
</body>
</html>`))

type invoiceEmailData struct {
	Invoice    *models.Invoice
	SenderName string
	PayURL     string
}

// InvoiceEmailHTML renders the mail body for an invoice send.
func InvoiceEmailHTML(invoice *models.Invoice, senderName string, payURL string) (string, error) {
	var buf bytes.Buffer
	err := invoiceEmailTemplate.Execute(&buf, invoiceEmailData{
		Invoice:    invoice,
		SenderName: senderName,
		PayURL:     payURL,
	})
	if err != nil {
		return "", fmt.Errorf("render invoice email: %w", err)
	}
	return buf.String(), nil
}
