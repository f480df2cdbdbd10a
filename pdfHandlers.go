package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
)

// invoicePDFHandler renders the invoice to a temp file via the document
// renderer and streams it back.
func (app *application) invoicePDFHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	invoice, err := models.GetInvoice(app.db, c.Request.Context(), app.currentUserId(c), id)
	if err != nil {
		app.respondError(c, err)
		return
	}

	html, err := services.RenderInvoiceHTML(invoice, app.defaultUser.Name, app.defaultUser.CompanyName)
	if err != nil {
		app.respondError(c, err)
		return
	}
	app.servePDF(c, html, invoice.InvoiceNumber+".pdf")
}

func (app *application) taxReportPDFHandler(c *gin.Context) {
	year, quarter, ok := parsePeriod(c)
	if !ok {
		return
	}
	report, err := models.GetTaxReport(app.db, c.Request.Context(), app.currentUserId(c), year, quarter)
	if err != nil {
		app.respondError(c, err)
		return
	}

	html, err := services.RenderTaxReportHTML(report)
	if err != nil {
		app.respondError(c, err)
		return
	}
	app.servePDF(c, html, fmt.Sprintf("tax-report-%d-Q%d.pdf", year, quarter))
}

func (app *application) servePDF(c *gin.Context, html string, filename string) {
	dir, err := os.MkdirTemp("", "tichpay-pdf-*")
	if err != nil {
		app.respondError(c, err)
		return
	}
	defer os.RemoveAll(dir)

	outputPath := filepath.Join(dir, filename)
	if err := app.renderer.RenderPDF(c.Request.Context(), html, outputPath); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "document rendering failed"})
		return
	}
	c.FileAttachment(outputPath, filename)
}
