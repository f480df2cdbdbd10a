package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/services"
)

func (app *application) listInvoicesHandler(c *gin.Context) {
	invoices, err := models.ListInvoices(app.db, c.Request.Context(), app.currentUserId(c))
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (app *application) createInvoiceHandler(c *gin.Context) {
	var input models.NewInvoice
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	invoice, err := models.CreateInvoice(app.db, c.Request.Context(), app.currentUserId(c), input)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (app *application) getInvoiceHandler(c *gin.Context) {
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
	c.JSON(http.StatusOK, invoice)
}

// sendInvoiceHandler emails the invoice and only then moves it to sent. A
// delivery failure leaves the status untouched, so the client can retry the
// send without a stuck invoice.
func (app *application) sendInvoiceHandler(c *gin.Context) {
	if app.mailer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery not configured"})
		return
	}
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
	if !invoice.Status.CanTransitionTo(models.InvoiceStatusSent) {
		c.JSON(http.StatusConflict, gin.H{"error": "invoice " + invoice.InvoiceNumber + " cannot be sent from status " + string(invoice.Status)})
		return
	}

	payURL := config.AppURL() + "/pay/invoice/" + invoice.ID.String()
	html, err := services.InvoiceEmailHTML(invoice, app.defaultUser.Name, payURL)
	if err != nil {
		app.respondError(c, err)
		return
	}
	subject := "Invoice " + invoice.InvoiceNumber + " from " + app.defaultUser.Name
	if err := app.mailer.SendEmail(c.Request.Context(), invoice.ClientEmail, subject, html); err != nil {
		app.respondError(c, err)
		return
	}

	updated, err := models.UpdateInvoiceStatus(app.db, c.Request.Context(), app.currentUserId(c), id, models.InvoiceStatusSent)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type updateInvoiceStatusRequest struct {
	Status models.InvoiceStatus `json:"status" binding:"required"`
}

func (app *application) updateInvoiceStatusHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid invoice id"})
		return
	}
	var req updateInvoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	invoice, err := models.UpdateInvoiceStatus(app.db, c.Request.Context(), app.currentUserId(c), id, req.Status)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
