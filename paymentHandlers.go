package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/config"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
	"go.opentelemetry.io/otel/attribute"
)

const webhookBodyLimit = 1 << 20 // Stripe caps event payloads well below this.

func (app *application) createPaymentLinkHandler(c *gin.Context) {
	var input models.NewPaymentLink
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	var refs models.PaymentLinkProviderRefs
	if app.provider != nil {
		currency := utils.NormalizeCurrency(input.Currency, "USD")
		link, err := app.provider.CreatePaymentLink(c.Request.Context(), input.Title, input.Amount, currency, nil)
		if err != nil {
			app.respondError(c, err)
			return
		}
		refs = models.PaymentLinkProviderRefs{
			LinkId:    link.ID,
			ProductId: link.ProductID,
			PriceId:   link.PriceID,
			URL:       link.URL,
		}
	}

	link, err := models.CreatePaymentLink(app.db, c.Request.Context(), app.currentUserId(c), input, refs)
	if err != nil {
		app.respondError(c, err)
		return
	}
	app.invalidateStatsCache(c)
	c.JSON(http.StatusCreated, link)
}

func (app *application) listPaymentLinksHandler(c *gin.Context) {
	links, err := models.ListPaymentLinks(app.db, c.Request.Context(), app.currentUserId(c))
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": links})
}

func (app *application) getPaymentLinkHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link id"})
		return
	}
	link, err := models.GetPaymentLink(app.db, c.Request.Context(), app.currentUserId(c), id)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (app *application) archivePaymentLinkHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link id"})
		return
	}
	link, err := models.ArchivePaymentLink(app.db, c.Request.Context(), app.currentUserId(c), id)
	if err != nil {
		app.respondError(c, err)
		return
	}
	app.invalidateStatsCache(c)
	c.JSON(http.StatusOK, link)
}

// visitPaymentLinkHandler records the click and redirects the visitor to the
// provider-hosted checkout page. Every visit counts; there is no visitor
// dedupe.
func (app *application) visitPaymentLinkHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid link id"})
		return
	}
	link, err := models.RecordPaymentLinkClick(app.db, c.Request.Context(), id, models.ClickVisit{
		IP:        c.ClientIP(),
		Referrer:  c.GetHeader("Referer"),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		app.respondError(c, err)
		return
	}
	app.invalidateStatsCache(c)
	if link.StripeUrl == "" {
		c.JSON(http.StatusOK, gin.H{"link": link, "note": "no checkout url configured"})
		return
	}
	c.Redirect(http.StatusFound, link.StripeUrl)
}

type createCheckoutRequest struct {
	PaymentLinkId *uuid.UUID `json:"payment_link_id"`
	InvoiceId     *uuid.UUID `json:"invoice_id"`
}

// createCheckoutHandler opens a single-use checkout session for a payment
// link or an invoice. The referenced entity's id rides along as metadata so
// the webhook can attribute the resulting payment.
func (app *application) createCheckoutHandler(c *gin.Context) {
	if app.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider not configured"})
		return
	}
	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	var (
		title    string
		amount   int64
		currency string
		metadata map[string]string
	)
	switch {
	case req.PaymentLinkId != nil:
		link, err := models.GetPaymentLink(app.db, c.Request.Context(), app.currentUserId(c), *req.PaymentLinkId)
		if err != nil {
			app.respondError(c, err)
			return
		}
		if link.Status != models.PaymentLinkStatusActive {
			c.JSON(http.StatusConflict, gin.H{"error": "payment link is archived"})
			return
		}
		title = link.Title
		amount = link.Amount
		currency = link.Currency
		metadata = map[string]string{"payment_link_id": link.ID.String()}
	case req.InvoiceId != nil:
		invoice, err := models.GetInvoice(app.db, c.Request.Context(), app.currentUserId(c), *req.InvoiceId)
		if err != nil {
			app.respondError(c, err)
			return
		}
		if invoice.Status == models.InvoiceStatusPaid {
			c.JSON(http.StatusConflict, gin.H{"error": "invoice is already paid"})
			return
		}
		title = "Invoice " + invoice.InvoiceNumber
		amount = invoice.Total
		currency = invoice.Currency
		metadata = map[string]string{"invoice_id": invoice.ID.String()}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_link_id or invoice_id is required"})
		return
	}

	appURL := config.AppURL()
	session, err := app.provider.CreateCheckoutSession(c.Request.Context(), title, amount, currency,
		appURL+"/payment/success", appURL+"/payment/cancelled", metadata)
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "url": session.URL})
}

// getPaymentStatusHandler proxies a payment intent lookup so the frontend can
// poll a payment's state without holding provider credentials.
func (app *application) getPaymentStatusHandler(c *gin.Context) {
	if app.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider not configured"})
		return
	}
	payment, err := app.provider.GetPayment(c.Request.Context(), c.Param("paymentIntentId"))
	if err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// webhookHandler verifies the signature over the raw body, then lets the
// idempotency gate decide whether the effect applies. Any signature-valid
// event is acknowledged with {received: true} whether or not its type is
// recognized.
func (app *application) webhookHandler(c *gin.Context) {
	if app.provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment provider not configured"})
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	event, err := app.provider.VerifyWebhookSignature(payload, c.GetHeader("stripe-signature"))
	if err != nil {
		app.respondError(c, err)
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "webhook.process")
	defer span.End()
	span.SetAttributes(attribute.String("stripe.event_id", event.ID), attribute.String("stripe.event_type", event.Type))

	applied, err := models.ProcessWebhookEvent(app.db, ctx, app.logger, app.currentUserId(c), *event)
	if err != nil {
		app.respondError(c, err)
		return
	}
	if applied {
		app.invalidateStatsCache(c)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
