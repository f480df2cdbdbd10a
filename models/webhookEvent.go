package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// WebhookEvent is the idempotency gate for provider deliveries. The unique
// index on StripeEventId makes the database the arbiter: the event row and
// its business effect commit in one transaction, so a redelivery either hits
// the duplicate key (already applied) or finds no row (safe to apply).
type WebhookEvent struct {
	ID            int64            `gorm:"primary_key" json:"id"`
	StripeEventId string           `gorm:"size:255;uniqueIndex;not null" json:"stripe_event_id"`
	EventType     string           `gorm:"size:100;not null;index" json:"event_type"`
	Kind          WebhookEventKind `gorm:"size:50;not null" json:"kind"`
	Payload       []byte           `gorm:"type:mediumblob" json:"-"`
	ProcessedAt   time.Time        `gorm:"not null" json:"processed_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// ProviderEvent is the verified, provider-neutral form of a webhook delivery.
// Object holds the event's data.object JSON; Payload is the raw body kept for
// audit.
type ProviderEvent struct {
	ID      string
	Type    string
	Kind    WebhookEventKind
	Object  json.RawMessage
	Payload []byte
}

type checkoutSessionObject struct {
	ID            string            `json:"id"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type paymentIntentObject struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

// ProcessWebhookEvent records the event and applies its business effect
// atomically. Returns applied=false with a nil error when the event was
// already processed (the caller still acknowledges). Unrecognized kinds are
// recorded and acknowledged without any ledger effect. A failing effect rolls
// the event row back too, leaving the delivery reprocessable on retry.
func ProcessWebhookEvent(db *gorm.DB, ctx context.Context, logger *logrus.Logger, userId uuid.UUID, event ProviderEvent) (bool, error) {
	if event.ID == "" {
		return false, utils.NewValidationError("webhook event has no id")
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := WebhookEvent{
			StripeEventId: event.ID,
			EventType:     event.Type,
			Kind:          event.Kind,
			Payload:       event.Payload,
			ProcessedAt:   time.Now().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		switch event.Kind {
		case WebhookEventKindCheckoutSessionCompleted:
			return applyCheckoutCompleted(tx, ctx, logger, userId, event)
		case WebhookEventKindPaymentIntentSucceeded:
			return applyPaymentIntentSucceeded(tx, ctx, logger, userId, event)
		case WebhookEventKindPaymentIntentFailed:
			// Recorded for audit; no ledger effect.
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"event_id":   event.ID,
					"event_type": event.Type,
				}).Info("payment failed event recorded")
			}
			return nil
		default:
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"event_id":   event.ID,
					"event_type": event.Type,
				}).Info("unrecognized webhook event acknowledged")
			}
			return nil
		}
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if logger != nil {
				logger.WithField("event_id", event.ID).Info("duplicate webhook delivery ignored")
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func applyCheckoutCompleted(tx *gorm.DB, ctx context.Context, logger *logrus.Logger, userId uuid.UUID, event ProviderEvent) error {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Object, &session); err != nil {
		return utils.NewValidationError("malformed checkout session payload: %v", err)
	}
	if session.AmountTotal <= 0 {
		return utils.NewValidationError("checkout session %s has non-positive amount", session.ID)
	}
	return recordPayment(tx, ctx, logger, userId, paymentEffect{
		Amount:          session.AmountTotal,
		Currency:        session.Currency,
		StripePaymentId: session.PaymentIntent,
		Metadata:        session.Metadata,
		SourceId:        session.ID,
	})
}

func applyPaymentIntentSucceeded(tx *gorm.DB, ctx context.Context, logger *logrus.Logger, userId uuid.UUID, event ProviderEvent) error {
	var intent paymentIntentObject
	if err := json.Unmarshal(event.Object, &intent); err != nil {
		return utils.NewValidationError("malformed payment intent payload: %v", err)
	}
	if intent.Amount <= 0 {
		return utils.NewValidationError("payment intent %s has non-positive amount", intent.ID)
	}
	return recordPayment(tx, ctx, logger, userId, paymentEffect{
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		StripePaymentId: intent.ID,
		Metadata:        intent.Metadata,
		SourceId:        intent.ID,
	})
}

type paymentEffect struct {
	Amount          int64
	Currency        string
	StripePaymentId string
	Metadata        map[string]string
	SourceId        string
}

// recordPayment applies one successful payment: a ledger row, the link's
// counter bump, and the invoice transition when the payment references one.
// An invoice already paid (or in a state that cannot become paid) is logged
// and skipped rather than failing the whole event.
func recordPayment(tx *gorm.DB, ctx context.Context, logger *logrus.Logger, userId uuid.UUID, effect paymentEffect) error {
	var linkId *uuid.UUID
	var invoiceId *uuid.UUID
	category := "payment"
	description := "Payment received"

	if raw, ok := effect.Metadata["payment_link_id"]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return utils.NewValidationError("payment %s carries malformed payment_link_id %q", effect.SourceId, raw)
		}
		var link PaymentLink
		if err := tx.Take(&link, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &utils.NotFoundError{Entity: "payment link", Id: id.String()}
			}
			return err
		}
		linkId = &link.ID
		category = "payment_link"
		description = "Payment via link: " + link.Title
	}

	if raw, ok := effect.Metadata["invoice_id"]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return utils.NewValidationError("payment %s carries malformed invoice_id %q", effect.SourceId, raw)
		}
		var invoice Invoice
		if err := tx.Take(&invoice, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &utils.NotFoundError{Entity: "invoice", Id: id.String()}
			}
			return err
		}
		invoiceId = &invoice.ID
		category = "invoice"
		description = "Payment for invoice " + invoice.InvoiceNumber

		if invoice.Status.CanTransitionTo(InvoiceStatusPaid) {
			now := time.Now().UTC()
			fields := map[string]interface{}{"status": InvoiceStatusPaid}
			if invoice.PaidAt == nil {
				fields["paid_at"] = now
			}
			if effect.StripePaymentId != "" {
				fields["stripe_payment_intent_id"] = effect.StripePaymentId
			}
			if err := tx.Model(&Invoice{}).Where("id = ?", invoice.ID).Updates(fields).Error; err != nil {
				return err
			}
		} else if invoice.Status != InvoiceStatusPaid {
			// Money arrived for an invoice we cannot legally flip; keep the
			// ledger row, leave the status alone.
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"invoice_id": invoice.ID,
					"status":     invoice.Status,
				}).Warn("payment received for invoice in non-payable status")
			}
		}
	}

	record, err := AppendTransaction(tx, ctx, userId, NewTransaction{
		Type:            TransactionTypeIncome,
		Amount:          effect.Amount,
		Currency:        effect.Currency,
		Category:        category,
		Description:     description,
		PaymentLinkId:   linkId,
		InvoiceId:       invoiceId,
		StripePaymentId: effect.StripePaymentId,
	})
	if err != nil {
		return err
	}

	if linkId != nil {
		err := tx.Model(&PaymentLink{}).
			Where("id = ?", *linkId).
			Updates(map[string]interface{}{
				"successful_payments": gorm.Expr("successful_payments + 1"),
				"total_revenue":       gorm.Expr("total_revenue + ?", effect.Amount),
			}).Error
		if err != nil {
			return err
		}
	}

	return AppendOutboxMessage(tx, ctx, OutboxEventPaymentRecorded, effect.SourceId, record)
}
