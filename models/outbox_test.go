package models_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
)

func TestOutbox_InvoiceCreateAppendsEvent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := utils.SetCorrelationIdInContext(context.Background(), "corr-123")

	inv, err := models.CreateInvoice(db, ctx, user.ID, newInvoiceInput("Outbox Client"))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	var row models.OutboxMessage
	err = db.Where("event_type = ? AND reference_id = ?", models.OutboxEventInvoiceCreated, inv.ID.String()).
		Take(&row).Error
	if err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	if row.IsProcessed {
		t.Fatal("fresh outbox row already marked processed")
	}
	if row.PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("publish status = %s, want PENDING", row.PublishStatus)
	}
	if row.CorrelationId != "corr-123" {
		t.Fatalf("correlation id = %q, want corr-123", row.CorrelationId)
	}

	var payload models.Invoice
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.InvoiceNumber != inv.InvoiceNumber {
		t.Fatalf("payload number = %s, want %s", payload.InvoiceNumber, inv.InvoiceNumber)
	}
}

func TestOutbox_WebhookPaymentAppendsEvent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := context.Background()
	link := seedLink(t, db, user.ID, "Outbox Link", 500)

	event := checkoutEvent("evt_outbox_1", link.ID, 500)
	if _, err := models.ProcessWebhookEvent(db, ctx, nil, user.ID, event); err != nil {
		t.Fatalf("process: %v", err)
	}

	if n := countRows(t, db, &models.OutboxMessage{}, "event_type = ?", models.OutboxEventPaymentRecorded); n != 1 {
		t.Fatalf("payment outbox rows = %d, want 1", n)
	}

	// Replay must not append a second event.
	if _, err := models.ProcessWebhookEvent(db, ctx, nil, user.ID, event); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n := countRows(t, db, &models.OutboxMessage{}, "event_type = ?", models.OutboxEventPaymentRecorded); n != 1 {
		t.Fatalf("payment outbox rows after replay = %d, want 1", n)
	}
}

func TestOutbox_PaymentLinkCreateAppendsEvent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	link := seedLink(t, db, user.ID, "Consulting", 2500)

	if n := countRows(t, db, &models.OutboxMessage{}, "event_type = ? AND reference_id = ?",
		models.OutboxEventPaymentLinkCreated, link.ID.String()); n != 1 {
		t.Fatalf("link outbox rows = %d, want 1", n)
	}
}

func TestOutbox_CorrelationIdGeneratedWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	inv, err := models.CreateInvoice(db, context.Background(), user.ID, newInvoiceInput("No Corr"))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	var row models.OutboxMessage
	err = db.Where("reference_id = ?", inv.ID.String()).Take(&row).Error
	if err != nil {
		t.Fatalf("load outbox row: %v", err)
	}
	if row.CorrelationId == "" {
		t.Fatal("correlation id empty; should be generated")
	}
}
