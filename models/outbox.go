package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// Outbox event types.
const (
	OutboxEventInvoiceCreated       = "invoice.created"
	OutboxEventInvoiceStatusChanged = "invoice.status_changed"
	OutboxEventPaymentRecorded      = "payment.recorded"
	OutboxEventPaymentLinkCreated   = "payment_link.created"
)

// OutboxMessage implements the transactional outbox: the row is written
// inside the caller's ledger transaction and published asynchronously by the
// dispatcher after commit. A mutation and its event therefore commit or
// vanish together.
type OutboxMessage struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	EventType     string              `gorm:"size:100;not null;index" json:"event_type"`
	ReferenceId   string              `gorm:"size:64;not null;index" json:"reference_id"`
	Payload       []byte              `gorm:"type:mediumblob" json:"payload"`
	IsProcessed   bool                `gorm:"not null;default:false;index" json:"is_processed"`
	PublishStatus OutboxPublishStatus `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	LastError     *string             `gorm:"type:text" json:"last_error"`
	CorrelationId string              `gorm:"size:64" json:"correlation_id"`
	LockedAt      *time.Time          `json:"locked_at"`
	LockedBy      *string             `gorm:"size:64" json:"locked_by"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppendOutboxMessage writes an event row inside the caller's transaction.
// It must only ever be called with the tx that carries the business effect.
func AppendOutboxMessage(tx *gorm.DB, ctx context.Context, eventType string, referenceId string, obj interface{}) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		EventType:     eventType,
		ReferenceId:   referenceId,
		Payload:       payload,
		IsProcessed:   false,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
