package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// Transaction is one row of the append-only money ledger. Link and invoice
// references are nullable and SET NULL on delete, so the ledger survives its
// sources: totals computed from it never change when a link is removed.
type Transaction struct {
	ID              int64           `gorm:"primary_key" json:"id"`
	UserId          uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	User            *User           `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE" json:"-"`
	Type            TransactionType `gorm:"size:20;not null;index" json:"type"`
	Amount          int64           `gorm:"not null" json:"amount"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	Category        string          `gorm:"size:100" json:"category"`
	Description     string          `gorm:"size:512" json:"description"`
	PaymentLinkId   *uuid.UUID      `gorm:"type:char(36);index" json:"payment_link_id"`
	PaymentLink     *PaymentLink    `gorm:"foreignKey:PaymentLinkId;constraint:OnDelete:SET NULL" json:"-"`
	InvoiceId       *uuid.UUID      `gorm:"type:char(36);index" json:"invoice_id"`
	Invoice         *Invoice        `gorm:"foreignKey:InvoiceId;constraint:OnDelete:SET NULL" json:"-"`
	StripePaymentId string          `gorm:"size:255;index" json:"stripe_payment_id"`
	OccurredAt      time.Time       `gorm:"not null;index" json:"occurred_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewTransaction struct {
	Type            TransactionType
	Amount          int64
	Currency        string
	Category        string
	Description     string
	PaymentLinkId   *uuid.UUID
	InvoiceId       *uuid.UUID
	StripePaymentId string
	OccurredAt      time.Time
}

// AppendTransaction writes one ledger row inside the caller's transaction.
// Rows are never updated or deleted through the API.
func AppendTransaction(tx *gorm.DB, ctx context.Context, userId uuid.UUID, input NewTransaction) (*Transaction, error) {
	if !input.Type.Valid() {
		return nil, utils.NewValidationError("unknown transaction type %q", string(input.Type))
	}
	if input.Amount <= 0 {
		return nil, utils.NewValidationError("amount must be a positive number of cents")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	record := Transaction{
		UserId:          userId,
		Type:            input.Type,
		Amount:          input.Amount,
		Currency:        utils.NormalizeCurrency(input.Currency, "USD"),
		Category:        strings.TrimSpace(input.Category),
		Description:     strings.TrimSpace(input.Description),
		PaymentLinkId:   input.PaymentLinkId,
		InvoiceId:       input.InvoiceId,
		StripePaymentId: input.StripePaymentId,
		OccurredAt:      occurredAt,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListTransactions returns the user's ledger newest first, optionally bounded
// to a time window. Zero bounds mean unbounded on that side.
func ListTransactions(db *gorm.DB, ctx context.Context, userId uuid.UUID, from time.Time, to time.Time) ([]Transaction, error) {
	query := db.WithContext(ctx).Where("user_id = ?", userId)
	if !from.IsZero() {
		query = query.Where("occurred_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("occurred_at < ?", to)
	}
	var rows []Transaction
	if err := query.Order("occurred_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
