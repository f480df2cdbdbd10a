package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

const invoiceNumberAttempts = 5

// Invoice carries a gapless-enough sequential number: SequenceNo is a plain
// int64 under a unique index, and InvoiceNumber is its INV-### rendering.
// Concurrent creators race on the unique index and the loser retries with a
// fresh MAX+1, so numbers are unique and dense without table locks.
type Invoice struct {
	ID                    uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	UserId                uuid.UUID       `gorm:"type:char(36);not null;index" json:"user_id"`
	User                  *User           `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE" json:"-"`
	SequenceNo            int64           `gorm:"uniqueIndex;not null" json:"sequence_no"`
	InvoiceNumber         string          `gorm:"size:32;uniqueIndex;not null" json:"invoice_number"`
	ClientName            string          `gorm:"size:255;not null" json:"client_name"`
	ClientEmail           string          `gorm:"size:255;not null" json:"client_email"`
	ClientAddress         string          `gorm:"size:512" json:"client_address"`
	Subtotal              int64           `gorm:"not null" json:"subtotal"`
	TaxRate               decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount             int64           `gorm:"not null;default:0" json:"tax_amount"`
	Total                 int64           `gorm:"not null" json:"total"`
	Currency              string          `gorm:"size:3;not null" json:"currency"`
	Status                InvoiceStatus   `gorm:"size:20;not null;default:draft" json:"status"`
	IssueDate             time.Time       `gorm:"not null" json:"issue_date"`
	DueDate               *time.Time      `json:"due_date"`
	Notes                 string          `gorm:"size:2048" json:"notes"`
	StripePaymentIntentId string          `gorm:"size:255" json:"stripe_payment_intent_id"`
	SentAt                *time.Time      `json:"sent_at"`
	PaidAt                *time.Time      `json:"paid_at"`
	Items                 []InvoiceItem   `gorm:"foreignKey:InvoiceId" json:"items"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (inv *Invoice) BeforeCreate(tx *gorm.DB) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	return nil
}

// InvoiceItem is one line of an invoice. Amount is always Quantity times
// UnitPrice in cents; it is stored denormalized so the row is self-describing.
type InvoiceItem struct {
	ID          int64     `gorm:"primary_key" json:"id"`
	InvoiceId   uuid.UUID `gorm:"type:char(36);not null;index" json:"invoice_id"`
	Invoice     *Invoice  `gorm:"foreignKey:InvoiceId;constraint:OnDelete:CASCADE" json:"-"`
	Description string    `gorm:"size:512;not null" json:"description"`
	Quantity    int64     `gorm:"not null" json:"quantity"`
	UnitPrice   int64     `gorm:"not null" json:"unit_price"`
	Amount      int64     `gorm:"not null" json:"amount"`
}

type NewInvoiceItem struct {
	Description string `json:"description" binding:"required,max=512"`
	Quantity    int64  `json:"quantity" binding:"required"`
	UnitPrice   int64  `json:"unit_price" binding:"required"`
}

type NewInvoice struct {
	ClientName    string           `json:"client_name" binding:"required,max=255"`
	ClientEmail   string           `json:"client_email" binding:"required,email"`
	ClientAddress string           `json:"client_address" binding:"max=512"`
	Currency      string           `json:"currency" binding:"omitempty,currency"`
	TaxRate       decimal.Decimal  `json:"tax_rate"`
	IssueDate     *time.Time       `json:"issue_date"`
	DueDate       *time.Time       `json:"due_date"`
	Notes         string           `json:"notes" binding:"max=2048"`
	Items         []NewInvoiceItem `json:"items" binding:"required,min=1,dive"`
}

func (input NewInvoice) validate() error {
	if strings.TrimSpace(input.ClientName) == "" {
		return utils.NewValidationError("client_name must not be blank")
	}
	if !utils.IsValidEmail(input.ClientEmail) {
		return utils.NewValidationError("client_email is not a valid address")
	}
	if len(input.Items) == 0 {
		return utils.NewValidationError("invoice requires at least one item")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Description) == "" {
			return utils.NewValidationError("item %d: description must not be blank", i+1)
		}
		if item.Quantity <= 0 {
			return utils.NewValidationError("item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice <= 0 {
			return utils.NewValidationError("item %d: unit_price must be positive cents", i+1)
		}
	}
	if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return utils.NewValidationError("tax_rate must be between 0 and 100")
	}
	return nil
}

// FormatInvoiceNumber renders a sequence number as INV-001, INV-002 ... The
// width grows past three digits rather than wrapping.
func FormatInvoiceNumber(sequenceNo int64) string {
	return fmt.Sprintf("INV-%03d", sequenceNo)
}

// CreateInvoice computes totals from the items, assigns the next sequence
// number, and persists the invoice with its items in one transaction. Number
// assignment retries a bounded number of times on unique-key collision before
// giving up with a NumberingExhaustedError.
func CreateInvoice(db *gorm.DB, ctx context.Context, userId uuid.UUID, input NewInvoice) (*Invoice, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var subtotal int64
	items := make([]InvoiceItem, 0, len(input.Items))
	for _, in := range input.Items {
		amount := in.Quantity * in.UnitPrice
		subtotal += amount
		items = append(items, InvoiceItem{
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
		})
	}
	taxAmount := decimal.NewFromInt(subtotal).
		Mul(input.TaxRate).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()

	issueDate := time.Now().UTC()
	if input.IssueDate != nil {
		issueDate = input.IssueDate.UTC()
	}

	var created *Invoice
	for attempt := 0; attempt < invoiceNumberAttempts; attempt++ {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var maxSeq int64
			if err := tx.Model(&Invoice{}).
				Select("COALESCE(MAX(sequence_no), 0)").
				Scan(&maxSeq).Error; err != nil {
				return err
			}

			invoice := Invoice{
				UserId:        userId,
				SequenceNo:    maxSeq + 1,
				InvoiceNumber: FormatInvoiceNumber(maxSeq + 1),
				ClientName:    strings.TrimSpace(input.ClientName),
				ClientEmail:   strings.TrimSpace(input.ClientEmail),
				ClientAddress: strings.TrimSpace(input.ClientAddress),
				Subtotal:      subtotal,
				TaxRate:       input.TaxRate,
				TaxAmount:     taxAmount,
				Total:         subtotal + taxAmount,
				Currency:      utils.NormalizeCurrency(input.Currency, "USD"),
				Status:        InvoiceStatusDraft,
				IssueDate:     issueDate,
				DueDate:       input.DueDate,
				Notes:         strings.TrimSpace(input.Notes),
				Items:         items,
			}
			if err := tx.Create(&invoice).Error; err != nil {
				return err
			}
			if err := AppendOutboxMessage(tx, ctx, OutboxEventInvoiceCreated, invoice.ID.String(), invoice); err != nil {
				return err
			}
			created = &invoice
			return nil
		})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// Lost the sequence race; re-read MAX and try again.
	}
	return nil, &utils.NumberingExhaustedError{Attempts: invoiceNumberAttempts}
}

func GetInvoice(db *gorm.DB, ctx context.Context, userId uuid.UUID, id uuid.UUID) (*Invoice, error) {
	var invoice Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", id, userId).
		Take(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &utils.NotFoundError{Entity: "invoice", Id: id.String()}
		}
		return nil, err
	}
	return &invoice, nil
}

// ListInvoices returns the user's invoices newest first, items included.
func ListInvoices(db *gorm.DB, ctx context.Context, userId uuid.UUID) ([]Invoice, error) {
	var invoices []Invoice
	err := db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userId).
		Order("sequence_no DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateInvoiceStatus moves an invoice along the forward-only state machine.
// The UPDATE is conditioned on the status the caller read, so a concurrent
// transition makes RowsAffected zero and the caller gets a conflict instead
// of silently overwriting.
func UpdateInvoiceStatus(db *gorm.DB, ctx context.Context, userId uuid.UUID, id uuid.UUID, next InvoiceStatus) (*Invoice, error) {
	if !next.Valid() {
		return nil, utils.NewValidationError("unknown invoice status %q", string(next))
	}

	invoice, err := GetInvoice(db, ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == next {
		return invoice, nil
	}
	if !invoice.Status.CanTransitionTo(next) {
		return nil, utils.NewValidationError("invoice %s cannot move from %s to %s",
			invoice.InvoiceNumber, invoice.Status, next)
	}

	now := time.Now().UTC()
	fields := map[string]interface{}{"status": next}
	switch next {
	case InvoiceStatusSent:
		if invoice.SentAt == nil {
			fields["sent_at"] = now
		}
	case InvoiceStatusPaid:
		if invoice.PaidAt == nil {
			fields["paid_at"] = now
		}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, invoice.Status).
			Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &utils.ConflictError{Constraint: "invoice status changed concurrently"}
		}
		return AppendOutboxMessage(tx, ctx, OutboxEventInvoiceStatusChanged, invoice.ID.String(), map[string]interface{}{
			"invoice_id":     invoice.ID,
			"invoice_number": invoice.InvoiceNumber,
			"from":           invoice.Status,
			"to":             next,
		})
	})
	if err != nil {
		return nil, err
	}

	invoice.Status = next
	if v, ok := fields["sent_at"].(time.Time); ok {
		invoice.SentAt = &v
	}
	if v, ok := fields["paid_at"].(time.Time); ok {
		invoice.PaidAt = &v
	}
	return invoice, nil
}

// MarkOverdueInvoices flips every sent invoice whose due date has passed to
// overdue. It runs from the sweeper; asOf is injected so tests can pick the
// clock.
func MarkOverdueInvoices(db *gorm.DB, ctx context.Context, asOf time.Time) (int64, error) {
	result := db.WithContext(ctx).Model(&Invoice{}).
		Where("status = ? AND due_date IS NOT NULL AND due_date < ?", InvoiceStatusSent, asOf).
		Update("status", InvoiceStatusOverdue)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
