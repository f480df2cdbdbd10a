package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// PaymentLink is a reusable checkout entry point. Amounts are stored in minor
// units (cents); the Clicks/SuccessfulPayments/TotalRevenue columns are a
// rollup cache maintained transactionally alongside the rows they summarize,
// and can be rebuilt from scratch with RefreshPaymentLinkCounters.
type PaymentLink struct {
	ID                  uuid.UUID         `gorm:"type:char(36);primary_key" json:"id"`
	UserId              uuid.UUID         `gorm:"type:char(36);not null;index" json:"user_id"`
	User                *User             `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE" json:"-"`
	Title               string            `gorm:"size:255;not null" json:"title"`
	Description         string            `gorm:"size:1024" json:"description"`
	Amount              int64             `gorm:"not null" json:"amount"`
	Currency            string            `gorm:"size:3;not null" json:"currency"`
	StripePaymentLinkId string            `gorm:"size:255" json:"stripe_payment_link_id"`
	StripeProductId     string            `gorm:"size:255" json:"stripe_product_id"`
	StripePriceId       string            `gorm:"size:255" json:"stripe_price_id"`
	StripeUrl           string            `gorm:"size:512" json:"stripe_url"`
	Status              PaymentLinkStatus `gorm:"size:20;not null;default:active" json:"status"`
	Clicks              int64             `gorm:"not null;default:0" json:"clicks"`
	SuccessfulPayments  int64             `gorm:"not null;default:0" json:"successful_payments"`
	TotalRevenue        int64             `gorm:"not null;default:0" json:"total_revenue"`
	CreatedAt           time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PaymentLink) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TotalRevenueAmount returns the cached revenue as a display decimal.
func (p *PaymentLink) TotalRevenueAmount() decimal.Decimal {
	return utils.CentsToDecimal(p.TotalRevenue)
}

type NewPaymentLink struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description" binding:"max=1024"`
	Amount      int64  `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"omitempty,currency"`
}

func (input NewPaymentLink) validate() error {
	if strings.TrimSpace(input.Title) == "" {
		return utils.NewValidationError("title must not be blank")
	}
	if input.Amount <= 0 {
		return utils.NewValidationError("amount must be a positive number of cents")
	}
	return nil
}

// PaymentLinkProviderRefs identifies the provider-side objects backing a
// link. All fields are empty when the provider is not configured; the link
// then only serves the tracked-visit flow.
type PaymentLinkProviderRefs struct {
	LinkId    string
	ProductId string
	PriceId   string
	URL       string
}

// CreatePaymentLink persists a link that has already been registered with the
// payment provider.
func CreatePaymentLink(db *gorm.DB, ctx context.Context, userId uuid.UUID, input NewPaymentLink, refs PaymentLinkProviderRefs) (*PaymentLink, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	link := PaymentLink{
		UserId:              userId,
		Title:               strings.TrimSpace(input.Title),
		Description:         strings.TrimSpace(input.Description),
		Amount:              input.Amount,
		Currency:            utils.NormalizeCurrency(input.Currency, "USD"),
		StripePaymentLinkId: refs.LinkId,
		StripeProductId:     refs.ProductId,
		StripePriceId:       refs.PriceId,
		StripeUrl:           refs.URL,
		Status:              PaymentLinkStatusActive,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&link).Error; err != nil {
			return err
		}
		return AppendOutboxMessage(tx, ctx, OutboxEventPaymentLinkCreated, link.ID.String(), link)
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func GetPaymentLink(db *gorm.DB, ctx context.Context, userId uuid.UUID, id uuid.UUID) (*PaymentLink, error) {
	var link PaymentLink
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userId).
		Take(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &utils.NotFoundError{Entity: "payment link", Id: id.String()}
		}
		return nil, err
	}
	return &link, nil
}

// ListPaymentLinks returns the user's links, newest first. The id tiebreak
// keeps the order stable when rows share a created_at second.
func ListPaymentLinks(db *gorm.DB, ctx context.Context, userId uuid.UUID) ([]PaymentLink, error) {
	var links []PaymentLink
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("created_at DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ArchivePaymentLink retires a link from new checkouts. Archiving is
// idempotent; history attached to the link is untouched.
func ArchivePaymentLink(db *gorm.DB, ctx context.Context, userId uuid.UUID, id uuid.UUID) (*PaymentLink, error) {
	link, err := GetPaymentLink(db, ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if link.Status == PaymentLinkStatusArchived {
		return link, nil
	}
	err = db.WithContext(ctx).Model(&PaymentLink{}).
		Where("id = ?", link.ID).
		Update("status", PaymentLinkStatusArchived).Error
	if err != nil {
		return nil, err
	}
	link.Status = PaymentLinkStatusArchived
	return link, nil
}

// RefreshPaymentLinkCounters rebuilds one link's cached counters from the
// click and transaction tables. Normal operation maintains the counters
// inline; this is the recovery path after manual data surgery.
func RefreshPaymentLinkCounters(db *gorm.DB, ctx context.Context, id uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link PaymentLink
		if err := tx.Take(&link, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &utils.NotFoundError{Entity: "payment link", Id: id.String()}
			}
			return err
		}

		var clicks int64
		if err := tx.Model(&PaymentLinkClick{}).
			Where("payment_link_id = ?", id).
			Count(&clicks).Error; err != nil {
			return err
		}

		var rollup struct {
			Payments int64
			Revenue  int64
		}
		err := tx.Model(&Transaction{}).
			Select("COUNT(*) AS payments, COALESCE(SUM(amount), 0) AS revenue").
			Where("payment_link_id = ? AND type = ?", id, TransactionTypeIncome).
			Scan(&rollup).Error
		if err != nil {
			return err
		}

		return tx.Model(&PaymentLink{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"clicks":              clicks,
				"successful_payments": rollup.Payments,
				"total_revenue":       rollup.Revenue,
			}).Error
	})
}
