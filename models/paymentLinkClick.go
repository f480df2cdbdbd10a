package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// PaymentLinkClick is one tracked visit to a link's redirect endpoint. Rows
// are append-only; the link's Clicks counter is bumped in the same
// transaction so cache and ground truth never drift.
type PaymentLinkClick struct {
	ID            int64        `gorm:"primary_key" json:"id"`
	PaymentLinkId uuid.UUID    `gorm:"type:char(36);not null;index" json:"payment_link_id"`
	PaymentLink   *PaymentLink `gorm:"foreignKey:PaymentLinkId;constraint:OnDelete:CASCADE" json:"-"`
	ClickedAt     time.Time    `gorm:"not null;index" json:"clicked_at"`
	IP            string       `gorm:"size:45" json:"ip"`
	Referrer      string       `gorm:"size:512" json:"referrer"`
	UserAgent     string       `gorm:"size:512" json:"user_agent"`
}

// ClickVisit carries the request attributes recorded with a click. All fields
// come from uncontrolled request headers and may be empty.
type ClickVisit struct {
	IP        string
	Referrer  string
	UserAgent string
}

// RecordPaymentLinkClick appends a click row and bumps the link's counter
// atomically, returning the link so the caller can issue the redirect.
// Archived links still record clicks; the redirect decision is the caller's.
func RecordPaymentLinkClick(db *gorm.DB, ctx context.Context, linkId uuid.UUID, visit ClickVisit) (*PaymentLink, error) {
	var link PaymentLink
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&link, "id = ?", linkId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &utils.NotFoundError{Entity: "payment link", Id: linkId.String()}
			}
			return err
		}

		click := PaymentLinkClick{
			PaymentLinkId: link.ID,
			ClickedAt:     time.Now().UTC(),
			IP:            utils.Truncate(visit.IP, 45),
			Referrer:      utils.Truncate(visit.Referrer, 512),
			UserAgent:     utils.Truncate(visit.UserAgent, 512),
		}
		if err := tx.Create(&click).Error; err != nil {
			return err
		}

		if err := tx.Model(&PaymentLink{}).
			Where("id = ?", link.ID).
			Update("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
			return err
		}
		link.Clicks++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &link, nil
}
