package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

const (
	dashboardRecentTransactions = 10
	dashboardLinkRollups        = 20
	analyticsTopLinks           = 10
	analyticsWindowDays         = 30
)

// LinkRollup is one row of the per-link projection. Counts come from
// aggregate subqueries joined back onto payment_links, so a link that was
// never clicked or paid still appears with zeros, and a link with both clicks
// and payments is never multiplied through a double join.
type LinkRollup struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Status      PaymentLinkStatus `json:"status"`
	Clicks      int64             `json:"clicks"`
	Payments    int64             `json:"payments"`
	TotalEarned int64             `json:"total_earned"`
}

type DashboardStats struct {
	TotalRevenue       string        `json:"total_revenue"`
	TotalRevenueCents  int64         `json:"total_revenue_cents"`
	TotalClicks        int64         `json:"total_clicks"`
	TotalLinks         int64         `json:"total_links"`
	ActiveLinks        int64         `json:"active_links"`
	ConversionRate     float64       `json:"conversion_rate"`
	RecentTransactions []Transaction `json:"recent_transactions"`
	LinkRollups        []LinkRollup  `json:"link_rollups"`
}

type DailyPoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Clicks  int64  `json:"clicks"`
}

type Analytics struct {
	RevenueByDay []DailyPoint `json:"revenue_by_day"`
	ClicksByDay  []DailyPoint `json:"clicks_by_day"`
	TopLinks     []LinkRollup `json:"top_links"`
}

// GetDashboardStats computes the dashboard projection inside one read
// transaction, so the totals, the recent rows, and the rollups describe the
// same snapshot of the ledger.
func GetDashboardStats(db *gorm.DB, ctx context.Context, userId uuid.UUID) (*DashboardStats, error) {
	var stats DashboardStats
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var revenue int64
		err := tx.Model(&Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("user_id = ? AND type = ?", userId, TransactionTypeIncome).
			Scan(&revenue).Error
		if err != nil {
			return err
		}
		stats.TotalRevenueCents = revenue
		stats.TotalRevenue = utils.FormatCents(revenue)

		err = tx.Model(&PaymentLinkClick{}).
			Joins("JOIN payment_links ON payment_links.id = payment_link_clicks.payment_link_id").
			Where("payment_links.user_id = ?", userId).
			Count(&stats.TotalClicks).Error
		if err != nil {
			return err
		}

		if err := tx.Model(&PaymentLink{}).
			Where("user_id = ?", userId).
			Count(&stats.TotalLinks).Error; err != nil {
			return err
		}
		if err := tx.Model(&PaymentLink{}).
			Where("user_id = ? AND status = ?", userId, PaymentLinkStatusActive).
			Count(&stats.ActiveLinks).Error; err != nil {
			return err
		}

		rate, err := conversionRate(tx, userId)
		if err != nil {
			return err
		}
		stats.ConversionRate = rate

		err = tx.Where("user_id = ?", userId).
			Order("occurred_at DESC, id DESC").
			Limit(dashboardRecentTransactions).
			Find(&stats.RecentTransactions).Error
		if err != nil {
			return err
		}

		rollups, err := linkRollups(tx, userId, "payment_links.created_at DESC, payment_links.id DESC", dashboardLinkRollups)
		if err != nil {
			return err
		}
		stats.LinkRollups = rollups
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetAnalytics computes the trailing 30-day series and the top earners from
// one snapshot. Days with no activity are simply absent from the series.
func GetAnalytics(db *gorm.DB, ctx context.Context, userId uuid.UUID, now time.Time) (*Analytics, error) {
	cutoff := now.UTC().AddDate(0, 0, -analyticsWindowDays)
	var analytics Analytics
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Transaction{}).
			Select("DATE(occurred_at) AS date, COALESCE(SUM(amount), 0) AS revenue").
			Where("user_id = ? AND type = ? AND occurred_at >= ?", userId, TransactionTypeIncome, cutoff).
			Group("DATE(occurred_at)").
			Order("date ASC").
			Scan(&analytics.RevenueByDay).Error
		if err != nil {
			return err
		}

		err = tx.Model(&PaymentLinkClick{}).
			Select("DATE(payment_link_clicks.clicked_at) AS date, COUNT(*) AS clicks").
			Joins("JOIN payment_links ON payment_links.id = payment_link_clicks.payment_link_id").
			Where("payment_links.user_id = ? AND payment_link_clicks.clicked_at >= ?", userId, cutoff).
			Group("DATE(payment_link_clicks.clicked_at)").
			Order("date ASC").
			Scan(&analytics.ClicksByDay).Error
		if err != nil {
			return err
		}

		top, err := linkRollups(tx, userId, "total_earned DESC, payment_links.created_at DESC", analyticsTopLinks)
		if err != nil {
			return err
		}
		analytics.TopLinks = top
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

// conversionRate divides distinct links with a completed payment by distinct
// links with a click. Both sides count links, not events, so ten clicks on
// one link weigh the same as one.
func conversionRate(tx *gorm.DB, userId uuid.UUID) (float64, error) {
	var clicked int64
	err := tx.Model(&PaymentLinkClick{}).
		Joins("JOIN payment_links ON payment_links.id = payment_link_clicks.payment_link_id").
		Where("payment_links.user_id = ?", userId).
		Distinct("payment_link_clicks.payment_link_id").
		Count(&clicked).Error
	if err != nil {
		return 0, err
	}
	if clicked == 0 {
		return 0, nil
	}

	var paid int64
	err = tx.Model(&Transaction{}).
		Where("user_id = ? AND type = ? AND payment_link_id IS NOT NULL", userId, TransactionTypeIncome).
		Distinct("payment_link_id").
		Count(&paid).Error
	if err != nil {
		return 0, err
	}
	return utils.RoundToOneDecimal(float64(paid) / float64(clicked) * 100), nil
}

// linkRollups joins pre-aggregated click and payment subqueries onto
// payment_links. Aggregating before joining keeps a link with three clicks
// and two payments from producing six joined rows.
func linkRollups(tx *gorm.DB, userId uuid.UUID, order string, limit int) ([]LinkRollup, error) {
	clickCounts := tx.Session(&gorm.Session{NewDB: true}).
		Model(&PaymentLinkClick{}).
		Select("payment_link_id, COUNT(*) AS clicks").
		Group("payment_link_id")
	paymentTotals := tx.Session(&gorm.Session{NewDB: true}).
		Model(&Transaction{}).
		Select("payment_link_id, COUNT(*) AS payments, COALESCE(SUM(amount), 0) AS total_earned").
		Where("type = ? AND payment_link_id IS NOT NULL", TransactionTypeIncome).
		Group("payment_link_id")

	var rollups []LinkRollup
	err := tx.Model(&PaymentLink{}).
		Select(`payment_links.id, payment_links.title, payment_links.amount, payment_links.currency, payment_links.status,
			COALESCE(cc.clicks, 0) AS clicks,
			COALESCE(pt.payments, 0) AS payments,
			COALESCE(pt.total_earned, 0) AS total_earned`).
		Joins("LEFT JOIN (?) AS cc ON cc.payment_link_id = payment_links.id", clickCounts).
		Joins("LEFT JOIN (?) AS pt ON pt.payment_link_id = payment_links.id", paymentTotals).
		Where("payment_links.user_id = ?", userId).
		Order(order).
		Limit(limit).
		Scan(&rollups).Error
	if err != nil {
		return nil, err
	}
	return rollups, nil
}
