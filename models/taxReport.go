package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// TaxReport snapshots one quarter's ledger totals. A draft report is
// recomputed on every generate call; finalizing freezes the numbers so the
// filed figures never shift under late-arriving corrections.
type TaxReport struct {
	ID            uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	UserId        uuid.UUID       `gorm:"type:char(36);not null;uniqueIndex:idx_tax_report_period" json:"user_id"`
	User          *User           `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE" json:"-"`
	Year          int             `gorm:"not null;uniqueIndex:idx_tax_report_period" json:"year"`
	Quarter       int             `gorm:"not null;uniqueIndex:idx_tax_report_period" json:"quarter"`
	TotalIncome   int64           `gorm:"not null;default:0" json:"total_income"`
	TotalExpenses int64           `gorm:"not null;default:0" json:"total_expenses"`
	NetIncome     int64           `gorm:"not null;default:0" json:"net_income"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"tax_rate"`
	EstimatedTax  int64           `gorm:"not null;default:0" json:"estimated_tax"`
	Status        TaxReportStatus `gorm:"size:20;not null;default:draft" json:"status"`
	FinalizedAt   *time.Time      `json:"finalized_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *TaxReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// QuarterWindow returns the half-open [start, end) window of a calendar
// quarter in UTC.
func QuarterWindow(year int, quarter int) (time.Time, time.Time, error) {
	if quarter < 1 || quarter > 4 {
		return time.Time{}, time.Time{}, utils.NewValidationError("quarter must be 1..4, got %d", quarter)
	}
	if year < 2000 || year > 2200 {
		return time.Time{}, time.Time{}, utils.NewValidationError("year %d outside the supported range", year)
	}
	startMonth := time.Month((quarter-1)*3 + 1)
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)
	return start, end, nil
}

// GenerateTaxReport computes the quarter's totals from the ledger and upserts
// the draft report for that period. Regenerating a finalized report is a
// ConflictError.
func GenerateTaxReport(db *gorm.DB, ctx context.Context, userId uuid.UUID, year int, quarter int, taxRate decimal.Decimal) (*TaxReport, error) {
	start, end, err := QuarterWindow(year, quarter)
	if err != nil {
		return nil, err
	}

	var report *TaxReport
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing TaxReport
		err := tx.Where("user_id = ? AND year = ? AND quarter = ?", userId, year, quarter).
			Take(&existing).Error
		if err == nil && existing.Status == TaxReportStatusFinalized {
			return &utils.ConflictError{
				Constraint: fmt.Sprintf("tax report %d Q%d is finalized", year, quarter),
			}
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		income, expenses, serr := sumLedgerForWindow(tx, userId, start, end)
		if serr != nil {
			return serr
		}

		net := income - expenses
		estimated := int64(0)
		if net > 0 {
			estimated = decimal.NewFromInt(net).Mul(taxRate).Round(0).IntPart()
		}

		if existing.ID != uuid.Nil {
			existing.TotalIncome = income
			existing.TotalExpenses = expenses
			existing.NetIncome = net
			existing.TaxRate = taxRate
			existing.EstimatedTax = estimated
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			report = &existing
			return nil
		}

		fresh := TaxReport{
			UserId:        userId,
			Year:          year,
			Quarter:       quarter,
			TotalIncome:   income,
			TotalExpenses: expenses,
			NetIncome:     net,
			TaxRate:       taxRate,
			EstimatedTax:  estimated,
			Status:        TaxReportStatusDraft,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}
		report = &fresh
		return nil
	})
	if err != nil {
		// Two first-time generators can race past the existence read; the
		// loser hits the period's unique index.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &utils.ConflictError{
				Constraint: fmt.Sprintf("tax report %d Q%d was generated concurrently", year, quarter),
			}
		}
		return nil, err
	}
	return report, nil
}

func sumLedgerForWindow(tx *gorm.DB, userId uuid.UUID, start time.Time, end time.Time) (int64, int64, error) {
	var income, expenses int64
	err := tx.Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND occurred_at >= ? AND occurred_at < ?",
			userId, TransactionTypeIncome, start, end).
		Scan(&income).Error
	if err != nil {
		return 0, 0, err
	}
	err = tx.Model(&Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND occurred_at >= ? AND occurred_at < ?",
			userId, TransactionTypeExpense, start, end).
		Scan(&expenses).Error
	if err != nil {
		return 0, 0, err
	}
	return income, expenses, nil
}

func GetTaxReport(db *gorm.DB, ctx context.Context, userId uuid.UUID, year int, quarter int) (*TaxReport, error) {
	if _, _, err := QuarterWindow(year, quarter); err != nil {
		return nil, err
	}
	var report TaxReport
	err := db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND quarter = ?", userId, year, quarter).
		Take(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &utils.NotFoundError{
				Entity: "tax report",
				Id:     fmt.Sprintf("%d-Q%d", year, quarter),
			}
		}
		return nil, err
	}
	return &report, nil
}

func ListTaxReports(db *gorm.DB, ctx context.Context, userId uuid.UUID) ([]TaxReport, error) {
	var reports []TaxReport
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("year DESC, quarter DESC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// FinalizeTaxReport freezes a draft report. Finalizing twice is a
// ConflictError; the first finalization's timestamp stands.
func FinalizeTaxReport(db *gorm.DB, ctx context.Context, userId uuid.UUID, year int, quarter int) (*TaxReport, error) {
	report, err := GetTaxReport(db, ctx, userId, year, quarter)
	if err != nil {
		return nil, err
	}
	if report.Status == TaxReportStatusFinalized {
		return nil, &utils.ConflictError{
			Constraint: fmt.Sprintf("tax report %d Q%d is already finalized", year, quarter),
		}
	}

	now := time.Now().UTC()
	result := db.WithContext(ctx).Model(&TaxReport{}).
		Where("id = ? AND status = ?", report.ID, TaxReportStatusDraft).
		Updates(map[string]interface{}{
			"status":       TaxReportStatusFinalized,
			"finalized_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, &utils.ConflictError{
			Constraint: fmt.Sprintf("tax report %d Q%d was finalized concurrently", year, quarter),
		}
	}
	report.Status = TaxReportStatusFinalized
	report.FinalizedAt = &now
	return report, nil
}
