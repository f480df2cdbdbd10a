package models_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

var quarterRate = decimal.NewFromFloat(0.25)

func appendLedgerRow(t *testing.T, db *gorm.DB, userId uuid.UUID, txType models.TransactionType, amount int64, occurredAt time.Time) {
	t.Helper()
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := models.AppendTransaction(tx, context.Background(), userId, models.NewTransaction{
			Type:       txType,
			Amount:     amount,
			Currency:   "USD",
			OccurredAt: occurredAt,
		})
		return err
	})
	if err != nil {
		t.Fatalf("append %s %d: %v", txType, amount, err)
	}
}

func TestGenerateTaxReport_Snapshot(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := context.Background()

	inQ2 := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	alsoQ2 := time.Date(2026, time.June, 30, 23, 0, 0, 0, time.UTC)
	inQ3 := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)

	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 100000, inQ2)
	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 50000, alsoQ2)
	appendLedgerRow(t, db, user.ID, models.TransactionTypeExpense, 30000, alsoQ2)
	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 77777, inQ3) // outside the window

	report, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 2, quarterRate)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if report.TotalIncome != 150000 {
		t.Fatalf("income = %d, want 150000", report.TotalIncome)
	}
	if report.TotalExpenses != 30000 {
		t.Fatalf("expenses = %d, want 30000", report.TotalExpenses)
	}
	if report.NetIncome != 120000 {
		t.Fatalf("net = %d, want 120000", report.NetIncome)
	}
	if report.EstimatedTax != 30000 {
		t.Fatalf("estimated tax = %d, want 30000 (25%% of net)", report.EstimatedTax)
	}
	if report.Status != models.TaxReportStatusDraft {
		t.Fatalf("status = %s, want draft", report.Status)
	}
}

func TestGenerateTaxReport_RegenerateRecomputesDraft(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := context.Background()

	inQ1 := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 10000, inQ1)

	first, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 1, quarterRate)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}

	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 5000, inQ1)

	second, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 1, quarterRate)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("regenerate created a second report row for the same period")
	}
	if second.TotalIncome != 15000 {
		t.Fatalf("income = %d, want 15000 after regenerate", second.TotalIncome)
	}
}

// Two first-time generators racing on the same quarter must never surface a
// raw duplicate-key error; the loser gets a conflict (or wins a re-read) and
// exactly one report row exists afterwards.
func TestGenerateTaxReport_ConcurrentFirstGenerate(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 80000,
		time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC))

	const workers = 6
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := models.GenerateTaxReport(db, context.Background(), user.ID, 2026, 1, quarterRate)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err == nil || utils.IsConflict(err) {
			continue
		}
		t.Fatalf("concurrent generate: %v", err)
	}

	if n := countRows(t, db, &models.TaxReport{}, "user_id = ? AND year = ? AND quarter = ?", user.ID, 2026, 1); n != 1 {
		t.Fatalf("report rows = %d, want 1", n)
	}
}

func TestTaxReport_FinalizeFreezes(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := context.Background()

	inQ4 := time.Date(2026, time.November, 5, 0, 0, 0, 0, time.UTC)
	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 40000, inQ4)

	if _, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 4, quarterRate); err != nil {
		t.Fatalf("generate: %v", err)
	}

	final, err := models.FinalizeTaxReport(db, ctx, user.ID, 2026, 4)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != models.TaxReportStatusFinalized || final.FinalizedAt == nil {
		t.Fatalf("report not finalized: %+v", final)
	}

	// Finalized reports refuse regeneration and re-finalization.
	if _, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 4, quarterRate); !utils.IsConflict(err) {
		t.Fatalf("regenerate finalized: got %v, want ConflictError", err)
	}
	if _, err := models.FinalizeTaxReport(db, ctx, user.ID, 2026, 4); !utils.IsConflict(err) {
		t.Fatalf("double finalize: got %v, want ConflictError", err)
	}

	// Ledger rows arriving after finalization do not touch the snapshot.
	appendLedgerRow(t, db, user.ID, models.TransactionTypeIncome, 99999, inQ4)
	got, err := models.GetTaxReport(db, ctx, user.ID, 2026, 4)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.TotalIncome != 40000 {
		t.Fatalf("income = %d after late row, want frozen 40000", got.TotalIncome)
	}
}

func TestTaxReport_Validation(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	ctx := context.Background()

	if _, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 0, quarterRate); !utils.IsValidation(err) {
		t.Fatalf("quarter 0: got %v, want ValidationError", err)
	}
	if _, err := models.GenerateTaxReport(db, ctx, user.ID, 2026, 5, quarterRate); !utils.IsValidation(err) {
		t.Fatalf("quarter 5: got %v, want ValidationError", err)
	}
	if _, err := models.GetTaxReport(db, ctx, user.ID, 2026, 3); !utils.IsNotFound(err) {
		t.Fatalf("missing report: got %v, want NotFoundError", err)
	}
}

func TestQuarterWindow(t *testing.T) {
	start, end, err := models.QuarterWindow(2026, 1)
	if err != nil {
		t.Fatalf("QuarterWindow: %v", err)
	}
	if !start.Equal(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Q1 start = %v", start)
	}
	if !end.Equal(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Q1 end = %v", end)
	}

	start, end, err = models.QuarterWindow(2026, 4)
	if err != nil {
		t.Fatalf("QuarterWindow: %v", err)
	}
	if !start.Equal(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Q4 start = %v", start)
	}
	if !end.Equal(time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Q4 end = %v", end)
	}
}
