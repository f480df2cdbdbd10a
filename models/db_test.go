package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a file-backed sqlite database in the test's temp dir. A
// file (not :memory:) so concurrent goroutines in the numbering tests share
// one database through separate connections; the busy timeout absorbs writer
// contention.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user, err := models.EnsureDefaultUser(db, context.Background())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedLink(t *testing.T, db *gorm.DB, userId uuid.UUID, title string, amount int64) *models.PaymentLink {
	t.Helper()
	link, err := models.CreatePaymentLink(db, context.Background(), userId, models.NewPaymentLink{
		Title:  title,
		Amount: amount,
	}, models.PaymentLinkProviderRefs{})
	if err != nil {
		t.Fatalf("seed link %q: %v", title, err)
	}
	return link
}
