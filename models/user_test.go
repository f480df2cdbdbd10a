package models_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/models"
	"github.com/tichlabs/tichpay_backend/utils"
)

func TestEnsureDefaultUser_Idempotent(t *testing.T) {
	db := newTestDB(t)

	first, err := models.EnsureDefaultUser(db, context.Background())
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := models.EnsureDefaultUser(db, context.Background())
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("ensure created two users: %s vs %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("user rows = %d, want 1", count)
	}
}

func TestGetUserById(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)

	got, err := models.GetUserById(db, context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != user.Email {
		t.Fatalf("email = %q, want %q", got.Email, user.Email)
	}

	if _, err := models.GetUserById(db, context.Background(), uuid.New()); !utils.IsNotFound(err) {
		t.Fatalf("missing user: got %v, want NotFoundError", err)
	}
}
