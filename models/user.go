package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tichlabs/tichpay_backend/utils"
	"gorm.io/gorm"
)

// User is the owning-account scope. Every money-bearing row hangs off a user
// through a cascading foreign key: deleting a user deletes the whole
// financial history.
type User struct {
	ID             uuid.UUID `gorm:"type:char(36);primary_key" json:"id"`
	Email          string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"size:255;not null" json:"-"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	CompanyName    string    `gorm:"size:255;default:null" json:"company_name"`
	CompanyAddress string    `gorm:"size:512;default:null" json:"company_address"`
	CompanyEmail   string    `gorm:"size:255;default:null" json:"company_email"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

const defaultUserEmail = "demo@tichpay.app"

// EnsureDefaultUser seeds the single owning account this deployment runs
// under (matching the single-owner scope of the product).
func EnsureDefaultUser(db *gorm.DB, ctx context.Context) (*User, error) {
	var user User
	err := db.WithContext(ctx).Where("email = ?", defaultUserEmail).Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	user = User{
		Email:        defaultUserEmail,
		PasswordHash: string(hash),
		Name:         "Demo User",
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Another replica seeded it first.
			if terr := db.WithContext(ctx).Where("email = ?", defaultUserEmail).Take(&user).Error; terr == nil {
				return &user, nil
			}
		}
		return nil, err
	}
	return &user, nil
}

func GetUserById(db *gorm.DB, ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := db.WithContext(ctx).Take(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &utils.NotFoundError{Entity: "user", Id: id.String()}
		}
		return nil, err
	}
	return &user, nil
}
