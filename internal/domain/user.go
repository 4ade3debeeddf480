package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the investor account. Only the wallet balance is owned by this service;
// identity and KYC live elsewhere.
type User struct {
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname      string          `gorm:"column:fullname;not null" json:"fullname"`
	Email         string          `gorm:"column:email;not null;uniqueIndex" json:"email"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:decimal(18,2);not null;default:0" json:"wallet_balance"`
	Version       int64           `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt     time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (User) TableName() string {
	return "Users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}
