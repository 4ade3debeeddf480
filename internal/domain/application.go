package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusPartial  = "partial"
	ApplicationStatusRejected = "rejected"
	// ApplicationStatusCarried is reserved for carry-forward to the next tranche; an unfunded
	// tranche currently rejects its round instead.
	ApplicationStatusCarried = "carried"
)

// Application is a pending commitment against a tranche (Step = tranche ordinal).
// RequestedAmount is already debited from the wallet and RequestedShares reserved.
type Application struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PropertyID      uuid.UUID       `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	Step            int             `gorm:"column:step;not null" json:"step"`
	RequestedAmount decimal.Decimal `gorm:"column:requested_amount;type:decimal(18,2);not null" json:"requested_amount"`
	RequestedShares int64           `gorm:"column:requested_shares;not null" json:"requested_shares"`
	Status          string          `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	IsPriority      bool            `gorm:"column:is_priority;not null;default:false" json:"is_priority"`
	ApprovedAmount  decimal.Decimal `gorm:"column:approved_amount;type:decimal(18,2);not null;default:0" json:"approved_amount"`
	ApprovedShares  int64           `gorm:"column:approved_shares;not null;default:0" json:"approved_shares"`
	SettledAt       *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt       time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Application) TableName() string {
	return "Applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
