package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InvestmentSourceIntake = "intake"
	InvestmentSourceSweep  = "sweep"
)

// Investment is a confirmed share holding.
type Investment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PropertyID     uuid.UUID       `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	ApplicationID  *uuid.UUID      `gorm:"column:application_id;type:uuid" json:"application_id"`
	Shares         int64           `gorm:"column:shares;not null" json:"shares"`
	InvestedAmount decimal.Decimal `gorm:"column:invested_amount;type:decimal(18,2);not null" json:"invested_amount"`
	Source         string          `gorm:"column:source;type:varchar(20);not null" json:"source"`
	CreatedAt      time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Investment) TableName() string {
	return "Investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
