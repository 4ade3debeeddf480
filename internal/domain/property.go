package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PropertyStatusPending   = "pending"
	PropertyStatusAvailable = "available"
	PropertyStatusSold      = "sold"
	PropertyStatusRented    = "rented"
	PropertyStatusDeclined  = "declined"
)

// SharePrice is the nominal price of one share used to derive TotalShares.
var SharePrice = decimal.NewFromInt(1000)

// Property is a real-estate asset sold in fractional shares.
// AvailableShares is the unreserved pool; Version guards concurrent updates.
type Property struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Title               string          `gorm:"column:title;not null" json:"title"`
	Price               decimal.Decimal `gorm:"column:price;type:decimal(18,2);not null" json:"price"`
	TotalShares         int64           `gorm:"column:total_shares;not null" json:"total_shares"`
	AvailableShares     int64           `gorm:"column:available_shares;not null" json:"available_shares"`
	Status              string          `gorm:"column:status;type:varchar(20);not null;default:'pending'" json:"status"`
	ApplicationDeadline time.Time       `gorm:"column:application_deadline;not null" json:"application_deadline"`
	PriorityInvestorID  *uuid.UUID      `gorm:"column:priority_investor_id;type:uuid" json:"priority_investor_id"`
	Version             int64           `gorm:"column:version;not null;default:0" json:"-"`
	Tranches            []Tranche       `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"tranches,omitempty"`
	CreatedAt           time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt           time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Property) TableName() string {
	return "Properties"
}

// BeforeCreate fills the id and derives the share pool from the price when unset.
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.TotalShares == 0 {
		p.TotalShares = SharesForPrice(p.Price)
		if p.AvailableShares == 0 {
			p.AvailableShares = p.TotalShares
		}
	}
	return nil
}

// IsTerminal reports whether the property no longer takes part in settlement.
func (p *Property) IsTerminal() bool {
	return p.Status == PropertyStatusSold || p.Status == PropertyStatusDeclined
}

// PricePerShare is price / total shares.
func (p *Property) PricePerShare() decimal.Decimal {
	if p.TotalShares <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromInt(p.TotalShares))
}

// SharesForPrice returns ceil(price / 1000).
func SharesForPrice(price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	return price.Div(SharePrice).Ceil().IntPart()
}
