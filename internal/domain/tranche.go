package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TrancheStatusUpcoming = "upcoming"
	TrancheStatusOpen     = "open"
	TrancheStatusSettled  = "settled"

	TrancheOutcomeFunded   = "funded"
	TrancheOutcomeUnfunded = "unfunded"
)

// Tranche is one capital call of a property's payment plan.
// Ordinal is the 1-based position by due date; applications reference it as their step.
type Tranche struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PropertyID uuid.UUID       `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	Ordinal    int             `gorm:"column:ordinal;not null" json:"ordinal"`
	EventDate  time.Time       `gorm:"column:event_date;not null" json:"event_date"`
	DueDate    time.Time       `gorm:"column:due_date;not null" json:"due_date"`
	Total      decimal.Decimal `gorm:"column:total;type:decimal(18,2);not null" json:"total"`
	Paid       decimal.Decimal `gorm:"column:paid;type:decimal(18,2);not null;default:0" json:"paid"`
	Status     string          `gorm:"column:status;type:varchar(20);not null;default:'upcoming'" json:"status"`
	Outcome    string          `gorm:"column:outcome;type:varchar(20);not null;default:''" json:"outcome"`
	SettledAt  *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	Version    int64           `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt  time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Tranche) TableName() string {
	return "Tranches"
}

func (t *Tranche) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Outstanding is total - paid.
func (t *Tranche) Outstanding() decimal.Decimal {
	return t.Total.Sub(t.Paid)
}

// Contains reports whether now falls inside the [EventDate, DueDate] window.
func (t *Tranche) Contains(now time.Time) bool {
	return !now.Before(t.EventDate) && !now.After(t.DueDate)
}

// IsDue reports whether the tranche is waiting for the sweep at now.
func (t *Tranche) IsDue(now time.Time) bool {
	return t.Status != TrancheStatusSettled && t.Paid.IsZero() && !t.DueDate.After(now)
}

// FoundingTranche returns the tranche with the earliest event date, or nil.
func FoundingTranche(tranches []Tranche) *Tranche {
	var founding *Tranche
	for i := range tranches {
		if founding == nil || tranches[i].EventDate.Before(founding.EventDate) {
			founding = &tranches[i]
		}
	}
	return founding
}
