package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TransactionTypeDebit      = "debit"
	TransactionTypeRefund     = "refund"
	TransactionTypeAllocation = "allocation"
)

// Transaction is the typed money/share ledger. Debits and refunds move wallet funds;
// allocations move shares at finalization and carry a zero amount.
type Transaction struct {
	TxID          uuid.UUID       `gorm:"column:tx_id;type:uuid;primaryKey" json:"tx_id"`
	Type          string          `gorm:"column:type;type:varchar(20);not null" json:"type"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	PropertyID    uuid.UUID       `gorm:"column:property_id;type:uuid;not null;index" json:"property_id"`
	TrancheID     *uuid.UUID      `gorm:"column:tranche_id;type:uuid" json:"tranche_id"`
	ApplicationID *uuid.UUID      `gorm:"column:application_id;type:uuid" json:"application_id"`
	InvestmentID  *uuid.UUID      `gorm:"column:investment_id;type:uuid" json:"investment_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	Shares        int64           `gorm:"column:shares;not null;default:0" json:"shares"`
	CreatedAt     time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Transaction) TableName() string {
	return "Transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TxID == uuid.Nil {
		t.TxID = uuid.New()
	}
	return nil
}
