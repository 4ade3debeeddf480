package ledger

import (
	"encoding/json"
	"errors"

	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoundMoney rounds to cents, the precision of every stored amount.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LockProperty reads the property row FOR UPDATE (ignored by SQLite).
func LockProperty(tx *gorm.DB, propertyID uuid.UUID) (*domain.Property, error) {
	var p domain.Property
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", propertyID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	return &p, nil
}

// LockUser reads the user row FOR UPDATE.
func LockUser(tx *gorm.DB, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Tranches returns the property's payment plan ordered by ordinal.
func Tranches(tx *gorm.DB, propertyID uuid.UUID) ([]domain.Tranche, error) {
	var ts []domain.Tranche
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("property_id = ?", propertyID).
		Order("ordinal ASC").
		Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}

// PendingApplications returns the pending applications targeting one tranche, oldest first.
func PendingApplications(tx *gorm.DB, propertyID uuid.UUID, step int) ([]domain.Application, error) {
	var apps []domain.Application
	q := tx.Where("property_id = ? AND status = ?", propertyID, domain.ApplicationStatusPending)
	if step > 0 {
		q = q.Where("step = ?", step)
	}
	if err := q.Order(`"createdAt" ASC`).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// SaveProperty writes the mutable property fields guarded by the version column.
func SaveProperty(tx *gorm.DB, p *domain.Property) error {
	if p.AvailableShares < 0 {
		return ErrShareUnderflow
	}
	res := tx.Model(&domain.Property{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"available_shares":     p.AvailableShares,
			"status":               p.Status,
			"priority_investor_id": p.PriorityInvestorID,
			"version":              p.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	p.Version++
	return nil
}

// SaveTranche writes paid/status/outcome guarded by the version column.
func SaveTranche(tx *gorm.DB, t *domain.Tranche) error {
	if t.Paid.IsNegative() || t.Paid.GreaterThan(t.Total) {
		return ErrTrancheOverflow
	}
	res := tx.Model(&domain.Tranche{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]interface{}{
			"paid":       t.Paid,
			"status":     t.Status,
			"outcome":    t.Outcome,
			"settled_at": t.SettledAt,
			"version":    t.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	t.Version++
	return nil
}

// DebitWallet removes amount from the user's wallet.
func DebitWallet(tx *gorm.DB, u *domain.User, amount decimal.Decimal) error {
	next := RoundMoney(u.WalletBalance.Sub(amount))
	if next.IsNegative() {
		return ErrNegativeBalance
	}
	return saveWallet(tx, u, next)
}

// CreditWallet returns amount to the user's wallet.
func CreditWallet(tx *gorm.DB, u *domain.User, amount decimal.Decimal) error {
	return saveWallet(tx, u, RoundMoney(u.WalletBalance.Add(amount)))
}

func saveWallet(tx *gorm.DB, u *domain.User, balance decimal.Decimal) error {
	res := tx.Model(&domain.User{}).
		Where("user_id = ? AND version = ?", u.UserID, u.Version).
		Updates(map[string]interface{}{
			"wallet_balance": balance,
			"version":        u.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	u.WalletBalance = balance
	u.Version++
	return nil
}

// Record appends a typed ledger transaction.
func Record(tx *gorm.DB, entry *domain.Transaction) error {
	entry.Amount = RoundMoney(entry.Amount)
	return tx.Create(entry).Error
}

// AppendEvent appends an audit event with structured data.
func AppendEvent(tx *gorm.DB, propertyID uuid.UUID, actor, eventType string, data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return tx.Create(&domain.AuditEvent{
		PropertyID: propertyID,
		Actor:      actor,
		EventType:  eventType,
		EventData:  datatypes.JSON(b),
	}).Error
}

// Enqueue writes an outbox notification in the current transaction.
func Enqueue(tx *gorm.DB, userID, propertyID uuid.UUID, kind string, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&domain.Notification{
		UserID:     userID,
		PropertyID: propertyID,
		Kind:       kind,
		Payload:    datatypes.JSON(b),
	}).Error
}

// Ref returns a pointer to a copy of id, for nullable foreign keys.
func Ref(id uuid.UUID) *uuid.UUID {
	return &id
}
