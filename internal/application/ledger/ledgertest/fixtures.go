// Package ledgertest seeds an in-memory settlement database for tests.
package ledgertest

import (
	"testing"
	"time"

	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Epoch is the reference "now" of the fixtures.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Day is a shorthand for 24h offsets from Epoch.
const Day = 24 * time.Hour

// TrancheSpec describes one tranche relative to Epoch.
type TrancheSpec struct {
	Start time.Duration
	End   time.Duration
	Total int64
	Paid  int64
}

// OpenDB returns a migrated SQLite :memory: database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

// SeedUser creates a user with the given wallet balance.
func SeedUser(t *testing.T, db *gorm.DB, name string, wallet int64) *domain.User {
	t.Helper()
	u := &domain.User{
		Fullname:      name,
		Email:         name + "@example.com",
		WalletBalance: decimal.NewFromInt(wallet),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedProperty creates a pending property with the given price, deadline offset and tranches.
// Tranche ordinals follow the order given.
func SeedProperty(t *testing.T, db *gorm.DB, price int64, deadline time.Duration, specs ...TrancheSpec) *domain.Property {
	t.Helper()
	p := &domain.Property{
		Title:               "Harbour Lofts",
		Price:               decimal.NewFromInt(price),
		Status:              domain.PropertyStatusPending,
		ApplicationDeadline: Epoch.Add(deadline),
	}
	require.NoError(t, db.Create(p).Error)
	for i, s := range specs {
		tr := domain.Tranche{
			PropertyID: p.ID,
			Ordinal:    i + 1,
			EventDate:  Epoch.Add(s.Start),
			DueDate:    Epoch.Add(s.End),
			Total:      decimal.NewFromInt(s.Total),
			Paid:       decimal.NewFromInt(s.Paid),
			Status:     domain.TrancheStatusUpcoming,
		}
		require.NoError(t, db.Create(&tr).Error)
		p.Tranches = append(p.Tranches, tr)
	}
	return p
}

// SeedApplication inserts a pending application and reserves its shares and funds,
// the state intake leaves behind.
func SeedApplication(t *testing.T, db *gorm.DB, p *domain.Property, u *domain.User, step int, shares int64, at time.Time) *domain.Application {
	t.Helper()
	amount := p.PricePerShare().Mul(decimal.NewFromInt(shares)).Round(2)
	app := &domain.Application{
		UserID:          u.UserID,
		PropertyID:      p.ID,
		Step:            step,
		RequestedAmount: amount,
		RequestedShares: shares,
		Status:          domain.ApplicationStatusPending,
		CreatedAt:       at,
	}
	require.NoError(t, db.Create(app).Error)
	require.NoError(t, db.Model(&domain.Property{}).Where("id = ?", p.ID).
		Update("available_shares", gorm.Expr("available_shares - ?", shares)).Error)
	require.NoError(t, db.Model(&domain.User{}).Where("user_id = ?", u.UserID).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount)).Error)
	return app
}

// SeedInvestment inserts a confirmed investment without touching the share pool.
func SeedInvestment(t *testing.T, db *gorm.DB, p *domain.Property, u *domain.User, shares int64, amount int64) *domain.Investment {
	t.Helper()
	inv := &domain.Investment{
		UserID:         u.UserID,
		PropertyID:     p.ID,
		Shares:         shares,
		InvestedAmount: decimal.NewFromInt(amount),
		Source:         domain.InvestmentSourceIntake,
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

// Property reloads a property with its tranches.
func Property(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Property {
	t.Helper()
	var p domain.Property
	require.NoError(t, db.Preload("Tranches", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("ordinal ASC")
	}).Where("id = ?", id).First(&p).Error)
	return &p
}

// User reloads a user.
func User(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.User {
	t.Helper()
	var u domain.User
	require.NoError(t, db.Where("user_id = ?", id).First(&u).Error)
	return &u
}

// Application reloads an application.
func Application(t *testing.T, db *gorm.DB, id uuid.UUID) *domain.Application {
	t.Helper()
	var a domain.Application
	require.NoError(t, db.Where("id = ?", id).First(&a).Error)
	return &a
}

// Investments lists a property's investments, oldest first.
func Investments(t *testing.T, db *gorm.DB, propertyID uuid.UUID) []domain.Investment {
	t.Helper()
	var out []domain.Investment
	require.NoError(t, db.Where("property_id = ?", propertyID).Order(`"createdAt" ASC`).Find(&out).Error)
	return out
}

// EventTypes lists a property's audit event types in insertion order.
func EventTypes(t *testing.T, db *gorm.DB, propertyID uuid.UUID) []string {
	t.Helper()
	var out []string
	require.NoError(t, db.Model(&domain.AuditEvent{}).
		Where("property_id = ?", propertyID).
		Order(`"createdAt" ASC`).
		Pluck("event_type", &out).Error)
	return out
}

// Clock returns a Now func pinned to at.
func Clock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
