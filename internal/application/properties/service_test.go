package properties

import (
	"context"
	"testing"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/application/ledger/ledgertest"
	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = ledgertest.Day

func TestGetProperty_IncludesTranchesAndShares(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*day,
		ledgertest.TrancheSpec{Start: -day, End: 10 * day, Total: 50000},
		ledgertest.TrancheSpec{Start: 11 * day, End: 40 * day, Total: 50000, Paid: 10000},
	)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	ledgertest.SeedApplication(t, db, p, a, 1, 20, ledgertest.Epoch)

	svc := &Service{DB: db}
	view, err := svc.GetProperty(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), view.TotalShares)
	assert.True(t, view.PricePerShare.Equal(decimal.NewFromInt(1000)))
	require.Len(t, view.Tranches, 2)
	assert.True(t, view.Tranches[1].Outstanding.Equal(decimal.NewFromInt(40000)))
	assert.Equal(t, int64(80), view.Shares.AvailableShares)
	assert.Equal(t, int64(20), view.Shares.ReservedShares)
	assert.True(t, view.Shares.Balanced())
}

func TestGetProperty_NotFound(t *testing.T) {
	svc := &Service{DB: ledgertest.OpenDB(t)}
	_, err := svc.GetProperty(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestAuditTrail_FiltersByType(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*day)
	require.NoError(t, ledger.AppendEvent(db, p.ID, domain.ActorSweep, domain.EventTrancheOpened, nil))
	require.NoError(t, ledger.AppendEvent(db, p.ID, domain.ActorSweep, domain.EventTrancheFunded, map[string]interface{}{"step": 1}))

	svc := &Service{DB: db}
	all, err := svc.AuditTrail(context.Background(), p.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	funded, err := svc.AuditTrail(context.Background(), p.ID, domain.EventTrancheFunded)
	require.NoError(t, err)
	require.Len(t, funded, 1)
	assert.JSONEq(t, `{"step":1}`, string(funded[0].EventData))

	_, err = svc.AuditTrail(context.Background(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestListProperties_ByStatus(t *testing.T) {
	db := ledgertest.OpenDB(t)
	ledgertest.SeedProperty(t, db, 100000, 60*day)
	sold := ledgertest.SeedProperty(t, db, 50000, 60*day)
	require.NoError(t, db.Model(&domain.Property{}).Where("id = ?", sold.ID).Update("status", domain.PropertyStatusSold).Error)

	svc := &Service{DB: db}
	all, err := svc.ListProperties(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	soldOnly, err := svc.ListProperties(context.Background(), domain.PropertyStatusSold)
	require.NoError(t, err)
	require.Len(t, soldOnly, 1)
	assert.Equal(t, sold.ID, soldOnly[0].ID)
}
