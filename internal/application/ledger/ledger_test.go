package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/application/ledger/ledgertest"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/locks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallet_DebitAndCredit(t *testing.T) {
	db := ledgertest.OpenDB(t)
	u := ledgertest.SeedUser(t, db, "alice", 1000)

	locked, err := ledger.LockUser(db, u.UserID)
	require.NoError(t, err)
	require.NoError(t, ledger.DebitWallet(db, locked, decimal.RequireFromString("250.255")))
	assert.True(t, locked.WalletBalance.Equal(decimal.RequireFromString("749.75")))

	assert.ErrorIs(t, ledger.DebitWallet(db, locked, decimal.NewFromInt(5000)), ledger.ErrNegativeBalance)

	require.NoError(t, ledger.CreditWallet(db, locked, decimal.NewFromInt(50)))
	assert.True(t, ledgertest.User(t, db, u.UserID).WalletBalance.Equal(decimal.RequireFromString("799.75")))
}

func TestWallet_StaleVersionConflicts(t *testing.T) {
	db := ledgertest.OpenDB(t)
	u := ledgertest.SeedUser(t, db, "alice", 1000)

	first, err := ledger.LockUser(db, u.UserID)
	require.NoError(t, err)
	stale, err := ledger.LockUser(db, u.UserID)
	require.NoError(t, err)

	require.NoError(t, ledger.DebitWallet(db, first, decimal.NewFromInt(10)))
	assert.ErrorIs(t, ledger.DebitWallet(db, stale, decimal.NewFromInt(10)), ledger.ErrConcurrentUpdate)
}

func TestSaveProperty_RejectsNegativePool(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*ledgertest.Day)

	locked, err := ledger.LockProperty(db, p.ID)
	require.NoError(t, err)
	locked.AvailableShares = -1
	assert.ErrorIs(t, ledger.SaveProperty(db, locked), ledger.ErrShareUnderflow)

	_, err = ledger.LockProperty(db, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrPropertyNotFound)
}

func TestSaveTranche_BoundsPaid(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*ledgertest.Day,
		ledgertest.TrancheSpec{Start: -ledgertest.Day, End: 10 * ledgertest.Day, Total: 50000},
	)
	ts, err := ledger.Tranches(db, p.ID)
	require.NoError(t, err)
	require.Len(t, ts, 1)

	ts[0].Paid = decimal.NewFromInt(50001)
	assert.ErrorIs(t, ledger.SaveTranche(db, &ts[0]), ledger.ErrTrancheOverflow)

	ts[0].Paid = decimal.NewFromInt(50000)
	require.NoError(t, ledger.SaveTranche(db, &ts[0]))
	assert.Equal(t, int64(1), ts[0].Version)
}

func TestSnapshot_CountsReservedAndInvested(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*ledgertest.Day)
	u := ledgertest.SeedUser(t, db, "alice", 100000)
	ledgertest.SeedApplication(t, db, p, u, 1, 15, ledgertest.Epoch)

	snap, err := ledger.TakeSnapshot(db, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(85), snap.AvailableShares)
	assert.Equal(t, int64(15), snap.ReservedShares)
	assert.Equal(t, int64(85), snap.Unallocated())
	assert.True(t, snap.Balanced())

	_, err = ledger.TakeSnapshot(db, uuid.New())
	assert.ErrorIs(t, err, ledger.ErrPropertyNotFound)
}

func TestAppendEventAndEnqueue(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*ledgertest.Day)
	u := ledgertest.SeedUser(t, db, "alice", 0)

	require.NoError(t, ledger.AppendEvent(db, p.ID, domain.ActorSweep, domain.EventTrancheFunded, map[string]interface{}{"step": 1}))
	require.NoError(t, ledger.Enqueue(db, u.UserID, p.ID, domain.NotificationApplicationAccepted, map[string]interface{}{"step": 1}))

	assert.Equal(t, []string{domain.EventTrancheFunded}, ledgertest.EventTypes(t, db, p.ID))
	var n domain.Notification
	require.NoError(t, db.Where("user_id = ?", u.UserID).First(&n).Error)
	assert.Nil(t, n.SentAt)
	assert.JSONEq(t, `{"step":1}`, string(n.Payload))
}

func TestGuard_RetriesConcurrentUpdate(t *testing.T) {
	g := &ledger.Guard{Locker: locks.NewLocalLocker(), Attempts: 3}
	calls := 0
	err := g.Run(context.Background(), uuid.New(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ledger.ErrConcurrentUpdate
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	boom := errors.New("boom")
	err = g.Run(context.Background(), uuid.New(), func(ctx context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestGuard_BusyPropertyTimesOut(t *testing.T) {
	locker := locks.NewLocalLocker()
	id := uuid.New()
	lease, err := locker.Acquire(context.Background(), locks.PropertyKey(id), time.Second)
	require.NoError(t, err)
	defer lease.Release(context.Background())

	g := &ledger.Guard{Locker: locker, LeaseTTL: 50 * time.Millisecond}
	err = g.Run(context.Background(), id, func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}
