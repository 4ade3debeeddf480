package finalize

import (
	"context"
	"testing"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/application/ledger/ledgertest"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/locks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const day = ledgertest.Day

type finalizedMessage struct {
	key    string
	result *FinalizeResult
}

type fakePublisher struct{ sent []finalizedMessage }

func (f *fakePublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	r, _ := payload.(*FinalizeResult)
	f.sent = append(f.sent, finalizedMessage{key: key, result: r})
	return nil
}

func setupFinalize(t *testing.T, paidFounding, paidSecond int64) (*Service, *gorm.DB, *domain.Property) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*day,
		ledgertest.TrancheSpec{Start: -day, End: 10 * day, Total: 50000, Paid: paidFounding},
		ledgertest.TrancheSpec{Start: 11 * day, End: 40 * day, Total: 50000, Paid: paidSecond},
	)
	svc := &Service{
		DB:    db,
		Guard: &ledger.Guard{Locker: locks.NewLocalLocker()},
		Now:   ledgertest.Clock(ledgertest.Epoch.Add(61 * day)),
	}
	return svc, db, p
}

func setAvailable(t *testing.T, db *gorm.DB, p *domain.Property, available int64) {
	require.NoError(t, db.Model(&domain.Property{}).Where("id = ?", p.ID).Update("available_shares", available).Error)
}

func assertBalanced(t *testing.T, db *gorm.DB, propertyID uuid.UUID) {
	t.Helper()
	snap, err := ledger.TakeSnapshot(db, propertyID)
	require.NoError(t, err)
	assert.True(t, snap.Balanced(), "share accounting out of balance: %+v", snap)
}

func TestFinalize_DeadlineNotReached(t *testing.T) {
	svc, _, p := setupFinalize(t, 50000, 0)
	svc.Now = ledgertest.Clock(ledgertest.Epoch.Add(60 * day))

	_, err := svc.Finalize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrDeadlineNotReached)
}

func TestFinalize_UnderfundedPlanWithoutPriority(t *testing.T) {
	svc, db, p := setupFinalize(t, 30000, 0)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	ledgertest.SeedInvestment(t, db, p, a, 30, 30000)
	setAvailable(t, db, p, 70)
	b := ledgertest.SeedUser(t, db, "bob", 100000)
	pending := ledgertest.SeedApplication(t, db, p, b, 2, 5, ledgertest.Epoch)

	_, err := svc.Finalize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPaymentPlanUnderfunded)

	prop := ledgertest.Property(t, db, p.ID)
	assert.Equal(t, domain.PropertyStatusPending, prop.Status)
	assert.Equal(t, int64(65), prop.AvailableShares)
	assert.Equal(t, domain.ApplicationStatusPending, ledgertest.Application(t, db, pending.ID).Status)
}

func TestFinalize_FundingThresholdIsExact(t *testing.T) {
	cases := []struct {
		name string
		paid string
		err  error
	}{
		{name: "exactly forty percent", paid: "40000"},
		{name: "one cent short", paid: "39999.99", err: ErrPaymentPlanUnderfunded},
		{name: "rounds to forty percent", paid: "39999", err: ErrPaymentPlanUnderfunded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, db, p := setupFinalize(t, 0, 0)
			require.NoError(t, db.Model(&domain.Tranche{}).
				Where("property_id = ? AND ordinal = ?", p.ID, 1).
				Update("paid", decimal.RequireFromString(tc.paid)).Error)
			a := ledgertest.SeedUser(t, db, "alice", 0)
			ledgertest.SeedInvestment(t, db, p, a, 40, 40000)
			setAvailable(t, db, p, 60)

			res, err := svc.Finalize(context.Background(), p.ID)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, domain.PropertyStatusPending, ledgertest.Property(t, db, p.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, BranchGreedy, res.Branch)
			assert.True(t, res.FundedRatio.Equal(decimal.RequireFromString("0.4")))
			assert.Equal(t, domain.PropertyStatusSold, ledgertest.Property(t, db, p.ID).Status)
		})
	}
}

func TestFinalize_PriorityInvestorBuysOutRemainder(t *testing.T) {
	svc, db, p := setupFinalize(t, 50000, 0)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	inv := ledgertest.SeedInvestment(t, db, p, a, 60, 60000)
	setAvailable(t, db, p, 40)
	require.NoError(t, db.Model(&domain.Property{}).Where("id = ?", p.ID).Update("priority_investor_id", a.UserID).Error)
	pub := &fakePublisher{}
	svc.Publisher = pub

	res, err := svc.Finalize(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, BranchPriorityBuyout, res.Branch)
	assert.Equal(t, domain.PropertyStatusSold, res.Status)
	assert.Equal(t, int64(40), res.AllocatedShares)

	prop := ledgertest.Property(t, db, p.ID)
	assert.Equal(t, domain.PropertyStatusSold, prop.Status)
	assert.Equal(t, int64(0), prop.AvailableShares)

	invs := ledgertest.Investments(t, db, p.ID)
	require.Len(t, invs, 1)
	assert.Equal(t, inv.ID, invs[0].ID)
	assert.Equal(t, int64(100), invs[0].Shares)

	evs := ledgertest.EventTypes(t, db, p.ID)
	assert.Contains(t, evs, domain.EventSharesAllocated)
	assert.Contains(t, evs, domain.EventPropertyFinalized)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "property.finalized", pub.sent[0].key)
	assertBalanced(t, db, p.ID)
}

func TestFinalize_PriorityWithoutInvestmentFallsBackToGreedy(t *testing.T) {
	svc, db, p := setupFinalize(t, 30000, 0)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	require.NoError(t, db.Model(&domain.Property{}).Where("id = ?", p.ID).Update("priority_investor_id", a.UserID).Error)

	_, err := svc.Finalize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPaymentPlanUnderfunded)
}

func TestFinalize_GreedyAllocationByInvestedAmount(t *testing.T) {
	svc, db, p := setupFinalize(t, 50000, 0)
	b := ledgertest.SeedUser(t, db, "bob", 0)
	c := ledgertest.SeedUser(t, db, "carol", 0)
	small := ledgertest.SeedInvestment(t, db, p, c, 10, 10000)
	large := ledgertest.SeedInvestment(t, db, p, b, 30, 30000)
	setAvailable(t, db, p, 60)

	res, err := svc.Finalize(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, BranchGreedy, res.Branch)
	assert.True(t, res.FundedRatio.Equal(decimal.NewFromFloat(0.5)))
	assert.Equal(t, int64(40), res.AllocatedShares)
	assert.Equal(t, int64(20), res.StrandedShares)
	require.Len(t, res.Allocations, 2)
	assert.Equal(t, large.ID, res.Allocations[0].InvestmentID)
	assert.Equal(t, int64(30), res.Allocations[0].Shares)
	assert.Equal(t, small.ID, res.Allocations[1].InvestmentID)
	assert.Equal(t, int64(10), res.Allocations[1].Shares)

	prop := ledgertest.Property(t, db, p.ID)
	assert.Equal(t, int64(20), prop.AvailableShares)
	assert.Equal(t, domain.PropertyStatusSold, prop.Status)

	var allocations int64
	db.Model(&domain.Transaction{}).Where("type = ?", domain.TransactionTypeAllocation).Count(&allocations)
	assert.Equal(t, int64(2), allocations)

	var notes int64
	db.Model(&domain.Notification{}).Where("kind = ?", domain.NotificationPropertyFinalized).Count(&notes)
	assert.Equal(t, int64(2), notes)
	assertBalanced(t, db, p.ID)
}

func TestFinalize_GreedyStopsWhenSharesRunOut(t *testing.T) {
	svc, db, p := setupFinalize(t, 50000, 0)
	b := ledgertest.SeedUser(t, db, "bob", 0)
	c := ledgertest.SeedUser(t, db, "carol", 0)
	ledgertest.SeedInvestment(t, db, p, b, 50, 50000)
	ledgertest.SeedInvestment(t, db, p, c, 45, 45000)
	setAvailable(t, db, p, 5)

	res, err := svc.Finalize(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, res.Allocations, 1)
	assert.Equal(t, int64(5), res.Allocations[0].Shares)
	assert.Equal(t, b.UserID, res.Allocations[0].UserID)
	assert.Equal(t, int64(0), res.StrandedShares)
	assertBalanced(t, db, p.ID)
}

func TestFinalize_RefundsPendingApplications(t *testing.T) {
	svc, db, p := setupFinalize(t, 50000, 0)
	b := ledgertest.SeedUser(t, db, "bob", 0)
	ledgertest.SeedInvestment(t, db, p, b, 50, 50000)
	setAvailable(t, db, p, 50)
	d := ledgertest.SeedUser(t, db, "dave", 20000)
	app := ledgertest.SeedApplication(t, db, p, d, 2, 10, ledgertest.Epoch)

	res, err := svc.Finalize(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RefundedApplications)
	assert.Equal(t, domain.ApplicationStatusRejected, ledgertest.Application(t, db, app.ID).Status)
	assert.True(t, ledgertest.User(t, db, d.UserID).WalletBalance.Equal(decimal.NewFromInt(20000)))

	invs := ledgertest.Investments(t, db, p.ID)
	require.Len(t, invs, 1)
	assert.Equal(t, int64(100), invs[0].Shares)
	assertBalanced(t, db, p.ID)
}

func TestFinalize_AlreadyFinalized(t *testing.T) {
	svc, db, p := setupFinalize(t, 50000, 0)
	b := ledgertest.SeedUser(t, db, "bob", 0)
	ledgertest.SeedInvestment(t, db, p, b, 50, 50000)
	setAvailable(t, db, p, 50)

	_, err := svc.Finalize(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = svc.Finalize(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestFinalize_UnknownProperty(t *testing.T) {
	svc, _, _ := setupFinalize(t, 0, 0)
	_, err := svc.Finalize(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}
