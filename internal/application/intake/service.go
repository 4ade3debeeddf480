package intake

import (
	"context"
	"errors"
	"time"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	KindApplication = "application"
	KindInvestment  = "investment"
)

// Service accepts capital commitments against a property's active tranche.
type Service struct {
	DB    *gorm.DB
	Guard *ledger.Guard
	Now   func() time.Time
}

type CommitInput struct {
	UserID          uuid.UUID
	PropertyID      uuid.UUID
	RequestedShares int64
}

// CommitResult is either a pending application (founding tranche) or a confirmed investment.
type CommitResult struct {
	Kind        string              `json:"kind"`
	ID          uuid.UUID           `json:"id"`
	TrancheID   uuid.UUID           `json:"tranche_id"`
	Step        int                 `json:"step"`
	Amount      decimal.Decimal     `json:"amount"`
	Shares      int64               `json:"shares"`
	IsPriority  bool                `json:"is_priority"`
	Application *domain.Application `json:"application,omitempty"`
	Investment  *domain.Investment  `json:"investment,omitempty"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) guard() *ledger.Guard {
	if s.Guard != nil {
		return s.Guard
	}
	return &ledger.Guard{}
}

// Commit reserves capital and shares for the user. All writes happen in one transaction
// under the property lease, so a failure leaves no trace.
func (s *Service) Commit(ctx context.Context, in CommitInput) (*CommitResult, error) {
	if in.RequestedShares <= 0 {
		metrics.RecordCommit("invalid_shares")
		return nil, ErrInvalidShares
	}

	var result *CommitResult
	err := s.guard().Run(ctx, in.PropertyID, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.commit(tx, in)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		metrics.RecordCommit(commitErrorLabel(err))
		return nil, err
	}
	metrics.RecordCommit(result.Kind)
	return result, nil
}

func (s *Service) commit(tx *gorm.DB, in CommitInput) (*CommitResult, error) {
	property, err := ledger.LockProperty(tx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if property.IsTerminal() {
		return nil, ErrPropertyClosed
	}

	tranches, err := ledger.Tranches(tx, property.ID)
	if err != nil {
		return nil, err
	}
	active := activeTranche(tranches, s.now())
	if active == nil {
		return nil, ErrNoActiveTranche
	}
	founding := domain.FoundingTranche(tranches)

	user, err := ledger.LockUser(tx, in.UserID)
	if err != nil {
		return nil, err
	}

	amount := ledger.RoundMoney(property.PricePerShare().Mul(decimal.NewFromInt(in.RequestedShares)))
	if user.WalletBalance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	if property.AvailableShares < in.RequestedShares {
		return nil, ErrInsufficientShares
	}
	isFounding := active.ID == founding.ID
	if !isFounding && active.Paid.Add(amount).GreaterThan(active.Total) {
		return nil, ErrTrancheOverfunded
	}

	if active.Status == domain.TrancheStatusUpcoming {
		active.Status = domain.TrancheStatusOpen
		if err := ledger.AppendEvent(tx, property.ID, domain.ActorSystem, domain.EventTrancheOpened, map[string]interface{}{
			"tranche_id": active.ID,
			"step":       active.Ordinal,
			"total":      active.Total,
		}); err != nil {
			return nil, err
		}
	}

	if err := ledger.DebitWallet(tx, user, amount); err != nil {
		return nil, err
	}
	property.AvailableShares -= in.RequestedShares

	if isFounding {
		return s.createApplication(tx, property, active, user, amount, in.RequestedShares)
	}
	return s.createInvestment(tx, property, active, user, amount, in.RequestedShares)
}

// createApplication records a pending application on the founding tranche. A single commitment
// covering the whole tranche makes its owner the priority investor, if none is set yet.
func (s *Service) createApplication(tx *gorm.DB, property *domain.Property, tranche *domain.Tranche, user *domain.User, amount decimal.Decimal, shares int64) (*CommitResult, error) {
	app := domain.Application{
		UserID:          user.UserID,
		PropertyID:      property.ID,
		Step:            tranche.Ordinal,
		RequestedAmount: amount,
		RequestedShares: shares,
		Status:          domain.ApplicationStatusPending,
	}
	if amount.GreaterThanOrEqual(tranche.Total) && property.PriorityInvestorID == nil {
		property.PriorityInvestorID = ledger.Ref(user.UserID)
		app.IsPriority = true
	}
	if err := tx.Create(&app).Error; err != nil {
		return nil, err
	}
	if err := ledger.SaveProperty(tx, property); err != nil {
		return nil, err
	}
	if err := ledger.SaveTranche(tx, tranche); err != nil {
		return nil, err
	}
	if err := ledger.Record(tx, &domain.Transaction{
		Type:          domain.TransactionTypeDebit,
		UserID:        user.UserID,
		PropertyID:    property.ID,
		TrancheID:     ledger.Ref(tranche.ID),
		ApplicationID: ledger.Ref(app.ID),
		Amount:        amount,
		Shares:        shares,
	}); err != nil {
		return nil, err
	}
	if err := ledger.AppendEvent(tx, property.ID, user.UserID.String(), domain.EventApplicationCreated, map[string]interface{}{
		"application_id":   app.ID,
		"user_id":          user.UserID,
		"step":             app.Step,
		"requested_amount": amount,
		"requested_shares": shares,
		"is_priority":      app.IsPriority,
	}); err != nil {
		return nil, err
	}
	if app.IsPriority {
		if err := ledger.AppendEvent(tx, property.ID, user.UserID.String(), domain.EventPrioritySet, map[string]interface{}{
			"user_id":        user.UserID,
			"application_id": app.ID,
			"amount":         amount,
			"tranche_total":  tranche.Total,
		}); err != nil {
			return nil, err
		}
	}

	return &CommitResult{
		Kind:        KindApplication,
		ID:          app.ID,
		TrancheID:   tranche.ID,
		Step:        app.Step,
		Amount:      amount,
		Shares:      shares,
		IsPriority:  app.IsPriority,
		Application: &app,
	}, nil
}

// createInvestment confirms a commitment on a later tranche immediately; priority was decided
// on the founding tranche, so there is nothing left for the sweep to review.
func (s *Service) createInvestment(tx *gorm.DB, property *domain.Property, tranche *domain.Tranche, user *domain.User, amount decimal.Decimal, shares int64) (*CommitResult, error) {
	tranche.Paid = ledger.RoundMoney(tranche.Paid.Add(amount))
	inv := domain.Investment{
		UserID:         user.UserID,
		PropertyID:     property.ID,
		Shares:         shares,
		InvestedAmount: amount,
		Source:         domain.InvestmentSourceIntake,
	}
	if err := tx.Create(&inv).Error; err != nil {
		return nil, err
	}
	if err := ledger.SaveProperty(tx, property); err != nil {
		return nil, err
	}
	if err := ledger.SaveTranche(tx, tranche); err != nil {
		return nil, err
	}
	if err := ledger.Record(tx, &domain.Transaction{
		Type:         domain.TransactionTypeDebit,
		UserID:       user.UserID,
		PropertyID:   property.ID,
		TrancheID:    ledger.Ref(tranche.ID),
		InvestmentID: ledger.Ref(inv.ID),
		Amount:       amount,
		Shares:       shares,
	}); err != nil {
		return nil, err
	}
	if err := ledger.AppendEvent(tx, property.ID, user.UserID.String(), domain.EventInvestmentCreated, map[string]interface{}{
		"investment_id": inv.ID,
		"user_id":       user.UserID,
		"step":          tranche.Ordinal,
		"amount":        amount,
		"shares":        shares,
		"tranche_paid":  tranche.Paid,
	}); err != nil {
		return nil, err
	}

	return &CommitResult{
		Kind:       KindInvestment,
		ID:         inv.ID,
		TrancheID:  tranche.ID,
		Step:       tranche.Ordinal,
		Amount:     amount,
		Shares:     shares,
		Investment: &inv,
	}, nil
}

// activeTranche is the unsettled tranche whose window contains now.
func activeTranche(tranches []domain.Tranche, now time.Time) *domain.Tranche {
	for i := range tranches {
		if tranches[i].Status != domain.TrancheStatusSettled && tranches[i].Contains(now) {
			return &tranches[i]
		}
	}
	return nil
}

func commitErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoActiveTranche):
		return "no_active_tranche"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientShares):
		return "insufficient_shares"
	case errors.Is(err, ErrPropertyNotFound):
		return "property_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrPropertyClosed):
		return "property_closed"
	case errors.Is(err, ErrTrancheOverfunded):
		return "tranche_overfunded"
	case errors.Is(err, ledger.ErrPropertyLockTaken):
		return "lock_taken"
	case errors.Is(err, ledger.ErrConcurrentUpdate):
		return "concurrent_update"
	default:
		return "error"
	}
}
