package finalize

import (
	"context"
	"errors"
	"time"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/events"
	"brickshare-backend/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	BranchPriorityBuyout = "priority_buyout"
	BranchGreedy         = "greedy_allocation"
)

// MinFundedRatio is the share of the payment plan that must be paid before a property
// without a priority investor can be finalized.
var MinFundedRatio = decimal.RequireFromString("0.40")

// Dispatcher delivers outbox notifications.
type Dispatcher interface {
	DispatchPending(ctx context.Context) (int, error)
}

// Service resolves ownership once a property's application deadline has passed.
type Service struct {
	DB         *gorm.DB
	Guard      *ledger.Guard
	Now        func() time.Time
	Dispatcher Dispatcher
	Publisher  events.Publisher
}

type Allocation struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	UserID       uuid.UUID `json:"user_id"`
	Shares       int64     `json:"shares"`
}

type FinalizeResult struct {
	PropertyID           uuid.UUID       `json:"property_id"`
	Status               string          `json:"status"`
	Branch               string          `json:"branch"`
	FundedRatio          decimal.Decimal `json:"funded_ratio"`
	AllocatedShares      int64           `json:"allocated_shares"`
	StrandedShares       int64           `json:"stranded_shares"`
	RefundedApplications int             `json:"refunded_applications"`
	SkippedApplications  int             `json:"skipped_applications"`
	Allocations          []Allocation    `json:"allocations"`
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

// Finalize marks the property sold. Either the priority investor takes every remaining share,
// or, when the plan is at least 40% paid, remaining shares are spread greedily over the largest
// investments. Nothing is written when it fails.
func (s *Service) Finalize(ctx context.Context, propertyID uuid.UUID) (*FinalizeResult, error) {
	var result *FinalizeResult
	err := s.guard().Run(ctx, propertyID, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.finalize(tx, propertyID)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if err != nil {
		metrics.RecordFinalize(finalizeErrorLabel(err))
		return nil, err
	}
	metrics.RecordFinalize(result.Branch)
	metrics.RecordApplications(domain.ApplicationStatusRejected, result.RefundedApplications)
	log.Info().
		Str("property_id", propertyID.String()).
		Str("branch", result.Branch).
		Int64("allocated", result.AllocatedShares).
		Int64("stranded", result.StrandedShares).
		Msg("Property finalized")

	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, events.RoutingPropertyFinalized, result); err != nil {
			log.Warn().Err(err).Str("property_id", propertyID.String()).Msg("Failed to publish finalize event")
		}
	}
	if s.Dispatcher != nil {
		if _, err := s.Dispatcher.DispatchPending(ctx); err != nil {
			log.Warn().Err(err).Msg("Notification dispatch failed after finalize")
		}
	}
	return result, nil
}

func (s *Service) finalize(tx *gorm.DB, propertyID uuid.UUID) (*FinalizeResult, error) {
	now := s.now()
	property, err := ledger.LockProperty(tx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.IsTerminal() {
		return nil, ErrAlreadyFinalized
	}
	if !now.After(property.ApplicationDeadline) {
		return nil, ErrDeadlineNotReached
	}

	result := &FinalizeResult{PropertyID: propertyID, Allocations: []Allocation{}}
	if err := s.refundPending(tx, property, result, now); err != nil {
		return nil, err
	}

	tranches, err := ledger.Tranches(tx, propertyID)
	if err != nil {
		return nil, err
	}
	result.FundedRatio = fundedRatio(tranches)

	var investments []domain.Investment
	if err := tx.Where("property_id = ?", propertyID).
		Order(`invested_amount DESC, "createdAt" ASC`).
		Find(&investments).Error; err != nil {
		return nil, err
	}

	if priority := priorityInvestment(property, investments); priority != nil {
		result.Branch = BranchPriorityBuyout
		if property.AvailableShares > 0 {
			if err := s.allocate(tx, property, priority, property.AvailableShares, result); err != nil {
				return nil, err
			}
		}
	} else {
		if !meetsMinFunding(tranches) {
			return nil, ErrPaymentPlanUnderfunded
		}
		result.Branch = BranchGreedy
		for i := range investments {
			if property.AvailableShares <= 0 {
				break
			}
			inv := &investments[i]
			alloc := inv.Shares
			if alloc > property.AvailableShares {
				alloc = property.AvailableShares
			}
			if alloc <= 0 {
				continue
			}
			if err := s.allocate(tx, property, inv, alloc, result); err != nil {
				return nil, err
			}
		}
		result.StrandedShares = property.AvailableShares
	}

	property.Status = domain.PropertyStatusSold
	if err := ledger.SaveProperty(tx, property); err != nil {
		return nil, err
	}
	result.Status = property.Status

	if err := ledger.AppendEvent(tx, propertyID, domain.ActorAdmin, domain.EventPropertyFinalized, map[string]interface{}{
		"branch":           result.Branch,
		"funded_ratio":     result.FundedRatio,
		"allocated_shares": result.AllocatedShares,
		"stranded_shares":  result.StrandedShares,
		"refunded":         result.RefundedApplications,
	}); err != nil {
		return nil, err
	}

	notified := map[uuid.UUID]bool{}
	for _, inv := range investments {
		if notified[inv.UserID] {
			continue
		}
		notified[inv.UserID] = true
		if err := ledger.Enqueue(tx, inv.UserID, propertyID, domain.NotificationPropertyFinalized, map[string]interface{}{
			"property_title": property.Title,
			"branch":         result.Branch,
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// refundPending rejects applications no sweep settled before the deadline and returns their
// funds and reserved shares.
func (s *Service) refundPending(tx *gorm.DB, property *domain.Property, result *FinalizeResult, now time.Time) error {
	apps, err := ledger.PendingApplications(tx, property.ID, 0)
	if err != nil {
		return err
	}
	for i := range apps {
		app := &apps[i]
		user, err := ledger.LockUser(tx, app.UserID)
		if err != nil {
			if errors.Is(err, ledger.ErrUserNotFound) {
				log.Warn().Str("application_id", app.ID.String()).Msg("Skipping refund for missing user")
				result.SkippedApplications++
				continue
			}
			return err
		}
		if err := ledger.CreditWallet(tx, user, app.RequestedAmount); err != nil {
			return err
		}
		if err := ledger.Record(tx, &domain.Transaction{
			Type:          domain.TransactionTypeRefund,
			UserID:        app.UserID,
			PropertyID:    property.ID,
			ApplicationID: ledger.Ref(app.ID),
			Amount:        app.RequestedAmount,
			Shares:        app.RequestedShares,
		}); err != nil {
			return err
		}
		property.AvailableShares += app.RequestedShares
		if err := tx.Model(app).Updates(map[string]interface{}{
			"status":     domain.ApplicationStatusRejected,
			"settled_at": now,
		}).Error; err != nil {
			return err
		}
		if err := ledger.AppendEvent(tx, property.ID, domain.ActorAdmin, domain.EventApplicationRejected, map[string]interface{}{
			"application_id": app.ID,
			"user_id":        app.UserID,
			"step":           app.Step,
			"refunded":       app.RequestedAmount,
			"shares":         app.RequestedShares,
		}); err != nil {
			return err
		}
		if err := ledger.Enqueue(tx, app.UserID, property.ID, domain.NotificationApplicationRejected, map[string]interface{}{
			"property_title": property.Title,
			"step":           app.Step,
			"refunded":       app.RequestedAmount,
		}); err != nil {
			return err
		}
		result.RefundedApplications++
	}
	return nil
}

func (s *Service) allocate(tx *gorm.DB, property *domain.Property, inv *domain.Investment, shares int64, result *FinalizeResult) error {
	inv.Shares += shares
	if err := tx.Model(inv).Update("shares", inv.Shares).Error; err != nil {
		return err
	}
	property.AvailableShares -= shares
	if err := ledger.Record(tx, &domain.Transaction{
		Type:         domain.TransactionTypeAllocation,
		UserID:       inv.UserID,
		PropertyID:   property.ID,
		InvestmentID: ledger.Ref(inv.ID),
		Amount:       decimal.Zero,
		Shares:       shares,
	}); err != nil {
		return err
	}
	if err := ledger.AppendEvent(tx, property.ID, domain.ActorAdmin, domain.EventSharesAllocated, map[string]interface{}{
		"investment_id": inv.ID,
		"user_id":       inv.UserID,
		"shares":        shares,
		"total_shares":  inv.Shares,
	}); err != nil {
		return err
	}
	result.AllocatedShares += shares
	result.Allocations = append(result.Allocations, Allocation{InvestmentID: inv.ID, UserID: inv.UserID, Shares: shares})
	return nil
}

// priorityInvestment is the largest confirmed investment of the priority investor, or nil.
func priorityInvestment(p *domain.Property, investments []domain.Investment) *domain.Investment {
	if p.PriorityInvestorID == nil {
		return nil
	}
	for i := range investments {
		if investments[i].UserID == *p.PriorityInvestorID {
			return &investments[i]
		}
	}
	return nil
}

func planSums(tranches []domain.Tranche) (paid, total decimal.Decimal) {
	paid, total = decimal.Zero, decimal.Zero
	for _, t := range tranches {
		paid = paid.Add(t.Paid)
		total = total.Add(t.Total)
	}
	return paid, total
}

// fundedRatio is Σpaid / Σtotal rounded for display, zero for an empty plan.
func fundedRatio(tranches []domain.Tranche) decimal.Decimal {
	paid, total := planSums(tranches)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return paid.DivRound(total, 4)
}

// meetsMinFunding reports Σpaid >= MinFundedRatio × Σtotal on the exact amounts.
func meetsMinFunding(tranches []domain.Tranche) bool {
	paid, total := planSums(tranches)
	if !total.IsPositive() {
		return false
	}
	return paid.GreaterThanOrEqual(total.Mul(MinFundedRatio))
}

func finalizeErrorLabel(err error) string {
	switch {
	case errors.Is(err, ErrDeadlineNotReached):
		return "deadline_not_reached"
	case errors.Is(err, ErrPaymentPlanUnderfunded):
		return "underfunded"
	case errors.Is(err, ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, ErrPropertyNotFound):
		return "property_not_found"
	default:
		return "error"
	}
}
