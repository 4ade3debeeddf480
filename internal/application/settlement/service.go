package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/domain"
	"brickshare-backend/internal/infrastructure/events"
	"brickshare-backend/internal/infrastructure/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultConcurrency = 4

// Dispatcher delivers outbox notifications written by a settlement.
type Dispatcher interface {
	DispatchPending(ctx context.Context) (int, error)
}

// Service settles due tranches: a funded round turns every pending application into an
// investment, an unfunded round is refunded and its reserved shares go back to the pool.
type Service struct {
	DB          *gorm.DB
	Guard       *ledger.Guard
	Now         func() time.Time
	Concurrency int
	Dispatcher  Dispatcher
	Publisher   events.Publisher
}

// TrancheOutcome describes one settled (or blocked) tranche.
type TrancheOutcome struct {
	TrancheID       uuid.UUID       `json:"tranche_id"`
	Step            int             `json:"step"`
	Outcome         string          `json:"outcome"`
	Total           decimal.Decimal `json:"total"`
	Aggregate       decimal.Decimal `json:"aggregate_requested"`
	Paid            decimal.Decimal `json:"paid"`
	Accepted        int             `json:"accepted"`
	Rejected        int             `json:"rejected"`
	Skipped         int             `json:"skipped"`
	PriorityCleared bool            `json:"priority_cleared"`
	Blocked         bool            `json:"blocked,omitempty"`
}

// PropertyResult is what one property pass changed.
type PropertyResult struct {
	PropertyID     uuid.UUID       `json:"property_id"`
	TranchesOpened int             `json:"tranches_opened"`
	Tranche        *TrancheOutcome `json:"tranche,omitempty"`
}

// SweepResult aggregates a full run.
type SweepResult struct {
	PropertiesScanned    int              `json:"properties_scanned"`
	TranchesOpened       int              `json:"tranches_opened"`
	TranchesSettled      int              `json:"tranches_settled"`
	TranchesFunded       int              `json:"tranches_funded"`
	TranchesUnfunded     int              `json:"tranches_unfunded"`
	ApplicationsAccepted int              `json:"applications_accepted"`
	ApplicationsRejected int              `json:"applications_rejected"`
	ApplicationsSkipped  int              `json:"applications_skipped"`
	Failures             int              `json:"failures"`
	NotificationsSent    int              `json:"notifications_sent"`
	Properties           []PropertyResult `json:"properties"`
	StartedAt            time.Time        `json:"started_at"`
	Duration             string           `json:"duration"`
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

// Run settles every non-terminal property. Properties are independent: a failure is logged,
// counted and does not stop the others.
func (s *Service) Run(ctx context.Context) (*SweepResult, error) {
	started := time.Now()
	result := &SweepResult{StartedAt: s.now(), Properties: []PropertyResult{}}

	var ids []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Property{}).
		Where("status NOT IN ?", []string{domain.PropertyStatusSold, domain.PropertyStatusDeclined}).
		Order(`"createdAt" ASC`).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	result.PropertiesScanned = len(ids)

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, err := s.SettleProperty(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures++
				log.Error().Err(err).Str("property_id", id.String()).Msg("Sweep failed for property")
				return nil
			}
			result.add(res)
			return nil
		})
	}
	_ = g.Wait()

	if s.Dispatcher != nil {
		sent, err := s.Dispatcher.DispatchPending(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Notification dispatch failed after sweep")
		}
		result.NotificationsSent = sent
	}

	elapsed := time.Since(started)
	result.Duration = elapsed.String()
	metrics.RecordSweep(elapsed)
	log.Info().
		Int("properties", result.PropertiesScanned).
		Int("settled", result.TranchesSettled).
		Int("accepted", result.ApplicationsAccepted).
		Int("rejected", result.ApplicationsRejected).
		Int("failures", result.Failures).
		Dur("elapsed", elapsed).
		Msg("Sweep finished")
	return result, nil
}

func (r *SweepResult) add(res *PropertyResult) {
	if res == nil {
		return
	}
	r.TranchesOpened += res.TranchesOpened
	if res.TranchesOpened > 0 || res.Tranche != nil {
		r.Properties = append(r.Properties, *res)
	}
	t := res.Tranche
	if t == nil || t.Blocked {
		return
	}
	r.TranchesSettled++
	if t.Outcome == domain.TrancheOutcomeFunded {
		r.TranchesFunded++
	} else {
		r.TranchesUnfunded++
	}
	r.ApplicationsAccepted += t.Accepted
	r.ApplicationsRejected += t.Rejected
	r.ApplicationsSkipped += t.Skipped
}

// SettleProperty opens tranches whose window has started and settles the earliest due one.
// It returns ErrPropertyNotFound for unknown ids and an empty result for terminal properties.
func (s *Service) SettleProperty(ctx context.Context, propertyID uuid.UUID) (*PropertyResult, error) {
	var res *PropertyResult
	err := s.guard().Run(ctx, propertyID, func(ctx context.Context) error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.settle(tx, propertyID)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, res)
	return res, nil
}

func (s *Service) settle(tx *gorm.DB, propertyID uuid.UUID) (*PropertyResult, error) {
	now := s.now()
	res := &PropertyResult{PropertyID: propertyID}

	property, err := ledger.LockProperty(tx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.IsTerminal() {
		return res, nil
	}
	tranches, err := ledger.Tranches(tx, propertyID)
	if err != nil {
		return nil, err
	}

	for i := range tranches {
		t := &tranches[i]
		if t.Status != domain.TrancheStatusUpcoming || t.EventDate.After(now) {
			continue
		}
		t.Status = domain.TrancheStatusOpen
		if err := ledger.SaveTranche(tx, t); err != nil {
			return nil, err
		}
		if err := ledger.AppendEvent(tx, propertyID, domain.ActorSweep, domain.EventTrancheOpened, map[string]interface{}{
			"tranche_id": t.ID,
			"step":       t.Ordinal,
			"total":      t.Total,
		}); err != nil {
			return nil, err
		}
		res.TranchesOpened++
	}

	var due *domain.Tranche
	for i := range tranches {
		if tranches[i].IsDue(now) {
			due = &tranches[i]
			break
		}
	}
	if due == nil {
		return res, nil
	}

	pending, err := ledger.PendingApplications(tx, propertyID, due.Ordinal)
	if err != nil {
		return nil, err
	}
	apps, skipped, err := withKnownUsers(tx, pending)
	if err != nil {
		return nil, err
	}
	aggregate := decimal.Zero
	for _, a := range apps {
		aggregate = aggregate.Add(a.RequestedAmount)
	}
	outcome := &TrancheOutcome{
		TrancheID: due.ID,
		Step:      due.Ordinal,
		Total:     due.Total,
		Aggregate: aggregate,
		Skipped:   skipped,
	}
	res.Tranche = outcome

	if aggregate.GreaterThanOrEqual(due.Total) {
		blocked, err := s.oversubscribed(tx, property, apps)
		if err != nil {
			return nil, err
		}
		if blocked {
			log.Error().Err(ErrOversubscribed).Str("property_id", propertyID.String()).Int("step", due.Ordinal).
				Msg("Tranche left unsettled")
			outcome.Blocked = true
			return res, nil
		}
		if err := s.accept(tx, property, due, apps, outcome, now); err != nil {
			return nil, err
		}
		return res, nil
	}

	founding := domain.FoundingTranche(tranches)
	if err := s.reject(tx, property, due, founding, apps, outcome, now); err != nil {
		return nil, err
	}
	return res, nil
}

// withKnownUsers drops applications whose user row is gone. They stay pending and do not
// count toward the round.
func withKnownUsers(tx *gorm.DB, apps []domain.Application) ([]domain.Application, int, error) {
	if len(apps) == 0 {
		return apps, 0, nil
	}
	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.UserID)
	}
	var existing []uuid.UUID
	if err := tx.Model(&domain.User{}).Where("user_id IN ?", ids).Pluck("user_id", &existing).Error; err != nil {
		return nil, 0, err
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	kept := make([]domain.Application, 0, len(apps))
	for _, a := range apps {
		if !known[a.UserID] {
			log.Warn().Str("application_id", a.ID.String()).Str("user_id", a.UserID.String()).
				Msg("Skipping application of missing user")
			continue
		}
		kept = append(kept, a)
	}
	return kept, len(apps) - len(kept), nil
}

// oversubscribed reports whether accepting the round would hand out more shares than
// total minus what is already confirmed.
func (s *Service) oversubscribed(tx *gorm.DB, property *domain.Property, apps []domain.Application) (bool, error) {
	var invested int64
	if err := tx.Model(&domain.Investment{}).
		Where("property_id = ?", property.ID).
		Select("COALESCE(SUM(shares), 0)").
		Scan(&invested).Error; err != nil {
		return false, err
	}
	var requested int64
	for _, a := range apps {
		requested += a.RequestedShares
	}
	return requested > property.TotalShares-invested, nil
}

func (s *Service) accept(tx *gorm.DB, property *domain.Property, due *domain.Tranche, apps []domain.Application, outcome *TrancheOutcome, now time.Time) error {
	accepted := decimal.Zero
	for i := range apps {
		app := &apps[i]
		if _, err := ledger.LockUser(tx, app.UserID); err != nil {
			if errors.Is(err, ledger.ErrUserNotFound) {
				log.Warn().Str("application_id", app.ID.String()).Str("user_id", app.UserID.String()).
					Msg("Skipping application of missing user")
				outcome.Skipped++
				continue
			}
			return err
		}

		inv := domain.Investment{
			UserID:         app.UserID,
			PropertyID:     property.ID,
			ApplicationID:  ledger.Ref(app.ID),
			Shares:         app.RequestedShares,
			InvestedAmount: app.RequestedAmount,
			Source:         domain.InvestmentSourceSweep,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		if err := tx.Model(app).Updates(map[string]interface{}{
			"status":          domain.ApplicationStatusAccepted,
			"approved_amount": app.RequestedAmount,
			"approved_shares": app.RequestedShares,
			"settled_at":      now,
		}).Error; err != nil {
			return err
		}
		if err := ledger.AppendEvent(tx, property.ID, domain.ActorSweep, domain.EventApplicationAccepted, map[string]interface{}{
			"application_id": app.ID,
			"investment_id":  inv.ID,
			"user_id":        app.UserID,
			"step":           due.Ordinal,
			"amount":         app.RequestedAmount,
			"shares":         app.RequestedShares,
		}); err != nil {
			return err
		}
		if err := ledger.Enqueue(tx, app.UserID, property.ID, domain.NotificationApplicationAccepted, map[string]interface{}{
			"property_title": property.Title,
			"step":           due.Ordinal,
			"amount":         app.RequestedAmount,
			"shares":         app.RequestedShares,
		}); err != nil {
			return err
		}
		accepted = accepted.Add(app.RequestedAmount)
		outcome.Accepted++
	}

	due.Paid = decimal.Min(accepted, due.Total)
	due.Status = domain.TrancheStatusSettled
	due.Outcome = domain.TrancheOutcomeFunded
	due.SettledAt = &now
	if err := ledger.SaveTranche(tx, due); err != nil {
		return err
	}
	outcome.Outcome = domain.TrancheOutcomeFunded
	outcome.Paid = due.Paid
	return ledger.AppendEvent(tx, property.ID, domain.ActorSweep, domain.EventTrancheFunded, map[string]interface{}{
		"tranche_id": due.ID,
		"step":       due.Ordinal,
		"total":      due.Total,
		"aggregate":  outcome.Aggregate,
		"paid":       due.Paid,
		"accepted":   outcome.Accepted,
	})
}

func (s *Service) reject(tx *gorm.DB, property *domain.Property, due, founding *domain.Tranche, apps []domain.Application, outcome *TrancheOutcome, now time.Time) error {
	for i := range apps {
		app := &apps[i]
		user, err := ledger.LockUser(tx, app.UserID)
		if err != nil {
			if errors.Is(err, ledger.ErrUserNotFound) {
				log.Warn().Str("application_id", app.ID.String()).Str("user_id", app.UserID.String()).
					Msg("Skipping application of missing user")
				outcome.Skipped++
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
			TrancheID:     ledger.Ref(due.ID),
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
		if err := ledger.AppendEvent(tx, property.ID, domain.ActorSweep, domain.EventApplicationRejected, map[string]interface{}{
			"application_id": app.ID,
			"user_id":        app.UserID,
			"step":           due.Ordinal,
			"refunded":       app.RequestedAmount,
			"shares":         app.RequestedShares,
		}); err != nil {
			return err
		}
		if err := ledger.Enqueue(tx, app.UserID, property.ID, domain.NotificationApplicationRejected, map[string]interface{}{
			"property_title": property.Title,
			"step":           due.Ordinal,
			"refunded":       app.RequestedAmount,
		}); err != nil {
			return err
		}
		outcome.Rejected++
	}

	due.Status = domain.TrancheStatusSettled
	due.Outcome = domain.TrancheOutcomeUnfunded
	due.SettledAt = &now
	if err := ledger.SaveTranche(tx, due); err != nil {
		return err
	}
	outcome.Outcome = domain.TrancheOutcomeUnfunded
	outcome.Paid = due.Paid
	if err := ledger.AppendEvent(tx, property.ID, domain.ActorSweep, domain.EventTrancheUnfunded, map[string]interface{}{
		"tranche_id": due.ID,
		"step":       due.Ordinal,
		"total":      due.Total,
		"aggregate":  outcome.Aggregate,
		"rejected":   outcome.Rejected,
	}); err != nil {
		return err
	}

	if founding != nil && due.ID == founding.ID && property.PriorityInvestorID != nil {
		cleared := *property.PriorityInvestorID
		property.PriorityInvestorID = nil
		outcome.PriorityCleared = true
		if err := ledger.AppendEvent(tx, property.ID, domain.ActorSweep, domain.EventPriorityCleared, map[string]interface{}{
			"user_id": cleared,
			"step":    due.Ordinal,
		}); err != nil {
			return err
		}
	}
	return ledger.SaveProperty(tx, property)
}

// afterCommit publishes the outcome and updates metrics once the transaction is durable.
func (s *Service) afterCommit(ctx context.Context, res *PropertyResult) {
	if res == nil || res.Tranche == nil {
		return
	}
	t := res.Tranche
	if t.Blocked {
		metrics.RecordTranche("blocked")
		return
	}
	metrics.RecordTranche(t.Outcome)
	metrics.RecordApplications(domain.ApplicationStatusAccepted, t.Accepted)
	metrics.RecordApplications(domain.ApplicationStatusRejected, t.Rejected)

	if s.Publisher == nil {
		return
	}
	key := events.RoutingTrancheFunded
	if t.Outcome == domain.TrancheOutcomeUnfunded {
		key = events.RoutingTrancheUnfunded
	}
	payload := map[string]interface{}{
		"property_id":      res.PropertyID,
		"tranche_id":       t.TrancheID,
		"step":             t.Step,
		"total":            t.Total,
		"paid":             t.Paid,
		"accepted":         t.Accepted,
		"rejected":         t.Rejected,
		"priority_cleared": t.PriorityCleared,
	}
	if err := s.Publisher.Publish(ctx, key, payload); err != nil {
		log.Warn().Err(err).Str("property_id", res.PropertyID.String()).Str("routing_key", key).Msg("Failed to publish settlement event")
	}
}
