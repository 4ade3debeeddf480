package forecast

import (
	"context"
	"errors"
	"math"
	"time"

	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPropertyNotFound = errors.New("Property not found")

// Service projects tranche shortfalls from the settlement ledger. It never writes.
type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

type TrancheForecast struct {
	TrancheID          uuid.UUID       `json:"tranche_id"`
	Step               int             `json:"step"`
	EventDate          time.Time       `json:"event_date"`
	DueDate            time.Time       `json:"due_date"`
	Status             string          `json:"status"`
	Outcome            string          `json:"outcome"`
	Total              decimal.Decimal `json:"total"`
	Paid               decimal.Decimal `json:"paid"`
	Committed          decimal.Decimal `json:"committed"`
	Outstanding        decimal.Decimal `json:"outstanding"`
	ProjectedShortfall decimal.Decimal `json:"projected_shortfall"`
	DaysUntilDue       int             `json:"days_until_due"`
	AtRisk             bool            `json:"at_risk"`
}

type PropertyForecast struct {
	PropertyID      uuid.UUID         `json:"property_id"`
	Title           string            `json:"title"`
	Status          string            `json:"status"`
	TotalShares     int64             `json:"total_shares"`
	AvailableShares int64             `json:"available_shares"`
	PlanTotal       decimal.Decimal   `json:"plan_total"`
	PlanPaid        decimal.Decimal   `json:"plan_paid"`
	FundedRatio     decimal.Decimal   `json:"funded_ratio"`
	ProjectedRatio  decimal.Decimal   `json:"projected_ratio"`
	TotalShortfall  decimal.Decimal   `json:"total_shortfall"`
	AsOf            time.Time         `json:"as_of"`
	Tranches        []TrancheForecast `json:"tranches"`
}

type committedRow struct {
	Step  int
	Total decimal.Decimal
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// PropertyForecast returns per-tranche paid, pending commitments and the shortfall that
// would remain if every pending application were accepted.
func (s *Service) PropertyForecast(ctx context.Context, propertyID uuid.UUID) (*PropertyForecast, error) {
	db := s.DB.WithContext(ctx)
	var p domain.Property
	if err := db.Where("id = ?", propertyID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}

	var tranches []domain.Tranche
	if err := db.Where("property_id = ?", propertyID).Order("ordinal ASC").Find(&tranches).Error; err != nil {
		return nil, err
	}

	var rows []committedRow
	if err := db.Model(&domain.Application{}).
		Select("step, COALESCE(SUM(requested_amount), 0) AS total").
		Where("property_id = ? AND status = ?", propertyID, domain.ApplicationStatusPending).
		Group("step").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	committed := make(map[int]decimal.Decimal, len(rows))
	for _, r := range rows {
		committed[r.Step] = r.Total
	}

	now := s.now()
	out := &PropertyForecast{
		PropertyID:      p.ID,
		Title:           p.Title,
		Status:          p.Status,
		TotalShares:     p.TotalShares,
		AvailableShares: p.AvailableShares,
		PlanTotal:       decimal.Zero,
		PlanPaid:        decimal.Zero,
		TotalShortfall:  decimal.Zero,
		AsOf:            now,
		Tranches:        make([]TrancheForecast, 0, len(tranches)),
	}
	projected := decimal.Zero
	for _, t := range tranches {
		c := decimal.Zero
		if t.Status != domain.TrancheStatusSettled {
			c = committed[t.Ordinal]
		}
		shortfall := decimal.Max(decimal.Zero, t.Total.Sub(t.Paid).Sub(c))
		f := TrancheForecast{
			TrancheID:          t.ID,
			Step:               t.Ordinal,
			EventDate:          t.EventDate,
			DueDate:            t.DueDate,
			Status:             t.Status,
			Outcome:            t.Outcome,
			Total:              t.Total,
			Paid:               t.Paid,
			Committed:          c,
			Outstanding:        t.Outstanding(),
			ProjectedShortfall: shortfall,
			DaysUntilDue:       daysUntil(now, t.DueDate),
		}
		f.AtRisk = t.Status != domain.TrancheStatusSettled && shortfall.IsPositive()
		out.Tranches = append(out.Tranches, f)

		out.PlanTotal = out.PlanTotal.Add(t.Total)
		out.PlanPaid = out.PlanPaid.Add(t.Paid)
		out.TotalShortfall = out.TotalShortfall.Add(shortfall)
		projected = projected.Add(decimal.Min(t.Total, t.Paid.Add(c)))
	}
	if out.PlanTotal.IsPositive() {
		out.FundedRatio = out.PlanPaid.DivRound(out.PlanTotal, 4)
		out.ProjectedRatio = projected.DivRound(out.PlanTotal, 4)
	}
	return out, nil
}

func daysUntil(now, due time.Time) int {
	return int(math.Ceil(due.Sub(now).Hours() / 24))
}
