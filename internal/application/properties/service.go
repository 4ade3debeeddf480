package properties

import (
	"context"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPropertyNotFound = ledger.ErrPropertyNotFound

type Service struct {
	DB *gorm.DB
}

type TrancheView struct {
	domain.Tranche
	Outstanding decimal.Decimal `json:"outstanding"`
}

type PropertyView struct {
	domain.Property
	PricePerShare decimal.Decimal `json:"price_per_share"`
	Tranches      []TrancheView   `json:"tranches"`
	Shares        ledger.Snapshot `json:"shares"`
}

// GetProperty returns the property, its payment plan and its share accounting.
func (s *Service) GetProperty(ctx context.Context, propertyID uuid.UUID) (*PropertyView, error) {
	db := s.DB.WithContext(ctx)
	var p domain.Property
	if err := db.Where("id = ?", propertyID).First(&p).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPropertyNotFound
		}
		return nil, err
	}
	var tranches []domain.Tranche
	if err := db.Where("property_id = ?", propertyID).Order("ordinal ASC").Find(&tranches).Error; err != nil {
		return nil, err
	}
	snap, err := ledger.TakeSnapshot(db, propertyID)
	if err != nil {
		return nil, err
	}

	view := &PropertyView{
		Property:      p,
		PricePerShare: p.PricePerShare().Round(2),
		Tranches:      make([]TrancheView, 0, len(tranches)),
		Shares:        snap,
	}
	for _, t := range tranches {
		view.Tranches = append(view.Tranches, TrancheView{Tranche: t, Outstanding: t.Outstanding()})
	}
	return view, nil
}

// AuditTrail returns the property's events oldest first, optionally filtered by type.
func (s *Service) AuditTrail(ctx context.Context, propertyID uuid.UUID, eventType string) ([]domain.AuditEvent, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&domain.Property{}).Where("id = ?", propertyID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrPropertyNotFound
	}

	q := s.DB.WithContext(ctx).Where("property_id = ?", propertyID)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var events []domain.AuditEvent
	if err := q.Order(`"createdAt" ASC`).Find(&events).Error; err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	return events, nil
}

// ListProperties returns properties newest first, optionally filtered by status.
func (s *Service) ListProperties(ctx context.Context, status string) ([]domain.Property, error) {
	q := s.DB.WithContext(ctx).Model(&domain.Property{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.Property
	if err := q.Order(`"createdAt" DESC`).Find(&out).Error; err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Property{}
	}
	return out, nil
}
