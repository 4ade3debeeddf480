package portfolio

import (
	"context"

	"brickshare-backend/internal/application/ledger"
	"brickshare-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrUserNotFound = ledger.ErrUserNotFound

type Service struct {
	DB *gorm.DB
}

type Holding struct {
	InvestmentID   uuid.UUID       `json:"investment_id"`
	PropertyID     uuid.UUID       `json:"property_id"`
	PropertyTitle  string          `json:"property_title"`
	PropertyStatus string          `json:"property_status"`
	Shares         int64           `json:"shares"`
	TotalShares    int64           `json:"total_shares"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	Ownership      decimal.Decimal `json:"ownership"`
	Source         string          `json:"source"`
	CreatedAt      interface{}     `json:"created_at"`
}

type Wallet struct {
	UserID   uuid.UUID       `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Reserved decimal.Decimal `json:"reserved"`
	Invested decimal.Decimal `json:"invested"`
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Investments lists confirmed holdings with the property they belong to.
func (s *Service) Investments(ctx context.Context, userID uuid.UUID) ([]Holding, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	var invs []domain.Investment
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order(`"createdAt" DESC`).Find(&invs).Error; err != nil {
		return nil, err
	}
	if len(invs) == 0 {
		return []Holding{}, nil
	}

	ids := map[uuid.UUID]bool{}
	for _, inv := range invs {
		ids[inv.PropertyID] = true
	}
	propIDs := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		propIDs = append(propIDs, id)
	}
	var props []domain.Property
	if err := s.DB.WithContext(ctx).Where("id IN ?", propIDs).Select("id, title, status, total_shares").Find(&props).Error; err != nil {
		return nil, err
	}
	propMap := make(map[uuid.UUID]domain.Property, len(props))
	for _, p := range props {
		propMap[p.ID] = p
	}

	out := make([]Holding, 0, len(invs))
	for _, inv := range invs {
		p := propMap[inv.PropertyID]
		h := Holding{
			InvestmentID:   inv.ID,
			PropertyID:     inv.PropertyID,
			PropertyTitle:  p.Title,
			PropertyStatus: p.Status,
			Shares:         inv.Shares,
			TotalShares:    p.TotalShares,
			InvestedAmount: inv.InvestedAmount,
			Ownership:      decimal.Zero,
			Source:         inv.Source,
			CreatedAt:      inv.CreatedAt,
		}
		if p.TotalShares > 0 {
			h.Ownership = decimal.NewFromInt(inv.Shares).DivRound(decimal.NewFromInt(p.TotalShares), 4)
		}
		out = append(out, h)
	}
	return out, nil
}

// Applications lists the user's applications, optionally filtered by status.
func (s *Service) Applications(ctx context.Context, userID uuid.UUID, status string) ([]domain.Application, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var apps []domain.Application
	if err := q.Order(`"createdAt" DESC`).Find(&apps).Error; err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []domain.Application{}
	}
	return apps, nil
}

// Transactions lists the user's ledger entries, newest first.
func (s *Service) Transactions(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	var txs []domain.Transaction
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order(`"createdAt" DESC`).Find(&txs).Error; err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// Wallet returns the balance plus what is held by pending applications and confirmed investments.
func (s *Service) Wallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	u, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	w := &Wallet{UserID: u.UserID, Balance: u.WalletBalance}
	if err := s.DB.WithContext(ctx).Model(&domain.Application{}).
		Where("user_id = ? AND status = ?", userID, domain.ApplicationStatusPending).
		Select("COALESCE(SUM(requested_amount), 0)").
		Row().Scan(&w.Reserved); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.Investment{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(invested_amount), 0)").
		Row().Scan(&w.Invested); err != nil {
		return nil, err
	}
	return w, nil
}
