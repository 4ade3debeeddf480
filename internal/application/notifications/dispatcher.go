package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brickshare-backend/internal/application/emails"
	"brickshare-backend/internal/domain"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultBatchSize   = 100
	defaultMaxAttempts = 5
)

var errUnknownKind = errors.New("unknown notification kind")

// Dispatcher delivers outbox notifications written by settlement transactions.
// Rows that fail stay unsent and are retried on the next call until MaxAttempts.
type Dispatcher struct {
	DB          *gorm.DB
	Sender      emails.Sender
	BatchSize   int
	MaxAttempts int
	Now         func() time.Time
}

type payload struct {
	PropertyTitle string          `json:"property_title"`
	Step          int             `json:"step"`
	Amount        decimal.Decimal `json:"amount"`
	Refunded      decimal.Decimal `json:"refunded"`
	Shares        int64           `json:"shares"`
	Branch        string          `json:"branch"`
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchPending sends one batch of unsent notifications and returns how many were delivered.
func (d *Dispatcher) DispatchPending(ctx context.Context) (int, error) {
	if d.Sender == nil {
		return 0, nil
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	db := d.DB.WithContext(ctx)
	var pending []domain.Notification
	if err := db.Where("sent_at IS NULL AND attempts < ?", maxAttempts).
		Order(`"createdAt" ASC`).
		Limit(batch).
		Find(&pending).Error; err != nil {
		return 0, err
	}

	sent := 0
	for i := range pending {
		n := &pending[i]
		err := d.deliver(ctx, n)
		if err == nil {
			now := d.now()
			if err := db.Model(n).Updates(map[string]interface{}{"sent_at": now, "attempts": n.Attempts + 1}).Error; err != nil {
				return sent, err
			}
			sent++
			continue
		}

		attempts := n.Attempts + 1
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, errUnknownKind) {
			attempts = maxAttempts
		}
		log.Warn().Err(err).
			Str("notification_id", n.ID.String()).
			Str("kind", n.Kind).
			Int("attempts", attempts).
			Msg("Notification delivery failed")
		if err := db.Model(n).Update("attempts", attempts).Error; err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) error {
	var user domain.User
	if err := d.DB.WithContext(ctx).Where("user_id = ?", n.UserID).First(&user).Error; err != nil {
		return err
	}
	var p payload
	if len(n.Payload) > 0 {
		if err := json.Unmarshal(n.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}

	s := emails.Settlement{
		PropertyTitle: p.PropertyTitle,
		Step:          p.Step,
		Shares:        p.Shares,
		Branch:        p.Branch,
	}
	switch n.Kind {
	case domain.NotificationApplicationAccepted:
		s.Amount = money(p.Amount)
		return d.Sender.SendApplicationAccepted(ctx, user.Email, user.Fullname, s)
	case domain.NotificationApplicationRejected:
		s.Amount = money(p.Refunded)
		return d.Sender.SendApplicationRejected(ctx, user.Email, user.Fullname, s)
	case domain.NotificationPropertyFinalized:
		return d.Sender.SendPropertyFinalized(ctx, user.Email, user.Fullname, s)
	default:
		return fmt.Errorf("%w: %s", errUnknownKind, n.Kind)
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
