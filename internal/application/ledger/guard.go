package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brickshare-backend/internal/infrastructure/locks"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeaseTTL = 30 * time.Second
	defaultAttempts = 3
)

// Guard serializes work on one property across intake, sweep and finalize, and retries
// the unit of work when an optimistic version check fails. Different properties never
// wait on each other.
type Guard struct {
	Locker   locks.Locker
	LeaseTTL time.Duration
	Attempts int
}

// Run executes fn while holding the property lease.
func (g *Guard) Run(ctx context.Context, propertyID uuid.UUID, fn func(ctx context.Context) error) error {
	ttl := g.LeaseTTL
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	attempts := g.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	if g.Locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, ttl)
		lease, err := g.Locker.Acquire(lockCtx, locks.PropertyKey(propertyID), ttl)
		cancel()
		if err != nil {
			if errors.Is(err, locks.ErrNotAcquired) {
				return ErrPropertyLockTaken
			}
			return fmt.Errorf("acquire property lease: %w", err)
		}
		defer func() {
			if err := lease.Release(context.Background()); err != nil {
				log.Warn().Err(err).Str("property_id", propertyID.String()).Msg("Failed to release property lease")
			}
		}()
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		log.Debug().Str("property_id", propertyID.String()).Int("attempt", i+1).Msg("Version conflict, retrying")
	}
	return err
}
