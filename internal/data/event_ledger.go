package data

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// eventTTL bounds the growth of the processed-events set. The expiry slides
// forward on every write, so the set only ages out after a quiet day.
const eventTTL = 24 * time.Hour

// EventLedgerRepo implements biz.EventLedgerRepo over a Redis set.
type EventLedgerRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewEventLedgerRepo creates a new event ledger repository.
func NewEventLedgerRepo(rdb *redis.Client, logger log.Logger) *EventLedgerRepo {
	return &EventLedgerRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// IsProcessed reports whether the event identity is already in the ledger.
func (r *EventLedgerRepo) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if r.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	member, err := r.rdb.SIsMember(ctx, CacheKeyProcessedEvents, eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event membership: %w", err)
	}

	return member, nil
}

// MarkProcessed adds the event identity to the ledger and slides the set's
// expiry forward by the dedup window.
func (r *EventLedgerRepo) MarkProcessed(ctx context.Context, eventID string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.SAdd(ctx, CacheKeyProcessedEvents, eventID).Err(); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	if err := r.rdb.Expire(ctx, CacheKeyProcessedEvents, eventTTL).Err(); err != nil {
		// The entry is recorded; a failed expiry refresh only delays cleanup.
		r.logger.Warnw("failed to refresh processed events TTL", "error", err)
	}

	return nil
}
