package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flipscout/flipscout/internal/domain"
)

// ConsensusCache implements domain.ConsensusCache using Redis string values.
// Each consensus is stored as JSON at key "consensus:{identity}" with a TTL,
// so a stale entry ages out rather than feeding old fair values back into
// scoring.
type ConsensusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewConsensusCache creates a ConsensusCache backed by the given Client.
// A non-positive ttl defaults to 15 minutes.
func NewConsensusCache(c *Client, ttl time.Duration) *ConsensusCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &ConsensusCache{rdb: c.Underlying(), ttl: ttl}
}

func consensusKey(id domain.Identity) string {
	return "consensus:" + id.Key()
}

// RecordConsensus stores a computed consensus with the cache TTL.
func (cc *ConsensusCache) RecordConsensus(ctx context.Context, id domain.Identity, c domain.PriceConsensus) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: marshal consensus %s: %w", id.Key(), err)
	}
	if err := cc.rdb.Set(ctx, consensusKey(id), data, cc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set consensus %s: %w", id.Key(), err)
	}
	return nil
}

// GetConsensus retrieves a cached consensus. It returns domain.ErrNotFound on
// a miss or an expired key.
func (cc *ConsensusCache) GetConsensus(ctx context.Context, id domain.Identity) (domain.PriceConsensus, error) {
	data, err := cc.rdb.Get(ctx, consensusKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PriceConsensus{}, domain.ErrNotFound
		}
		return domain.PriceConsensus{}, fmt.Errorf("redis: get consensus %s: %w", id.Key(), err)
	}

	var c domain.PriceConsensus
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.PriceConsensus{}, fmt.Errorf("redis: unmarshal consensus %s: %w", id.Key(), err)
	}
	return c, nil
}

// Compile-time interface check.
var _ domain.ConsensusCache = (*ConsensusCache)(nil)
