package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payee-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// RateCache holds bounded-TTL exchange rate snapshots. Entries expire on
// their own; the cache is never consulted for balance correctness, only to
// avoid hammering the upstream rate API.
type RateCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRateCache creates a Redis-backed rate snapshot cache.
func NewRateCache(client *goredis.Client, ttl time.Duration) *RateCache {
	return &RateCache{
		client: client,
		prefix: "rates:",
		ttl:    ttl,
	}
}

func (c *RateCache) key(from, to string) string {
	return c.prefix + from + ":" + to
}

// Get returns the cached quote for the pair, or nil, nil on a miss.
func (c *RateCache) Get(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	val, err := c.client.Get(ctx, c.key(from, to)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis rate get: %w", err)
	}

	quote := &domain.RateQuote{}
	if err := json.Unmarshal(val, quote); err != nil {
		return nil, fmt.Errorf("unmarshal cached rate: %w", err)
	}
	return quote, nil
}

// Set stores a quote with the configured TTL.
func (c *RateCache) Set(ctx context.Context, quote *domain.RateQuote) error {
	val, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal rate: %w", err)
	}
	if err := c.client.Set(ctx, c.key(quote.From, quote.To), val, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}
