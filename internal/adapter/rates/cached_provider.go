package rates

import (
	"context"

	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// QuoteCache is the subset of the Redis rate cache the decorator needs.
type QuoteCache interface {
	Get(ctx context.Context, from, to string) (*domain.RateQuote, error)
	Set(ctx context.Context, quote *domain.RateQuote) error
}

// CachedProvider decorates a RateProvider with a short-TTL cache.
// Cache failures degrade to the upstream provider; they never fail a quote.
type CachedProvider struct {
	upstream ports.RateProvider
	cache    QuoteCache
	logger   zerolog.Logger
}

func NewCachedProvider(upstream ports.RateProvider, cache QuoteCache, logger zerolog.Logger) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		logger:   logger.With().Str("component", "rate_cache").Logger(),
	}
}

func (p *CachedProvider) GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	cached, err := p.cache.Get(ctx, from, to)
	if err != nil {
		p.logger.Warn().Err(err).Msg("rate cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	quote, err := p.upstream.GetRate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, quote); err != nil {
		p.logger.Warn().Err(err).Msg("rate cache write failed")
	}
	return quote, nil
}
