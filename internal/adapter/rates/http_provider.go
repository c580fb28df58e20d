// Package rates adapts external exchange rate feeds to the RateProvider port.
package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"payee-ledger/config"
	"payee-ledger/internal/core/domain"
	"payee-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// HTTPProvider fetches quotes from a JSON rate feed over HTTP.
//
// The feed is expected to respond to GET {base_url}/latest?base=<FROM> with a
// body of the shape {"base":"USD","rates":{"EUR":0.92,...}}. Any transport
// failure, non-200 status, or missing pair maps to ErrRateUnavailable so
// callers never see upstream details.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewHTTPProvider creates a rate provider against the configured feed.
// The request timeout bounds how long a transfer can stall on a quote.
func NewHTTPProvider(cfg config.RatesConfig, logger zerolog.Logger) *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		logger:  logger.With().Str("component", "rate_provider").Logger(),
	}
}

// GetRate returns the current quote for the pair.
func (p *HTTPProvider) GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	if from == to {
		return &domain.RateQuote{
			From: from,
			To:   to,
			Rate: decimal.NewFromInt(1),
			AsOf: time.Now().UTC(),
		}, nil
	}

	reqURL := fmt.Sprintf("%s/latest?base=%s", p.baseURL, url.QueryEscape(from))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperror.ErrRateUnavailable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("pair", from+"/"+to).Msg("rate feed unreachable")
		return nil, apperror.ErrRateUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn().Int("status", resp.StatusCode).Str("pair", from+"/"+to).Msg("rate feed returned non-200")
		return nil, apperror.ErrRateUnavailable(fmt.Errorf("feed status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.ErrRateUnavailable(err)
	}

	result := gjson.GetBytes(body, "rates."+to)
	if !result.Exists() {
		p.logger.Warn().Str("pair", from+"/"+to).Msg("rate feed missing pair")
		return nil, apperror.ErrRateUnavailable(fmt.Errorf("pair %s/%s not quoted", from, to))
	}

	rate, err := decimal.NewFromString(result.String())
	if err != nil || !rate.IsPositive() {
		p.logger.Warn().Str("raw", result.String()).Msg("rate feed returned unusable rate")
		return nil, apperror.ErrRateUnavailable(fmt.Errorf("unusable rate %q", result.String()))
	}

	return &domain.RateQuote{
		From: from,
		To:   to,
		Rate: rate,
		AsOf: time.Now().UTC(),
	}, nil
}
