package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"marketlab/internal/domain"
	"marketlab/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// AlpacaFetcher fetches daily OHLCV bars from the Alpaca market-data API.
type AlpacaFetcher struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials. An
// empty dataURL uses the SDK default endpoint. rateLimitPerMin bounds the
// request rate across all callers sharing this fetcher.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL string, rateLimitPerMin int) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 180
	}

	return &AlpacaFetcher{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(rateLimitPerMin),
	}
}

// Name returns the provider identifier.
func (f *AlpacaFetcher) Name() string { return "alpaca" }

// FetchBars fetches daily bars for symbol with dates in [start, end].
func (f *AlpacaFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	alpacaBars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     domain.Day(start),
		End:       domain.Day(end).Add(24*time.Hour - time.Second),
		Feed:      "iex",
	})
	if err != nil {
		if isPermanentAPIError(err) {
			return nil, Permanent("fetching %s: %w", symbol, err)
		}
		return nil, fmt.Errorf("fetching %s: %w", symbol, err)
	}

	bars := make([]domain.PriceBar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bar := domain.PriceBar{
			Symbol: strings.ToUpper(symbol),
			Date:   domain.Day(ab.Timestamp),
			Open:   ab.Open,
			High:   ab.High,
			Low:    ab.Low,
			Close:  ab.Close,
			Volume: int64(ab.Volume),
		}
		if err := bar.Validate(); err != nil {
			// A malformed bar from the provider will be malformed on every
			// retry; classify as permanent so the symbol is failed outright.
			return nil, Permanent("provider returned malformed bar: %w", err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// isPermanentAPIError classifies provider errors that retrying cannot fix.
// The Alpaca SDK surfaces HTTP failures as formatted errors carrying the
// status code.
func isPermanentAPIError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"404", "invalid symbol", "not found", "forbidden", "422",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
