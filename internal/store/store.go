// Package store defines storage interfaces for persisting and retrieving
// marketlab records: price bars, strategy results, recommendations, run
// summaries, and the symbol catalog.
package store

import (
	"context"
	"time"

	"marketlab/internal/domain"
)

// BarStore persists and retrieves daily OHLCV bars. Bars are append-only:
// writing the same (symbol, date) again replaces the stored bar, which only
// happens on an explicit force refresh.
type BarStore interface {
	// WriteBars persists a batch of bars.
	WriteBars(ctx context.Context, bars []domain.PriceBar) error

	// ReadBars returns bars for the symbol within [start, end], date-ordered.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)

	// Dates returns the set of dates with a stored bar for the symbol
	// within [start, end].
	Dates(ctx context.Context, symbol string, start, end time.Time) (map[time.Time]bool, error)
}

// ResultStore persists backtest results, keyed by (symbol, strategy, run date).
// Writes are whole-record upserts.
type ResultStore interface {
	SaveResult(ctx context.Context, res *domain.StrategyResult) error
	GetResult(ctx context.Context, symbol, strategy string, dateRun time.Time) (*domain.StrategyResult, error)

	// ResultsForDate returns all results recorded for one run date, across
	// symbols and strategies, ordered by (symbol, strategy).
	ResultsForDate(ctx context.Context, dateRun time.Time, symbols []string) ([]domain.StrategyResult, error)

	// HasResults reports whether any result exists for (symbol, dateRun).
	HasResults(ctx context.Context, symbol string, dateRun time.Time) (bool, error)
}

// RecommendationStore persists recommendations, keyed by (symbol, analysis date).
type RecommendationStore interface {
	SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error

	// LatestRecommendation returns the most recent recommendation for the
	// symbol, or nil if none exists.
	LatestRecommendation(ctx context.Context, symbol string) (*domain.Recommendation, error)
}

// RunStore persists run summaries.
type RunStore interface {
	SaveRunSummary(ctx context.Context, sum *domain.RunSummary) error
	ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error)
}

// Catalog maintains the symbol index: which symbols have bars and over what
// date range. It replaces directory scans as the source of truth for
// available data.
type Catalog interface {
	// UpdateCatalog extends the catalog entry for symbol to cover the given
	// dates and adds barCount to the total. barCount must count only newly
	// stored bars, not rewrites of existing dates.
	UpdateCatalog(ctx context.Context, symbol string, first, last time.Time, barCount int) error

	// CatalogEntry returns the recorded range for symbol, or ok=false if the
	// symbol has no stored bars.
	CatalogEntry(ctx context.Context, symbol string) (first, last time.Time, barCount int, ok bool, err error)

	// ListCatalogSymbols returns all symbols present in the catalog, sorted.
	ListCatalogSymbols(ctx context.Context) ([]string, error)
}
