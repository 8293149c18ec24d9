// Package orchestrator drives the daily batch: per symbol it validates or
// fetches price data, runs every strategy through the backtest simulator and
// analyzer, generates a consensus recommendation, and persists the results.
// It also executes backfill plans produced by the gaps package.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"marketlab/internal/analyzer"
	"marketlab/internal/backtest"
	"marketlab/internal/calendar"
	"marketlab/internal/config"
	"marketlab/internal/domain"
	"marketlab/internal/fetch"
	"marketlab/internal/gaps"
	"marketlab/internal/recommend"
	"marketlab/internal/store"
	"marketlab/internal/strategy"
	"marketlab/internal/util"
)

// Options holds the orchestrator's collaborators.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Calendar *calendar.Calendar
	Fetcher  fetch.Fetcher
	Bars     store.BarStore
	Results  store.ResultStore
	Recs     store.RecommendationStore
	Runs     store.RunStore
	Catalog  store.Catalog
}

// RunOptions modify one batch invocation.
type RunOptions struct {
	// Symbols overrides the configured universe when non-empty.
	Symbols []string

	// DryRun performs every step except persistence.
	DryRun bool

	// Force bypasses the trading-day gate and the already-processed skip,
	// re-fetching and re-deriving everything for the target dates.
	Force bool
}

// Orchestrator is the batch controller.
type Orchestrator struct {
	cfg      *config.Config
	log      *slog.Logger
	cal      *calendar.Calendar
	fetcher  fetch.Fetcher
	bars     store.BarStore
	results  store.ResultStore
	recs     store.RecommendationStore
	runs     store.RunStore
	catalog  store.Catalog
	registry *strategy.Registry
	sim      *backtest.Simulator
	engine   *recommend.Engine
}

// New creates an Orchestrator from its collaborators.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:      opts.Config,
		log:      opts.Logger.With("component", "orchestrator"),
		cal:      opts.Calendar,
		fetcher:  opts.Fetcher,
		bars:     opts.Bars,
		results:  opts.Results,
		recs:     opts.Recs,
		runs:     opts.Runs,
		catalog:  opts.Catalog,
		registry: strategy.DefaultRegistry(opts.Config.Strategies),
		sim:      backtest.New(opts.Config.Backtest),
		engine:   recommend.NewEngine(opts.Config.Run.MinConfidence, opts.Config.Backtest),
	}
}

// RunForDate executes the batch for one date. On a non-trading day without
// Force the run is skipped and the summary reports zero attempted symbols.
// Per-symbol failures are recorded in the summary, never returned as an
// error; the error return covers batch-level failures only.
func (o *Orchestrator) RunForDate(ctx context.Context, date time.Time, opts RunOptions) (*domain.RunSummary, error) {
	day := domain.Day(date)
	summary := &domain.RunSummary{
		RunDate: day,
		Started: time.Now().UTC(),
		DryRun:  opts.DryRun,
	}

	if !o.cal.IsTradingDay(day) && !opts.Force {
		o.log.Info("skipping non-trading day", "date", day.Format(domain.DateFormat))
		summary.Finished = time.Now().UTC()
		return summary, nil
	}

	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = o.cfg.Market.Symbols
	}
	summary.SymbolsAttempted = len(symbols)

	o.log.Info("starting run",
		"date", day.Format(domain.DateFormat),
		"symbols", len(symbols),
		"dryRun", opts.DryRun,
		"force", opts.Force,
	)

	errsBySymbol := make(map[string]error, len(symbols))
	var mu sync.Mutex

	jobs := make(chan string, len(symbols))
	for _, s := range symbols {
		jobs <- s
	}
	close(jobs)

	workers := o.cfg.Run.MaxWorkers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					errsBySymbol[symbol] = ctx.Err()
					mu.Unlock()
					continue
				}
				err := o.processSymbol(ctx, symbol, day, opts)
				if err != nil {
					o.log.Error("symbol failed", "symbol", symbol, "err", err)
				}
				mu.Lock()
				errsBySymbol[symbol] = err
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Assemble the summary in input order so it is deterministic regardless
	// of worker scheduling.
	for _, symbol := range symbols {
		if err := errsBySymbol[symbol]; err != nil {
			summary.Errors = append(summary.Errors, domain.SymbolError{
				Symbol: symbol,
				Reason: err.Error(),
			})
			continue
		}
		summary.SymbolsSucceeded++
	}
	summary.Finished = time.Now().UTC()

	if !opts.DryRun {
		if err := o.runs.SaveRunSummary(ctx, summary); err != nil {
			return summary, fmt.Errorf("saving run summary: %w", err)
		}
	}

	o.log.Info("run finished",
		"date", day.Format(domain.DateFormat),
		"attempted", summary.SymbolsAttempted,
		"succeeded", summary.SymbolsSucceeded,
	)
	return summary, nil
}

// RunForRange executes the batch for every trading day in [start, end], in
// order. A batch-level error stops the range; since each (symbol, date) unit
// is idempotent, an interrupted range can simply be re-run.
func (o *Orchestrator) RunForRange(ctx context.Context, start, end time.Time, opts RunOptions) ([]domain.RunSummary, error) {
	var summaries []domain.RunSummary
	for _, day := range o.cal.TradingDaysBetween(start, end) {
		summary, err := o.RunForDate(ctx, day, opts)
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// Repair executes a backfill plan, one run per request date range.
func (o *Orchestrator) Repair(ctx context.Context, plan []gaps.BackfillRequest, opts RunOptions) ([]domain.RunSummary, error) {
	var summaries []domain.RunSummary
	for _, req := range plan {
		reqOpts := opts
		reqOpts.Symbols = []string{req.Symbol}
		reqOpts.Force = true
		got, err := o.RunForRange(ctx, req.Start, req.End, reqOpts)
		summaries = append(summaries, got...)
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

// processSymbol runs the full pipeline for one symbol on one date:
// fetch-or-validate, strategies, backtests, analysis, recommendation,
// persistence.
func (o *Orchestrator) processSymbol(ctx context.Context, symbol string, day time.Time, opts RunOptions) error {
	if !opts.Force {
		done, err := o.results.HasResults(ctx, symbol, day)
		if err != nil {
			return fmt.Errorf("checking existing results: %w", err)
		}
		if done {
			o.log.Debug("already processed", "symbol", symbol, "date", day.Format(domain.DateFormat))
			return nil
		}
	}

	historyStart := day.AddDate(0, 0, -o.cfg.Market.HistoryDays)
	series, err := o.loadSeries(ctx, symbol, historyStart, day, opts)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		return fmt.Errorf("no price data for %s through %s", symbol, day.Format(domain.DateFormat))
	}

	latestSignals := make([]domain.Signal, 0, len(o.registry.List()))
	for _, strat := range o.registry.All() {
		signals, err := strat.Evaluate(series)
		if err != nil {
			return fmt.Errorf("%s evaluate: %w", strat.Name(), err)
		}

		result := o.sim.Run(series, signals, strat.Name(), day)
		analyzer.Summarize(result)
		if !opts.DryRun {
			if err := o.results.SaveResult(ctx, result); err != nil {
				return fmt.Errorf("saving %s result: %w", strat.Name(), err)
			}
		}

		for _, sig := range signals {
			if domain.Day(sig.Date).Equal(day) {
				latestSignals = append(latestSignals, sig)
				break
			}
		}
	}

	entryPrice := series.Bars[series.Len()-1].Close
	rec := o.engine.Generate(symbol, day, latestSignals, entryPrice)
	if !opts.DryRun {
		if err := o.recs.SaveRecommendation(ctx, &rec); err != nil {
			return fmt.Errorf("saving recommendation: %w", err)
		}
	}

	o.log.Debug("symbol processed",
		"symbol", symbol,
		"bars", series.Len(),
		"recommendation", string(rec.Action),
	)
	return nil
}

// loadSeries returns the price series for [start, end], fetching any trading
// days missing from the store first. In dry-run mode fetched bars are merged
// in memory without being persisted.
func (o *Orchestrator) loadSeries(ctx context.Context, symbol string, start, end time.Time, opts RunOptions) (*domain.PriceSeries, error) {
	stored, err := o.bars.Dates(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored dates: %w", err)
	}

	var missing []time.Time
	for _, d := range o.cal.TradingDaysBetween(start, end) {
		if opts.Force || !stored[d] {
			missing = append(missing, d)
		}
	}

	var fetched []domain.PriceBar
	if len(missing) > 0 {
		fetchStart, fetchEnd := missing[0], missing[len(missing)-1]
		// Permanent errors stop the retry loop immediately; only transient
		// failures are retried with backoff.
		var permErr error
		err := util.Retry(ctx, o.cfg.Fetch.MaxAttempts, o.cfg.Fetch.BaseDelay(), func() error {
			var ferr error
			fetched, ferr = o.fetcher.FetchBars(ctx, symbol, fetchStart, fetchEnd)
			if fetch.IsPermanent(ferr) {
				permErr = ferr
				return nil
			}
			return ferr
		})
		if permErr != nil {
			return nil, fmt.Errorf("fetching %s: %w", symbol, permErr)
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", symbol, err)
		}

		if len(fetched) > 0 && !opts.DryRun {
			if err := o.bars.WriteBars(ctx, fetched); err != nil {
				return nil, fmt.Errorf("writing bars: %w", err)
			}
			// Re-fetched dates overwrite existing parquet records, so only
			// bars on previously unseen dates grow the catalog count.
			first, last := fetched[0].Date, fetched[0].Date
			newBars := 0
			for _, b := range fetched {
				if b.Date.Before(first) {
					first = b.Date
				}
				if b.Date.After(last) {
					last = b.Date
				}
				if !stored[domain.Day(b.Date)] {
					newBars++
				}
			}
			if err := o.catalog.UpdateCatalog(ctx, symbol, first, last, newBars); err != nil {
				return nil, fmt.Errorf("updating catalog: %w", err)
			}
		}
	}

	bars, err := o.bars.ReadBars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading bars: %w", err)
	}
	if opts.DryRun && len(fetched) > 0 {
		bars = mergeBars(bars, fetched)
	}
	return domain.NewPriceSeries(symbol, bars)
}

// mergeBars overlays fetched bars onto stored ones by date, fetched winning.
func mergeBars(stored, fetched []domain.PriceBar) []domain.PriceBar {
	byDate := make(map[time.Time]domain.PriceBar, len(stored)+len(fetched))
	for _, b := range stored {
		byDate[domain.Day(b.Date)] = b
	}
	for _, b := range fetched {
		byDate[domain.Day(b.Date)] = b
	}
	out := make([]domain.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
