package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketlab/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ ResultStore = (*SQLiteStore)(nil)
var _ RecommendationStore = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)
var _ Catalog = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore, RecommendationStore, RunStore, and
// Catalog backed by a SQLite database. All writes are single-statement
// upserts, so each key is atomic even if the process dies mid-run.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The batch worker pool upserts concurrently; SQLite allows one writer at
	// a time, so funnel everything through a single connection and writes
	// queue instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// WAL mode so the dashboard server can read while a batch writes; the
	// busy timeout covers contention with that second process.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS strategy_results (
			symbol          TEXT NOT NULL,
			strategy        TEXT NOT NULL,
			date_run        TEXT NOT NULL,
			period_start    TEXT NOT NULL,
			period_end      TEXT NOT NULL,
			initial_balance REAL NOT NULL,
			final_balance   REAL NOT NULL,
			total_returns   REAL NOT NULL,
			total_trades    INTEGER NOT NULL,
			winning_trades  INTEGER NOT NULL,
			losing_trades   INTEGER NOT NULL,
			win_rate        REAL NOT NULL,
			max_drawdown    REAL NOT NULL,
			sharpe_ratio    REAL NOT NULL,
			trades          TEXT NOT NULL,
			PRIMARY KEY (symbol, strategy, date_run)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_date ON strategy_results(date_run)`,

		`CREATE TABLE IF NOT EXISTS recommendations (
			symbol        TEXT NOT NULL,
			analysis_date TEXT NOT NULL,
			action        TEXT NOT NULL,
			confidence    REAL NOT NULL,
			entry_price   REAL NOT NULL,
			stop_loss     REAL NOT NULL,
			take_profit   REAL NOT NULL,
			position_size INTEGER NOT NULL,
			strategies    TEXT NOT NULL,
			reasoning     TEXT NOT NULL,
			PRIMARY KEY (symbol, analysis_date)
		)`,

		`CREATE TABLE IF NOT EXISTS run_summaries (
			run_date          TEXT NOT NULL,
			started           TEXT NOT NULL,
			finished          TEXT NOT NULL,
			dry_run           INTEGER NOT NULL,
			symbols_attempted INTEGER NOT NULL,
			symbols_succeeded INTEGER NOT NULL,
			errors            TEXT NOT NULL,
			PRIMARY KEY (run_date, started)
		)`,

		`CREATE TABLE IF NOT EXISTS catalog (
			symbol     TEXT PRIMARY KEY,
			first_date TEXT NOT NULL,
			last_date  TEXT NOT NULL,
			bar_count  INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveResult upserts a backtest result keyed by (symbol, strategy, date_run).
func (s *SQLiteStore) SaveResult(ctx context.Context, res *domain.StrategyResult) error {
	trades, err := json.Marshal(res.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO strategy_results
		(symbol, strategy, date_run, period_start, period_end,
		 initial_balance, final_balance, total_returns,
		 total_trades, winning_trades, losing_trades, win_rate,
		 max_drawdown, sharpe_ratio, trades)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, strategy, date_run) DO UPDATE SET
		 period_start=excluded.period_start,
		 period_end=excluded.period_end,
		 initial_balance=excluded.initial_balance,
		 final_balance=excluded.final_balance,
		 total_returns=excluded.total_returns,
		 total_trades=excluded.total_trades,
		 winning_trades=excluded.winning_trades,
		 losing_trades=excluded.losing_trades,
		 win_rate=excluded.win_rate,
		 max_drawdown=excluded.max_drawdown,
		 sharpe_ratio=excluded.sharpe_ratio,
		 trades=excluded.trades`,
		res.Symbol, res.Strategy, day(res.DateRun), day(res.PeriodStart), day(res.PeriodEnd),
		res.InitialBal, res.FinalBalance, res.TotalReturn,
		res.TotalTrades, res.WinningTrades, res.LosingTrades, res.WinRate,
		res.MaxDrawdown, res.SharpeRatio, string(trades),
	)
	return err
}

// GetResult retrieves one backtest result, or nil if absent.
func (s *SQLiteStore) GetResult(ctx context.Context, symbol, strategy string, dateRun time.Time) (*domain.StrategyResult, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		symbol, strategy, date_run, period_start, period_end,
		initial_balance, final_balance, total_returns,
		total_trades, winning_trades, losing_trades, win_rate,
		max_drawdown, sharpe_ratio, trades
		FROM strategy_results
		WHERE symbol = ? AND strategy = ? AND date_run = ?`,
		symbol, strategy, day(dateRun))

	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return res, err
}

// ResultsForDate returns all results for one run date. When symbols is
// non-empty the result set is limited to those symbols.
func (s *SQLiteStore) ResultsForDate(ctx context.Context, dateRun time.Time, symbols []string) ([]domain.StrategyResult, error) {
	query := `SELECT
		symbol, strategy, date_run, period_start, period_end,
		initial_balance, final_balance, total_returns,
		total_trades, winning_trades, losing_trades, win_rate,
		max_drawdown, sharpe_ratio, trades
		FROM strategy_results WHERE date_run = ?`
	args := []any{day(dateRun)}

	if len(symbols) > 0 {
		query += " AND symbol IN (?" + strings.Repeat(",?", len(symbols)-1) + ")"
		for _, sym := range symbols {
			args = append(args, sym)
		}
	}
	query += " ORDER BY symbol, strategy"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StrategyResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// HasResults reports whether any result exists for (symbol, dateRun).
func (s *SQLiteStore) HasResults(ctx context.Context, symbol string, dateRun time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM strategy_results WHERE symbol = ? AND date_run = ?`,
		symbol, day(dateRun)).Scan(&n)
	return n > 0, err
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*domain.StrategyResult, error) {
	var res domain.StrategyResult
	var dateRun, periodStart, periodEnd, trades string
	err := row.Scan(
		&res.Symbol, &res.Strategy, &dateRun, &periodStart, &periodEnd,
		&res.InitialBal, &res.FinalBalance, &res.TotalReturn,
		&res.TotalTrades, &res.WinningTrades, &res.LosingTrades, &res.WinRate,
		&res.MaxDrawdown, &res.SharpeRatio, &trades,
	)
	if err != nil {
		return nil, err
	}

	if res.DateRun, err = parseDay(dateRun); err != nil {
		return nil, err
	}
	if res.PeriodStart, err = parseDay(periodStart); err != nil {
		return nil, err
	}
	if res.PeriodEnd, err = parseDay(periodEnd); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(trades), &res.Trades); err != nil {
		return nil, fmt.Errorf("malformed trades record for %s/%s: %w", res.Symbol, res.Strategy, err)
	}
	return &res, nil
}

// ---------------------------------------------------------------------------
// RecommendationStore implementation
// ---------------------------------------------------------------------------

// SaveRecommendation upserts a recommendation keyed by (symbol, analysis_date).
func (s *SQLiteStore) SaveRecommendation(ctx context.Context, rec *domain.Recommendation) error {
	strategies, err := json.Marshal(rec.Strategies)
	if err != nil {
		return fmt.Errorf("marshal strategies: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO recommendations
		(symbol, analysis_date, action, confidence,
		 entry_price, stop_loss, take_profit, position_size, strategies, reasoning)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol, analysis_date) DO UPDATE SET
		 action=excluded.action,
		 confidence=excluded.confidence,
		 entry_price=excluded.entry_price,
		 stop_loss=excluded.stop_loss,
		 take_profit=excluded.take_profit,
		 position_size=excluded.position_size,
		 strategies=excluded.strategies,
		 reasoning=excluded.reasoning`,
		rec.Symbol, day(rec.AnalysisDate), string(rec.Action), rec.Confidence,
		rec.EntryPrice, rec.StopLoss, rec.TakeProfit, rec.PositionSize,
		string(strategies), rec.Reasoning,
	)
	return err
}

// LatestRecommendation returns the most recent recommendation for symbol, or
// nil when none exists.
func (s *SQLiteStore) LatestRecommendation(ctx context.Context, symbol string) (*domain.Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		symbol, analysis_date, action, confidence,
		entry_price, stop_loss, take_profit, position_size, strategies, reasoning
		FROM recommendations WHERE symbol = ?
		ORDER BY analysis_date DESC LIMIT 1`, symbol)

	var rec domain.Recommendation
	var analysisDate, action, strategies string
	err := row.Scan(
		&rec.Symbol, &analysisDate, &action, &rec.Confidence,
		&rec.EntryPrice, &rec.StopLoss, &rec.TakeProfit, &rec.PositionSize,
		&strategies, &rec.Reasoning,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.Action = domain.Direction(action)
	if rec.AnalysisDate, err = parseDay(analysisDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(strategies), &rec.Strategies); err != nil {
		return nil, fmt.Errorf("malformed strategies record for %s: %w", rec.Symbol, err)
	}
	return &rec, nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRunSummary records the outcome of one orchestrator invocation.
func (s *SQLiteStore) SaveRunSummary(ctx context.Context, sum *domain.RunSummary) error {
	errs, err := json.Marshal(sum.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO run_summaries
		(run_date, started, finished, dry_run, symbols_attempted, symbols_succeeded, errors)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(run_date, started) DO UPDATE SET
		 finished=excluded.finished,
		 dry_run=excluded.dry_run,
		 symbols_attempted=excluded.symbols_attempted,
		 symbols_succeeded=excluded.symbols_succeeded,
		 errors=excluded.errors`,
		day(sum.RunDate), sum.Started.UTC().Format(time.RFC3339Nano),
		sum.Finished.UTC().Format(time.RFC3339Nano),
		boolInt(sum.DryRun), sum.SymbolsAttempted, sum.SymbolsSucceeded, string(errs),
	)
	return err
}

// ListRunSummaries returns the most recent run summaries, newest first.
func (s *SQLiteStore) ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_date, started, finished, dry_run, symbols_attempted, symbols_succeeded, errors
		FROM run_summaries ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunSummary
	for rows.Next() {
		var sum domain.RunSummary
		var runDate, started, finished, errs string
		var dryRun int
		if err := rows.Scan(&runDate, &started, &finished, &dryRun,
			&sum.SymbolsAttempted, &sum.SymbolsSucceeded, &errs); err != nil {
			return nil, err
		}
		if sum.RunDate, err = parseDay(runDate); err != nil {
			return nil, err
		}
		if sum.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		if sum.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, err
		}
		sum.DryRun = dryRun != 0
		if err := json.Unmarshal([]byte(errs), &sum.Errors); err != nil {
			return nil, fmt.Errorf("malformed errors record: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Catalog implementation
// ---------------------------------------------------------------------------

// UpdateCatalog widens the catalog entry for symbol to cover [first, last]
// and adds barCount to the stored total. Callers must count only newly stored
// bars; dates that replaced existing records would inflate the total.
func (s *SQLiteStore) UpdateCatalog(ctx context.Context, symbol string, first, last time.Time, barCount int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO catalog
		(symbol, first_date, last_date, bar_count)
		VALUES (?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
		 first_date = MIN(first_date, excluded.first_date),
		 last_date  = MAX(last_date, excluded.last_date),
		 bar_count  = bar_count + excluded.bar_count`,
		symbol, day(first), day(last), barCount,
	)
	return err
}

// CatalogEntry returns the recorded range for symbol.
func (s *SQLiteStore) CatalogEntry(ctx context.Context, symbol string) (first, last time.Time, barCount int, ok bool, err error) {
	var firstStr, lastStr string
	err = s.db.QueryRowContext(ctx,
		`SELECT first_date, last_date, bar_count FROM catalog WHERE symbol = ?`,
		symbol).Scan(&firstStr, &lastStr, &barCount)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, time.Time{}, 0, false, err
	}
	if first, err = parseDay(firstStr); err != nil {
		return time.Time{}, time.Time{}, 0, false, err
	}
	if last, err = parseDay(lastStr); err != nil {
		return time.Time{}, time.Time{}, 0, false, err
	}
	return first, last, barCount, true, nil
}

// ListCatalogSymbols returns all symbols present in the catalog, sorted.
func (s *SQLiteStore) ListCatalogSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM catalog ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func day(t time.Time) string {
	return domain.Day(t).Format(domain.DateFormat)
}

func parseDay(s string) (time.Time, error) {
	return time.Parse(domain.DateFormat, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
