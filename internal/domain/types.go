// Package domain defines the core record types shared across marketlab:
// price bars, signals, trades, backtest results, recommendations, data gaps,
// and run summaries.
package domain

import (
	"fmt"
	"time"
)

// DateFormat is the canonical date layout used throughout marketlab.
const DateFormat = "2006-01-02"

// Day normalizes t to midnight UTC, the canonical representation of a
// trading date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Price data
// ---------------------------------------------------------------------------

// PriceBar is one trading day's OHLCV data for a symbol.
type PriceBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Validate checks the internal consistency of the bar. A bar that fails
// validation is a permanent data error, never retried.
func (b PriceBar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar has empty symbol")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("bar for %s has zero date", b.Symbol)
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar for %s on %s violates low <= open,close <= high (o=%g h=%g l=%g c=%g)",
			b.Symbol, b.Date.Format(DateFormat), b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar for %s on %s has negative volume %d",
			b.Symbol, b.Date.Format(DateFormat), b.Volume)
	}
	return nil
}

// PriceSeries is an ordered sequence of bars for one symbol, strictly
// increasing by date with no duplicates.
type PriceSeries struct {
	Symbol string
	Bars   []PriceBar
}

// NewPriceSeries builds a series from bars, sorting and rejecting duplicate
// or malformed entries.
func NewPriceSeries(symbol string, bars []PriceBar) (*PriceSeries, error) {
	s := &PriceSeries{Symbol: symbol, Bars: make([]PriceBar, len(bars))}
	copy(s.Bars, bars)
	sortBarsByDate(s.Bars)
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if i > 0 && !s.Bars[i-1].Date.Before(b.Date) {
			return nil, fmt.Errorf("series %s has duplicate or out-of-order date %s",
				symbol, b.Date.Format(DateFormat))
		}
	}
	return s, nil
}

func sortBarsByDate(bars []PriceBar) {
	for i := 1; i < len(bars); i++ {
		for j := i; j > 0 && bars[j].Date.Before(bars[j-1].Date); j-- {
			bars[j], bars[j-1] = bars[j-1], bars[j]
		}
	}
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes returns the close prices in date order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Slice returns the sub-series with dates in [start, end], inclusive.
func (s *PriceSeries) Slice(start, end time.Time) *PriceSeries {
	sub := &PriceSeries{Symbol: s.Symbol}
	for _, b := range s.Bars {
		if !b.Date.Before(start) && !b.Date.After(end) {
			sub.Bars = append(sub.Bars, b)
		}
	}
	return sub
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Direction is a strategy's directional call for one date.
type Direction string

// Direction constants.
const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Signal is one strategy's dated call on a symbol. Strength is a normalized
// magnitude of the triggering indicator in [0, 1].
type Signal struct {
	Strategy string    `json:"strategy"`
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Action   Direction `json:"action"`
	Strength float64   `json:"strength"`
	Reason   string    `json:"reason,omitempty"`
}

// ---------------------------------------------------------------------------
// Trades and backtest results
// ---------------------------------------------------------------------------

// Side is the direction of a simulated position.
type Side string

// Side constants.
const (
	Long  Side = "LONG"
	Short Side = "SHORT"
)

// ExitReason records why a simulated position was closed.
type ExitReason string

// ExitReason constants.
const (
	ExitSignal     ExitReason = "signal"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitPeriodEnd  ExitReason = "period_end"
)

// Trade is one simulated round-trip position. ExitDate is zero while the
// position is open.
type Trade struct {
	Symbol      string     `json:"symbol"`
	Side        Side       `json:"side"`
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date,omitempty"`
	ExitPrice   float64    `json:"exit_price,omitempty"`
	Shares      int64      `json:"shares"`
	StopLoss    float64    `json:"stop_loss"`
	TakeProfit  float64    `json:"take_profit"`
	RealizedPnL float64    `json:"realized_pnl"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
}

// Closed reports whether the trade has been exited.
func (t Trade) Closed() bool { return !t.ExitDate.IsZero() }

// EquityPoint is one day's mark of the simulated account value.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// StrategyResult is the backtest output for one (symbol, strategy, period).
type StrategyResult struct {
	Symbol        string        `json:"symbol"`
	Strategy      string        `json:"strategy"`
	DateRun       time.Time     `json:"date_run"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	InitialBal    float64       `json:"initial_balance"`
	FinalBalance  float64       `json:"final_balance"`
	TotalReturn   float64       `json:"total_returns"`
	TotalTrades   int           `json:"total_trades"`
	WinningTrades int           `json:"winning_trades"`
	LosingTrades  int           `json:"losing_trades"`
	WinRate       float64       `json:"win_rate"`
	MaxDrawdown   float64       `json:"max_drawdown"`
	SharpeRatio   float64       `json:"sharpe_ratio"`
	Trades        []Trade       `json:"trades"`
	EquityCurve   []EquityPoint `json:"equity_curve,omitempty"`
}

// ---------------------------------------------------------------------------
// Recommendations
// ---------------------------------------------------------------------------

// Recommendation is the latest actionable call for a symbol on a date.
type Recommendation struct {
	Symbol       string    `json:"symbol"`
	AnalysisDate time.Time `json:"analysis_date"`
	Action       Direction `json:"action"`
	Confidence   float64   `json:"confidence"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	PositionSize int64     `json:"position_size"`
	Strategies   []string  `json:"strategies"`
	Reasoning    string    `json:"reasoning"`
}

// ---------------------------------------------------------------------------
// Gaps and run summaries
// ---------------------------------------------------------------------------

// DataGap is a contiguous run of trading days missing from stored history.
type DataGap struct {
	Symbol    string    `json:"symbol"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	DayCount  int       `json:"day_count"`
}

// SymbolError records one symbol's failure during a batch run.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// RunSummary is the outcome of one orchestrator invocation.
type RunSummary struct {
	RunDate          time.Time     `json:"run_date"`
	Started          time.Time     `json:"started"`
	Finished         time.Time     `json:"finished"`
	DryRun           bool          `json:"dry_run"`
	SymbolsAttempted int           `json:"symbols_attempted"`
	SymbolsSucceeded int           `json:"symbols_succeeded"`
	Errors           []SymbolError `json:"errors,omitempty"`
}

// AllSucceeded reports whether every attempted symbol completed.
func (r RunSummary) AllSucceeded() bool {
	return r.SymbolsSucceeded == r.SymbolsAttempted
}
