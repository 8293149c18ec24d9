// Package backtest replays one strategy's signals against a price series,
// producing a trade ledger and daily equity curve.
package backtest

import (
	"math"
	"time"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Simulator runs single-position backtests. One position is open at a time
// per (symbol, strategy); repeated entry signals while a position is open are
// ignored, not stacked.
type Simulator struct {
	cfg config.Backtest
}

// New creates a Simulator from the backtest configuration.
func New(cfg config.Backtest) *Simulator {
	return &Simulator{cfg: cfg}
}

// Run replays signals against series and returns the resulting ledger. A
// series or signal set too small to trade yields an empty result with
// FinalBalance == InitialBalance, not an error.
//
// Exits are checked in a fixed order each bar: stop-loss against the bar's
// low/high first, then take-profit, then an opposing signal at the close.
// When both stop and target are touched within one bar the stop fills.
func (s *Simulator) Run(series *domain.PriceSeries, signals []domain.Signal, strategyName string, dateRun time.Time) *domain.StrategyResult {
	result := &domain.StrategyResult{
		Symbol:       series.Symbol,
		Strategy:     strategyName,
		DateRun:      domain.Day(dateRun),
		InitialBal:   s.cfg.InitialBalance,
		FinalBalance: s.cfg.InitialBalance,
	}
	if series.Len() == 0 {
		return result
	}
	result.PeriodStart = series.Bars[0].Date
	result.PeriodEnd = series.Bars[series.Len()-1].Date

	byDate := make(map[time.Time]domain.Signal, len(signals))
	for _, sig := range signals {
		byDate[domain.Day(sig.Date)] = sig
	}

	balance := s.cfg.InitialBalance
	var open *domain.Trade

	closeTrade := func(t *domain.Trade, date time.Time, price float64, reason domain.ExitReason) {
		t.ExitDate = date
		t.ExitPrice = price
		t.ExitReason = reason
		if t.Side == domain.Long {
			t.RealizedPnL = (price - t.EntryPrice) * float64(t.Shares)
		} else {
			t.RealizedPnL = (t.EntryPrice - price) * float64(t.Shares)
		}
		balance += t.RealizedPnL
		result.Trades = append(result.Trades, *t)
	}

	for _, bar := range series.Bars {
		// Intraday bracket exits, starting the bar after entry.
		if open != nil && bar.Date.After(open.EntryDate) {
			if open.Side == domain.Long {
				switch {
				case bar.Low <= open.StopLoss:
					closeTrade(open, bar.Date, open.StopLoss, domain.ExitStopLoss)
					open = nil
				case bar.High >= open.TakeProfit:
					closeTrade(open, bar.Date, open.TakeProfit, domain.ExitTakeProfit)
					open = nil
				}
			} else {
				switch {
				case bar.High >= open.StopLoss:
					closeTrade(open, bar.Date, open.StopLoss, domain.ExitStopLoss)
					open = nil
				case bar.Low <= open.TakeProfit:
					closeTrade(open, bar.Date, open.TakeProfit, domain.ExitTakeProfit)
					open = nil
				}
			}
		}

		// Signal-driven transitions at the close.
		if sig, ok := byDate[domain.Day(bar.Date)]; ok {
			switch {
			case open == nil && sig.Action == domain.Buy:
				open = s.enter(bar, domain.Long, balance)
			case open == nil && sig.Action == domain.Sell && s.cfg.AllowShort:
				open = s.enter(bar, domain.Short, balance)
			case open != nil && open.Side == domain.Long && sig.Action == domain.Sell:
				closeTrade(open, bar.Date, bar.Close, domain.ExitSignal)
				open = nil
			case open != nil && open.Side == domain.Short && sig.Action == domain.Buy:
				closeTrade(open, bar.Date, bar.Close, domain.ExitSignal)
				open = nil
			}
		}

		equity := balance
		if open != nil {
			if open.Side == domain.Long {
				equity += (bar.Close - open.EntryPrice) * float64(open.Shares)
			} else {
				equity += (open.EntryPrice - bar.Close) * float64(open.Shares)
			}
		}
		result.EquityCurve = append(result.EquityCurve, domain.EquityPoint{Date: bar.Date, Value: equity})
	}

	// Forced close at the final bar.
	if open != nil {
		last := series.Bars[series.Len()-1]
		closeTrade(open, last.Date, last.Close, domain.ExitPeriodEnd)
		open = nil
		result.EquityCurve[len(result.EquityCurve)-1].Value = balance
	}

	result.FinalBalance = balance
	result.TotalTrades = len(result.Trades)
	for _, t := range result.Trades {
		switch {
		case t.RealizedPnL > 0:
			result.WinningTrades++
		case t.RealizedPnL < 0:
			result.LosingTrades++
		}
	}
	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades)
	}
	return result
}

// enter opens a position at the bar's close, sized to risk RiskPerTrade of
// the balance against the stop distance. Returns nil when the computed size
// rounds down to zero shares.
func (s *Simulator) enter(bar domain.PriceBar, side domain.Side, balance float64) *domain.Trade {
	entry := bar.Close
	stopDistance := entry * s.cfg.StopLossPct
	if stopDistance <= 0 {
		return nil
	}
	shares := int64(math.Floor(balance * s.cfg.RiskPerTrade / stopDistance))
	if shares <= 0 {
		return nil
	}

	t := &domain.Trade{
		Symbol:     bar.Symbol,
		Side:       side,
		EntryDate:  bar.Date,
		EntryPrice: entry,
		Shares:     shares,
	}
	if side == domain.Long {
		t.StopLoss = entry * (1 - s.cfg.StopLossPct)
		t.TakeProfit = entry * (1 + s.cfg.TakeProfitPct)
	} else {
		t.StopLoss = entry * (1 + s.cfg.StopLossPct)
		t.TakeProfit = entry * (1 - s.cfg.TakeProfitPct)
	}
	return t
}
