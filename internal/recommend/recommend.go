// Package recommend builds a consensus recommendation for a symbol from the
// latest signal of each strategy.
package recommend

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Engine combines per-strategy signals into one actionable call. Signals
// below the confidence floor are ignored; the side with more supporting
// strategies wins, ties produce HOLD.
type Engine struct {
	minConfidence float64
	backtest      config.Backtest
}

// NewEngine creates an Engine. minConfidence is the floor a signal must meet
// to count toward the consensus; backtest supplies the account sizing and
// bracket parameters.
func NewEngine(minConfidence float64, backtest config.Backtest) *Engine {
	return &Engine{minConfidence: minConfidence, backtest: backtest}
}

// Generate produces the recommendation for one symbol on analysisDate.
// signals should hold each strategy's signal for that date; entryPrice is the
// symbol's close on the date. A HOLD recommendation with zero confidence is
// returned when no side reaches consensus.
func (e *Engine) Generate(symbol string, analysisDate time.Time, signals []domain.Signal, entryPrice float64) domain.Recommendation {
	rec := domain.Recommendation{
		Symbol:       symbol,
		AnalysisDate: domain.Day(analysisDate),
		Action:       domain.Hold,
		EntryPrice:   entryPrice,
	}

	var buys, sells []domain.Signal
	for _, sig := range signals {
		if sig.Strength < e.minConfidence {
			continue
		}
		switch sig.Action {
		case domain.Buy:
			buys = append(buys, sig)
		case domain.Sell:
			sells = append(sells, sig)
		}
	}

	var supporting []domain.Signal
	switch {
	case len(buys) > len(sells):
		rec.Action = domain.Buy
		supporting = buys
	case len(sells) > len(buys):
		rec.Action = domain.Sell
		supporting = sells
	default:
		return rec
	}

	// Deterministic ordering regardless of caller's signal order.
	sort.Slice(supporting, func(i, j int) bool {
		return supporting[i].Strategy < supporting[j].Strategy
	})

	var total float64
	reasons := make([]string, 0, len(supporting))
	for _, sig := range supporting {
		total += sig.Strength
		rec.Strategies = append(rec.Strategies, sig.Strategy)
		reasons = append(reasons, fmt.Sprintf("%s: %s", sig.Strategy, sig.Reason))
	}
	rec.Confidence = total / float64(len(supporting))
	rec.Reasoning = strings.Join(reasons, " | ")

	if rec.Action == domain.Buy {
		rec.StopLoss = entryPrice * (1 - e.backtest.StopLossPct)
		rec.TakeProfit = entryPrice * (1 + e.backtest.TakeProfitPct)
	} else {
		rec.StopLoss = entryPrice * (1 + e.backtest.StopLossPct)
		rec.TakeProfit = entryPrice * (1 - e.backtest.TakeProfitPct)
	}

	riskPerShare := entryPrice * e.backtest.StopLossPct
	if riskPerShare > 0 {
		rec.PositionSize = int64(e.backtest.InitialBalance * e.backtest.RiskPerTrade / riskPerShare)
	}
	return rec
}
