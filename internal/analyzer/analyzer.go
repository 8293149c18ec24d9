// Package analyzer derives performance metrics from backtest output: total
// return, drawdown, Sharpe ratio, rolling windowed metrics, and a passive
// buy-and-hold benchmark.
package analyzer

import (
	"math"
	"time"

	"marketlab/internal/domain"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 252

// Windows are the trailing spans, in trading days, used for rolling metrics.
var Windows = []int{7, 30, 90}

// WindowMetrics is one date's metrics over a trailing window. Windows with
// fewer observations than the window size use all available observations.
type WindowMetrics struct {
	Date        time.Time `json:"date"`
	Window      int       `json:"window"`
	Return      float64   `json:"return"`
	MaxDrawdown float64   `json:"max_drawdown"`
	Sharpe      float64   `json:"sharpe_ratio"`
}

// Comparison reports a strategy's return against the passive baseline.
type Comparison struct {
	StrategyReturn  float64 `json:"strategy_return"`
	BenchmarkReturn float64 `json:"benchmark_return"`
	Outperformance  float64 `json:"outperformance"`
}

// Summarize fills the derived metric fields of result from its equity curve
// and balances: TotalReturn, MaxDrawdown, and SharpeRatio.
func Summarize(result *domain.StrategyResult) {
	result.TotalReturn = TotalReturn(result.InitialBal, result.FinalBalance)
	values := equityValues(result.EquityCurve)
	result.MaxDrawdown = MaxDrawdown(values)
	result.SharpeRatio = SharpeRatio(DailyReturns(values))
}

// TotalReturn is the fractional gain over the initial balance, 0 when the
// initial balance is 0.
func TotalReturn(initial, final float64) float64 {
	if initial == 0 {
		return 0
	}
	return (final - initial) / initial
}

// MaxDrawdown is the maximum peak-to-trough decline of the equity values,
// expressed as a negative fraction of the peak. A monotonically rising curve
// yields 0.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for i, v := range values {
		if i == 0 || v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// DailyReturns converts equity values into day-over-day fractional returns.
// Days following a zero equity value are skipped.
func DailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// SharpeRatio annualizes mean daily return over its standard deviation.
// Returns 0 when fewer than 2 observations exist or the deviation is 0.
func SharpeRatio(dailyReturns []float64) float64 {
	if len(dailyReturns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range dailyReturns {
		sum += r
	}
	mean := sum / float64(len(dailyReturns))

	var sq float64
	for _, r := range dailyReturns {
		d := r - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(dailyReturns)-1))
	if stdev == 0 {
		return 0
	}
	return mean / stdev * math.Sqrt(tradingDaysPerYear)
}

// Rolling computes trailing-window metrics ending at every point of the
// equity curve, for each requested window size.
func Rolling(curve []domain.EquityPoint, windows []int) []WindowMetrics {
	values := equityValues(curve)
	out := make([]WindowMetrics, 0, len(curve)*len(windows))
	for i := range curve {
		for _, w := range windows {
			start := i - w + 1
			if start < 0 {
				start = 0
			}
			slice := values[start : i+1]
			out = append(out, WindowMetrics{
				Date:        curve[i].Date,
				Window:      w,
				Return:      TotalReturn(slice[0], slice[len(slice)-1]),
				MaxDrawdown: MaxDrawdown(slice),
				Sharpe:      SharpeRatio(DailyReturns(slice)),
			})
		}
	}
	return out
}

// BuyAndHold is the fractional return of holding the series from its first
// close to its last, 0 for series shorter than 2 bars.
func BuyAndHold(series *domain.PriceSeries) float64 {
	if series.Len() < 2 {
		return 0
	}
	return TotalReturn(series.Bars[0].Close, series.Bars[series.Len()-1].Close)
}

// Compare benchmarks a strategy result against buy-and-hold over the same
// series.
func Compare(result *domain.StrategyResult, series *domain.PriceSeries) Comparison {
	bench := BuyAndHold(series)
	return Comparison{
		StrategyReturn:  result.TotalReturn,
		BenchmarkReturn: bench,
		Outperformance:  result.TotalReturn - bench,
	}
}

func equityValues(curve []domain.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Value
	}
	return out
}
