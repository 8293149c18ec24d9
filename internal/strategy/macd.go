package strategy

import (
	"math"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*MACD)(nil)

// MACD signals on the MACD histogram changing sign: BUY when the MACD line
// crosses above its signal line, SELL on the inverse crossing.
type MACD struct {
	fast   int
	slow   int
	signal int
}

// NewMACD creates a MACD strategy from its typed parameters.
func NewMACD(p config.MACDParams) *MACD {
	return &MACD{fast: p.FastPeriod, slow: p.SlowPeriod, signal: p.SignalPeriod}
}

// Name returns "macd".
func (s *MACD) Name() string { return "macd" }

// MinDataPoints returns the bar count needed for two consecutive histogram
// values.
func (s *MACD) MinDataPoints() int { return s.slow + s.signal }

// Evaluate emits one signal per bar once the histogram exists on consecutive
// bars. Signal strength is |histogram / MACD line| clamped to [0, 1], with 0
// when the MACD line itself is 0.
func (s *MACD) Evaluate(series *domain.PriceSeries) ([]domain.Signal, error) {
	if series.Len() < s.MinDataPoints() {
		return nil, nil
	}
	macd, _, hist := MACDLines(series.Closes(), s.fast, s.slow, s.signal)

	first := s.slow + s.signal - 1
	signals := make([]domain.Signal, 0, series.Len()-first)
	for t := first; t < series.Len(); t++ {
		sig := domain.Signal{
			Strategy: s.Name(),
			Symbol:   series.Symbol,
			Date:     series.Bars[t].Date,
			Action:   domain.Hold,
		}

		switch {
		case hist[t] > 0 && hist[t-1] <= 0:
			sig.Action = domain.Buy
			sig.Strength = histStrength(hist[t], macd[t])
			sig.Reason = "MACD crossed above signal line"
		case hist[t] < 0 && hist[t-1] >= 0:
			sig.Action = domain.Sell
			sig.Strength = histStrength(hist[t], macd[t])
			sig.Reason = "MACD crossed below signal line"
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// histStrength normalizes the histogram magnitude against the MACD line.
func histStrength(hist, macd float64) float64 {
	if macd == 0 {
		return 0
	}
	return clamp01(math.Abs(hist / macd))
}
