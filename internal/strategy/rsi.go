package strategy

import (
	"fmt"
	"math"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*RSIDivergence)(nil)

// RSIDivergence signals on RSI threshold crossings: BUY when RSI recovers
// above the oversold level from below, SELL when it drops below the
// overbought level from above.
type RSIDivergence struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIDivergence creates an RSIDivergence from its typed parameters.
func NewRSIDivergence(p config.RSIParams) *RSIDivergence {
	return &RSIDivergence{period: p.Period, oversold: p.Oversold, overbought: p.Overbought}
}

// Name returns "rsi".
func (s *RSIDivergence) Name() string { return "rsi" }

// MinDataPoints returns the bar count needed for two consecutive RSI values.
func (s *RSIDivergence) MinDataPoints() int { return s.period + 2 }

// Evaluate emits one signal per bar once RSI exists on consecutive bars.
// Signal strength is the distance past the threshold divided by 10, clamped
// to [0, 1].
func (s *RSIDivergence) Evaluate(series *domain.PriceSeries) ([]domain.Signal, error) {
	if series.Len() < s.MinDataPoints() {
		return nil, nil
	}
	rsi := RSI(series.Closes(), s.period)

	signals := make([]domain.Signal, 0, series.Len()-s.period-1)
	for t := s.period + 1; t < series.Len(); t++ {
		sig := domain.Signal{
			Strategy: s.Name(),
			Symbol:   series.Symbol,
			Date:     series.Bars[t].Date,
			Action:   domain.Hold,
		}

		switch {
		case rsi[t-1] < s.oversold && rsi[t] >= s.oversold:
			sig.Action = domain.Buy
			sig.Strength = clamp01(math.Abs(rsi[t]-s.oversold) / 10)
			sig.Reason = fmt.Sprintf("RSI %.1f recovered above %g", rsi[t], s.oversold)
		case rsi[t-1] > s.overbought && rsi[t] <= s.overbought:
			sig.Action = domain.Sell
			sig.Strength = clamp01(math.Abs(rsi[t]-s.overbought) / 10)
			sig.Reason = fmt.Sprintf("RSI %.1f dropped below %g", rsi[t], s.overbought)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
