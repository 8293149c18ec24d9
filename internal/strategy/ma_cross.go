package strategy

import (
	"fmt"
	"math"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*MACross)(nil)

// MACross is the moving-average crossover strategy: BUY when the short SMA
// crosses above the long SMA, SELL on the inverse crossing.
type MACross struct {
	short int
	long  int
}

// NewMACross creates an MACross from its typed parameters.
func NewMACross(p config.MACrossParams) *MACross {
	return &MACross{short: p.ShortPeriod, long: p.LongPeriod}
}

// Name returns "ma_cross".
func (s *MACross) Name() string { return "ma_cross" }

// MinDataPoints returns the bar count needed for the first crossover check:
// the long SMA on both the current and previous bar.
func (s *MACross) MinDataPoints() int { return s.long + 1 }

// Evaluate emits one signal per bar once both SMAs exist on consecutive bars.
// Signal strength is the SMA spread relative to the long SMA, scaled by 100
// and clamped to [0, 1].
func (s *MACross) Evaluate(series *domain.PriceSeries) ([]domain.Signal, error) {
	if series.Len() < s.MinDataPoints() {
		return nil, nil
	}
	closes := series.Closes()
	shortMA := SMA(closes, s.short)
	longMA := SMA(closes, s.long)

	signals := make([]domain.Signal, 0, series.Len()-s.long)
	for t := s.long; t < series.Len(); t++ {
		sig := domain.Signal{
			Strategy: s.Name(),
			Symbol:   series.Symbol,
			Date:     series.Bars[t].Date,
			Action:   domain.Hold,
		}

		crossedUp := shortMA[t-1] <= longMA[t-1] && shortMA[t] > longMA[t]
		crossedDown := shortMA[t-1] >= longMA[t-1] && shortMA[t] < longMA[t]

		switch {
		case crossedUp:
			sig.Action = domain.Buy
			sig.Strength = crossStrength(shortMA[t], longMA[t])
			sig.Reason = fmt.Sprintf("SMA %d crossed above SMA %d", s.short, s.long)
		case crossedDown:
			sig.Action = domain.Sell
			sig.Strength = crossStrength(shortMA[t], longMA[t])
			sig.Reason = fmt.Sprintf("SMA %d crossed below SMA %d", s.short, s.long)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}

// crossStrength normalizes the SMA spread at a crossing into [0, 1].
func crossStrength(short, long float64) float64 {
	if long == 0 {
		return 0
	}
	return clamp01(math.Abs(short-long) / long * 100)
}
