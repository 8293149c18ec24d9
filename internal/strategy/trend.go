package strategy

import (
	"fmt"
	"math"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*TrendFollowing)(nil)

// TrendFollowing combines an ATR breakout check with a trend-strength filter:
// BUY on a close above trailing resistance by a multiple of ATR or during a
// persistent uptrend, SELL on the mirror conditions.
type TrendFollowing struct {
	atrPeriod        int
	trendPeriod      int
	breakout         float64
	minTrendStrength float64
}

// NewTrendFollowing creates a TrendFollowing from its typed parameters.
func NewTrendFollowing(p config.TrendParams) *TrendFollowing {
	return &TrendFollowing{
		atrPeriod:        p.ATRPeriod,
		trendPeriod:      p.TrendPeriod,
		breakout:         p.BreakoutThreshold,
		minTrendStrength: p.MinTrendStrength,
	}
}

// Name returns "trend".
func (s *TrendFollowing) Name() string { return "trend" }

// MinDataPoints returns the bar count needed for a full trailing
// support/resistance window plus the current bar.
func (s *TrendFollowing) MinDataPoints() int { return s.trendPeriod + 1 }

// Evaluate emits one signal per bar once the trend window is full. Support
// and resistance come from the trailing window excluding the current bar, so
// a breakout close can exceed them. Signal strength is the trend-strength
// ratio (breakouts scaled by 1.5) clamped to [0, 1]. A close near the middle
// of the support/resistance band demotes the signal to HOLD.
func (s *TrendFollowing) Evaluate(series *domain.PriceSeries) ([]domain.Signal, error) {
	if series.Len() < s.MinDataPoints() {
		return nil, nil
	}

	n := series.Len()
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, b := range series.Bars {
		highs[i] = b.High
		lows[i] = b.Low
	}
	closes := series.Closes()
	atr := ATR(highs, lows, closes, s.atrPeriod)

	signals := make([]domain.Signal, 0, n-s.trendPeriod)
	for t := s.trendPeriod; t < n; t++ {
		sig := domain.Signal{
			Strategy: s.Name(),
			Symbol:   series.Symbol,
			Date:     series.Bars[t].Date,
			Action:   domain.Hold,
		}

		support, resistance := lows[t-s.trendPeriod], highs[t-s.trendPeriod]
		for i := t - s.trendPeriod + 1; i < t; i++ {
			if lows[i] < support {
				support = lows[i]
			}
			if highs[i] > resistance {
				resistance = highs[i]
			}
		}

		upDays, downDays := 0, 0
		for i := t - s.trendPeriod + 1; i <= t; i++ {
			switch {
			case closes[i] > closes[i-1]:
				upDays++
			case closes[i] < closes[i-1]:
				downDays++
			}
		}
		// Flat days count toward neither side, so a constant series has no
		// trend in either direction.
		upStrength := float64(upDays) / float64(s.trendPeriod)
		downStrength := float64(downDays) / float64(s.trendPeriod)

		close := closes[t]
		switch {
		case close > resistance+atr[t]*s.breakout:
			sig.Action = domain.Buy
			sig.Strength = clamp01(upStrength * 1.5)
			sig.Reason = "price breakout above resistance"
		case close < support-atr[t]*s.breakout:
			sig.Action = domain.Sell
			sig.Strength = clamp01(downStrength * 1.5)
			sig.Reason = "price breakdown below support"
		case upStrength > s.minTrendStrength:
			sig.Action = domain.Buy
			sig.Strength = clamp01(upStrength)
			sig.Reason = fmt.Sprintf("strong uptrend (%.0f%% up days)", upStrength*100)
		case downStrength > s.minTrendStrength:
			sig.Action = domain.Sell
			sig.Strength = clamp01(downStrength)
			sig.Reason = fmt.Sprintf("strong downtrend (%.0f%% down days)", downStrength*100)
		}

		// Mean reversion toward the middle of the band cancels the trend call.
		if sig.Action != domain.Hold && math.Abs(close-(support+resistance)/2) < atr[t] {
			sig.Action = domain.Hold
			sig.Strength = 0
			sig.Reason = ""
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
