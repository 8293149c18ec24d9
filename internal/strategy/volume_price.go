package strategy

import (
	"fmt"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// Compile-time interface check.
var _ Strategy = (*VolumePrice)(nil)

// VolumePrice signals on a volume spike accompanying a large daily move: BUY
// when the day's return exceeds the price threshold on volume above the
// spike threshold times trailing average volume, SELL on the symmetric
// negative move.
type VolumePrice struct {
	priceThreshold  float64
	volumeThreshold float64
	lookback        int
}

// NewVolumePrice creates a VolumePrice from its typed parameters.
func NewVolumePrice(p config.VolumePriceParams) *VolumePrice {
	return &VolumePrice{
		priceThreshold:  p.PriceThreshold,
		volumeThreshold: p.VolumeThreshold,
		lookback:        p.LookbackDays,
	}
}

// Name returns "volume_price".
func (s *VolumePrice) Name() string { return "volume_price" }

// MinDataPoints returns the bar count needed for a full trailing volume
// average plus the current bar.
func (s *VolumePrice) MinDataPoints() int { return s.lookback + 1 }

// Evaluate emits one signal per bar once the trailing volume window is full.
// Signal strength is the volume ratio over the spike threshold, clamped to
// [0, 1].
func (s *VolumePrice) Evaluate(series *domain.PriceSeries) ([]domain.Signal, error) {
	if series.Len() < s.MinDataPoints() {
		return nil, nil
	}

	signals := make([]domain.Signal, 0, series.Len()-s.lookback)
	for t := s.lookback; t < series.Len(); t++ {
		sig := domain.Signal{
			Strategy: s.Name(),
			Symbol:   series.Symbol,
			Date:     series.Bars[t].Date,
			Action:   domain.Hold,
		}

		var volSum float64
		for i := t - s.lookback; i < t; i++ {
			volSum += float64(series.Bars[i].Volume)
		}
		avgVolume := volSum / float64(s.lookback)
		if avgVolume == 0 {
			signals = append(signals, sig)
			continue
		}
		volumeRatio := float64(series.Bars[t].Volume) / avgVolume

		prevClose := series.Bars[t-1].Close
		if prevClose == 0 {
			signals = append(signals, sig)
			continue
		}
		priceChange := (series.Bars[t].Close - prevClose) / prevClose

		if volumeRatio > s.volumeThreshold {
			switch {
			case priceChange > s.priceThreshold:
				sig.Action = domain.Buy
				sig.Strength = clamp01(volumeRatio / s.volumeThreshold)
				sig.Reason = fmt.Sprintf("high volume up move: %.1fx average volume", volumeRatio)
			case priceChange < -s.priceThreshold:
				sig.Action = domain.Sell
				sig.Strength = clamp01(volumeRatio / s.volumeThreshold)
				sig.Reason = fmt.Sprintf("high volume down move: %.1fx average volume", volumeRatio)
			}
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
