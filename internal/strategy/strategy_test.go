package strategy

import (
	"testing"
	"time"

	"marketlab/internal/config"
	"marketlab/internal/domain"
)

// seriesFromCloses builds a synthetic series with consecutive dates, a 1-point
// range around each close, and constant volume.
func seriesFromCloses(t *testing.T, closes []float64) *domain.PriceSeries {
	t.Helper()
	return seriesFromBars(t, closes, nil)
}

// seriesFromBars builds a synthetic series; volumes may be nil for a constant
// default.
func seriesFromBars(t *testing.T, closes []float64, volumes []int64) *domain.PriceSeries {
	t.Helper()
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		vol := int64(1_000_000)
		if volumes != nil {
			vol = volumes[i]
		}
		bars[i] = domain.PriceBar{
			Symbol: "TEST",
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: vol,
		}
	}
	s, err := domain.NewPriceSeries("TEST", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	return s
}

func flatCloses(n int, value float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := NewMACross(config.MACrossParams{ShortPeriod: 2, LongPeriod: 3})

	r.Register(s)

	got, ok := r.Get("ma_cross")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "ma_cross" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "ma_cross")
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestDefaultRegistryList(t *testing.T) {
	r := DefaultRegistry(config.Default().Strategies)

	want := []string{"ma_cross", "macd", "rsi", "trend", "volume_price"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("List returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(r.All()) != len(want) {
		t.Errorf("All returned %d strategies, want %d", len(r.All()), len(want))
	}
}

func TestFlatSeries_AllStrategiesHold(t *testing.T) {
	series := seriesFromCloses(t, flatCloses(100, 50))

	for _, s := range DefaultRegistry(config.Default().Strategies).All() {
		signals, err := s.Evaluate(series)
		if err != nil {
			t.Fatalf("%s: Evaluate: %v", s.Name(), err)
		}
		for _, sig := range signals {
			if sig.Action != domain.Hold {
				t.Errorf("%s emitted %s on flat series at %s",
					s.Name(), sig.Action, sig.Date.Format(domain.DateFormat))
			}
		}
	}
}

func TestMACross_EngineeredCrossover(t *testing.T) {
	s := NewMACross(config.MACrossParams{ShortPeriod: 2, LongPeriod: 3})
	// Declining closes, then a jump that pulls the short SMA over the long.
	series := seriesFromCloses(t, []float64{10, 9, 8, 7, 6, 20})

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 3 {
		t.Fatalf("got %d signals, want one per bar from the long period on (3)", len(signals))
	}

	for _, sig := range signals[:2] {
		if sig.Action != domain.Hold {
			t.Errorf("unexpected %s before the crossover at %s", sig.Action, sig.Date)
		}
	}
	last := signals[2]
	if last.Action != domain.Buy {
		t.Fatalf("crossover bar action = %s, want BUY", last.Action)
	}
	if last.Strength <= 0 || last.Strength > 1 {
		t.Errorf("crossover strength = %g, want in (0, 1]", last.Strength)
	}
}

func TestMACross_InsufficientHistory(t *testing.T) {
	s := NewMACross(config.MACrossParams{ShortPeriod: 2, LongPeriod: 3})
	series := seriesFromCloses(t, []float64{10, 11, 12})

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("got %d signals from a series below MinDataPoints, want 0", len(signals))
	}
}

func TestRSIDivergence_OversoldRecovery(t *testing.T) {
	s := NewRSIDivergence(config.RSIParams{Period: 3, Oversold: 30, Overbought: 70})
	// Three straight losses drive RSI to 0, the rebound crosses back over 30.
	series := seriesFromCloses(t, []float64{100, 90, 80, 70, 95})

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Action != domain.Buy {
		t.Fatalf("rebound action = %s, want BUY", signals[0].Action)
	}
	if signals[0].Strength <= 0 {
		t.Errorf("rebound strength = %g, want > 0", signals[0].Strength)
	}
}

func TestMACD_BuyAfterReversal(t *testing.T) {
	s := NewMACD(config.MACDParams{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9})

	closes := make([]float64, 0, 80)
	for i := 0; i < 60; i++ {
		closes = append(closes, 200-float64(i)) // decline
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 140+float64(i)*3) // sharp recovery
	}
	series := seriesFromCloses(t, closes)

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	var buyAt time.Time
	turn := series.Bars[59].Date
	for _, sig := range signals {
		if sig.Action == domain.Buy {
			if sig.Date.Before(turn) {
				t.Fatalf("BUY at %s, before the reversal", sig.Date.Format(domain.DateFormat))
			}
			buyAt = sig.Date
			break
		}
	}
	if buyAt.IsZero() {
		t.Fatal("no BUY emitted after the reversal")
	}
}

func TestVolumePrice_SpikeSignals(t *testing.T) {
	s := NewVolumePrice(config.VolumePriceParams{
		PriceThreshold: 0.02, VolumeThreshold: 2.0, LookbackDays: 5,
	})

	baseVolumes := []int64{100, 100, 100, 100, 100, 300}

	up := seriesFromBars(t, []float64{50, 50, 50, 50, 50, 52}, baseVolumes)
	signals, err := s.Evaluate(up)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 1 || signals[0].Action != domain.Buy {
		t.Fatalf("volume spike up move: got %+v, want one BUY", signals)
	}
	if signals[0].Strength != 1 {
		t.Errorf("3x volume over 2x threshold strength = %g, want clamped 1", signals[0].Strength)
	}

	down := seriesFromBars(t, []float64{50, 50, 50, 50, 50, 48}, baseVolumes)
	signals, err = s.Evaluate(down)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 1 || signals[0].Action != domain.Sell {
		t.Fatalf("volume spike down move: got %+v, want one SELL", signals)
	}

	// Spike without a price move stays HOLD.
	quiet := seriesFromBars(t, []float64{50, 50, 50, 50, 50, 50.5}, baseVolumes)
	signals, err = s.Evaluate(quiet)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if signals[0].Action != domain.Hold {
		t.Errorf("small move on volume spike = %s, want HOLD", signals[0].Action)
	}
}

func TestTrendFollowing_Breakout(t *testing.T) {
	s := NewTrendFollowing(config.TrendParams{
		ATRPeriod: 3, TrendPeriod: 5, BreakoutThreshold: 1.5, MinTrendStrength: 0.6,
	})
	// Five quiet bars around 50, then a close far above trailing resistance.
	series := seriesFromCloses(t, []float64{50, 50, 50, 50, 50, 70})

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("got %d signals, want 1", len(signals))
	}
	if signals[0].Action != domain.Buy {
		t.Fatalf("breakout action = %s, want BUY", signals[0].Action)
	}
	if signals[0].Strength <= 0 || signals[0].Strength > 1 {
		t.Errorf("breakout strength = %g, want in (0, 1]", signals[0].Strength)
	}
}

func TestEvaluate_OneSignalPerDate(t *testing.T) {
	s := NewMACross(config.MACrossParams{ShortPeriod: 2, LongPeriod: 3})
	series := seriesFromCloses(t, []float64{10, 11, 12, 13, 14, 15, 16, 17})

	signals, err := s.Evaluate(series)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if want := series.Len() - 3; len(signals) != want {
		t.Fatalf("got %d signals, want %d", len(signals), want)
	}
	seen := make(map[time.Time]bool)
	for _, sig := range signals {
		if seen[sig.Date] {
			t.Errorf("duplicate signal for %s", sig.Date.Format(domain.DateFormat))
		}
		seen[sig.Date] = true
	}
}
