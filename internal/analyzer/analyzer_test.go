package analyzer

import (
	"math"
	"testing"
	"time"

	"marketlab/internal/domain"
)

func curveFromValues(values []float64) []domain.EquityPoint {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		out[i] = domain.EquityPoint{Date: base.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestTotalReturn(t *testing.T) {
	if got := TotalReturn(100_000, 110_000); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("TotalReturn = %g, want 0.1", got)
	}
	if got := TotalReturn(0, 500); got != 0 {
		t.Errorf("TotalReturn with zero initial = %g, want 0", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 120, trough 90: drawdown -0.25.
	values := []float64{100, 120, 90, 110}
	if got := MaxDrawdown(values); math.Abs(got-(-0.25)) > 1e-9 {
		t.Errorf("MaxDrawdown = %g, want -0.25", got)
	}
}

func TestMaxDrawdown_MonotonicRise(t *testing.T) {
	values := []float64{100, 101, 105, 110}
	if got := MaxDrawdown(values); got != 0 {
		t.Errorf("MaxDrawdown of rising curve = %g, want 0", got)
	}
}

func TestSharpeRatio_ZeroVariance(t *testing.T) {
	// Constant returns have zero deviation: sentinel 0, not NaN or Inf.
	got := SharpeRatio([]float64{0.01, 0.01, 0.01})
	if got != 0 {
		t.Errorf("SharpeRatio with zero variance = %g, want 0", got)
	}
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Errorf("SharpeRatio produced %g", got)
	}
}

func TestSharpeRatio_TooFewObservations(t *testing.T) {
	if got := SharpeRatio([]float64{0.05}); got != 0 {
		t.Errorf("SharpeRatio with one observation = %g, want 0", got)
	}
	if got := SharpeRatio(nil); got != 0 {
		t.Errorf("SharpeRatio with no observations = %g, want 0", got)
	}
}

func TestSharpeRatio_Annualized(t *testing.T) {
	returns := []float64{0.01, -0.005, 0.02, 0.0, 0.015}
	got := SharpeRatio(returns)
	if got <= 0 {
		t.Fatalf("SharpeRatio = %g for positive-mean returns, want > 0", got)
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	want := mean / math.Sqrt(sq/float64(len(returns)-1)) * math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("SharpeRatio = %g, want %g", got, want)
	}
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns([]float64{100, 110, 99})
	want := []float64{0.1, -0.1}
	if len(got) != len(want) {
		t.Fatalf("DailyReturns = %v, want %v", got, want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("DailyReturns[%d] = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestSummarize(t *testing.T) {
	result := &domain.StrategyResult{
		InitialBal:   100_000,
		FinalBalance: 105_000,
		EquityCurve:  curveFromValues([]float64{100_000, 102_000, 99_000, 105_000}),
	}

	Summarize(result)

	if math.Abs(result.TotalReturn-0.05) > 1e-9 {
		t.Errorf("TotalReturn = %g, want 0.05", result.TotalReturn)
	}
	wantDD := (99_000.0 - 102_000.0) / 102_000.0
	if math.Abs(result.MaxDrawdown-wantDD) > 1e-9 {
		t.Errorf("MaxDrawdown = %g, want %g", result.MaxDrawdown, wantDD)
	}
	if result.SharpeRatio == 0 {
		t.Errorf("SharpeRatio = 0 for varying returns, want nonzero")
	}
}

func TestRolling_PartialWindows(t *testing.T) {
	curve := curveFromValues([]float64{100, 102, 101, 104, 108})
	metrics := Rolling(curve, []int{3})

	if len(metrics) != len(curve) {
		t.Fatalf("got %d rolling points, want one per curve point (%d)", len(metrics), len(curve))
	}

	// First point: partial window of one observation.
	if metrics[0].Return != 0 || metrics[0].Sharpe != 0 {
		t.Errorf("first partial window = %+v, want zero metrics", metrics[0])
	}

	// Last point: full 3-day window 101 -> 108.
	last := metrics[len(metrics)-1]
	if want := (108.0 - 101.0) / 101.0; math.Abs(last.Return-want) > 1e-9 {
		t.Errorf("last window return = %g, want %g", last.Return, want)
	}
	if last.Window != 3 {
		t.Errorf("last window size = %d, want 3", last.Window)
	}
}

func TestRolling_MultipleWindows(t *testing.T) {
	curve := curveFromValues([]float64{100, 101, 102})
	metrics := Rolling(curve, Windows)

	if want := len(curve) * len(Windows); len(metrics) != want {
		t.Fatalf("got %d metrics, want %d", len(metrics), want)
	}
}

func TestCompare(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := []domain.PriceBar{
		{Symbol: "TEST", Date: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Symbol: "TEST", Date: base.AddDate(0, 0, 1), Open: 110, High: 111, Low: 109, Close: 110, Volume: 1},
	}
	series, err := domain.NewPriceSeries("TEST", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}

	result := &domain.StrategyResult{TotalReturn: 0.25}
	cmp := Compare(result, series)

	if math.Abs(cmp.BenchmarkReturn-0.1) > 1e-9 {
		t.Errorf("BenchmarkReturn = %g, want 0.1", cmp.BenchmarkReturn)
	}
	if math.Abs(cmp.Outperformance-0.15) > 1e-9 {
		t.Errorf("Outperformance = %g, want 0.15", cmp.Outperformance)
	}
}
