package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPriceBarValidate(t *testing.T) {
	good := PriceBar{Symbol: "AAPL", Date: date(2024, 6, 3), Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	bad := good
	bad.High = 90 // high < close
	if err := bad.Validate(); err == nil {
		t.Error("bar with high < close passed validation")
	}

	neg := good
	neg.Volume = -1
	if err := neg.Validate(); err == nil {
		t.Error("bar with negative volume passed validation")
	}
}

func TestNewPriceSeriesSortsAndRejectsDuplicates(t *testing.T) {
	bars := []PriceBar{
		{Symbol: "SPY", Date: date(2024, 6, 5), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{Symbol: "SPY", Date: date(2024, 6, 3), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{Symbol: "SPY", Date: date(2024, 6, 4), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
	}
	s, err := NewPriceSeries("SPY", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}
	for i := 1; i < s.Len(); i++ {
		if !s.Bars[i-1].Date.Before(s.Bars[i].Date) {
			t.Fatalf("series not strictly increasing at %d", i)
		}
	}

	dup := append(bars, bars[0])
	if _, err := NewPriceSeries("SPY", dup); err == nil {
		t.Error("duplicate date accepted")
	}
}

func TestPriceSeriesSlice(t *testing.T) {
	var bars []PriceBar
	for d := 1; d <= 10; d++ {
		bars = append(bars, PriceBar{Symbol: "QQQ", Date: date(2024, 1, d), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	}
	s, err := NewPriceSeries("QQQ", bars)
	if err != nil {
		t.Fatalf("NewPriceSeries: %v", err)
	}

	sub := s.Slice(date(2024, 1, 3), date(2024, 1, 7))
	if sub.Len() != 5 {
		t.Errorf("Slice returned %d bars, want 5", sub.Len())
	}
	if !sub.Bars[0].Date.Equal(date(2024, 1, 3)) || !sub.Bars[4].Date.Equal(date(2024, 1, 7)) {
		t.Errorf("Slice bounds wrong: %v .. %v", sub.Bars[0].Date, sub.Bars[4].Date)
	}
}

func TestRunSummaryAllSucceeded(t *testing.T) {
	r := RunSummary{SymbolsAttempted: 3, SymbolsSucceeded: 3}
	if !r.AllSucceeded() {
		t.Error("AllSucceeded false with attempted == succeeded")
	}
	r.Errors = append(r.Errors, SymbolError{Symbol: "XYZ", Reason: "fetch failed"})
	r.SymbolsSucceeded = 2
	if r.AllSucceeded() {
		t.Error("AllSucceeded true with a failed symbol")
	}
}

func TestTradeClosed(t *testing.T) {
	tr := Trade{Symbol: "AAPL", Side: Long, EntryDate: date(2024, 2, 1), EntryPrice: 100, Shares: 10}
	if tr.Closed() {
		t.Error("open trade reported closed")
	}
	tr.ExitDate = date(2024, 2, 9)
	if !tr.Closed() {
		t.Error("closed trade reported open")
	}
}
