package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"marketlab/internal/domain"
	"marketlab/internal/store"
	"marketlab/internal/util"
)

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *store.ParquetStore) {
	t.Helper()
	dir := t.TempDir()

	db, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bars := store.NewParquetStore(dir)
	return New(bars, db, db, db, db, util.NewLogger("error")), db, bars
}

func get(t *testing.T, srv *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRecommendationEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t)

	rec := &domain.Recommendation{
		Symbol:       "AAPL",
		AnalysisDate: date(2024, 6, 3),
		Action:       domain.Buy,
		Confidence:   0.8,
		EntryPrice:   100,
		StopLoss:     97,
		TakeProfit:   109,
		PositionSize: 666,
		Strategies:   []string{"ma_cross"},
		Reasoning:    "ma_cross: SMA 50 crossed above SMA 200",
	}
	if err := db.SaveRecommendation(context.Background(), rec); err != nil {
		t.Fatalf("SaveRecommendation: %v", err)
	}

	w := get(t, srv, "/api/recommendations/aapl")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var got domain.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.Symbol != "AAPL" || got.Action != domain.Buy {
		t.Errorf("got %s/%s, want AAPL/BUY", got.Symbol, got.Action)
	}

	w = get(t, srv, "/api/recommendations/UNKNOWN")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown symbol status = %d, want 404", w.Code)
	}
}

func TestResultEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t)

	res := &domain.StrategyResult{
		Symbol:       "AAPL",
		Strategy:     "macd",
		DateRun:      date(2024, 6, 3),
		PeriodStart:  date(2023, 6, 3),
		PeriodEnd:    date(2024, 6, 3),
		InitialBal:   100_000,
		FinalBalance: 104_000,
		TotalReturn:  0.04,
	}
	if err := db.SaveResult(context.Background(), res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	w := get(t, srv, "/api/results/AAPL/macd/2024-06-03")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got domain.StrategyResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.FinalBalance != 104_000 {
		t.Errorf("FinalBalance = %g, want 104000", got.FinalBalance)
	}

	if w := get(t, srv, "/api/results/AAPL/macd/not-a-date"); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", w.Code)
	}
	if w := get(t, srv, "/api/results/AAPL/macd/2024-06-04"); w.Code != http.StatusNotFound {
		t.Errorf("missing result status = %d, want 404", w.Code)
	}
}

func TestBarsEndpoint(t *testing.T) {
	srv, _, bars := newTestServer(t)

	err := bars.WriteBars(context.Background(), []domain.PriceBar{
		{Symbol: "AAPL", Date: date(2024, 6, 3), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000},
		{Symbol: "AAPL", Date: date(2024, 6, 4), Open: 101, High: 102, Low: 100, Close: 101, Volume: 1100},
	})
	if err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	w := get(t, srv, "/api/bars/AAPL?start=2024-06-01&end=2024-06-30")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got BarsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got.Bars) != 2 {
		t.Errorf("got %d bars, want 2", len(got.Bars))
	}

	// Unknown symbol returns an empty list, not an error.
	w = get(t, srv, "/api/bars/MSFT?start=2024-06-01&end=2024-06-30")
	if w.Code != http.StatusOK {
		t.Fatalf("unknown symbol status = %d, want 200", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got.Bars) != 0 {
		t.Errorf("got %d bars for unknown symbol, want 0", len(got.Bars))
	}
}

func TestRunsEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t)

	sum := &domain.RunSummary{
		RunDate:          date(2024, 6, 3),
		Started:          time.Date(2024, 6, 3, 17, 30, 0, 0, time.UTC),
		Finished:         time.Date(2024, 6, 3, 17, 31, 0, 0, time.UTC),
		SymbolsAttempted: 3,
		SymbolsSucceeded: 2,
		Errors:           []domain.SymbolError{{Symbol: "BAD", Reason: "unknown symbol"}},
	}
	if err := db.SaveRunSummary(context.Background(), sum); err != nil {
		t.Fatalf("SaveRunSummary: %v", err)
	}

	w := get(t, srv, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got RunsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got.Runs) != 1 || got.Runs[0].SymbolsAttempted != 3 {
		t.Errorf("got %+v, want the saved summary", got.Runs)
	}

	if w := get(t, srv, "/api/runs?limit=0"); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t)
	ctx := context.Background()

	for _, symbol := range []string{"AAPL", "MSFT", "NVDA"} {
		err := db.SaveResult(ctx, &domain.StrategyResult{
			Symbol:       symbol,
			Strategy:     "ma_cross",
			DateRun:      date(2024, 6, 3),
			InitialBal:   100_000,
			FinalBalance: 100_000,
		})
		if err != nil {
			t.Fatalf("SaveResult %s: %v", symbol, err)
		}
	}

	w := get(t, srv, "/api/compare?date=2024-06-03&symbols=aapl,msft")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got CompareResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got.Results) != 2 {
		t.Fatalf("got %d results, want the 2 requested symbols", len(got.Results))
	}
	if got.Results[0].Symbol != "AAPL" || got.Results[1].Symbol != "MSFT" {
		t.Errorf("results out of order: %s, %s", got.Results[0].Symbol, got.Results[1].Symbol)
	}

	if w := get(t, srv, "/api/compare"); w.Code != http.StatusBadRequest {
		t.Errorf("missing date status = %d, want 400", w.Code)
	}
}

func TestSymbolsEndpoint(t *testing.T) {
	srv, db, _ := newTestServer(t)

	err := db.UpdateCatalog(context.Background(), "AAPL", date(2024, 1, 2), date(2024, 6, 3), 105)
	if err != nil {
		t.Fatalf("UpdateCatalog: %v", err)
	}

	w := get(t, srv, "/api/symbols")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got SymbolsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(got.Symbols) != 1 || got.Symbols[0] != "AAPL" {
		t.Errorf("Symbols = %v, want [AAPL]", got.Symbols)
	}
}
