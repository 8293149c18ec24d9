// Package httpapi serves the read-only dashboard API over the store:
// recommendations, backtest results, price bars, run history, and cross-
// symbol comparison.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketlab/internal/domain"
	"marketlab/internal/store"
)

// Server serves the dashboard HTTP API. All endpoints are read-only.
type Server struct {
	bars    store.BarStore
	results store.ResultStore
	recs    store.RecommendationStore
	runs    store.RunStore
	catalog store.Catalog
	log     *slog.Logger
}

// New creates a Server over the given stores.
func New(bars store.BarStore, results store.ResultStore, recs store.RecommendationStore, runs store.RunStore, catalog store.Catalog, log *slog.Logger) *Server {
	return &Server{
		bars:    bars,
		results: results,
		recs:    recs,
		runs:    runs,
		catalog: catalog,
		log:     log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/recommendations/{symbol}", s.handleRecommendation)
	mux.HandleFunc("GET /api/results/{symbol}/{strategy}/{date}", s.handleResult)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return domain.Day(t), nil
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	rec, err := s.recs.LatestRecommendation(r.Context(), symbol)
	if err != nil {
		s.log.Error("reading recommendation", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read recommendation")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no recommendation for %s", symbol))
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	strategy := r.PathValue("strategy")
	date, err := parseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.results.GetResult(r.Context(), symbol, strategy, date)
	if err != nil {
		s.log.Error("reading result", "symbol", symbol, "strategy", strategy, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read result")
		return
	}
	if res == nil {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("no %s result for %s on %s", strategy, symbol, date.Format(domain.DateFormat)))
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	q := r.URL.Query()
	end := domain.Day(time.Now().UTC())
	start := end.AddDate(-1, 0, 0)
	var err error
	if v := q.Get("start"); v != "" {
		if start, err = parseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if v := q.Get("end"); v != "" {
		if end, err = parseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	bars, err := s.bars.ReadBars(r.Context(), symbol, start, end)
	if err != nil {
		s.log.Error("reading bars", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read bars")
		return
	}
	if bars == nil {
		bars = []domain.PriceBar{}
	}
	writeJSON(w, BarsResponse{Symbol: symbol, Bars: bars})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRunSummaries(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var symbols []string
	if v := q.Get("symbols"); v != "" {
		for _, sym := range strings.Split(v, ",") {
			if sym = strings.TrimSpace(strings.ToUpper(sym)); sym != "" {
				symbols = append(symbols, sym)
			}
		}
	}

	results, err := s.results.ResultsForDate(r.Context(), date, symbols)
	if err != nil {
		s.log.Error("comparing results", "date", date, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read results")
		return
	}
	if results == nil {
		results = []domain.StrategyResult{}
	}
	writeJSON(w, CompareResponse{
		Date:    date.Format(domain.DateFormat),
		Results: results,
	})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.catalog.ListCatalogSymbols(r.Context())
	if err != nil {
		s.log.Error("listing symbols", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}
