package httpapi

import "marketlab/internal/domain"

// BarsResponse is the payload for GET /api/bars/{symbol}.
type BarsResponse struct {
	Symbol string            `json:"symbol"`
	Bars   []domain.PriceBar `json:"bars"`
}

// RunsResponse is the payload for GET /api/runs.
type RunsResponse struct {
	Runs []domain.RunSummary `json:"runs"`
}

// CompareResponse is the payload for GET /api/compare.
type CompareResponse struct {
	Date    string                  `json:"date"`
	Results []domain.StrategyResult `json:"results"`
}

// SymbolsResponse is the payload for GET /api/symbols.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}
