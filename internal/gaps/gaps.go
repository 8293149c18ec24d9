// Package gaps finds trading days missing from stored price history and
// turns them into an ordered backfill plan. Detection never mutates the
// store; executing the plan is the orchestrator's job.
package gaps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketlab/internal/calendar"
	"marketlab/internal/domain"
	"marketlab/internal/store"
)

// Detector compares calendar trading days against stored bar dates.
type Detector struct {
	cal  *calendar.Calendar
	bars store.BarStore
}

// NewDetector creates a Detector over the given calendar and bar store.
func NewDetector(cal *calendar.Calendar, bars store.BarStore) *Detector {
	return &Detector{cal: cal, bars: bars}
}

// Detect returns the maximal contiguous runs of trading days in [start, end]
// that have no stored bar for symbol, sorted chronologically. Non-trading
// days are never reported as missing.
func (d *Detector) Detect(ctx context.Context, symbol string, start, end time.Time) ([]domain.DataGap, error) {
	present, err := d.bars.Dates(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored dates for %s: %w", symbol, err)
	}

	var gaps []domain.DataGap
	var run []time.Time
	flush := func() {
		if len(run) == 0 {
			return
		}
		gaps = append(gaps, domain.DataGap{
			Symbol:    symbol,
			StartDate: run[0],
			EndDate:   run[len(run)-1],
			DayCount:  len(run),
		})
		run = nil
	}

	for _, day := range d.cal.TradingDaysBetween(start, end) {
		if present[domain.Day(day)] {
			flush()
			continue
		}
		run = append(run, day)
	}
	flush()
	return gaps, nil
}

// DetectAll runs Detect for every symbol and returns the combined gap report.
func (d *Detector) DetectAll(ctx context.Context, symbols []string, start, end time.Time) ([]domain.DataGap, error) {
	var all []domain.DataGap
	for _, symbol := range symbols {
		gaps, err := d.Detect(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		all = append(all, gaps...)
	}
	return all, nil
}

// BackfillRequest is one unit of remediation work: re-fetch and reprocess the
// date range for the symbol.
type BackfillRequest struct {
	Symbol string    `json:"symbol"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Plan converts a gap report into an ordered list of backfill requests,
// sorted by start date then symbol so execution order is deterministic.
func Plan(gaps []domain.DataGap) []BackfillRequest {
	out := make([]BackfillRequest, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, BackfillRequest{Symbol: g.Symbol, Start: g.StartDate, End: g.EndDate})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
