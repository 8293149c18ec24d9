// Package calendar answers trading-day questions for US equity markets.
// It is pure and deterministic: holidays are generated from the exchange
// rules rather than fetched, so the same inputs always yield the same
// answers with no I/O.
package calendar

import (
	"fmt"
	"time"

	"marketlab/internal/domain"
)

// Market identifies the exchange calendar to consult.
type Market string

// Market constants.
const (
	US Market = "US"
)

// Calendar provides trading-day lookups for one market.
type Calendar struct {
	market Market

	// holiday cache keyed by year; populated lazily, content is a pure
	// function of the year so concurrent duplicate computation is harmless.
	holidays map[int]map[time.Time]bool
	earlies  map[int]map[time.Time]bool
}

// New creates a Calendar for the given market. Only US is supported.
func New(market Market) (*Calendar, error) {
	if market != US {
		return nil, fmt.Errorf("unsupported market %q", market)
	}
	return &Calendar{
		market:   market,
		holidays: make(map[int]map[time.Time]bool),
		earlies:  make(map[int]map[time.Time]bool),
	}, nil
}

// IsTradingDay reports whether the market is open on the given date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	d := domain.Day(date)
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.holidaysFor(d.Year())[d]
}

// EarlyClose reports whether the session on date closes early (1:00 pm ET).
// An early close is still a trading day; this is session-length metadata only.
func (c *Calendar) EarlyClose(date time.Time) bool {
	d := domain.Day(date)
	return c.IsTradingDay(d) && c.earliesFor(d.Year())[d]
}

// TradingDaysBetween returns the ordered trading days in [start, end],
// inclusive. start after end yields an empty slice.
func (c *Calendar) TradingDaysBetween(start, end time.Time) []time.Time {
	s, e := domain.Day(start), domain.Day(end)
	var days []time.Time
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// NextTradingDay returns the first trading day strictly after date.
func (c *Calendar) NextTradingDay(date time.Time) time.Time {
	d := domain.Day(date).AddDate(0, 0, 1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousTradingDay returns the last trading day strictly before date.
func (c *Calendar) PreviousTradingDay(date time.Time) time.Time {
	d := domain.Day(date).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

func (c *Calendar) holidaysFor(year int) map[time.Time]bool {
	if h, ok := c.holidays[year]; ok {
		return h
	}
	h, e := usHolidays(year)
	c.holidays[year] = h
	c.earlies[year] = e
	return h
}

func (c *Calendar) earliesFor(year int) map[time.Time]bool {
	if e, ok := c.earlies[year]; ok {
		return e
	}
	c.holidaysFor(year)
	return c.earlies[year]
}

// ---------------------------------------------------------------------------
// US holiday rules
// ---------------------------------------------------------------------------

// usHolidays generates the NYSE full-closure set and early-close set for one
// year. Fixed-date holidays falling on a weekend shift to the observed
// weekday (Saturday -> Friday, Sunday -> Monday).
func usHolidays(year int) (closed, early map[time.Time]bool) {
	closed = make(map[time.Time]bool)
	early = make(map[time.Time]bool)

	add := func(d time.Time) { closed[d] = true }

	// New Year's Day. A Saturday New Year's is not observed on Dec 31 by
	// NYSE rule 7.2, so only the Sunday shift applies.
	ny := day(year, time.January, 1)
	if ny.Weekday() == time.Sunday {
		ny = ny.AddDate(0, 0, 1)
	}
	if ny.Weekday() != time.Saturday {
		add(ny)
	}

	add(nthWeekday(year, time.January, time.Monday, 3))  // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3)) // Presidents' Day
	add(goodFriday(year))
	add(lastWeekday(year, time.May, time.Monday)) // Memorial Day

	if year >= 2021 {
		add(observed(day(year, time.June, 19))) // Juneteenth
	}

	july4 := day(year, time.July, 4)
	add(observed(july4))
	// July 3 early close when Independence Day falls Tue-Fri.
	if wd := july4.Weekday(); wd >= time.Tuesday && wd <= time.Friday {
		early[july4.AddDate(0, 0, -1)] = true
	}

	add(nthWeekday(year, time.September, time.Monday, 1)) // Labor Day

	thanksgiving := nthWeekday(year, time.November, time.Thursday, 4)
	add(thanksgiving)
	early[thanksgiving.AddDate(0, 0, 1)] = true // half day after Thanksgiving

	xmas := day(year, time.December, 25)
	add(observed(xmas))
	// Christmas Eve early close when it is a weekday and not itself the
	// observed Christmas holiday.
	eve := day(year, time.December, 24)
	if wd := eve.Weekday(); wd >= time.Monday && wd <= time.Friday && !closed[eve] {
		early[eve] = true
	}

	return closed, early
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// observed shifts a weekend holiday to its observed weekday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the nth given weekday of a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := day(year, month, 1)
	offset := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := day(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(d.Weekday()) - int(wd) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// goodFriday is two days before Easter Sunday (Meeus/Jones/Butcher
// Gregorian algorithm).
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	dd := (h+l-7*m+114)%31 + 1
	easter := day(year, time.Month(month), dd)
	return easter.AddDate(0, 0, -2)
}
