// Package calendar derives a trading calendar from the union of dates
// present across all instruments' series. There is no fixed exchange
// calendar: a day is a trading day exactly when at least one instrument has
// a bar for it.
package calendar

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantflare/twse-backtest/internal/types"
)

// Calendar answers trading-day queries over an immutable, ascending set of
// dates.
type Calendar struct {
	days []time.Time
	set  map[time.Time]struct{}
}

// Normalize truncates a timestamp to its UTC calendar date. All calendar
// lookups normalize first, so bars from providers with differing time zones
// land on the same day key.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FromSeries builds a calendar from the union of bar dates across all
// instruments.
func FromSeries(series map[string][]types.EnrichedBar) *Calendar {
	set := make(map[time.Time]struct{})

	for _, bars := range series {
		for _, bar := range bars {
			set[Normalize(bar.Date)] = struct{}{}
		}
	}

	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return &Calendar{days: days, set: set}
}

// FromDates builds a calendar directly from a date list. Used in tests and
// by callers that already hold the union.
func FromDates(dates []time.Time) *Calendar {
	set := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		set[Normalize(d)] = struct{}{}
	}

	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	return &Calendar{days: days, set: set}
}

// Days returns all trading days in ascending order. Callers must not mutate
// the returned slice.
func (c *Calendar) Days() []time.Time {
	return c.days
}

// DaysBetween returns the trading days within [start, end], inclusive.
func (c *Calendar) DaysBetween(start, end time.Time) []time.Time {
	start = Normalize(start)
	end = Normalize(end)

	lo := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(start) })
	hi := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(end) })

	return c.days[lo:hi]
}

// IsTradingDay reports whether at least one instrument has a bar on the date.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	_, ok := c.set[Normalize(d)]

	return ok
}

// NextTradingDay returns the first trading day strictly after the given
// date, or None when the series ends first.
func (c *Calendar) NextTradingDay(d time.Time) optional.Option[time.Time] {
	d = Normalize(d)

	i := sort.Search(len(c.days), func(i int) bool { return c.days[i].After(d) })
	if i == len(c.days) {
		return optional.None[time.Time]()
	}

	return optional.Some(c.days[i])
}
