package backtest

import (
	"fmt"
	"time"
)

// Rebalance frequencies.
const (
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// IsTradingDay reports whether the date is a weekday. Exchange holidays
// are not modeled; the data provider simply has no bar on them and the
// engine carries prices forward.
func IsTradingDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// TradingDays lists every trading day in [start, end], oldest first.
func TradingDays(start, end time.Time) []time.Time {
	days := make([]time.Time, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// Schedule computes the ordered rebalance dates in [start, end] for a
// frequency policy: daily rebalances every trading day, weekly on the
// given weekday, monthly and quarterly on the first trading day on or
// after each period boundary. Dates are strictly increasing and all
// dates satisfy start ≤ date ≤ end.
func Schedule(start, end time.Time, frequency string, weekday time.Weekday) ([]time.Time, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("schedule: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	switch frequency {
	case FrequencyDaily:
		return TradingDays(start, end), nil

	case FrequencyWeekly:
		if weekday == time.Saturday || weekday == time.Sunday {
			return nil, fmt.Errorf("schedule: %s is not a trading weekday", weekday)
		}
		dates := make([]time.Time, 0)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			if d.Weekday() == weekday {
				dates = append(dates, d)
			}
		}
		return dates, nil

	case FrequencyMonthly:
		return periodStarts(start, end, 1), nil

	case FrequencyQuarterly:
		return periodStarts(start, end, 3), nil
	}

	return nil, fmt.Errorf("schedule: unknown rebalance frequency %q", frequency)
}

// periodStarts returns the first trading day on or after each period
// boundary, clipped to [start, end]. Boundaries are the first of every
// stepMonths-th month; quarterly boundaries align to calendar quarters.
func periodStarts(start, end time.Time, stepMonths int) []time.Time {
	boundary := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	if stepMonths == 3 {
		offset := (int(start.Month()) - 1) % 3
		boundary = boundary.AddDate(0, -offset, 0)
	}

	dates := make([]time.Time, 0)
	for !boundary.After(end) {
		d := boundary
		for !IsTradingDay(d) {
			d = d.AddDate(0, 0, 1)
		}
		if !d.Before(start) && !d.After(end) {
			dates = append(dates, d)
		}
		boundary = boundary.AddDate(0, stepMonths, 0)
	}
	return dates
}
