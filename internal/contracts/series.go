package contracts

import (
	"sort"
	"time"
)

// Bar represents one daily price observation
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// FundamentalSnapshot holds point-in-time fundamental metrics for one
// instrument. AsOf is the publication date; a snapshot must never be
// consulted for decisions dated before AsOf. Absent keys mean the metric
// is missing, never zero.
type FundamentalSnapshot struct {
	AsOf    time.Time          `json:"as_of"`
	Metrics map[string]float64 `json:"metrics"`
}

// InstrumentSeries is one instrument's ordered history of price bars and
// fundamental snapshots. It is owned by the data provider and read-only
// to the pipeline; bars and snapshots are sorted ascending by date.
type InstrumentSeries struct {
	Symbol       string                `json:"symbol"`
	Sector       string                `json:"sector"`
	Bars         []Bar                 `json:"bars"`
	Fundamentals []FundamentalSnapshot `json:"fundamentals"`
}

// BarsBefore returns the bars strictly before asOf. The returned slice
// shares backing storage with the series and must not be mutated.
func (s *InstrumentSeries) BarsBefore(asOf time.Time) []Bar {
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(asOf)
	})
	return s.Bars[:idx]
}

// ClosesBefore returns closing prices strictly before asOf, oldest first.
func (s *InstrumentSeries) ClosesBefore(asOf time.Time) []float64 {
	bars := s.BarsBefore(asOf)
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// PriceOn returns the closing price for an exact trading date.
func (s *InstrumentSeries) PriceOn(date time.Time) (float64, bool) {
	idx := sort.Search(len(s.Bars), func(i int) bool {
		return !s.Bars[i].Date.Before(date)
	})
	if idx < len(s.Bars) && s.Bars[idx].Date.Equal(date) {
		return s.Bars[idx].Close, true
	}
	return 0, false
}

// FundamentalsAsOf returns the most recent fundamental snapshot dated on
// or before asOf. Snapshots published after asOf are never returned.
func (s *InstrumentSeries) FundamentalsAsOf(asOf time.Time) (*FundamentalSnapshot, bool) {
	for i := len(s.Fundamentals) - 1; i >= 0; i-- {
		if !s.Fundamentals[i].AsOf.After(asOf) {
			return &s.Fundamentals[i], true
		}
	}
	return nil, false
}
