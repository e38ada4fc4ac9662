package series

import (
	"math"
	"sort"
	"time"
)

// Bar is a single OHLCV candle.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an ordered bar sequence plus named derived columns.
// Columns are always the same length as the bar slice; warm-up gaps
// are represented as NaN.
type Series struct {
	bars    []Bar
	columns map[string][]float64

	funding      *float64
	openInterest []float64
}

// FromBars builds a Series from raw bars. Bars are sorted by timestamp and
// deduplicated, keeping the first occurrence of each timestamp.
func FromBars(bars []Bar) *Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	deduped := sorted[:0]
	for _, b := range sorted {
		if len(deduped) > 0 && !b.Time.After(deduped[len(deduped)-1].Time) {
			continue
		}
		deduped = append(deduped, b)
	}

	return &Series{
		bars:    deduped,
		columns: make(map[string][]float64),
	}
}

// Len returns the number of bars.
func (s *Series) Len() int { return len(s.bars) }

// Bar returns the bar at index i.
func (s *Series) Bar(i int) Bar { return s.bars[i] }

// Last returns the most recent bar. The series must be non-empty.
func (s *Series) Last() Bar { return s.bars[len(s.bars)-1] }

// Bars returns the underlying bar slice. Callers must not modify it.
func (s *Series) Bars() []Bar { return s.bars }

// HasColumn reports whether a derived column exists.
func (s *Series) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Column returns a derived column by name.
func (s *Series) Column(name string) ([]float64, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// SetColumn attaches a derived column. The column must match the bar count.
func (s *Series) SetColumn(name string, values []float64) {
	if len(values) != len(s.bars) {
		panic("series: column length does not match bar count")
	}
	s.columns[name] = values
}

// Value returns column[i], or NaN when the column is missing or i is out
// of range.
func (s *Series) Value(name string, i int) float64 {
	col, ok := s.columns[name]
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// LastValue returns the last value of a column, or NaN when unavailable.
func (s *Series) LastValue(name string) float64 {
	return s.Value(name, len(s.bars)-1)
}

// Closes returns the close prices as a slice.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices as a slice.
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices as a slice.
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}

// Volumes returns the volumes as a slice.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Volume
	}
	return out
}

// SetFundingRate attaches a funding-rate snapshot to the series.
func (s *Series) SetFundingRate(rate float64) {
	r := rate
	s.funding = &r
}

// FundingRate returns the attached funding-rate snapshot, if any.
func (s *Series) FundingRate() (float64, bool) {
	if s.funding == nil {
		return 0, false
	}
	return *s.funding, true
}

// SetOpenInterest attaches an open-interest history, oldest first.
func (s *Series) SetOpenInterest(values []float64) {
	s.openInterest = values
}

// OpenInterest returns the attached open-interest history.
func (s *Series) OpenInterest() []float64 { return s.openInterest }

// Truncate returns a view of the series restricted to bars at-or-before t.
// Derived columns and attached snapshots carry over, sliced to match.
func (s *Series) Truncate(t time.Time) *Series {
	n := sort.Search(len(s.bars), func(i int) bool {
		return s.bars[i].Time.After(t)
	})
	return s.slice(0, n)
}

// Tail returns a view of the last n bars (the whole series when n >= Len).
func (s *Series) Tail(n int) *Series {
	if n >= len(s.bars) {
		n = len(s.bars)
	}
	return s.slice(len(s.bars)-n, len(s.bars))
}

func (s *Series) slice(from, to int) *Series {
	cols := make(map[string][]float64, len(s.columns))
	for name, col := range s.columns {
		cols[name] = col[from:to]
	}
	return &Series{
		bars:         s.bars[from:to],
		columns:      cols,
		funding:      s.funding,
		openInterest: s.openInterest,
	}
}
