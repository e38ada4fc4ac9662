package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestFromBarsSortsAndDeduplicates(t *testing.T) {
	bars := []Bar{
		{Time: day(2), Close: 3},
		{Time: day(0), Close: 1},
		{Time: day(1), Close: 2},
		{Time: day(1), Close: 99}, // duplicate timestamp, first wins
	}

	s := FromBars(bars)

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 1.0, s.Bar(0).Close)
	assert.Equal(t, 2.0, s.Bar(1).Close)
	assert.Equal(t, 3.0, s.Bar(2).Close)
	assert.Equal(t, 3.0, s.Last().Close)
}

func TestColumnAccess(t *testing.T) {
	s := FromBars([]Bar{{Time: day(0), Close: 1}, {Time: day(1), Close: 2}})

	assert.False(t, s.HasColumn("x"))
	assert.True(t, math.IsNaN(s.LastValue("x")))

	s.SetColumn("x", []float64{10, 20})
	require.True(t, s.HasColumn("x"))
	assert.Equal(t, 20.0, s.LastValue("x"))
	assert.Equal(t, 10.0, s.Value("x", 0))
	assert.True(t, math.IsNaN(s.Value("x", 5)))

	assert.Panics(t, func() { s.SetColumn("bad", []float64{1}) })
}

func TestTruncateKeepsBarsAtOrBeforeTime(t *testing.T) {
	s := FromBars([]Bar{
		{Time: day(0), Close: 1},
		{Time: day(1), Close: 2},
		{Time: day(2), Close: 3},
	})
	s.SetColumn("x", []float64{10, 20, 30})

	cut := s.Truncate(day(1))
	require.Equal(t, 2, cut.Len())
	assert.Equal(t, 2.0, cut.Last().Close)
	assert.Equal(t, 20.0, cut.LastValue("x"))

	// Times between bars truncate to the earlier bar.
	mid := s.Truncate(day(1).Add(time.Hour))
	assert.Equal(t, 2, mid.Len())

	all := s.Truncate(day(10))
	assert.Equal(t, 3, all.Len())

	none := s.Truncate(day(0).Add(-time.Hour))
	assert.Equal(t, 0, none.Len())
}

func TestTail(t *testing.T) {
	s := FromBars([]Bar{
		{Time: day(0), Close: 1},
		{Time: day(1), Close: 2},
		{Time: day(2), Close: 3},
	})

	last2 := s.Tail(2)
	require.Equal(t, 2, last2.Len())
	assert.Equal(t, 2.0, last2.Bar(0).Close)

	assert.Equal(t, 3, s.Tail(10).Len())
}

func TestFundingAndOpenInterestCarryThroughViews(t *testing.T) {
	s := FromBars([]Bar{{Time: day(0)}, {Time: day(1)}})

	_, ok := s.FundingRate()
	assert.False(t, ok)

	s.SetFundingRate(0.0001)
	s.SetOpenInterest([]float64{1, 2, 3})

	view := s.Tail(1)
	rate, ok := view.FundingRate()
	require.True(t, ok)
	assert.Equal(t, 0.0001, rate)
	assert.Equal(t, []float64{1, 2, 3}, view.OpenInterest())
}
