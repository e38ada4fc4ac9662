package conditions

import (
	"fmt"
	"math"

	"github.com/Lodewijkheemskerk/BluePrint/internal/series"
)

// lastValue reads the most recent value of a column, treating a missing
// column or a warm-up NaN as an evaluation error.
func lastValue(s *series.Series, col string) (float64, error) {
	return valueAt(s, col, s.Len()-1)
}

func valueAt(s *series.Series, col string, i int) (float64, error) {
	v := s.Value(col, i)
	if math.IsNaN(v) {
		return 0, fmt.Errorf("column %q has no value at index %d", col, i)
	}
	return v, nil
}

func errInsufficient(col string, window int) error {
	return fmt.Errorf("column %q has fewer than %d values", col, window)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
