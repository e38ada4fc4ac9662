package indicators

import "math"

// The helpers below reproduce the exact warm-up and smoothing behavior the
// condition engine was tuned against: rolling windows emit NaN until filled,
// exponential means are seeded by the first observation.

// ewmSpan computes an exponential moving average with smoothing factor
// 2/(span+1), seeded by the first value.
func ewmSpan(values []float64, span int) []float64 {
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// ewmMean computes an adjusted exponential mean with decay 1/(1+com).
// NaN inputs contribute nothing but still age the accumulated weights.
// Output is NaN until minPeriods non-NaN observations have been seen.
func ewmMean(values []float64, com float64, minPeriods int) []float64 {
	alpha := 1.0 / (1.0 + com)
	decay := 1.0 - alpha
	out := make([]float64, len(values))
	var num, den float64
	seen := 0
	for i, v := range values {
		num *= decay
		den *= decay
		if !math.IsNaN(v) {
			num += v
			den++
			seen++
		}
		if seen >= minPeriods && den > 0 {
			out[i] = num / den
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rollingMean computes a simple moving average, NaN until the window fills.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rollingStd computes a sample standard deviation (ddof=1) over a rolling
// window, NaN until the window fills.
func rollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < window-1 || window < 2 {
			out[i] = math.NaN()
			continue
		}
		w := values[i-window+1 : i+1]
		var mean float64
		for _, v := range w {
			mean += v
		}
		mean /= float64(window)
		var variance float64
		for _, v := range w {
			d := v - mean
			variance += d * d
		}
		variance /= float64(window - 1)
		out[i] = math.Sqrt(variance)
	}
	return out
}

// diff computes values[i] - values[i-lookback], NaN for the first lookback
// entries.
func diff(values []float64, lookback int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < lookback {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i] - values[i-lookback]
	}
	return out
}
