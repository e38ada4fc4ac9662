package conditions

// Swing detection is the shared primitive behind structure, trend-structure,
// divergence, and level calculation: a bar is a swing high when its value is
// greater than or equal to every value within `window` bars on both sides,
// and symmetrically for swing lows.

// SwingHighs returns swing-high values in chronological order.
func SwingHighs(values []float64, window int) []float64 {
	var highs []float64
	for _, i := range swingIndices(values, window, true) {
		highs = append(highs, values[i])
	}
	return highs
}

// SwingLows returns swing-low values in chronological order.
func SwingLows(values []float64, window int) []float64 {
	var lows []float64
	for _, i := range swingIndices(values, window, false) {
		lows = append(lows, values[i])
	}
	return lows
}

func swingLowIndices(values []float64, window int) []int {
	return swingIndices(values, window, false)
}

func swingIndices(values []float64, window int, high bool) []int {
	var indices []int
	for i := window; i < len(values)-window; i++ {
		isSwing := true
		for j := 1; j <= window; j++ {
			if high {
				if !(values[i] >= values[i-j] && values[i] >= values[i+j]) {
					isSwing = false
					break
				}
			} else {
				if !(values[i] <= values[i-j] && values[i] <= values[i+j]) {
					isSwing = false
					break
				}
			}
		}
		if isSwing {
			indices = append(indices, i)
		}
	}
	return indices
}
