// Package indicator implements the technical indicators consumed by the
// built-in strategies. All functions operate on ordered price slices and
// return series aligned 1:1 with the input; warm-up positions where the
// indicator is undefined hold NaN.
package indicator

import "math"

// SMA returns the simple moving average of values over the given window.
func SMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || window > len(values) {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA returns the exponential moving average of values with the standard
// smoothing factor 2/(window+1). The first defined point is seeded with the
// SMA of the first window values.
func EMA(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || window > len(values) {
		return out
	}

	var seed float64
	for i := 0; i < window; i++ {
		seed += values[i]
	}
	seed /= float64(window)
	out[window-1] = seed

	alpha := 2.0 / float64(window+1)
	prev := seed
	for i := window; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// MACD returns the MACD line (fast EMA − slow EMA), its signal line, and the
// histogram (macd − signal).
func MACD(values []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	n := len(values)
	macd = nanSlice(n)
	signalLine = nanSlice(n)
	hist = nanSlice(n)

	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	for i := 0; i < n; i++ {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}

	// The signal line is an EMA over the defined portion of the MACD line.
	start := firstDefined(macd)
	if start < 0 || n-start < signal {
		return macd, signalLine, hist
	}
	sigPart := EMA(macd[start:], signal)
	for i, v := range sigPart {
		signalLine[start+i] = v
	}
	for i := 0; i < n; i++ {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signalLine[i]) {
			hist[i] = macd[i] - signalLine[i]
		}
	}
	return macd, signalLine, hist
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}
