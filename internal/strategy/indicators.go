package strategy

import "math"

// Indicator functions return slices aligned index-for-index with their input.
// Entries before an indicator's first valid index are zero; callers are
// responsible for not reading them.

// SMA computes the simple moving average. out[i] is valid for i >= period-1.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average, seeded with the simple average
// of the first period values. out[i] is valid for i >= period-1.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// RSI computes the relative strength index with Wilder smoothing. The first
// average gain/loss is the simple mean of the first period changes; later
// values are smoothed. out[i] is valid for i >= period.
func RSI(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDLines computes the MACD line (EMA fast minus EMA slow), the signal line
// (EMA of the MACD line) and the histogram (MACD minus signal). The MACD line
// is valid from index slow-1, the signal line and histogram from index
// slow+signalPeriod-2.
func MACDLines(closes []float64, fast, slow, signalPeriod int) (macd, signal, hist []float64) {
	n := len(closes)
	macd = make([]float64, n)
	signal = make([]float64, n)
	hist = make([]float64, n)
	if n < slow+signalPeriod-1 {
		return macd, signal, hist
	}

	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Seed the signal line with the simple average of the first signalPeriod
	// MACD values, then smooth exponentially.
	start := slow - 1
	var sum float64
	for i := start; i < start+signalPeriod; i++ {
		sum += macd[i]
	}
	first := start + signalPeriod - 1
	signal[first] = sum / float64(signalPeriod)
	hist[first] = macd[first] - signal[first]

	k := 2.0 / float64(signalPeriod+1)
	for i := first + 1; i < n; i++ {
		signal[i] = (macd[i]-signal[i-1])*k + signal[i-1]
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// ATR computes the average true range over period bars, using an expanding
// simple average until period bars are available. Valid from index 0.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 {
			tr[i] = highs[0] - lows[0]
			continue
		}
		tr[i] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}

	out := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		sum += tr[i]
		if i < period {
			out[i] = sum / float64(i+1)
		} else {
			sum -= tr[i-period]
			out[i] = sum / float64(period)
		}
	}
	return out
}

// clamp01 clamps v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
