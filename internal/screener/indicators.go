package screener

import (
	"errors"

	"stockradar/internal/domain"
)

// ErrInsufficientHistory reports that a ticker has too few daily bars for
// the requested analysis.
var ErrInsufficientHistory = errors.New("insufficient price history")

func closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highSeries(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowSeries(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// smaEnding returns the mean of the n values ending just before index end.
func smaEnding(vals []float64, n, end int) float64 {
	if n <= 0 || end < n || end > len(vals) {
		return 0
	}
	var sum float64
	for _, v := range vals[end-n : end] {
		sum += v
	}
	return sum / float64(n)
}

func maxOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// avgVolume returns the mean volume of the last n bars, or of all bars when
// n is zero or exceeds the series.
func avgVolume(bars []domain.Bar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if n <= 0 || n > len(bars) {
		n = len(bars)
	}
	var sum float64
	for _, b := range bars[len(bars)-n:] {
		sum += float64(b.Volume)
	}
	return sum / float64(n)
}

func tailBars(bars []domain.Bar, n int) []domain.Bar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
