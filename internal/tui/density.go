package tui

import (
	"strconv"

	"github.com/NimbleMarkets/ntcharts/barchart"
)

// densityBuckets spreads the matching line numbers over n equal buckets
// covering lines [0, total).
func densityBuckets(matches []int, total, n int) []int {
	if n <= 0 {
		return nil
	}
	buckets := make([]int, n)
	if total <= 0 {
		return buckets
	}
	for _, line := range matches {
		if line < 0 || line >= total {
			continue
		}
		buckets[line*n/total]++
	}
	return buckets
}

// renderDensity draws where in the log the matches fall, one bar per
// column, oldest lines on the left.
func renderDensity(matches []int, total, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(0),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for i, count := range densityBuckets(matches, total, width) {
		bc.Push(barchart.BarData{
			Label: strconv.Itoa(i),
			Values: []barchart.BarValue{{
				Name:  "matches",
				Value: float64(count),
				Style: StyleDensity,
			}},
		})
	}
	bc.Draw()
	return bc.View()
}
