// Package aggregate provides the read-side rollups over a device's raw
// task and earning collections: breakdowns, period filters, zero-filled
// daily/hourly series, and trend and peak detection. Nothing here persists
// state; every call recomputes from the rows it is given.
package aggregate

import "github.com/sparkmesh/miner-agent/internal/domain"

// trendThreshold is the relative-change threshold below which a series is
// considered stable, for both detectors.
const trendThreshold = 0.05

// RecentTrend classifies a series by comparing the mean of its most recent
// 3 points against the mean of the 3 preceding ones. Series shorter than 6
// points are reported stable.
//
// HalvesTrend below classifies differently; both detectors exist at
// different call sites on purpose and must not be unified.
func RecentTrend(values []float64) domain.Trend {
	if len(values) < 6 {
		return domain.TrendStable
	}

	recent := mean(values[len(values)-3:])
	previous := mean(values[len(values)-6 : len(values)-3])

	return classify(recent, previous)
}

// HalvesTrend classifies a series by comparing the mean of its second half
// against the mean of its first half. Series shorter than 2 points are
// reported stable.
func HalvesTrend(values []float64) domain.Trend {
	if len(values) < 2 {
		return domain.TrendStable
	}

	mid := len(values) / 2
	first := mean(values[:mid])
	second := mean(values[mid:])

	return classify(second, first)
}

// classify compares the newer mean against the older one under the
// relative-change threshold.
func classify(newer, older float64) domain.Trend {
	if older == 0 {
		if newer > 0 {
			return domain.TrendUp
		}
		return domain.TrendStable
	}

	change := (newer - older) / older
	switch {
	case change > trendThreshold:
		return domain.TrendUp
	case change < -trendThreshold:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
