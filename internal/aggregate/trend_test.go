package aggregate

import (
	"testing"

	"github.com/sparkmesh/miner-agent/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRecentTrend(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values []float64
		want   domain.Trend
	}{
		{"empty", nil, domain.TrendStable},
		{"too short", []float64{1, 2, 3, 4, 5}, domain.TrendStable},
		{"flat", []float64{2, 2, 2, 2, 2, 2}, domain.TrendStable},
		{"doubling", []float64{1, 1, 1, 2, 2, 2}, domain.TrendUp},
		{"halving", []float64{2, 2, 2, 1, 1, 1}, domain.TrendDown},
		{"within threshold", []float64{100, 100, 100, 104, 104, 104}, domain.TrendStable},
		{"just over threshold", []float64{100, 100, 100, 106, 106, 106}, domain.TrendUp},
		{"growth from zero", []float64{0, 0, 0, 1, 1, 1}, domain.TrendUp},
		{"all zero", []float64{0, 0, 0, 0, 0, 0}, domain.TrendStable},
		{"only last six count", []float64{50, 50, 1, 1, 1, 2, 2, 2}, domain.TrendUp},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, RecentTrend(tc.values))
		})
	}
}

func TestHalvesTrend(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values []float64
		want   domain.Trend
	}{
		{"empty", nil, domain.TrendStable},
		{"single point", []float64{5}, domain.TrendStable},
		{"flat", []float64{2, 2, 2, 2, 2, 2}, domain.TrendStable},
		{"doubling", []float64{1, 1, 1, 2, 2, 2}, domain.TrendUp},
		{"halving", []float64{2, 2, 2, 1, 1, 1}, domain.TrendDown},
		{"growth from zero", []float64{0, 0, 1, 1}, domain.TrendUp},
		{"all zero", []float64{0, 0, 0, 0}, domain.TrendStable},
		{"odd length leans recent", []float64{1, 1, 2, 2, 2}, domain.TrendUp},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, HalvesTrend(tc.values))
		})
	}
}

// The two detectors disagree on a series whose growth sits entirely in the
// middle; this pins down that they stay separate.
func TestDetectorsDiverge(t *testing.T) {
	t.Parallel()

	values := []float64{1, 1, 1, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	assert.Equal(t, domain.TrendStable, RecentTrend(values), "Last six points are flat")
	assert.Equal(t, domain.TrendUp, HalvesTrend(values), "Second half outgrew the first")
}
