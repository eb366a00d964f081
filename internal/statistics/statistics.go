package statistics

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/maax3v3/tcadstat/internal/aggregation"
)

// Region holds the summary statistics of a classified region.
type Region struct {
	WeightedAverage  float64
	Mean             float64
	Median           float64
	Mode             float64
	MinAssignedValue float64
	MaxAssignedValue float64
	NumSegments      int
	TotalPixel       int
}

// Compute derives region statistics from an aggregation result.
//
// WeightedAverage is taken over buckets weighted by pixel count, Mean over
// the per-pixel value list. Both describe the same quantity and agree up to
// floating-point summation order.
func Compute(res *aggregation.Result) (Region, error) {
	if res == nil || res.Total == 0 || len(res.Values) == 0 {
		return Region{}, fmt.Errorf("%w: no classified pixels to summarize", aggregation.ErrEmptyRegion)
	}

	buckets := res.Sorted()
	values := make([]float64, 0, len(buckets))
	weights := make([]float64, 0, len(buckets))
	for _, b := range buckets {
		if b.Count <= 0 {
			continue
		}
		values = append(values, b.Value)
		weights = append(weights, float64(b.Count))
	}
	if len(values) == 0 {
		return Region{}, fmt.Errorf("%w: all buckets are empty", aggregation.ErrEmptyRegion)
	}

	weighted := stat.Mean(values, weights)

	mean, err := stats.Mean(res.Values)
	if err != nil {
		return Region{}, fmt.Errorf("computing mean: %w", err)
	}
	median, err := stats.Median(res.Values)
	if err != nil {
		return Region{}, fmt.Errorf("computing median: %w", err)
	}

	// buckets are sorted by descending value, so the ends are the extrema.
	return Region{
		WeightedAverage:  weighted,
		Mean:             mean,
		Median:           median,
		Mode:             mode(values, weights, weighted),
		MinAssignedValue: values[len(values)-1],
		MaxAssignedValue: values[0],
		NumSegments:      len(values),
		TotalPixel:       res.Total,
	}, nil
}

// mode returns the value with the largest weight. Ties go to the value
// closest to center, then to the lowest value.
func mode(values, weights []float64, center float64) float64 {
	best := 0
	for i := 1; i < len(values); i++ {
		switch {
		case weights[i] > weights[best]:
			best = i
		case weights[i] < weights[best]:
		default:
			di := math.Abs(values[i] - center)
			db := math.Abs(values[best] - center)
			if di < db || (di == db && values[i] < values[best]) {
				best = i
			}
		}
	}
	return values[best]
}
