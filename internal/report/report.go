package report

import (
	"sort"

	"github.com/maax3v3/tcadstat/internal/aggregation"
	"github.com/maax3v3/tcadstat/internal/statistics"
)

// LegendEntry is one distinct output color of the region.
type LegendEntry struct {
	R              uint8   `json:"r"`
	G              uint8   `json:"g"`
	B              uint8   `json:"b"`
	AssignedValue  float64 `json:"assignedValue"`
	PercentageArea float64 `json:"percentageArea"`
	PixelCount     int     `json:"pixelCount"`
	AreaUnderCurve float64 `json:"areaUnderCurve"`
}

// Stats is the wire form of statistics.Region.
type Stats struct {
	Mean             float64 `json:"mean"`
	Median           float64 `json:"median"`
	Mode             float64 `json:"mode"`
	MinAssignedValue float64 `json:"minAssignedValue"`
	MaxAssignedValue float64 `json:"maxAssignedValue"`
	NumSegments      int     `json:"numSegments"`
	TotalPixel       int     `json:"totalPixel"`
}

// Result is the response handed to presentation layers.
type Result struct {
	Average       float64       `json:"average"`
	Stats         Stats         `json:"stats"`
	ColorMapData  []LegendEntry `json:"colorMapData"`
	SelectionArea *float64      `json:"selectionArea,omitempty"`
}

// Assemble builds the legend and wraps the statistics. Legend entries are
// ordered by descending area share; equal shares are ordered by ascending
// value.
func Assemble(res *aggregation.Result, st statistics.Region) *Result {
	buckets := res.Sorted()
	legend := make([]LegendEntry, 0, len(buckets))
	for _, b := range buckets {
		if b.Count <= 0 {
			continue
		}
		legend = append(legend, LegendEntry{
			R:              b.Key.R,
			G:              b.Key.G,
			B:              b.Key.B,
			AssignedValue:  b.Value,
			PercentageArea: 100 * float64(b.Count) / float64(res.Total),
			PixelCount:     b.Count,
			AreaUnderCurve: float64(b.Count) * b.Value,
		})
	}
	sort.SliceStable(legend, func(i, j int) bool {
		if legend[i].PixelCount != legend[j].PixelCount {
			return legend[i].PixelCount > legend[j].PixelCount
		}
		return legend[i].AssignedValue < legend[j].AssignedValue
	})

	return &Result{
		Average: st.WeightedAverage,
		Stats: Stats{
			Mean:             st.Mean,
			Median:           st.Median,
			Mode:             st.Mode,
			MinAssignedValue: st.MinAssignedValue,
			MaxAssignedValue: st.MaxAssignedValue,
			NumSegments:      st.NumSegments,
			TotalPixel:       st.TotalPixel,
		},
		ColorMapData: legend,
	}
}
