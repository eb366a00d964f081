// Package tcadstat reads quantitative values back out of false-color TCAD
// plots.
//
// A color map legend is sampled into (color, value) pairs, every pixel of a
// masked region of the plot is mapped to its nearest legend color, and the
// region is summarized by its weighted average, mean, median, mode, extrema
// and a per-color area breakdown.
//
// Usage as a library:
//
//	plot, _ := tcadstat.LoadImage("doping.png")
//	mask, _ := tcadstat.LoadImage("region.png")
//	legend, _ := tcadstat.LoadImage("legend.png")
//	result, err := tcadstat.Calculate(tcadstat.Request{
//		Image: plot, Mask: mask, ColorMap: legend,
//		TopValue: 1e18, BottomValue: 1e15,
//	}, tcadstat.DefaultOptions())
//
// Or use the file-based convenience:
//
//	result, err := tcadstat.CalculateFiles("doping.png", "region.png", "legend.png", 1e18, 1e15, tcadstat.DefaultOptions())
package tcadstat

import (
	"fmt"
	"image"

	"github.com/maax3v3/tcadstat/internal/aggregation"
	"github.com/maax3v3/tcadstat/internal/classify"
	"github.com/maax3v3/tcadstat/internal/color"
	"github.com/maax3v3/tcadstat/internal/colormap"
	"github.com/maax3v3/tcadstat/internal/imaging"
	"github.com/maax3v3/tcadstat/internal/pipeline"
	"github.com/maax3v3/tcadstat/internal/report"
)

// Color map reading directions.
const (
	AxisVertical   = "vertical"   // Top row is the top value.
	AxisHorizontal = "horizontal" // Left column is the top value.
	AxisAuto       = "auto"       // Along the longer side.
)

// Value spacing along the color map.
const (
	ScaleLinear = "linear"
	ScaleLog    = "log" // Requires a positive bottom value.
)

// Color distances used to match pixels to the color map.
const (
	MetricRGB = "rgb" // Squared Euclidean distance in 8-bit RGB.
	MetricLAB = "lab" // Euclidean distance in CIE L*a*b*.
)

// Error kinds. Match them with errors.Is.
var (
	ErrInvalidColorMap   = colormap.ErrInvalidColorMap
	ErrInvalidRange      = colormap.ErrInvalidRange
	ErrDimensionMismatch = aggregation.ErrDimensionMismatch
	ErrEmptyRegion       = aggregation.ErrEmptyRegion
)

// Result is the summary of one region.
type Result = report.Result

// LegendEntry is one distinct color of a region.
type LegendEntry = report.LegendEntry

// Stats holds the per-pixel statistics of a region.
type Stats = report.Stats

// Options configures a calculation.
type Options struct {
	// Samples is the number of colors read from the color map. 0 reads one
	// per pixel along its axis. Default: 35.
	Samples int

	// Axis is the reading direction of the color map. Default: "vertical".
	Axis string

	// Scale is the value spacing along the color map. Default: "linear".
	Scale string

	// Smoothing is the size of a mean filter applied to the color map before
	// sampling. 0 disables it. Default: 0.
	Smoothing int

	// ResampleLength resizes the color map to this many pixels along its
	// axis before sampling. 0 keeps its size. Default: 0.
	ResampleLength int

	// Metric is the color distance. Default: "rgb".
	Metric string

	// QuantizeStep rounds each channel of a pixel that matches no legend
	// color exactly to a multiple of this step before the nearest-color
	// search. 0 or 1 disables it. Default: 4.
	QuantizeStep int

	// MaskThreshold is the luminance a mask pixel must exceed to be inside
	// the region. Default: 0.
	MaskThreshold uint8

	// Workers is the number of goroutines scanning the image. 0 uses one
	// per CPU. Default: 0.
	Workers int
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Samples:      colormap.DefaultSamples,
		Axis:         AxisVertical,
		Scale:        ScaleLinear,
		Metric:       MetricRGB,
		QuantizeStep: classify.DefaultQuantizeStep,
	}
}

// Request holds the inputs of one calculation.
type Request struct {
	Image    image.Image
	Mask     image.Image // nil selects the whole image
	ColorMap image.Image

	TopValue    float64
	BottomValue float64

	// SelectionArea is echoed in the result.
	SelectionArea *float64
}

// LoadImage reads an image from disk. Supports PNG, JPEG, WEBP, BMP and TIFF.
func LoadImage(path string) (image.Image, error) {
	return imaging.Load(path)
}

// Calculate summarizes the masked region of req.Image using req.ColorMap.
func Calculate(req Request, opts Options) (*Result, error) {
	po, err := opts.pipelineOptions()
	if err != nil {
		return nil, err
	}
	return pipeline.Calculate(pipeline.Input{
		Image:         req.Image,
		Mask:          req.Mask,
		ColorMap:      req.ColorMap,
		TopValue:      req.TopValue,
		BottomValue:   req.BottomValue,
		SelectionArea: req.SelectionArea,
	}, po, nil)
}

// CalculateFiles is a convenience that loads the plot, mask and color map
// from disk and calculates. An empty maskPath selects the whole plot.
func CalculateFiles(imagePath, maskPath, colorMapPath string, top, bottom float64, opts Options) (*Result, error) {
	req := Request{TopValue: top, BottomValue: bottom}
	var err error
	if req.Image, err = LoadImage(imagePath); err != nil {
		return nil, fmt.Errorf("loading image: %w", err)
	}
	if maskPath != "" {
		if req.Mask, err = LoadImage(maskPath); err != nil {
			return nil, fmt.Errorf("loading mask: %w", err)
		}
	}
	if req.ColorMap, err = LoadImage(colorMapPath); err != nil {
		return nil, fmt.Errorf("loading color map: %w", err)
	}
	return Calculate(req, opts)
}

// ErrorKind names the kind of a calculation error: "InvalidColorMap",
// "InvalidRange", "DimensionMismatch", "EmptyRegion", or "" otherwise.
func ErrorKind(err error) string {
	return pipeline.Kind(err)
}

// pipelineOptions validates opts and converts them to engine options.
func (o Options) pipelineOptions() (pipeline.Options, error) {
	axis, err := colormap.ParseAxis(o.Axis)
	if err != nil {
		return pipeline.Options{}, err
	}
	scale, err := colormap.ParseScale(o.Scale)
	if err != nil {
		return pipeline.Options{}, err
	}
	metric, err := color.ParseMetric(o.Metric)
	if err != nil {
		return pipeline.Options{}, err
	}
	if o.QuantizeStep < 0 {
		return pipeline.Options{}, fmt.Errorf("quantize step must be >= 0, got %d", o.QuantizeStep)
	}
	return pipeline.Options{
		ColorMap: colormap.Options{
			Samples:        o.Samples,
			Axis:           axis,
			Scale:          scale,
			Smoothing:      o.Smoothing,
			ResampleLength: o.ResampleLength,
		},
		Classify: classify.Options{
			Metric:       metric,
			QuantizeStep: o.QuantizeStep,
		},
		MaskThreshold: o.MaskThreshold,
		Workers:       o.Workers,
	}, nil
}
