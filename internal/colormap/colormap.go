package colormap

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/gift"
	"github.com/nfnt/resize"

	"github.com/maax3v3/tcadstat/internal/color"
)

var (
	// ErrInvalidColorMap reports a missing or degenerate color-map raster.
	ErrInvalidColorMap = errors.New("invalid color map")
	// ErrInvalidRange reports top/bottom values that cannot span a color map.
	ErrInvalidRange = errors.New("invalid value range")
)

// DefaultSamples is the number of color bands DefaultOptions reads from a
// color map.
const DefaultSamples = 35

// Entry is one sampled color of the map together with the physical value it
// stands for.
type Entry struct {
	Color color.RGB
	Value float64
}

// Axis selects the direction along which the color map is read.
type Axis int

const (
	// AxisVertical reads a vertical strip from top (topValue) to bottom.
	AxisVertical Axis = iota
	// AxisHorizontal reads a horizontal strip from left (topValue) to right.
	AxisHorizontal
	// AxisAuto reads along the longer side of the image.
	AxisAuto
)

// ParseAxis parses "vertical", "horizontal" or "auto".
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vertical":
		return AxisVertical, nil
	case "horizontal":
		return AxisHorizontal, nil
	case "auto":
		return AxisAuto, nil
	default:
		return AxisVertical, fmt.Errorf("unknown axis %q (supported: vertical, horizontal, auto)", s)
	}
}

func (a Axis) String() string {
	switch a {
	case AxisHorizontal:
		return "horizontal"
	case AxisAuto:
		return "auto"
	default:
		return "vertical"
	}
}

// Scale selects how values are spread between topValue and bottomValue.
type Scale int

const (
	// ScaleLinear spaces values evenly.
	ScaleLinear Scale = iota
	// ScaleLog spaces values evenly in log10; both ends must be positive.
	ScaleLog
)

// ParseScale parses "linear" or "log".
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return ScaleLinear, nil
	case "log":
		return ScaleLog, nil
	default:
		return ScaleLinear, fmt.Errorf("unknown scale %q (supported: linear, log)", s)
	}
}

func (s Scale) String() string {
	if s == ScaleLog {
		return "log"
	}
	return "linear"
}

// Options configures color-map sampling.
type Options struct {
	// Samples is the number of entries to read. Values above the length of
	// the sampled axis are clamped to it; 0 reads one entry per pixel.
	Samples int

	// Axis is the reading direction.
	Axis Axis

	// Scale is the value spacing between the two ends.
	Scale Scale

	// Smoothing is the kernel size of a mean filter applied before
	// sampling. Even sizes are rounded up to the next odd size; 0 or 1
	// disables smoothing.
	Smoothing int

	// ResampleLength resizes the color map so that the sampled axis has
	// this many pixels before reading it. 0 keeps the original size.
	ResampleLength int
}

// DefaultOptions returns the sampling options used when none are given.
func DefaultOptions() Options {
	return Options{
		Samples: DefaultSamples,
		Axis:    AxisVertical,
		Scale:   ScaleLinear,
	}
}

// ValidateRange checks that top and bottom are finite, that top > bottom and
// that the scale can represent them.
func ValidateRange(top, bottom float64, scale Scale) error {
	if math.IsNaN(top) || math.IsInf(top, 0) {
		return fmt.Errorf("%w: top value %v is not finite", ErrInvalidRange, top)
	}
	if math.IsNaN(bottom) || math.IsInf(bottom, 0) {
		return fmt.Errorf("%w: bottom value %v is not finite", ErrInvalidRange, bottom)
	}
	if top <= bottom {
		return fmt.Errorf("%w: top value %v must be greater than bottom value %v", ErrInvalidRange, top, bottom)
	}
	if scale == ScaleLog && bottom <= 0 {
		return fmt.Errorf("%w: log scale needs positive values, got bottom value %v", ErrInvalidRange, bottom)
	}
	return nil
}

// Sample reads an ordered list of entries from a color-map image. Entry 0
// carries top, the last entry carries bottom, and values decrease strictly
// in between.
func Sample(img image.Image, top, bottom float64, opts Options) ([]Entry, error) {
	if err := ValidateRange(top, bottom, opts.Scale); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: image is nil", ErrInvalidColorMap)
	}

	bounds := img.Bounds()
	vertical := isVertical(opts.Axis, bounds)
	if err := checkSize(bounds, vertical); err != nil {
		return nil, err
	}

	if opts.ResampleLength > 0 {
		img = resample(img, vertical, opts.ResampleLength)
		bounds = img.Bounds()
	}
	if opts.Smoothing > 1 {
		img = smooth(img, opts.Smoothing)
		bounds = img.Bounds()
	}

	if err := checkSize(bounds, vertical); err != nil {
		return nil, err
	}
	length, cross := axisLengths(bounds, vertical)

	n := opts.Samples
	if n == 1 || n < 0 {
		return nil, fmt.Errorf("%w: %d samples requested, need at least 2", ErrInvalidColorMap, n)
	}
	if n == 0 || n > length {
		n = length
	}

	values, err := Values(top, bottom, n, opts.Scale)
	if err != nil {
		return nil, err
	}

	mid := cross / 2
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		pos := int(math.Round(float64(i) * float64(length-1) / float64(n-1)))
		var x, y int
		if vertical {
			x, y = bounds.Min.X+mid, bounds.Min.Y+pos
		} else {
			x, y = bounds.Min.X+pos, bounds.Min.Y+mid
		}
		entries[i] = Entry{
			Color: color.FromStdColor(img.At(x, y)),
			Value: values[i],
		}
	}
	return entries, nil
}

// Values returns n values running from top down to bottom under the given
// scale. The ends are exact; the sequence is strictly decreasing or an
// ErrInvalidRange is returned.
func Values(top, bottom float64, n int, scale Scale) ([]float64, error) {
	if err := ValidateRange(top, bottom, scale); err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: %d samples requested, need at least 2", ErrInvalidColorMap, n)
	}

	values := make([]float64, n)
	last := float64(n - 1)
	switch scale {
	case ScaleLog:
		lt, lb := math.Log10(top), math.Log10(bottom)
		for i := range values {
			values[i] = math.Pow(10, lt-float64(i)/last*(lt-lb))
		}
	default:
		for i := range values {
			values[i] = top - float64(i)/last*(top-bottom)
		}
	}
	values[0] = top
	values[n-1] = bottom

	for i := 1; i < n; i++ {
		if values[i] >= values[i-1] {
			return nil, fmt.Errorf("%w: range [%v, %v] is too narrow for %d distinct samples",
				ErrInvalidRange, bottom, top, n)
		}
	}
	return values, nil
}

func isVertical(axis Axis, bounds image.Rectangle) bool {
	switch axis {
	case AxisHorizontal:
		return false
	case AxisAuto:
		return bounds.Dy() >= bounds.Dx()
	default:
		return true
	}
}

func axisName(vertical bool) string {
	if vertical {
		return "vertical"
	}
	return "horizontal"
}

// resample stretches or shrinks the sampled axis to length pixels and keeps
// the cross axis as it is.
func resample(img image.Image, vertical bool, length int) image.Image {
	b := img.Bounds()
	if b.Empty() {
		return img
	}
	if vertical {
		return resize.Resize(uint(b.Dx()), uint(length), img, resize.Bilinear)
	}
	return resize.Resize(uint(length), uint(b.Dy()), img, resize.Bilinear)
}

func smooth(img image.Image, ksize int) image.Image {
	if ksize%2 == 0 {
		ksize++
	}
	g := gift.New(gift.Mean(ksize, false))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

func axisLengths(bounds image.Rectangle, vertical bool) (length, cross int) {
	if vertical {
		return bounds.Dy(), bounds.Dx()
	}
	return bounds.Dx(), bounds.Dy()
}

// checkSize rejects a color map too small to hold two distinct samples.
func checkSize(bounds image.Rectangle, vertical bool) error {
	length, cross := axisLengths(bounds, vertical)
	if length < 2 || cross < 1 {
		return fmt.Errorf("%w: image is %dx%d, need at least 2 pixels along the %s axis",
			ErrInvalidColorMap, bounds.Dx(), bounds.Dy(), axisName(vertical))
	}
	return nil
}
