package color

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB represents an opaque color with 8-bit components.
type RGB struct {
	R, G, B uint8
}

// FromStdColor converts a standard library color to RGB.
// Premultiplied alpha is undone so that semi-transparent pixels keep their
// hue instead of darkening towards black.
func FromStdColor(c color.Color) RGB {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: n.R, G: n.G, B: n.B}
}

// ToStdColor converts RGB to an opaque standard library color.
func (c RGB) ToStdColor() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// String formats the color as #rrggbb.
func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Colorful converts the color to a go-colorful color.
func (c RGB) Colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// Quantize rounds each channel to the nearest multiple of step, clamped to
// 255. A step of 1 or less returns the color unchanged.
func (c RGB) Quantize(step int) RGB {
	if step <= 1 {
		return c
	}
	q := func(v uint8) uint8 {
		r := int(math.Round(float64(v)/float64(step))) * step
		if r > 255 {
			r = 255
		}
		return uint8(r)
	}
	return RGB{R: q(c.R), G: q(c.G), B: q(c.B)}
}

// DistanceSq computes the squared Euclidean distance in RGB space.
func DistanceSq(a, b RGB) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

// DistanceRGB computes the Euclidean distance in RGB space between two colors.
func DistanceRGB(a, b RGB) float64 {
	return math.Sqrt(float64(DistanceSq(a, b)))
}

// DistanceLAB computes the Euclidean distance in CIELAB space between two colors.
func DistanceLAB(a, b RGB) float64 {
	return a.Colorful().DistanceLab(b.Colorful())
}

// MaxRGBDistance is the maximum possible Euclidean distance in RGB space.
var MaxRGBDistance = math.Sqrt(255 * 255 * 3)

// Metric selects how color distances are measured when matching pixels
// against a color map.
type Metric int

const (
	// MetricRGB uses squared Euclidean distance on 8-bit channels.
	MetricRGB Metric = iota
	// MetricLAB uses Euclidean distance in CIELAB.
	MetricLAB
)

// ParseMetric parses "rgb" or "lab".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgb":
		return MetricRGB, nil
	case "lab":
		return MetricLAB, nil
	default:
		return MetricRGB, fmt.Errorf("unknown color metric %q (supported: rgb, lab)", s)
	}
}

func (m Metric) String() string {
	if m == MetricLAB {
		return "lab"
	}
	return "rgb"
}

// Distance returns the distance between a and b under the metric. Only the
// ordering of results is meaningful; the RGB metric is not square-rooted.
func (m Metric) Distance(a, b RGB) float64 {
	if m == MetricLAB {
		return DistanceLAB(a, b)
	}
	return float64(DistanceSq(a, b))
}
