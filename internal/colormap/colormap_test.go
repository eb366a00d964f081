package colormap

import (
	"errors"
	"image"
	stdcolor "image/color"
	"math"
	"testing"

	"github.com/maax3v3/tcadstat/internal/color"
)

// verticalStrip builds a w-pixel wide strip with one row per color.
func verticalStrip(w int, rows ...stdcolor.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, len(rows)))
	for y, c := range rows {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// gradient builds an h-pixel tall strip whose red channel falls from 255 to 0.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		r := uint8(255 - y*255/(h-1))
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, stdcolor.RGBA{r, 0, 255 - r, 255})
		}
	}
	return img
}

var (
	red   = stdcolor.RGBA{255, 0, 0, 255}
	green = stdcolor.RGBA{0, 255, 0, 255}
	blue  = stdcolor.RGBA{0, 0, 255, 255}
)

func TestSample_TwoColors(t *testing.T) {
	img := verticalStrip(3, red, blue)
	entries, err := Sample(img, 10, 0, DefaultOptions())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (clamped to strip length), got %d", len(entries))
	}
	if entries[0].Color != (color.RGB{R: 255, G: 0, B: 0}) || entries[0].Value != 10 {
		t.Errorf("entry 0: got %+v, want red=10", entries[0])
	}
	if entries[1].Color != (color.RGB{R: 0, G: 0, B: 255}) || entries[1].Value != 0 {
		t.Errorf("entry 1: got %+v, want blue=0", entries[1])
	}
}

func TestSample_ThreeColorsNegativeRange(t *testing.T) {
	img := verticalStrip(1, red, green, blue)
	entries, err := Sample(img, 1, -1, DefaultOptions())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	want := []float64{1, 0, -1}
	for i, e := range entries {
		if e.Value != want[i] {
			t.Errorf("entry %d value: got %v, want %v", i, e.Value, want[i])
		}
	}
}

func TestSample_Monotonic(t *testing.T) {
	img := gradient(4, 300)
	for _, n := range []int{2, 7, 35, 300, 0} {
		opts := DefaultOptions()
		opts.Samples = n
		entries, err := Sample(img, 3.5e18, -2e17, opts)
		if err != nil {
			t.Fatalf("Sample(n=%d): %v", n, err)
		}
		for i := 1; i < len(entries); i++ {
			if entries[i].Value >= entries[i-1].Value {
				t.Fatalf("n=%d: value %d (%v) not below value %d (%v)",
					n, i, entries[i].Value, i-1, entries[i-1].Value)
			}
		}
		if entries[0].Value != 3.5e18 || entries[len(entries)-1].Value != -2e17 {
			t.Errorf("n=%d: ends are %v and %v", n, entries[0].Value, entries[len(entries)-1].Value)
		}
	}
}

func TestSample_SampleCount(t *testing.T) {
	img := gradient(2, 100)
	tests := []struct {
		samples int
		want    int
	}{
		{0, 100},
		{35, 35},
		{100, 100},
		{500, 100},
		{2, 2},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Samples = tt.samples
		entries, err := Sample(img, 1, 0, opts)
		if err != nil {
			t.Fatalf("Sample(%d): %v", tt.samples, err)
		}
		if len(entries) != tt.want {
			t.Errorf("Samples=%d: got %d entries, want %d", tt.samples, len(entries), tt.want)
		}
	}
}

func TestSample_EndpointsReadStripEnds(t *testing.T) {
	img := gradient(1, 50)
	opts := DefaultOptions()
	opts.Samples = 5
	entries, err := Sample(img, 1, 0, opts)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if entries[0].Color.R != 255 {
		t.Errorf("first entry should read the top row, got %+v", entries[0].Color)
	}
	if entries[4].Color.R != 0 {
		t.Errorf("last entry should read the bottom row, got %+v", entries[4].Color)
	}
}

func TestSample_Horizontal(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		img.SetRGBA(0, y, red)
		img.SetRGBA(1, y, green)
		img.SetRGBA(2, y, blue)
	}

	for _, axis := range []Axis{AxisHorizontal, AxisAuto} {
		opts := DefaultOptions()
		opts.Axis = axis
		entries, err := Sample(img, 2, 0, opts)
		if err != nil {
			t.Fatalf("Sample(%v): %v", axis, err)
		}
		if len(entries) != 3 {
			t.Fatalf("%v: expected 3 entries, got %d", axis, len(entries))
		}
		if entries[1].Color != (color.RGB{R: 0, G: 255, B: 0}) || entries[1].Value != 1 {
			t.Errorf("%v: middle entry got %+v, want green=1", axis, entries[1])
		}
	}
}

func TestSample_OffsetBounds(t *testing.T) {
	full := verticalStrip(2, green, red, blue, green)
	sub := full.SubImage(image.Rect(0, 1, 2, 3))
	entries, err := Sample(sub, 5, 4, DefaultOptions())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if entries[0].Color != (color.RGB{R: 255, G: 0, B: 0}) || entries[1].Color != (color.RGB{R: 0, G: 0, B: 255}) {
		t.Errorf("sub-image sampled wrong rows: %+v", entries)
	}
}

func TestSample_Smoothing(t *testing.T) {
	// A single bright pixel in the sampled column is averaged away.
	img := verticalStrip(5, blue, blue, blue, blue, blue)
	img.SetRGBA(2, 2, red)

	opts := DefaultOptions()
	opts.Smoothing = 3
	entries, err := Sample(img, 1, 0, opts)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got := entries[2].Color; got.R > 40 || got.B < 200 {
		t.Errorf("smoothed middle entry should be mostly blue, got %+v", got)
	}

	entries, err = Sample(img, 1, 0, DefaultOptions())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got := entries[2].Color; got != (color.RGB{R: 255, G: 0, B: 0}) {
		t.Errorf("unsmoothed middle entry should be red, got %+v", got)
	}
}

func TestSample_Resample(t *testing.T) {
	img := gradient(3, 20)
	opts := DefaultOptions()
	opts.Samples = 0
	opts.ResampleLength = 64
	entries, err := Sample(img, 1, 0, opts)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(entries) != 64 {
		t.Errorf("expected one entry per resampled row (64), got %d", len(entries))
	}
}

func TestSample_Errors(t *testing.T) {
	strip := verticalStrip(2, red, blue)
	tests := []struct {
		name     string
		img      image.Image
		top      float64
		bottom   float64
		samples  int
		resample int
		smooth   int
		want     error
	}{
		{"nil image", nil, 1, 0, 35, 0, 0, ErrInvalidColorMap},
		{"single row", verticalStrip(4, red), 1, 0, 35, 0, 0, ErrInvalidColorMap},
		{"empty image", image.NewRGBA(image.Rect(0, 0, 0, 0)), 1, 0, 35, 0, 0, ErrInvalidColorMap},
		{"one sample", strip, 1, 0, 1, 0, 0, ErrInvalidColorMap},
		{"top equals bottom", strip, 1, 1, 35, 0, 0, ErrInvalidRange},
		{"top below bottom", strip, 0, 1, 35, 0, 0, ErrInvalidRange},
		{"NaN top", strip, math.NaN(), 0, 35, 0, 0, ErrInvalidRange},
		{"infinite bottom", strip, 1, math.Inf(-1), 35, 0, 0, ErrInvalidRange},
		{"range checked before image", nil, 0, 1, 35, 0, 0, ErrInvalidRange},
		{"single pixel resampled", verticalStrip(1, red), 1, 0, 35, 512, 0, ErrInvalidColorMap},
		{"single row smoothed and resampled", verticalStrip(4, red), 1, 0, 35, 64, 3, ErrInvalidColorMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Samples = tt.samples
			opts.ResampleLength = tt.resample
			opts.Smoothing = tt.smooth
			_, err := Sample(tt.img, tt.top, tt.bottom, opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("got error %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValues_Linear(t *testing.T) {
	got, err := Values(10, 0, 5, ScaleLinear)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	want := []float64{10, 7.5, 5, 2.5, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("value %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValues_Log(t *testing.T) {
	got, err := Values(1000, 1, 4, ScaleLog)
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	want := []float64{1000, 100, 10, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9*want[i] {
			t.Errorf("value %d: got %v, want %v", i, got[i], want[i])
		}
	}

	if _, err := Values(10, -1, 4, ScaleLog); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("log scale with negative bottom: got %v, want ErrInvalidRange", err)
	}
}

func TestValues_TooNarrow(t *testing.T) {
	_, err := Values(1+1e-15, 1, 100, ScaleLinear)
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("got %v, want ErrInvalidRange", err)
	}
}

func TestParseAxisAndScale(t *testing.T) {
	if a, err := ParseAxis("Horizontal"); err != nil || a != AxisHorizontal {
		t.Errorf("ParseAxis(Horizontal) = %v, %v", a, err)
	}
	if _, err := ParseAxis("diagonal"); err == nil {
		t.Error("expected error for unknown axis")
	}
	if s, err := ParseScale("log"); err != nil || s != ScaleLog {
		t.Errorf("ParseScale(log) = %v, %v", s, err)
	}
	if _, err := ParseScale("symlog"); err == nil {
		t.Error("expected error for unknown scale")
	}
}
