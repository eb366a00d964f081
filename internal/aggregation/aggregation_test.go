package aggregation

import (
	"errors"
	"image"
	stdcolor "image/color"
	"reflect"
	"testing"

	"github.com/maax3v3/tcadstat/internal/classify"
	"github.com/maax3v3/tcadstat/internal/color"
	"github.com/maax3v3/tcadstat/internal/colormap"
	"github.com/maax3v3/tcadstat/internal/mask"
)

var (
	red   = color.RGB{R: 255, G: 0, B: 0}
	green = color.RGB{R: 0, G: 255, B: 0}
	blue  = color.RGB{R: 0, G: 0, B: 255}
)

func newClassifier(t *testing.T) *classify.Classifier {
	t.Helper()
	c, err := classify.New([]colormap.Entry{
		{Color: red, Value: 1},
		{Color: green, Value: 0},
		{Color: blue, Value: -1},
	}, classify.DefaultOptions())
	if err != nil {
		t.Fatalf("classify.New: %v", err)
	}
	return c
}

func imageOf(w, h int, px func(x, y int) color.RGB) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, px(x, y).ToStdColor())
		}
	}
	return img
}

func TestAggregate_FullRegion(t *testing.T) {
	img := imageOf(4, 3, func(x, y int) color.RGB {
		if x < 3 {
			return green
		}
		return red
	})
	res, err := Aggregate(img, mask.Full(4, 3), newClassifier(t), 2)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Total != 12 {
		t.Errorf("Total: got %d, want 12", res.Total)
	}
	if len(res.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(res.Buckets))
	}
	if b := res.Buckets[green]; b.Count != 9 || b.Value != 0 {
		t.Errorf("green bucket: got %+v", b)
	}
	if b := res.Buckets[red]; b.Count != 3 || b.Value != 1 {
		t.Errorf("red bucket: got %+v", b)
	}
	if len(res.Values) != 12 {
		t.Errorf("Values: got %d entries, want 12", len(res.Values))
	}
}

func TestAggregate_MaskRestrictsRegion(t *testing.T) {
	img := imageOf(4, 4, func(x, y int) color.RGB {
		if y < 2 {
			return red
		}
		return blue
	})
	m := mask.Full(4, 4)
	for i := 0; i < 8; i++ {
		m.Inside[i] = false
	}

	res, err := Aggregate(img, m, newClassifier(t), 0)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Total != 8 {
		t.Errorf("Total: got %d, want 8", res.Total)
	}
	if _, ok := res.Buckets[red]; ok {
		t.Error("masked-out red pixels must not be counted")
	}
	if b := res.Buckets[blue]; b.Count != 8 {
		t.Errorf("blue bucket: got %+v, want 8 pixels", b)
	}
}

func TestAggregate_Conservation(t *testing.T) {
	img := imageOf(17, 13, func(x, y int) color.RGB {
		return color.RGB{R: uint8(x * 15), G: uint8(y * 19), B: uint8((x + y) * 7)}
	})
	m := mask.Full(17, 13)
	for i := range m.Inside {
		m.Inside[i] = i%3 != 0
	}

	res, err := Aggregate(img, m, newClassifier(t), 5)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	sum := 0
	for _, b := range res.Buckets {
		sum += b.Count
	}
	if sum != res.Total {
		t.Errorf("bucket counts sum to %d, Total is %d", sum, res.Total)
	}
	if res.Total != m.Count() {
		t.Errorf("Total %d differs from selected pixel count %d", res.Total, m.Count())
	}
}

func TestAggregate_DeterministicAcrossWorkers(t *testing.T) {
	img := imageOf(9, 31, func(x, y int) color.RGB {
		return color.RGB{R: uint8(x * 25), G: uint8(y * 8), B: 128}
	})
	m := mask.Full(9, 31)
	c := newClassifier(t)

	want, err := Aggregate(img, m, c, 1)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	for _, workers := range []int{2, 3, 8, 64} {
		got, err := Aggregate(img, m, c, workers)
		if err != nil {
			t.Fatalf("Aggregate(%d workers): %v", workers, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%d workers produced a different result", workers)
		}
	}
}

func TestAggregate_DimensionMismatch(t *testing.T) {
	img := imageOf(4, 4, func(x, y int) color.RGB { return red })
	_, err := Aggregate(img, mask.Full(4, 5), newClassifier(t), 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestAggregate_EmptyRegion(t *testing.T) {
	img := imageOf(4, 4, func(x, y int) color.RGB { return red })
	m := &mask.Map{Width: 4, Height: 4, Inside: make([]bool, 16)}
	_, err := Aggregate(img, m, newClassifier(t), 1)
	if !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("got %v, want ErrEmptyRegion", err)
	}
}

func TestAggregate_OffsetImage(t *testing.T) {
	full := image.NewRGBA(image.Rect(0, 0, 6, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			full.SetRGBA(x, y, stdcolor.RGBA{255, 0, 0, 255})
		}
	}
	full.SetRGBA(5, 5, stdcolor.RGBA{0, 0, 255, 255})
	sub := full.SubImage(image.Rect(3, 3, 6, 6))

	res, err := Aggregate(sub, mask.Full(3, 3), newClassifier(t), 2)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.Buckets[blue].Count != 1 || res.Buckets[red].Count != 8 {
		t.Errorf("unexpected buckets for sub-image: %+v", res.Buckets)
	}
}

func TestMerge(t *testing.T) {
	a := newResult()
	a.add(classify.Match{Key: red, Value: 1})
	a.add(classify.Match{Key: blue, Value: -1})
	b := newResult()
	b.add(classify.Match{Key: red, Value: 1})
	b.add(classify.Match{Key: green, Value: 0})

	a.Merge(b)
	if a.Total != 4 {
		t.Errorf("Total: got %d, want 4", a.Total)
	}
	if a.Buckets[red].Count != 2 || a.Buckets[green].Count != 1 || a.Buckets[blue].Count != 1 {
		t.Errorf("unexpected merged buckets: %+v", a.Buckets)
	}
	if want := []float64{1, -1, 1, 0}; !reflect.DeepEqual(a.Values, want) {
		t.Errorf("Values: got %v, want %v", a.Values, want)
	}
}

func TestSorted(t *testing.T) {
	r := newResult()
	r.add(classify.Match{Key: blue, Value: -1})
	r.add(classify.Match{Key: red, Value: 1})
	r.add(classify.Match{Key: green, Value: 0})

	got := r.Sorted()
	want := []color.RGB{red, green, blue}
	for i, b := range got {
		if b.Key != want[i] {
			t.Errorf("position %d: got %v, want %v", i, b.Key, want[i])
		}
	}
}
