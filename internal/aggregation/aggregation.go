package aggregation

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"sort"
	"sync"

	"github.com/maax3v3/tcadstat/internal/classify"
	"github.com/maax3v3/tcadstat/internal/color"
	"github.com/maax3v3/tcadstat/internal/mask"
)

var (
	// ErrDimensionMismatch reports a mask whose size differs from the image.
	ErrDimensionMismatch = errors.New("image and mask dimensions differ")
	// ErrEmptyRegion reports a mask that selects no pixels.
	ErrEmptyRegion = errors.New("mask selects no pixels")
)

// Bucket accumulates the pixels that classified to one color-map entry.
type Bucket struct {
	Key   color.RGB
	Count int
	Value float64
}

// Result is the outcome of scanning a region.
type Result struct {
	Buckets map[color.RGB]Bucket
	Total   int       // number of classified pixels
	Values  []float64 // per-pixel values in row-major scan order
}

func newResult() *Result {
	return &Result{Buckets: make(map[color.RGB]Bucket)}
}

func (r *Result) add(m classify.Match) {
	b, ok := r.Buckets[m.Key]
	if !ok {
		b = Bucket{Key: m.Key, Value: m.Value}
	}
	b.Count++
	r.Buckets[m.Key] = b
	r.Total++
	r.Values = append(r.Values, m.Value)
}

// Merge folds other into r by key-wise count sums. Values of other are
// appended after those of r.
func (r *Result) Merge(other *Result) {
	for k, ob := range other.Buckets {
		b, ok := r.Buckets[k]
		if !ok {
			r.Buckets[k] = ob
			continue
		}
		b.Count += ob.Count
		r.Buckets[k] = b
	}
	r.Total += other.Total
	r.Values = append(r.Values, other.Values...)
}

// Sorted returns the buckets ordered by descending value, then key.
func (r *Result) Sorted() []Bucket {
	out := make([]Bucket, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return lessRGB(out[i].Key, out[j].Key)
	})
	return out
}

func lessRGB(a, b color.RGB) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.B < b.B
}

// Aggregate classifies every pixel of img selected by m and groups them by
// bucket. Rows are split across workers (0 means one per CPU) and partial
// results are merged in row order, so the outcome does not depend on
// scheduling.
func Aggregate(img image.Image, m *mask.Map, c *classify.Classifier, workers int) (*Result, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if m.Width != w || m.Height != h {
		return nil, fmt.Errorf("%w: image is %dx%d, mask is %dx%d", ErrDimensionMismatch, w, h, m.Width, m.Height)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > h {
		workers = h
	}
	if workers < 1 {
		workers = 1
	}

	partials := make([]*Result, workers)
	rowsPerWorker := (h + workers - 1) / workers
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		partials[worker] = newResult()
		if startY >= h {
			continue
		}
		wg.Add(1)
		go func(part *Result, sy, ey int) {
			defer wg.Done()
			cache := c.NewCache()
			for y := sy; y < ey; y++ {
				for x := 0; x < w; x++ {
					if !m.At(x, y) {
						continue
					}
					px := color.FromStdColor(img.At(bounds.Min.X+x, bounds.Min.Y+y))
					part.add(cache.Classify(px))
				}
			}
		}(partials[worker], startY, endY)
	}
	wg.Wait()

	res := newResult()
	for _, p := range partials {
		res.Merge(p)
	}
	if res.Total == 0 {
		return nil, fmt.Errorf("%w: %dx%d mask has no pixel inside the region", ErrEmptyRegion, w, h)
	}
	return res, nil
}
