package mask

import (
	"image"
	"image/color"
	"runtime"
	"sync"
)

// Map holds a boolean grid where true means the pixel is inside the region
// of interest.
type Map struct {
	Width, Height int
	Inside        []bool // row-major: index = y*Width + x
}

// At returns whether the pixel at (x, y) is inside the region.
func (m *Map) At(x, y int) bool {
	return m.Inside[y*m.Width+x]
}

// Count returns the number of selected pixels.
func (m *Map) Count() int {
	count := 0
	for _, in := range m.Inside {
		if in {
			count++
		}
	}
	return count
}

// Selector turns a mask raster into a region map.
type Selector interface {
	Select(img image.Image) *Map
}

// Threshold selects pixels whose luminance is strictly above Level.
// Luminance is taken from the alpha-premultiplied color, so fully
// transparent pixels are never selected. Level 0 reproduces the usual
// "non-black is inside" reading of black/white PNG masks.
type Threshold struct {
	Level uint8

	// Workers is the number of goroutines scanning rows. 0 uses one per CPU.
	Workers int
}

// Select classifies every pixel of img as inside or outside.
func (t *Threshold) Select(img image.Image) *Map {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	m := &Map{
		Width:  w,
		Height: h,
		Inside: make([]bool, w*h),
	}

	parallelRows(h, t.Workers, func(sy, ey int) {
		for y := sy; y < ey; y++ {
			for x := 0; x < w; x++ {
				if luminance(img, bounds.Min.X+x, bounds.Min.Y+y) > t.Level {
					m.Inside[y*w+x] = true
				}
			}
		}
	})

	return m
}

// FromImage is a convenience wrapper that applies a Threshold selector.
func FromImage(img image.Image, level uint8) *Map {
	t := &Threshold{Level: level}
	return t.Select(img)
}

// Full returns a map that selects every pixel of a w×h raster.
func Full(w, h int) *Map {
	m := &Map{Width: w, Height: h, Inside: make([]bool, w*h)}
	for i := range m.Inside {
		m.Inside[i] = true
	}
	return m
}

func luminance(img image.Image, x, y int) uint8 {
	switch src := img.(type) {
	case *image.Gray:
		return src.GrayAt(x, y).Y
	case *image.Alpha:
		return src.AlphaAt(x, y).A
	default:
		return color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
	}
}

// parallelRows runs fn across row bands using up to numWorkers goroutines.
func parallelRows(h, numWorkers int, fn func(startY, endY int)) {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > h {
		numWorkers = h
	}
	if numWorkers < 1 {
		return
	}
	rowsPerWorker := (h + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= h {
			break
		}
		wg.Add(1)
		go func(sy, ey int) {
			defer wg.Done()
			fn(sy, ey)
		}(startY, endY)
	}
	wg.Wait()
}
