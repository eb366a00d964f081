package classify

import (
	"fmt"

	"github.com/maax3v3/tcadstat/internal/color"
	"github.com/maax3v3/tcadstat/internal/colormap"
)

// DefaultQuantizeStep is the channel rounding step applied to pixels that
// match no color-map entry exactly.
const DefaultQuantizeStep = 4

// Options configures pixel classification.
type Options struct {
	// Metric is the color distance used to find the nearest entry.
	Metric color.Metric

	// QuantizeStep rounds each channel of a pixel that matches no entry
	// exactly to a multiple of this step before the nearest-entry search,
	// so anti-aliased shades of one color resolve together. 1 disables it.
	QuantizeStep int
}

// DefaultOptions returns RGB matching with DefaultQuantizeStep.
func DefaultOptions() Options {
	return Options{
		Metric:       color.MetricRGB,
		QuantizeStep: DefaultQuantizeStep,
	}
}

// Match is the classification of one pixel.
type Match struct {
	Index int       // index of the matched color-map entry
	Key   color.RGB // color of that entry, used as bucket key
	Value float64   // value of that entry
}

// Classifier maps arbitrary colors to the nearest color-map entry.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	entries []colormap.Entry
	exact   map[color.RGB]int
	metric  color.Metric
	step    int
}

// New builds a classifier over entries, which must be non-empty.
//
// Entries sharing one color are reachable only through the earliest of
// them, so a bucket key always carries a single value.
func New(entries []colormap.Entry, opts Options) (*Classifier, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no color-map entries to classify against", colormap.ErrInvalidColorMap)
	}
	c := &Classifier{
		entries: entries,
		exact:   make(map[color.RGB]int, len(entries)),
		metric:  opts.Metric,
		step:    opts.QuantizeStep,
	}
	for i, e := range entries {
		if _, ok := c.exact[e.Color]; !ok {
			c.exact[e.Color] = i
		}
	}
	return c, nil
}

// Len returns the number of color-map entries.
func (c *Classifier) Len() int {
	return len(c.entries)
}

// Entries returns the color-map entries in sample order.
func (c *Classifier) Entries() []colormap.Entry {
	return c.entries
}

// Nearest returns the index of the entry closest to px. Ties go to the
// earliest entry.
func (c *Classifier) Nearest(px color.RGB) int {
	best := 0
	bestDist := c.metric.Distance(px, c.entries[0].Color)
	for i := 1; i < len(c.entries) && bestDist > 0; i++ {
		d := c.metric.Distance(px, c.entries[i].Color)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Classify returns the bucket and value for px. A pixel equal to an entry
// color takes that entry; any other pixel is quantized and matched to the
// nearest entry. It never fails.
func (c *Classifier) Classify(px color.RGB) Match {
	i, ok := c.exact[px]
	if !ok {
		i = c.Nearest(px.Quantize(c.step))
	}
	e := c.entries[i]
	return Match{Index: i, Key: e.Color, Value: e.Value}
}

// Cache memoizes classifications of repeated colors. Simulation plots use
// few distinct colors, so most lookups hit. A Cache is not safe for
// concurrent use; give each goroutine its own.
type Cache struct {
	c    *Classifier
	seen map[color.RGB]Match
}

// NewCache returns an empty cache in front of c.
func (c *Classifier) NewCache() *Cache {
	return &Cache{c: c, seen: make(map[color.RGB]Match, 256)}
}

// Classify returns the memoized classification of px.
func (k *Cache) Classify(px color.RGB) Match {
	if m, ok := k.seen[px]; ok {
		return m
	}
	m := k.c.Classify(px)
	k.seen[px] = m
	return m
}
