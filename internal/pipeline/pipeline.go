package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maax3v3/tcadstat/internal/aggregation"
	"github.com/maax3v3/tcadstat/internal/classify"
	"github.com/maax3v3/tcadstat/internal/cli"
	"github.com/maax3v3/tcadstat/internal/colormap"
	"github.com/maax3v3/tcadstat/internal/imaging"
	"github.com/maax3v3/tcadstat/internal/mask"
	"github.com/maax3v3/tcadstat/internal/report"
	"github.com/maax3v3/tcadstat/internal/statistics"
)

// Options configures one calculation.
type Options struct {
	ColorMap      colormap.Options
	Classify      classify.Options
	MaskThreshold uint8
	Workers       int

	// Selector reads the region from the mask image. nil uses a
	// mask.Threshold at MaskThreshold.
	Selector mask.Selector
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		ColorMap: colormap.DefaultOptions(),
		Classify: classify.DefaultOptions(),
	}
}

// OptionsFromEngine converts parsed command-line settings.
func OptionsFromEngine(e cli.Engine) Options {
	return Options{
		ColorMap: colormap.Options{
			Samples:        e.Samples,
			Axis:           e.Axis,
			Scale:          e.Scale,
			Smoothing:      e.Smoothing,
			ResampleLength: e.ResampleLength,
		},
		Classify: classify.Options{
			Metric:       e.Metric,
			QuantizeStep: e.QuantizeStep,
		},
		MaskThreshold: e.MaskThreshold,
		Workers:       e.Workers,
	}
}

// Input is the set of images and values a calculation works on.
type Input struct {
	Image    image.Image
	Mask     image.Image // nil selects the whole image
	ColorMap image.Image

	TopValue    float64
	BottomValue float64

	// SelectionArea is copied to the result unchanged.
	SelectionArea *float64
}

// Calculate maps every masked pixel of in.Image to a value read from
// in.ColorMap and summarizes the region. Progress is logged at debug level
// on lg; a nil lg logs to the standard logger.
func Calculate(in Input, opts Options, lg log.FieldLogger) (*report.Result, error) {
	if lg == nil {
		lg = log.StandardLogger()
	}
	if err := colormap.ValidateRange(in.TopValue, in.BottomValue, opts.ColorMap.Scale); err != nil {
		return nil, err
	}
	if in.Image == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	// Step 1: Sample the color map
	entries, err := colormap.Sample(in.ColorMap, in.TopValue, in.BottomValue, opts.ColorMap)
	if err != nil {
		return nil, err
	}
	lg.WithFields(log.Fields{
		"entries": len(entries),
		"axis":    opts.ColorMap.Axis,
		"scale":   opts.ColorMap.Scale,
	}).Debug("Color map sampled")

	// Step 2: Build the classifier
	c, err := classify.New(entries, opts.Classify)
	if err != nil {
		return nil, err
	}

	// Step 3: Select the region
	bounds := in.Image.Bounds()
	var region *mask.Map
	if in.Mask == nil {
		region = mask.Full(bounds.Dx(), bounds.Dy())
	} else {
		region = selectorFor(opts).Select(in.Mask)
	}
	lg.WithFields(log.Fields{
		"selected": region.Count(),
		"pixels":   region.Width * region.Height,
	}).Debug("Region selected")

	// Step 4: Classify and group pixels
	res, err := aggregation.Aggregate(in.Image, region, c, opts.Workers)
	if err != nil {
		return nil, err
	}
	lg.WithFields(log.Fields{
		"buckets": len(res.Buckets),
		"total":   res.Total,
	}).Debug("Pixels aggregated")

	// Step 5: Summarize
	st, err := statistics.Compute(res)
	if err != nil {
		return nil, err
	}
	out := report.Assemble(res, st)
	out.SelectionArea = in.SelectionArea
	return out, nil
}

func selectorFor(opts Options) mask.Selector {
	if opts.Selector != nil {
		return opts.Selector
	}
	return &mask.Threshold{Level: opts.MaskThreshold, Workers: opts.Workers}
}

// Run executes the batch command: it loads the images named in cfg,
// calculates the region statistics and writes them as JSON to cfg.OutPath,
// or to stdout when no path is set.
func Run(cfg cli.CalcConfig, stdout io.Writer) error {
	start := time.Now()
	lg := log.WithFields(log.Fields{
		"run":   uuid.NewString(),
		"image": cfg.ImagePath,
	})

	// Step 1: Load input images
	in := Input{
		TopValue:      cfg.TopValue,
		BottomValue:   cfg.BottomValue,
		SelectionArea: cfg.SelectionArea,
	}
	var err error
	if in.Image, err = imaging.Load(cfg.ImagePath); err != nil {
		return fmt.Errorf("loading image: %w", err)
	}
	if cfg.MaskPath != "" {
		if in.Mask, err = imaging.Load(cfg.MaskPath); err != nil {
			return fmt.Errorf("loading mask: %w", err)
		}
	}
	if in.ColorMap, err = imaging.Load(cfg.ColorMapPath); err != nil {
		return fmt.Errorf("loading color map: %w", err)
	}
	lg.WithFields(log.Fields{
		"width":  in.Image.Bounds().Dx(),
		"height": in.Image.Bounds().Dy(),
	}).Info("Images loaded")

	// Step 2: Calculate
	result, err := Calculate(in, OptionsFromEngine(cfg.Engine), lg)
	if err != nil {
		return err
	}
	lg.WithFields(log.Fields{
		"average":  result.Average,
		"segments": result.Stats.NumSegments,
		"pixels":   result.Stats.TotalPixel,
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Info("Region statistics computed")

	// Step 3: Write output
	if cfg.OutPath == "" {
		return writeJSON(stdout, result)
	}
	f, err := os.Create(imaging.ExpandPath(cfg.OutPath))
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := writeJSON(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output: %w", err)
	}
	lg.WithField("out", cfg.OutPath).Info("Result saved")
	return nil
}

func writeJSON(w io.Writer, result *report.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// Kind names the category of a calculation error: "InvalidColorMap",
// "InvalidRange", "DimensionMismatch", "EmptyRegion", or "" for anything else.
func Kind(err error) string {
	switch {
	case errors.Is(err, colormap.ErrInvalidColorMap):
		return "InvalidColorMap"
	case errors.Is(err, colormap.ErrInvalidRange):
		return "InvalidRange"
	case errors.Is(err, aggregation.ErrDimensionMismatch):
		return "DimensionMismatch"
	case errors.Is(err, aggregation.ErrEmptyRegion):
		return "EmptyRegion"
	default:
		return ""
	}
}
