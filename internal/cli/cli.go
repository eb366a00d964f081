package cli

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/maax3v3/tcadstat/internal/classify"
	"github.com/maax3v3/tcadstat/internal/color"
	"github.com/maax3v3/tcadstat/internal/colormap"
)

// Engine holds the calculation settings shared by all commands.
type Engine struct {
	Samples        int
	Axis           colormap.Axis
	Scale          colormap.Scale
	Smoothing      int
	ResampleLength int
	Metric         color.Metric
	QuantizeStep   int
	MaskThreshold  uint8
	Workers        int
}

// Logging holds the logrus settings shared by all commands.
type Logging struct {
	Level string
	JSON  bool
}

// CalcConfig holds the parsed arguments of the batch command.
type CalcConfig struct {
	ImagePath     string
	MaskPath      string
	ColorMapPath  string
	OutPath       string
	TopValue      float64
	BottomValue   float64
	SelectionArea *float64
	Engine        Engine
	Logging       Logging
}

// ServeConfig holds the parsed arguments of the HTTP service.
type ServeConfig struct {
	Addr           string
	ColorMapPath   string
	MaxUploadBytes int64
	RequestTimeout time.Duration
	Engine         Engine
	Logging        Logging
}

// engineFlags registers the engine flags on fs and returns a function that
// validates them once fs has been parsed.
func engineFlags(fs *flag.FlagSet) func() (Engine, error) {
	samples := fs.Int("samples", colormap.DefaultSamples, "Number of colors read from the color map (0 = one per pixel)")
	axis := fs.String("axis", "vertical", "Color map reading direction: vertical, horizontal or auto")
	scale := fs.String("scale", "linear", "Value spacing along the color map: linear or log")
	smoothing := fs.Int("smoothing", 0, "Mean filter size applied to the color map before sampling (0 = off)")
	resample := fs.Int("resample", 0, "Resize the color map to this many pixels along its axis before sampling (0 = off)")
	metric := fs.String("metric", "rgb", "Color distance used for matching: rgb or lab")
	quantize := fs.Int("quantize", classify.DefaultQuantizeStep, "Channel step applied to unmatched pixels before the nearest-color search (1 = off)")
	threshold := fs.Int("mask-threshold", 0, "Mask pixels with luminance above this level (0-254) are inside the region")
	workers := fs.Int("workers", 0, "Goroutines used for the pixel scan (0 = one per CPU)")

	return func() (Engine, error) {
		if *samples < 0 || *samples == 1 {
			return Engine{}, fmt.Errorf("--samples must be 0 or at least 2, got %d", *samples)
		}
		if *smoothing < 0 {
			return Engine{}, fmt.Errorf("--smoothing must be >= 0, got %d", *smoothing)
		}
		if *resample < 0 || *resample == 1 {
			return Engine{}, fmt.Errorf("--resample must be 0 or at least 2, got %d", *resample)
		}
		if *quantize < 1 || *quantize > 128 {
			return Engine{}, fmt.Errorf("--quantize must be between 1 and 128, got %d", *quantize)
		}
		if *threshold < 0 || *threshold > 254 {
			return Engine{}, fmt.Errorf("--mask-threshold must be between 0 and 254, got %d", *threshold)
		}
		if *workers < 0 {
			return Engine{}, fmt.Errorf("--workers must be >= 0, got %d", *workers)
		}
		a, err := colormap.ParseAxis(*axis)
		if err != nil {
			return Engine{}, fmt.Errorf("--axis: %w", err)
		}
		s, err := colormap.ParseScale(*scale)
		if err != nil {
			return Engine{}, fmt.Errorf("--scale: %w", err)
		}
		m, err := color.ParseMetric(*metric)
		if err != nil {
			return Engine{}, fmt.Errorf("--metric: %w", err)
		}
		return Engine{
			Samples:        *samples,
			Axis:           a,
			Scale:          s,
			Smoothing:      *smoothing,
			ResampleLength: *resample,
			Metric:         m,
			QuantizeStep:   *quantize,
			MaskThreshold:  uint8(*threshold),
			Workers:        *workers,
		}, nil
	}
}

func loggingFlags(fs *flag.FlagSet) func() (Logging, error) {
	level := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	asJSON := fs.Bool("log-json", false, "Emit logs as JSON")
	return func() (Logging, error) {
		if _, err := log.ParseLevel(*level); err != nil {
			return Logging{}, fmt.Errorf("--log-level: %w", err)
		}
		return Logging{Level: *level, JSON: *asJSON}, nil
	}
}

// ParseCalc parses the arguments of the batch command.
func ParseCalc(args []string, stderr io.Writer) (CalcConfig, error) {
	fs := flag.NewFlagSet("tcadstat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	imagePath := fs.String("image", "", "Path to the cropped plot image (required, supports PNG, JPEG, WEBP, BMP, TIFF)")
	maskPath := fs.String("mask", "", "Path to the black/white region mask (default: whole image)")
	colorMapPath := fs.String("colormap", "", "Path to the color map legend image (required)")
	outPath := fs.String("out", "", "Path of the JSON result (default: stdout)")
	top := fs.String("top", "", "Value at the top end of the color map (required)")
	bottom := fs.String("bottom", "", "Value at the bottom end of the color map (required)")
	area := fs.String("selection-area", "", "Physical area of the selected region, echoed in the result")
	engine := engineFlags(fs)
	logging := loggingFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tcadstat [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExample:\n  tcadstat --image=plot.png --mask=mask.png --colormap=legend.png --top=1e18 --bottom=1e15 --scale=log\n")
	}

	if err := fs.Parse(args); err != nil {
		return CalcConfig{}, err
	}

	if *imagePath == "" {
		return CalcConfig{}, fmt.Errorf("--image is required")
	}
	if *colorMapPath == "" {
		return CalcConfig{}, fmt.Errorf("--colormap is required")
	}
	if *outPath != "" {
		if ext := strings.ToLower(filepath.Ext(*outPath)); ext != ".json" {
			return CalcConfig{}, fmt.Errorf("--out must be a .json file, got %q", ext)
		}
	}
	topValue, err := parseRequiredFloat("--top", *top)
	if err != nil {
		return CalcConfig{}, err
	}
	bottomValue, err := parseRequiredFloat("--bottom", *bottom)
	if err != nil {
		return CalcConfig{}, err
	}
	selection, err := ParseOptionalFloat(*area)
	if err != nil {
		return CalcConfig{}, fmt.Errorf("--selection-area: %w", err)
	}
	eng, err := engine()
	if err != nil {
		return CalcConfig{}, err
	}
	lg, err := logging()
	if err != nil {
		return CalcConfig{}, err
	}

	return CalcConfig{
		ImagePath:     *imagePath,
		MaskPath:      *maskPath,
		ColorMapPath:  *colorMapPath,
		OutPath:       *outPath,
		TopValue:      topValue,
		BottomValue:   bottomValue,
		SelectionArea: selection,
		Engine:        eng,
		Logging:       lg,
	}, nil
}

// ParseServe parses the arguments of the HTTP service.
func ParseServe(args []string, stderr io.Writer) (ServeConfig, error) {
	fs := flag.NewFlagSet("tcadstatd", flag.ContinueOnError)
	fs.SetOutput(stderr)

	addr := fs.String("addr", ":5001", "Listen address")
	colorMapPath := fs.String("colormap", "", "Color map used when a request does not upload one")
	maxUpload := fs.Int64("max-upload-mb", 32, "Maximum size of a multipart request in MiB")
	timeout := fs.Duration("timeout", 60*time.Second, "Per-request processing timeout")
	engine := engineFlags(fs)
	logging := loggingFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tcadstatd [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ServeConfig{}, err
	}

	if *addr == "" {
		return ServeConfig{}, fmt.Errorf("--addr is required")
	}
	if *maxUpload <= 0 {
		return ServeConfig{}, fmt.Errorf("--max-upload-mb must be > 0, got %d", *maxUpload)
	}
	if *timeout <= 0 {
		return ServeConfig{}, fmt.Errorf("--timeout must be > 0, got %s", *timeout)
	}
	eng, err := engine()
	if err != nil {
		return ServeConfig{}, err
	}
	lg, err := logging()
	if err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Addr:           *addr,
		ColorMapPath:   *colorMapPath,
		MaxUploadBytes: *maxUpload << 20,
		RequestTimeout: *timeout,
		Engine:         eng,
		Logging:        lg,
	}, nil
}

// SetupLogging configures the standard logrus logger.
func SetupLogging(l Logging) error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	if l.JSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func parseRequiredFloat(name, s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// ParseOptionalFloat parses s as a finite float; an empty string yields nil.
func ParseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("value %q is not finite", s)
	}
	return &v, nil
}
