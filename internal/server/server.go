package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maax3v3/tcadstat/internal/cli"
	"github.com/maax3v3/tcadstat/internal/imaging"
	"github.com/maax3v3/tcadstat/internal/pipeline"
	"github.com/maax3v3/tcadstat/internal/report"
)

// KindBadRequest marks malformed requests that never reached the engine.
const KindBadRequest = "BadRequest"

// Config configures the HTTP service.
type Config struct {
	Options pipeline.Options

	// DefaultColorMap is used when a request does not upload a colormap.
	// When nil such requests are rejected.
	DefaultColorMap image.Image

	MaxUploadBytes int64
	RequestTimeout time.Duration

	// Port is reported by the health endpoint.
	Port string
}

// Server serves the region statistics API.
type Server struct {
	cfg    Config
	router chi.Router
}

// New builds the router and its middleware stack.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Post("/calculate-average", toHTTPFunc(s.handleCalculate))

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ConfigFromServe builds a Config from parsed command-line settings,
// loading the default color map if one is named.
func ConfigFromServe(sc cli.ServeConfig) (Config, error) {
	cfg := Config{
		Options:        pipeline.OptionsFromEngine(sc.Engine),
		MaxUploadBytes: sc.MaxUploadBytes,
		RequestTimeout: sc.RequestTimeout,
		Port:           portOf(sc.Addr),
	}
	if sc.ColorMapPath != "" {
		img, err := imaging.Load(sc.ColorMapPath)
		if err != nil {
			return Config{}, fmt.Errorf("loading default color map: %w", err)
		}
		cfg.DefaultColorMap = img
	}
	return cfg, nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Port    string `json:"port"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Message: "Backend is running",
		Port:    s.cfg.Port,
	})
}

type calculateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	*report.Result
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) (interface{}, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, badRequest("parsing multipart form: %v", err)
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	in := pipeline.Input{}
	var err error
	if in.Image, err = formImage(r, "image", true); err != nil {
		return nil, err
	}
	if in.Mask, err = formImage(r, "mask", true); err != nil {
		return nil, err
	}
	if in.ColorMap, err = formImage(r, "colormap", false); err != nil {
		return nil, err
	}
	if in.ColorMap == nil {
		if s.cfg.DefaultColorMap == nil {
			return nil, badRequest("missing file field %q and no default color map is configured", "colormap")
		}
		in.ColorMap = s.cfg.DefaultColorMap
	}
	if in.TopValue, err = formFloat(r, "topValue"); err != nil {
		return nil, err
	}
	if in.BottomValue, err = formFloat(r, "bottomValue"); err != nil {
		return nil, err
	}
	if in.SelectionArea, err = cli.ParseOptionalFloat(r.FormValue("selectionArea")); err != nil {
		return nil, badRequest("field %q: %v", "selectionArea", err)
	}

	id := uuid.NewString()
	lg := log.WithFields(log.Fields{
		"request": middleware.GetReqID(r.Context()),
		"id":      id,
	})
	result, err := pipeline.Calculate(in, s.cfg.Options, lg)
	if err != nil {
		return nil, err
	}
	lg.WithFields(log.Fields{
		"average":  result.Average,
		"segments": result.Stats.NumSegments,
		"pixels":   result.Stats.TotalPixel,
	}).Info("Region statistics computed")

	return calculateResponse{Success: true, ID: id, Result: result}, nil
}

// requestError is an error with a fixed HTTP status and kind.
type requestError struct {
	status int
	kind   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, kind: KindBadRequest, msg: fmt.Sprintf(format, args...)}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) (interface{}, error)

func toHTTPFunc(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := h(w, r)
		if r.Context().Err() != nil {
			// The timeout middleware answers for us.
			return
		}
		if err != nil {
			status, kind := classifyError(err)
			entry := log.WithError(err).WithFields(log.Fields{
				"request": middleware.GetReqID(r.Context()),
				"kind":    kind,
			})
			if status >= http.StatusInternalServerError {
				entry.Error("Request failed")
			} else {
				entry.Warn("Request rejected")
			}
			writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
			return
		}
		writeJSON(w, http.StatusOK, data)
	}
}

// classifyError maps an error to its response status and kind.
func classifyError(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return re.status, re.kind
	}
	switch kind := pipeline.Kind(err); kind {
	case "InvalidColorMap", "InvalidRange":
		return http.StatusBadRequest, kind
	case "DimensionMismatch", "EmptyRegion":
		return http.StatusUnprocessableEntity, kind
	default:
		return http.StatusInternalServerError, "Internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Internal error: Can't marshal json")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func formImage(r *http.Request, field string, required bool) (image.Image, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, badRequest("missing file field %q", field)
		}
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("reading field %q: %v", field, err)
	}
	defer f.Close()

	img, _, err := imaging.Decode(f)
	if err != nil {
		return nil, badRequest("field %q: %v", field, err)
	}
	return img, nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	s := strings.TrimSpace(r.FormValue(field))
	if s == "" {
		return 0, badRequest("missing field %q", field)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, badRequest("field %q: %v", field, err)
	}
	return v, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"request": middleware.GetReqID(r.Context()),
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  ww.Status(),
			"bytes":   ww.BytesWritten(),
			"elapsed": time.Since(start),
		}).Info("Request handled")
	})
}

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
