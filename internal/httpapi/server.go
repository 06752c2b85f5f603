// Package httpapi exposes the seed cell pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz     liveness probe, answers "ok"
//	GET  /v1/params   the configured pipeline parameters
//	POST /v1/measure  request body is the raw micrograph; answers the shape
//	                  records as JSON, or as results.csv with ?format=csv
//
// Query parameters on /v1/measure (block_size, threshold_method,
// threshold_offset, min_object_size, clear_border, area_threshold,
// connectivity) override the configured values for that request.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ironsheep/seed-cell-size/internal/config"
	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/logging"
	"github.com/ironsheep/seed-cell-size/internal/pipeline"
	"github.com/ironsheep/seed-cell-size/internal/results"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
)

// Server wraps the HTTP listener and the configuration requests start from.
type Server struct {
	addr   string
	cfg    *config.Config
	log    *slog.Logger
	server *http.Server
}

// NewServer creates a server listening on cfg.HTTP.Addr. A nil logger
// discards log output.
func NewServer(cfg *config.Config, log *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Server{addr: cfg.HTTP.Addr, cfg: cfg, log: log}
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.setupRoutes(r)
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down server...")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctxShutdown); err != nil {
			s.log.Warn("shutdown failed", "error", err)
		}
	}()

	s.log.Info("Server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/v1/params", s.handleParams).Methods("GET")
	r.HandleFunc("/v1/measure", s.handleMeasure).Methods("POST")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Params())
}

// MeasureResponse is the JSON body of a successful /v1/measure request.
type MeasureResponse struct {
	Summary *pipeline.Summary          `json:"summary"`
	Records []segmentation.ShapeRecord `json:"records"`
}

type errorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (s *Server) handleMeasure(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	start := time.Now()
	q := r.URL.Query()

	p, err := overrideParams(s.cfg.Params(), q)
	if err != nil {
		s.fail(w, runID, start, err)
		return
	}
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		s.fail(w, runID, start, fmt.Errorf("%w: format %q must be json or csv", imaging.ErrInvalidParameter, format))
		return
	}

	logging.LogRunStart(s.log, runID, r.RemoteAddr, "", p.Fields())

	body := http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxUploadBytes)
	raster, err := imaging.DecodeRaster(body)
	if err != nil {
		s.fail(w, runID, start, &pipeline.StageError{Stage: pipeline.StageLoad, Params: p, Err: err})
		return
	}

	res, err := pipeline.Run(raster, p)
	if err != nil {
		s.fail(w, runID, start, err)
		return
	}
	if q.Get("require_cells") == "true" {
		if err := res.RequireRegions(); err != nil {
			s.fail(w, runID, start, err)
			return
		}
	}

	elapsed := time.Since(start)
	logging.LogRunComplete(s.log, runID, elapsed, len(res.Records))
	w.Header().Set("X-Run-Id", runID)

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+pipeline.ResultsFileName+`"`)
		if _, err := results.Write(w, res.Records); err != nil {
			s.log.Error("failed to write csv", "id", runID, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, &MeasureResponse{
		Summary: pipeline.NewSummary(runID, "upload", res, elapsed),
		Records: res.Records,
	})
}

// fail logs err and answers with the status that matches it.
func (s *Server) fail(w http.ResponseWriter, runID string, start time.Time, err error) {
	logging.LogRunError(s.log, runID, time.Since(start), err)

	body := errorBody{Error: err.Error()}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		body.Stage = stageErr.Stage
	}
	w.Header().Set("X-Run-Id", runID)
	writeJSON(w, statusFor(err), body)
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrEmptySegmentation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, imaging.ErrInvalidParameter), errors.Is(err, imaging.ErrMalformedInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// overrideParams applies the query string on top of base.
func overrideParams(base pipeline.Params, q url.Values) (pipeline.Params, error) {
	p := base
	ints := []struct {
		key string
		dst *int
	}{
		{"block_size", &p.BlockSize},
		{"min_object_size", &p.MinObjectSize},
		{"area_threshold", &p.AreaThreshold},
	}
	for _, f := range ints {
		if v := q.Get(f.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, fmt.Errorf("%w: %s=%q is not an integer", imaging.ErrInvalidParameter, f.key, v)
			}
			*f.dst = n
		}
	}

	if v := q.Get("threshold_method"); v != "" {
		p.ThresholdMethod = imaging.ThresholdMethod(v)
	}
	if v := q.Get("threshold_offset"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, fmt.Errorf("%w: threshold_offset=%q is not a number", imaging.ErrInvalidParameter, v)
		}
		p.ThresholdOffset = f
	}
	if v := q.Get("clear_border"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("%w: clear_border=%q is not a boolean", imaging.ErrInvalidParameter, v)
		}
		p.ClearBorder = b
	}
	if v := q.Get("connectivity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: connectivity=%q is not an integer", imaging.ErrInvalidParameter, v)
		}
		p.Connectivity = segmentation.Connectivity(n)
	}
	return p, p.Validate()
}
