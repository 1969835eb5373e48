// Package server exposes the portfolio analysis over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/robust-portfolio/internal/analysis"
	"github.com/iwvelando/robust-portfolio/internal/config"
	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/output"
	"github.com/iwvelando/robust-portfolio/pkg/strategy"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type handler struct {
	logger  *zap.Logger
	limits  Limits
	version string
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewHandler constructs the HTTP handler that serves the analysis API and the
// Prometheus metrics endpoint. Zero limits select the defaults.
func NewHandler(logger *zap.Logger, limits Limits, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:  logger,
		limits:  limits.withDefaults(),
		version: trimmedVersion,
	}
	registerMetrics()

	mux := http.NewServeMux()

	// Analysis API endpoint (file upload or raw YAML/JSON body)
	mux.HandleFunc("/api/analyze", h.instrument("/api/analyze", h.handleAnalyze))

	// Version endpoint
	mux.HandleFunc("/api/version", h.instrument("/api/version", h.handleVersion))

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

type analyzeResponse struct {
	RequestID string          `json:"requestId"`
	Scenarios []string        `json:"scenarios"`
	Report    output.Document `json:"report"`
	CSV       string          `json:"csv"`
}

func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAnalyze"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	params, err := parseAnalyzeParams(r.URL.Query())
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.limits.UploadBytes)
	configBytes, status, err := h.readConfiguration(r)
	if err != nil {
		h.respondErrorWithOp(w, r, status, err.Error(), op)
		return
	}

	conf, err := config.LoadConfigurationFromReader(bytes.NewReader(configBytes))
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}
	if params.Paths > 0 {
		conf.Simulation.Paths = params.Paths
	}
	if params.Seed > 0 {
		conf.Simulation.Seed = params.Seed
	}
	if err := h.limits.check(conf.Simulation); err != nil {
		h.respondErrorWithOp(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	logger := h.logger.With(zap.String("requestId", requestID(r.Context())))
	report, err := analysis.Analyze(r.Context(), logger, *conf)
	if err != nil {
		analysesTotal.WithLabelValues("error").Inc()
		h.respondErrorWithOp(w, r, analysisStatus(err), err.Error(), op)
		return
	}
	analysesTotal.WithLabelValues("ok").Inc()
	for _, e := range report.Evaluations {
		if e.Simulated != nil {
			simulatedPaths.Add(float64(e.Simulated.Paths))
			flaggedPaths.Add(float64(e.Simulated.Flagged))
		}
	}

	switch params.Format {
	case constants.OutputFormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if err := output.YAMLFormat(w, report); err != nil {
			logger.Error("failed to write YAML response", zap.String("op", op), zap.Error(err))
		}
		return
	case constants.OutputFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := output.CsvFormat(w, report); err != nil {
			logger.Error("failed to write CSV response", zap.String("op", op), zap.Error(err))
		}
		return
	}

	csvData, err := output.CsvString(report)
	if err != nil {
		h.respondErrorWithOp(w, r, http.StatusInternalServerError, fmt.Sprintf("failed to render schedules: %v", err), op)
		return
	}

	response := analyzeResponse{
		RequestID: requestID(r.Context()),
		Scenarios: report.ScenarioNames(),
		Report:    output.NewDocument(report),
		CSV:       csvData,
	}

	logger.Info("analysis served",
		zap.String("op", op),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration),
	)

	h.writeJSON(w, http.StatusOK, response)
}

// readConfiguration returns the uploaded configuration. Multipart requests
// carry it in the "file" field; any other request carries it as the body.
func (h *handler) readConfiguration(r *http.Request) ([]byte, int, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, uploadStatus(err), h.uploadError(err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, http.StatusBadRequest, errors.New("missing configuration")
		}
		return data, http.StatusOK, nil
	}

	if err := r.ParseMultipartForm(h.limits.UploadBytes); err != nil {
		return nil, uploadStatus(err), h.uploadError(err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("missing configuration file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", "server.readConfiguration"),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to read configuration: %w", err)
	}
	return buf.Bytes(), http.StatusOK, nil
}

func uploadStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *handler) uploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Errorf("upload exceeds limit of %d bytes", h.limits.UploadBytes)
	}
	return fmt.Errorf("failed to parse upload: %w", err)
}

// analysisStatus maps an analysis failure onto an HTTP status.
func analysisStatus(err error) int {
	switch {
	case errors.Is(err, analysis.ErrInvalidConfiguration),
		errors.Is(err, ambiguity.ErrInvalidBounds),
		errors.Is(err, ambiguity.ErrInvalidParameters),
		errors.Is(err, strategy.ErrInvalidHorizon),
		errors.Is(err, strategy.ErrInvalidRiskAversion):
		return http.StatusBadRequest
	case errors.Is(err, ambiguity.ErrMarketCondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	id := requestID(r.Context())
	h.logger.Error("analysis request failed",
		zap.String("op", op),
		zap.String("requestId", id),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg, "requestId": id})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, logger *zap.Logger, cfg *Config, version string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           NewHandler(logger, cfg.Limits(), version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "server.Serve"),
			zap.String("address", cfg.Address),
			zap.Int64("maxUploadSize", cfg.UploadSizeBytes()),
			zap.Int("maxPaths", cfg.MaxPaths),
			zap.Int("maxSteps", cfg.MaxSteps),
			zap.Int64("maxPathSteps", cfg.MaxPathSteps),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped", zap.String("op", "server.Serve"))
	return nil
}
