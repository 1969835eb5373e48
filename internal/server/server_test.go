package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/output"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func readTestConfig(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "test", "test_config.yaml"))
	if err != nil {
		t.Fatalf("failed to read test config: %v", err)
	}
	return string(data)
}

func newTestHandler() http.Handler {
	return NewHandler(zap.NewNop(), Limits{}, "test")
}

func TestHandleAnalyzeSuccess(t *testing.T) {
	rr := performUpload(t, newTestHandler(), readTestConfig(t), "test_config.yaml", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	id := rr.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a UUID request ID header, got %q", id)
	}
	if resp.RequestID != id {
		t.Fatalf("response request ID %q does not match header %q", resp.RequestID, id)
	}
	if len(resp.Scenarios) != 4 {
		t.Fatalf("expected 4 scenarios, got %v", resp.Scenarios)
	}
	if len(resp.Report.Strategies) != 2 {
		t.Fatalf("expected robust and reference strategies, got %d", len(resp.Report.Strategies))
	}
	if len(resp.Report.Evaluations) != 8 {
		t.Fatalf("expected 8 evaluations, got %d", len(resp.Report.Evaluations))
	}
	for _, e := range resp.Report.Evaluations {
		if e.Mean == nil {
			t.Fatalf("expected simulated mean for %s/%s", e.Scenario, e.Policy)
		}
	}
	if len(resp.Report.Comparisons) != 4 {
		t.Fatalf("expected 4 comparisons, got %d", len(resp.Report.Comparisons))
	}
	if !strings.HasPrefix(resp.CSV, "policy,scenario,t,") {
		t.Fatalf("expected CSV schedules in response, got %q", resp.CSV)
	}
	if resp.Report.Duration == "" {
		t.Fatal("expected duration in response")
	}
}

func TestHandleAnalyzeRawJSONBody(t *testing.T) {
	var payload map[string]interface{}
	if err := yaml.Unmarshal([]byte(readTestConfig(t)), &payload); err != nil {
		t.Fatalf("failed to unmarshal yaml: %v", err)
	}
	payload["simulation"].(map[string]interface{})["enabled"] = false
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, e := range resp.Report.Evaluations {
		if e.Mean != nil {
			t.Fatalf("expected analytic-only evaluation, got simulated mean for %s/%s", e.Scenario, e.Policy)
		}
	}
	if len(resp.Report.Comparisons) != 0 {
		t.Fatalf("expected no comparisons without simulation, got %d", len(resp.Report.Comparisons))
	}
}

func TestHandleAnalyzeYAMLFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze?format=yaml", strings.NewReader(readTestConfig(t)))
	req.Header.Set("Content-Type", "application/yaml")
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("expected YAML content type, got %q", ct)
	}
	var doc output.Document
	if err := yaml.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("response is not valid YAML: %v", err)
	}
	if doc.Market.Gamma != 3 || len(doc.Strategies) != 2 {
		t.Fatalf("unexpected document %+v", doc.Market)
	}
}

func TestHandleAnalyzeCSVFormat(t *testing.T) {
	rr := performUpload(t, newTestHandler(), readTestConfig(t), "test_config.yaml", "csv")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("response is not valid CSV: %v", err)
	}
	// header plus scheduleSteps+1 rows for each policy
	if len(records) != 1+2*6 {
		t.Fatalf("expected 13 CSV records, got %d", len(records))
	}
}

func TestHandleAnalyzeKeepsIncomingRequestID(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, id)
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if got := rr.Header().Get(RequestIDHeader); got != id {
		t.Fatalf("expected request ID %q to be echoed, got %q", id, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	rr = httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)
	if got := rr.Header().Get(RequestIDHeader); got == "not-a-uuid" {
		t.Fatal("expected malformed request ID to be replaced")
	}
}

func TestHandleAnalyzeMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analyze", nil)
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleAnalyzeUploadTooLarge(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Limits{UploadBytes: 64}, "test")
	rr := performUpload(t, handler, readTestConfig(t), "test_config.yaml", "")

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorBody(t, rr, "upload exceeds limit")
}

func TestHandleAnalyzeMissingFile(t *testing.T) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("other", "value"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "missing configuration file")
}

func TestHandleAnalyzeEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader("  \n"))
	rr := httptest.NewRecorder()
	newTestHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "missing configuration")
}

func TestHandleAnalyzeInvalidYAML(t *testing.T) {
	rr := performUpload(t, newTestHandler(), "model: [unterminated", "bad.yaml", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "error reading config data")
}

func TestHandleAnalyzeInvalidConfiguration(t *testing.T) {
	content := strings.Replace(readTestConfig(t), "gamma: 3", "gamma: 0.5", 1)
	rr := performUpload(t, newTestHandler(), content, "test_config.yaml", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorBody(t, rr, "gamma")
}

func TestHandleAnalyzeStrictMarketCondition(t *testing.T) {
	content := strings.Replace(readTestConfig(t), "  lambdaB0: 0.01\n", "  lambdaB0: 0.05\n", 1)
	content = strings.Replace(content, "  initialRate: 0.03\n", "  initialRate: 0.03\n  strictMarketCondition: true\n", 1)
	rr := performUpload(t, newTestHandler(), content, "test_config.yaml", "")

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rr.Code, rr.Body.String())
	}
	assertErrorBody(t, rr, "market condition violated")
}

func TestHandleAnalyzePathLimit(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Limits{Paths: 100}, "test")
	rr := performUpload(t, handler, readTestConfig(t), "test_config.yaml", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "exceeds the server limit of 100")
}

func TestHandleAnalyzeStepLimit(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Limits{Paths: 1000}, "test")
	content := strings.Replace(readTestConfig(t), "  steps: 50\n", "  steps: 3000000\n", 1)
	content = strings.Replace(content, "  paths: 2000\n", "  paths: 2\n", 1)
	rr := performUpload(t, handler, content, "test_config.yaml", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, fmt.Sprintf("simulation.steps 3000000 exceeds the server limit of %d", constants.DefaultMaxServerSteps))
}

func TestHandleAnalyzePathStepBudget(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Limits{PathSteps: 50000}, "test")
	rr := performUpload(t, handler, readTestConfig(t), "test_config.yaml", "")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "simulation.paths x simulation.steps = 100000 exceeds the server limit of 50000")

	// Disabled simulations never run, so their size is not checked.
	content := strings.Replace(readTestConfig(t), "  enabled: true\n", "  enabled: false\n", 1)
	rr = performUpload(t, handler, content, "test_config.yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 with simulation disabled, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleAnalyzeUnsupportedFormat(t *testing.T) {
	rr := performUpload(t, newTestHandler(), readTestConfig(t), "test_config.yaml", "xml")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorBody(t, rr, "unsupported format")
}

func TestHandleAnalyzeQueryOverrides(t *testing.T) {
	handler := NewHandler(zap.NewNop(), Limits{Paths: 500}, "test")

	rr := performUpload(t, handler, readTestConfig(t), "test_config.yaml", "json&paths=300&seed=9")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected paths override to pass the limit, got %d: %s", rr.Code, rr.Body.String())
	}

	tests := map[string]string{
		"json&paths=-1":  "paths must be greater than or equal to 0",
		"json&paths=abc": "paths must be an integer",
		"json&seed=-4":   "seed must be an unsigned integer",
	}
	for query, want := range tests {
		rr := performUpload(t, handler, readTestConfig(t), "test_config.yaml", query)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", query, rr.Code)
		}
		assertErrorBody(t, rr, want)
	}
}

func TestHandleVersion(t *testing.T) {
	handler := NewHandler(nil, Limits{}, "  v1.2.3 ")
	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["version"] != "v1.2.3" {
		t.Fatalf("expected trimmed version, got %q", resp["version"])
	}

	rr = httptest.NewRecorder()
	NewHandler(nil, Limits{}, "").ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if !strings.Contains(rr.Body.String(), `"dev"`) {
		t.Fatalf("expected default version dev, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/version", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestHandler()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/version", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`robust_portfolio_http_requests_total{method="GET",route="/api/version",status="200"}`,
		"robust_portfolio_http_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %q", want)
		}
	}
}

func performUpload(t *testing.T, handler http.Handler, content, filename, format string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form data: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	target := "/api/analyze"
	if format != "" {
		target += "?format=" + format
	}
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func assertErrorBody(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()

	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if !strings.Contains(resp["error"], want) {
		t.Fatalf("expected error containing %q, got %q", want, resp["error"])
	}
	if resp["requestId"] == "" {
		t.Fatal("expected request ID in error response")
	}
}
