package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"allocation-dashboard/internal/config"
	"allocation-dashboard/internal/middleware"
	"allocation-dashboard/internal/models"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/services"
)

const testCSV = `product_id,location_id,units,gap
P1,L1,10,2
P1,L2,0,5
P2,L1,5,0
P3,L3,0,0
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAnalytics(t *testing.T) *services.Analytics {
	t.Helper()
	a := services.NewAnalytics(services.WithLogger(quietLogger()))
	records := []models.Record{
		{ProductID: "P1", LocationID: "L1", Units: 10, Gap: 2},
		{ProductID: "P1", LocationID: "L2", Units: 0, Gap: 5},
		{ProductID: "P2", LocationID: "L1", Units: 5, Gap: 0},
		{ProductID: "P3", LocationID: "L3", Units: 0, Gap: 0},
	}
	if _, err := a.Replace(context.Background(), records, "test.csv"); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	return a
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Security.EnableRateLimit = false
	return cfg
}

func newTestHandler(t *testing.T, a *services.Analytics) http.Handler {
	t.Helper()
	cfg := testConfig()
	return newHandler(cfg, quietLogger(), a, observability.NewMetrics(), middleware.NewRateLimiter(cfg.Security))
}

func decodeEnvelope(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return response
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	handler := newTestHandler(t, newTestAnalytics(t))

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
		{"/api/summary", http.StatusOK, "application/json"},
		{"/api/locations", http.StatusOK, "application/json"},
		{"/api/locations?sort=asc&limit=All", http.StatusOK, "application/json"},
		{"/api/locations/L1/products", http.StatusOK, "application/json"},
		{"/api/products", http.StatusOK, "application/json"},
		{"/api/products/P1/locations", http.StatusOK, "application/json"},
		{"/api/pairs", http.StatusOK, "application/json"},
		{"/api/distribution", http.StatusOK, "application/json"},
		{"/api/zero-units", http.StatusOK, "application/json"},
		{"/api/gap?limit=50", http.StatusOK, "application/json"},
		{"/api/locations?limit=0", http.StatusBadRequest, "application/json"},
		{"/api/products?sort=sideways", http.StatusBadRequest, "application/json"},
		{"/export/gap.csv", http.StatusOK, "text/csv"},
		{"/export/zero_units.csv", http.StatusOK, "text/csv"},
		{"/export/bogus.csv", http.StatusNotFound, "application/json"},
		{"/export/report.xlsx", http.StatusOK, "spreadsheetml"},
		{"/sse/summary", http.StatusOK, "text/event-stream"},
		{"/sse/refresh-all", http.StatusOK, "text/event-stream"},
		{"/sse/drill/location/L1", http.StatusOK, "text/event-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			handler.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_LocationsJSON(t *testing.T) {
	handler := newTestHandler(t, newTestAnalytics(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/locations?limit=1", nil)
	handler.ServeHTTP(w, r)

	response := decodeEnvelope(t, w.Body)
	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}

	data, ok := response["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in response")
	}
	if len(data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(data))
	}

	item, ok := data[0].(map[string]any)
	if !ok {
		t.Fatalf("item has unexpected shape: %T", data[0])
	}
	if item["key"] != "L1" || item["total"] != float64(15) {
		t.Errorf("top location = %v, want L1 with 15", item)
	}
}

func TestServer_ResponseHeaders(t *testing.T) {
	handler := newTestHandler(t, newTestAnalytics(t))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/summary", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if w.Header().Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", w.Header().Get("Cache-Control"))
	}
}

func TestServer_UploadAndReset(t *testing.T) {
	a := services.NewAnalytics(services.WithLogger(quietLogger()))
	handler := newTestHandler(t, a)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/summary", nil))
	if data := decodeEnvelope(t, w.Body)["data"].(map[string]any); data["has_data"] != false {
		t.Fatalf("has_data before upload = %v, want false", data["has_data"])
	}

	w = httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/dataset", strings.NewReader(testCSV))
	r.Header.Set("Content-Type", "text/csv")
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", w.Code, w.Body.String())
	}
	data := decodeEnvelope(t, w.Body)["data"].(map[string]any)
	summary := data["summary"].(map[string]any)
	if summary["total_units"] != float64(15) {
		t.Errorf("total_units = %v, want 15", summary["total_units"])
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/dataset", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d", w.Code)
	}
	if a.HasData() {
		t.Error("dataset should be cleared after reset")
	}
}

func TestServer_UploadRejectsMalformedCSV(t *testing.T) {
	a := newTestAnalytics(t)
	handler := newTestHandler(t, a)
	before := a.Dataset().Version

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/dataset", strings.NewReader("units,gap\n1,2\n"))
	r.Header.Set("Content-Type", "text/csv")
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := a.Dataset().Version; got != before {
		t.Error("failed upload must keep the previous dataset")
	}
}

func TestServer_MetricsRecordRoutePattern(t *testing.T) {
	handler := newTestHandler(t, newTestAnalytics(t))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/locations/L1/products", nil))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `route="/api/locations/{id}/products"`) {
		t.Error("metrics should label requests by route pattern")
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Security.RateLimitRPS = 1
	cfg.Security.RateLimitBurst = 2
	handler := newHandler(cfg, quietLogger(), newTestAnalytics(t), observability.NewMetrics(), middleware.NewRateLimiter(cfg.Security))

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first requests = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want %d", codes[2], http.StatusTooManyRequests)
	}
}

func TestLoadInitialData(t *testing.T) {
	a := services.NewAnalytics(services.WithLogger(quietLogger()))

	loadInitialData(a, quietLogger(), "")
	if a.HasData() {
		t.Error("no path should leave the dashboard empty")
	}

	loadInitialData(a, quietLogger(), "/does/not/exist.csv")
	if a.HasData() {
		t.Error("missing file should leave the dashboard empty")
	}
}

func TestHandleDashboard(t *testing.T) {
	w := httptest.NewRecorder()
	handleDashboard(w, httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("Cache-Control") != cacheMaxAge {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
	if !strings.Contains(w.Body.String(), dashboardProps.Title) {
		t.Error("page should contain the dashboard title")
	}
}

func BenchmarkServer_Locations(b *testing.B) {
	cfg := testConfig()
	a := services.NewAnalytics(services.WithLogger(quietLogger()))
	records := make([]models.Record, 0, 10000)
	for i := range 10000 {
		records = append(records, models.Record{
			ProductID:  "P" + string(rune('A'+i%26)),
			LocationID: "L" + string(rune('A'+i%7)),
			Units:      float64(i % 13),
		})
	}
	if _, err := a.Replace(context.Background(), records, "bench"); err != nil {
		b.Fatal(err)
	}
	handler := newHandler(cfg, quietLogger(), a, observability.NewMetrics(), middleware.NewRateLimiter(cfg.Security))

	for b.Loop() {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/locations?limit=All", nil))
	}
}
