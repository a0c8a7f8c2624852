package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/models"
	"allocation-dashboard/internal/services"
)

func signalsRequest(path, signals string) *http.Request {
	return httptest.NewRequest(http.MethodGet, path+"?datastar="+url.QueryEscape(signals), nil)
}

func TestNewSSEHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	logger := testLogger()

	handlers := NewSSEHandlers(analytics, logger)

	if handlers == nil {
		t.Fatal("NewSSEHandlers() returned nil")
	}
	if handlers.analytics != analytics {
		t.Error("NewSSEHandlers() should set analytics field")
	}
	if handlers.logger != logger {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestSignalValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input string
		want  signalValue
	}{
		{`"10"`, "10"},
		{`10`, "10"},
		{`"All"`, "All"},
		{`null`, ""},
		{` 5 `, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var v signalValue
			if err := json.Unmarshal([]byte(tt.input), &v); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, v, tt.want)
			}
		})
	}

	var v signalValue
	if err := json.Unmarshal([]byte(`true`), &v); err == nil {
		t.Error("boolean signal should fail to parse")
	}
}

func TestSSEHandlers_selections(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	t.Run("defaults", func(t *testing.T) {
		sel, err := handlers.selections(httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil))
		if err != nil {
			t.Fatal(err)
		}
		if sel.locations.limit != defaultTopN || sel.locations.dir != aggregate.Descending {
			t.Errorf("locations = %+v", sel.locations)
		}
		if sel.distribution.limit != aggregate.Unbounded {
			t.Errorf("distribution limit = %v, want All", sel.distribution.limit)
		}
	})

	t.Run("numeric and string signals", func(t *testing.T) {
		r := signalsRequest("/sse/refresh-all", `{"topLoc":1,"sortLoc":"ASC","topProd":"All","topDist":"5"}`)
		sel, err := handlers.selections(r)
		if err != nil {
			t.Fatal(err)
		}
		if sel.locations.limit != 1 || sel.locations.dir != aggregate.Ascending {
			t.Errorf("locations = %+v", sel.locations)
		}
		if sel.products.limit != aggregate.Unbounded {
			t.Errorf("products limit = %v, want All", sel.products.limit)
		}
		if sel.distribution.limit != 5 {
			t.Errorf("distribution limit = %v, want 5", sel.distribution.limit)
		}
	})

	t.Run("signals win over query", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/sse/locations?limit=20&datastar="+url.QueryEscape(`{"topLoc":"5"}`), nil)
		sel, err := handlers.selections(r)
		if err != nil {
			t.Fatal(err)
		}
		if sel.locations.limit != 5 {
			t.Errorf("locations limit = %v, want 5", sel.locations.limit)
		}
		if sel.products.limit != 20 {
			t.Errorf("products limit = %v, want query fallback 20", sel.products.limit)
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		if _, err := handlers.selections(signalsRequest("/sse/locations", `{"topLoc":0}`)); err == nil {
			t.Error("expected validation error for topLoc=0")
		}
	})
}

func TestSSEHandlers_HandleSummary(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/sse/summary", nil)
	w := httptest.NewRecorder()
	handlers.HandleSummary(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := w.Body.String()
	expectedContent := []string{
		"datastar-patch-elements",
		"datastar-patch-signals",
		`id="kpi-ribbon"`,
		"Total Units",
		"Median/Store",
		"Prod-Loc w/o 0",
		`"hasData":true`,
		"test.csv",
	}
	for _, content := range expectedContent {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleSummary_NoData(t *testing.T) {
	handlers := NewSSEHandlers(services.NewAnalytics(services.WithLogger(testLogger())), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleSummary(w, httptest.NewRequest(http.MethodGet, "/sse/summary", nil))

	body := w.Body.String()
	if !strings.Contains(body, "No dataset loaded") {
		t.Error("expected empty-state message")
	}
	if !strings.Contains(body, `"hasData":false`) {
		t.Error("expected hasData=false signal")
	}
}

func TestSSEHandlers_HandleLocations(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLocations(w, signalsRequest("/sse/locations", `{"topLoc":1}`))

	body := w.Body.String()
	for _, content := range []string{`id="locations-content"`, "Store ID", "locationsData", "/sse/drill/location/L1"} {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
	if strings.Contains(body, "/sse/drill/location/L2") {
		t.Error("topLoc=1 should only render the top store")
	}
}

func TestSSEHandlers_HandleLocations_InvalidSignals(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLocations(w, signalsRequest("/sse/locations", `{"sortLoc":"sideways"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSSEHandlers_HandleProducts(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleProducts(w, signalsRequest("/sse/products", `{"sortProd":"asc","topProd":"All"}`))

	body := w.Body.String()
	for _, content := range []string{`id="products-content"`, "Product ID", "productsData", "/sse/drill/product/P3"} {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
}

func TestSSEHandlers_Panels(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected []string
	}{
		{"distribution", handlers.HandleDistribution, []string{`id="distribution-content"`, "# Pairs", "distributionData"}},
		{"zero units", handlers.HandleZeroUnits, []string{`id="zero-units-content"`, "1 products", "<li>P3</li>"}},
		{"gap", handlers.HandleGap, []string{`id="gap-content"`, "Fill%", "P1", "58.8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/sse/x", nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			body := w.Body.String()
			for _, content := range tt.expected {
				if !strings.Contains(body, content) {
					t.Errorf("expected SSE body to contain %q", content)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleDrillLocation(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/sse/drill/location/L1", nil), "id", "L1")
	handlers.HandleDrillLocation(w, r)

	body := w.Body.String()
	for _, content := range []string{`id="drill-content"`, "Products in L1", `"drillOpen":true`, "drillData", "P2"} {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleDrillProduct(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	r := withURLParam(httptest.NewRequest(http.MethodGet, "/sse/drill/product/P1", nil), "id", "P1")
	handlers.HandleDrillProduct(w, r)

	body := w.Body.String()
	for _, content := range []string{"Locations for P1", "Store ID", "L2"} {
		if !strings.Contains(body, content) {
			t.Errorf("expected SSE body to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleRefreshAll(w, httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil))

	body := w.Body.String()
	for _, id := range []string{"kpi-ribbon", "locations-content", "products-content", "distribution-content", "zero-units-content", "gap-content"} {
		if !strings.Contains(body, `id="`+id+`"`) {
			t.Errorf("refresh-all should patch #%s", id)
		}
	}
}

func TestTotalsTable_EscapesDrillKeys(t *testing.T) {
	html, err := render(totalsTableTemplate, totalsTableData{
		ID:        "locations-content",
		KeyLabel:  "Store ID",
		DrillPath: locationDrillPath,
		Rows:      []models.GroupTotal{{Key: "North/East <1>", Total: 3}},
	})
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}

	if !strings.Contains(html, "North%2FEast") {
		t.Errorf("drill key should be path escaped: %s", html)
	}
	if strings.Contains(html, "<1>") {
		t.Error("key text should be HTML escaped")
	}
}

func TestKPICards(t *testing.T) {
	cards := kpiCards(models.SummaryStatistics{
		TotalUnits:       1234567,
		StoreCount:       1200,
		AvgPerStore:      2.5,
		NonzeroPairCount: 3,
	})

	if len(cards) != 9 {
		t.Fatalf("got %d cards, want 9", len(cards))
	}
	if cards[0].Value != "1,234,567" {
		t.Errorf("Total Units = %q, want 1,234,567", cards[0].Value)
	}
	if cards[1].Value != "1,200" {
		t.Errorf("Stores = %q, want 1,200", cards[1].Value)
	}
	if cards[3].Value != "2.50" {
		t.Errorf("Avg/Store = %q, want 2.50", cards[3].Value)
	}
}

func BenchmarkSSEHandlers_HandleRefreshAll(b *testing.B) {
	handlers := NewSSEHandlers(createTestAnalytics(), testLogger())
	req := httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil)

	for b.Loop() {
		w := httptest.NewRecorder()
		handlers.HandleRefreshAll(w, req)
	}
}
