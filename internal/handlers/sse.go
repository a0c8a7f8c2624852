package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/errors"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/services"
)

const (
	locationDrillPath = "/sse/drill/location/"
	productDrillPath  = "/sse/drill/product/"
)

// signalValue accepts a datastar signal sent either as a JSON string or a bare number, so
// topLoc may arrive as "10" or 10.
type signalValue string

func (v *signalValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*v = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = signalValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = signalValue(n.String())
	return nil
}

type dashboardSignals struct {
	SortLoc  signalValue `json:"sortLoc"`
	TopLoc   signalValue `json:"topLoc"`
	SortProd signalValue `json:"sortProd"`
	TopProd  signalValue `json:"topProd"`
	TopDist  signalValue `json:"topDist"`
}

type dashboardSelections struct {
	locations    selection
	products     selection
	distribution selection
}

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

func (h *SSEHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, r, h.logger, err, observability.GetRequestID(r.Context()))
}

// selections merges datastar signals over plain query parameters. Signals win when set.
func (h *SSEHandlers) selections(r *http.Request) (dashboardSelections, error) {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return dashboardSelections{}, errors.BadRequestWrap(err, "invalid datastar signals")
	}

	query := queryFrom(r)
	pick := func(signal signalValue, fallback string) string {
		if s := strings.TrimSpace(string(signal)); s != "" {
			return s
		}
		return fallback
	}

	var (
		sel dashboardSelections
		err error
	)
	sel.locations, err = viewQuery{
		Sort:  strings.ToLower(pick(signals.SortLoc, query.Sort)),
		Limit: pick(signals.TopLoc, query.Limit),
	}.resolve(defaultTopN)
	if err != nil {
		return sel, err
	}
	sel.products, err = viewQuery{
		Sort:  strings.ToLower(pick(signals.SortProd, query.Sort)),
		Limit: pick(signals.TopProd, query.Limit),
	}.resolve(defaultTopN)
	if err != nil {
		return sel, err
	}
	sel.distribution, err = viewQuery{Limit: pick(signals.TopDist, query.Limit)}.resolve(aggregate.Unbounded)
	return sel, err
}

func (h *SSEHandlers) patchSummary(sse *datastar.ServerSentEventGenerator) error {
	snap := h.analytics.Snapshot()
	hasData := snap.HasData()
	html, err := render(kpiTemplate, kpiData{HasData: hasData, Cards: kpiCards(snap.Summary)})
	if err != nil {
		return err
	}
	if err := sse.PatchElements(html); err != nil {
		return err
	}

	source := ""
	if snap.Dataset != nil {
		source = snap.Dataset.Source
	}
	return h.patchSignals(sse, map[string]any{
		"hasData":       hasData,
		"datasetSource": source,
	})
}

func (h *SSEHandlers) patchLocations(sse *datastar.ServerSentEventGenerator, sel selection) error {
	data := h.analytics.Locations(sel.dir, sel.limit)
	if err := h.patchSignals(sse, map[string]any{"locationsData": data}); err != nil {
		return err
	}
	html, err := render(totalsTableTemplate, totalsTableData{
		ID:        "locations-content",
		KeyLabel:  "Store ID",
		DrillPath: locationDrillPath,
		Rows:      data,
	})
	if err != nil {
		return err
	}
	return sse.PatchElements(html)
}

func (h *SSEHandlers) patchProducts(sse *datastar.ServerSentEventGenerator, sel selection) error {
	data := h.analytics.Products(sel.dir, sel.limit)
	if err := h.patchSignals(sse, map[string]any{"productsData": data}); err != nil {
		return err
	}
	html, err := render(totalsTableTemplate, totalsTableData{
		ID:        "products-content",
		KeyLabel:  "Product ID",
		DrillPath: productDrillPath,
		Rows:      data,
	})
	if err != nil {
		return err
	}
	return sse.PatchElements(html)
}

func (h *SSEHandlers) patchDistribution(sse *datastar.ServerSentEventGenerator, sel selection) error {
	data := h.analytics.Distribution(sel.limit)
	if err := h.patchSignals(sse, map[string]any{"distributionData": data}); err != nil {
		return err
	}
	html, err := render(distributionTemplate, data)
	if err != nil {
		return err
	}
	return sse.PatchElements(html)
}

func (h *SSEHandlers) patchZeroUnits(sse *datastar.ServerSentEventGenerator) error {
	html, err := render(zeroUnitsTemplate, h.analytics.ZeroUnitProducts())
	if err != nil {
		return err
	}
	return sse.PatchElements(html)
}

func (h *SSEHandlers) patchGap(sse *datastar.ServerSentEventGenerator) error {
	html, err := render(gapTableTemplate, h.analytics.GapAnalysis(maxGapTableRows))
	if err != nil {
		return err
	}
	return sse.PatchElements(html)
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) error {
	jsonData, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return sse.PatchSignals(jsonData)
}

func (h *SSEHandlers) logPatchError(r *http.Request, what string, err error) {
	h.logger.Error("sse patch failed",
		"fragment", what,
		"error", err,
		"request_id", observability.GetRequestID(r.Context()),
	)
}

func (h *SSEHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if err := h.patchSummary(sse); err != nil {
		h.logPatchError(r, "summary", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleLocations(w http.ResponseWriter, r *http.Request) {
	sel, err := h.selections(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchLocations(sse, sel.locations); err != nil {
		h.logPatchError(r, "locations", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	sel, err := h.selections(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchProducts(sse, sel.products); err != nil {
		h.logPatchError(r, "products", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	sel, err := h.selections(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchDistribution(sse, sel.distribution); err != nil {
		h.logPatchError(r, "distribution", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleZeroUnits(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if err := h.patchZeroUnits(sse); err != nil {
		h.logPatchError(r, "zero-units", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleGap(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if err := h.patchGap(sse); err != nil {
		h.logPatchError(r, "gap", err)
	}
	flush(w)
}

func (h *SSEHandlers) HandleDrillLocation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	h.drill(w, r, drillData{
		Title:    locationTitle(id),
		KeyLabel: "Product ID",
		Items:    h.analytics.DrillLocation(id),
	})
}

func (h *SSEHandlers) HandleDrillProduct(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	h.drill(w, r, drillData{
		Title:    productTitle(id),
		KeyLabel: "Store ID",
		Items:    h.analytics.DrillProduct(id),
	})
}

func (h *SSEHandlers) drill(w http.ResponseWriter, r *http.Request, data drillData) {
	sse := datastar.NewSSE(w, r)

	html, err := render(drillTemplate, data)
	if err != nil {
		h.logPatchError(r, "drill", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logPatchError(r, "drill", err)
		return
	}
	if err := h.patchSignals(sse, map[string]any{
		"drillOpen":  true,
		"drillTitle": data.Title,
		"drillData":  data.Items,
	}); err != nil {
		h.logPatchError(r, "drill", err)
	}
	flush(w)
}

// HandleRefreshAll repaints every panel in one stream, used after uploads and resets.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sel, err := h.selections(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	steps := []struct {
		name  string
		patch func() error
	}{
		{"summary", func() error { return h.patchSummary(sse) }},
		{"locations", func() error { return h.patchLocations(sse, sel.locations) }},
		{"products", func() error { return h.patchProducts(sse, sel.products) }},
		{"distribution", func() error { return h.patchDistribution(sse, sel.distribution) }},
		{"zero-units", func() error { return h.patchZeroUnits(sse) }},
		{"gap", func() error { return h.patchGap(sse) }},
	}
	for _, step := range steps {
		if err := step.patch(); err != nil {
			h.logPatchError(r, step.name, err)
			return
		}
	}
	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// pathParam returns the decoded chi URL parameter. chi matches on r.URL.RawPath when the
// request carried escapes that Path cannot represent, such as %2F; only then is the
// parameter still escaped. Otherwise it was decoded once already.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
