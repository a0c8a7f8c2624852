package handlers

import (
	stderrors "errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"allocation-dashboard/internal/aggregate"
	"allocation-dashboard/internal/errors"
	"allocation-dashboard/internal/ingest"
	"allocation-dashboard/internal/models"
	"allocation-dashboard/internal/observability"
	"allocation-dashboard/internal/services"
)

const (
	uploadField  = "file"
	cacheControl = "no-cache"
)

type APIHandlers struct {
	analytics      *services.Analytics
	logger         *slog.Logger
	uploadMaxBytes int64
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, uploadMaxBytes int64) *APIHandlers {
	return &APIHandlers{
		analytics:      analytics,
		logger:         logger,
		uploadMaxBytes: uploadMaxBytes,
	}
}

type datasetInfo struct {
	HasData  bool                     `json:"has_data"`
	Version  string                   `json:"version,omitempty"`
	Source   string                   `json:"source,omitempty"`
	LoadedAt *time.Time               `json:"loaded_at,omitempty"`
	Summary  models.SummaryStatistics `json:"summary"`
}

type drillDown struct {
	Title string              `json:"title"`
	ID    string              `json:"id"`
	Items []models.GroupTotal `json:"items"`
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, r, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) info() datasetInfo {
	snap := h.analytics.Snapshot()
	info := datasetInfo{Summary: snap.Summary}
	if ds := snap.Dataset; ds != nil {
		info.HasData = true
		info.Version = ds.Version
		info.Source = ds.Source
		info.LoadedAt = &ds.LoadedAt
	}
	return info
}

func (h *APIHandlers) respond(w http.ResponseWriter, data any) {
	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheControl})
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.info())
}

func (h *APIHandlers) HandleLocations(w http.ResponseWriter, r *http.Request) {
	sel, err := queryFrom(r).resolve(defaultTopN)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, h.analytics.Locations(sel.dir, sel.limit))
}

func (h *APIHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	sel, err := queryFrom(r).resolve(defaultTopN)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, h.analytics.Products(sel.dir, sel.limit))
}

func (h *APIHandlers) HandlePairs(w http.ResponseWriter, r *http.Request) {
	sel, err := queryFrom(r).resolve(aggregate.Unbounded)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, h.analytics.Pairs(sel.limit))
}

func (h *APIHandlers) HandleDistribution(w http.ResponseWriter, r *http.Request) {
	sel, err := queryFrom(r).resolve(aggregate.Unbounded)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, h.analytics.Distribution(sel.limit))
}

func (h *APIHandlers) HandleZeroUnits(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.analytics.ZeroUnitProducts())
}

func (h *APIHandlers) HandleGap(w http.ResponseWriter, r *http.Request) {
	sel, err := queryFrom(r).resolve(aggregate.Unbounded)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, h.analytics.GapAnalysis(sel.limit))
}

func (h *APIHandlers) HandleLocationProducts(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	h.respond(w, drillDown{
		Title: locationTitle(id),
		ID:    id,
		Items: h.analytics.DrillLocation(id),
	})
}

func (h *APIHandlers) HandleProductLocations(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	h.respond(w, drillDown{
		Title: productTitle(id),
		ID:    id,
		Items: h.analytics.DrillProduct(id),
	})
}

// HandleUpload replaces the dataset with a CSV sent either as multipart field "file" or as
// a raw text/csv body. A header-only file resets the dashboard.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.uploadMaxBytes)

	body, source, err := h.uploadBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	if _, err := h.analytics.LoadFromReader(r.Context(), body, source); err != nil {
		h.fail(w, r, uploadError(err))
		return
	}

	h.respond(w, h.info())
}

func (h *APIHandlers) uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", errors.Unsupported("Content-Type must be multipart/form-data or text/csv")
	}

	switch mediaType {
	case "multipart/form-data":
		file, header, err := r.FormFile(uploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if stderrors.As(err, &tooLarge) {
				return nil, "", errors.TooLarge("upload exceeds size limit")
			}
			return nil, "", errors.BadRequestWrap(err, "missing form file \"file\"")
		}
		return file, header.Filename, nil
	case "text/csv", "text/plain", "application/csv":
		return r.Body, "upload", nil
	default:
		return nil, "", errors.Unsupported("Content-Type must be multipart/form-data or text/csv")
	}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.As(err, &tooLarge):
		return errors.TooLarge("upload exceeds size limit")
	case stderrors.Is(err, ingest.ErrMalformedCSV):
		return errors.BadRequestWrap(err, "CSV parse error")
	case stderrors.Is(err, services.ErrSuperseded):
		return errors.Conflict("a newer dataset was loaded while this one was processing")
	default:
		return errors.InternalWrap(err, "failed to load dataset")
	}
}

func (h *APIHandlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.analytics.Reset()
	h.logger.Info("dataset reset", "request_id", observability.GetRequestID(r.Context()))
	h.respond(w, h.info())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"has_data":  h.analytics.HasData(),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func locationTitle(id string) string {
	return "Products in " + id
}

func productTitle(id string) string {
	return "Locations for " + id
}
