package handlers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"allocation-dashboard/internal/errors"
	"allocation-dashboard/internal/export"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HandleExportCSV downloads one report view. Without a dataset the file has only a header.
func (h *APIHandlers) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")

	table, err := export.ReportTable(h.analytics.Report(), view)
	if err != nil {
		if stderrors.Is(err, export.ErrUnknownView) {
			h.fail(w, r, errors.NotFound(fmt.Sprintf("unknown view %q", view)))
			return
		}
		h.fail(w, r, errors.InternalWrap(err, "failed to build export"))
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, table, export.WriteOptions{BOMPrefix: r.URL.Query().Get("bom") == "1"}); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to write CSV"))
		return
	}

	writeAttachment(w, "text/csv; charset=utf-8", export.FileName(view), buf.Bytes())
}

func (h *APIHandlers) HandleExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, export.ReportTables(h.analytics.Report())...); err != nil {
		h.fail(w, r, errors.InternalWrap(err, "failed to write workbook"))
		return
	}

	writeAttachment(w, xlsxContentType, "report.xlsx", buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
