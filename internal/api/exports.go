package api

import (
	"net/http"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
)

// ExportsHandler serves the export log and dashboard counts.
type ExportsHandler struct {
	Store *store.Store
}

type statsResponse struct {
	*model.Stats
	Categories []model.CategoryStats `json:"categories"`
}

// List handles GET /api/exports. Without all=1 only open events are listed.
func (h *ExportsHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		events []model.ExportEvent
		err    error
	)
	if r.URL.Query().Get("all") == "1" {
		limit, lerr := queryInt(r, "limit", 100, 1, 1000)
		if lerr != nil {
			writeError(w, r, lerr)
			return
		}
		events, err = h.Store.ListAllExportEvents(r.Context(), limit)
	} else {
		events, err = h.Store.ListOpenExportEvents(r.Context())
	}
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "listing export events"))
		return
	}
	if events == nil {
		events = []model.ExportEvent{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// Stats handles GET /api/stats.
func (h *ExportsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.Stats(r.Context())
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "counting tools"))
		return
	}
	categories, err := h.Store.CategoryStats(r.Context())
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "counting tools by category"))
		return
	}
	if categories == nil {
		categories = []model.CategoryStats{}
	}
	jsonResponse(w, http.StatusOK, statsResponse{Stats: stats, Categories: categories})
}
