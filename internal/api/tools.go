package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/imaging"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
	"github.com/erazemk/orodjarna/internal/validate"
)

// ToolsHandler handles tool registry endpoints.
type ToolsHandler struct {
	Store     *store.Store
	Lifecycle *lifecycle.Service
}

// List handles GET /api/tools?status=&category=&q=.
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ToolFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("q")),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			writeError(w, r, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", raw))
			return
		}
		filter.Status = status
	}

	tools, err := h.Store.ListTools(r.Context(), filter)
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "listing tools"))
		return
	}
	if tools == nil {
		tools = []model.Tool{}
	}
	jsonResponse(w, http.StatusOK, tools)
}

// Create handles POST /api/tools.
func (h *ToolsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.NewTool
	if err := validate.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Lifecycle.RegisterTool(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool created", "user", actor(r), "tool", t.ID, "name", t.Name)
	jsonResponse(w, http.StatusCreated, t)
}

// Get handles GET /api/tools/{id}.
func (h *ToolsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Store.GetTool(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "reading tool"))
		return
	}
	if t == nil {
		jsonError(w, http.StatusNotFound, "tool not found")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// Update handles PUT /api/tools/{id}.
func (h *ToolsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req model.ToolFields
	if err := validate.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Lifecycle.UpdateTool(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool updated", "user", actor(r), "tool", t.ID)
	jsonResponse(w, http.StatusOK, t)
}

// Delete handles DELETE /api/tools/{id}.
func (h *ToolsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Lifecycle.DeleteTool(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool deleted", "user", actor(r), "tool", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "tool deleted"})
}

// History handles GET /api/tools/{id}/history.
func (h *ToolsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	v, err := h.Lifecycle.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v.Events == nil {
		v.Events = []model.ExportEvent{}
	}
	jsonResponse(w, http.StatusOK, v)
}

// UploadImage handles PUT /api/tools/{id}/image. The photo is normalized to
// a bounded JPEG before it is stored.
func (h *ToolsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Store.GetTool(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "reading tool"))
		return
	}
	if t == nil {
		jsonError(w, http.StatusNotFound, "tool not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1)
	photo, err := imaging.NormalizePhoto(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.Store.SetToolImage(r.Context(), id, photo.Data, photo.MIME); err != nil {
		writeError(w, r, apperr.Unavailable(err, "storing tool image"))
		return
	}

	slog.Info("tool image uploaded", "user", actor(r), "tool", id,
		"width", photo.Width, "height", photo.Height, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/tools/{id}/image.
func (h *ToolsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, mime, err := h.Store.GetToolImage(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.Unavailable(err, "reading tool image"))
		return
	}
	if len(data) == 0 {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
