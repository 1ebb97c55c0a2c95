package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/validate"
)

// ActionsHandler exposes the export lifecycle.
type ActionsHandler struct {
	Lifecycle *lifecycle.Service
}

type exportRequest struct {
	ExportedBy string `json:"exported_by" validate:"required,max=200"`
	Purpose    string `json:"purpose" validate:"required,max=500"`
}

type returnRequest struct {
	ReturnedBy string `json:"returned_by" validate:"max=200"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
	lifecycle.ChangeContext
}

// Export handles POST /api/tools/{id}/export.
func (h *ActionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req exportRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.Lifecycle.RequestExport(r.Context(), id, req.ExportedBy, req.Purpose)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool exported", "user", actor(r), "tool", id, "exported_by", t.ExportedBy)
	jsonResponse(w, http.StatusOK, t)
}

// Return handles POST /api/tools/{id}/return. An empty body returns the tool
// on behalf of whoever holds it.
func (h *ActionsHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req returnRequest
	if r.ContentLength != 0 {
		if err := validate.DecodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	t, err := h.Lifecycle.RequestReturn(r.Context(), id, req.ReturnedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool returned", "user", actor(r), "tool", id)
	jsonResponse(w, http.StatusOK, t)
}

// ChangeStatus handles POST /api/tools/{id}/status.
func (h *ActionsHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req statusRequest
	if err := validate.DecodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		writeError(w, r, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", req.Status))
		return
	}

	t, err := h.Lifecycle.RequestStatusChange(r.Context(), id, status, req.ChangeContext)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("tool status changed", "user", actor(r), "tool", id, "status", t.Status)
	jsonResponse(w, http.StatusOK, t)
}

// Reconcile handles POST /api/tools/{id}/reconcile.
func (h *ActionsHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.Lifecycle.Reconcile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, report)
}

// ReconcileAll handles POST /api/reconcile.
func (h *ActionsHandler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Lifecycle.ReconcileAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("reconciliation requested", "user", actor(r), "checked", sum.Checked,
		"repaired", sum.Repaired, "problems", len(sum.Problems))
	jsonResponse(w, http.StatusOK, sum)
}
