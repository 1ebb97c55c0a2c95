package api

import (
	"net/http"

	"github.com/erazemk/orodjarna/internal/scan"
)

// ScanHandler resolves scanner tokens.
type ScanHandler struct {
	Resolver *scan.Resolver
}

// Resolve handles GET /api/scan?q=.
func (h *ScanHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	t, err := h.Resolver.Resolve(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}
