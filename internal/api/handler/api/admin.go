package api

import (
	"net/http"

	"github.com/newthinker/stockscope/internal/api/response"
)

// AdminHandler exposes connectivity and cache maintenance.
type AdminHandler struct {
	svc Retriever
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc Retriever) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// TestConnections handles GET /api/test.
func (h *AdminHandler) TestConnections(w http.ResponseWriter, r *http.Request) {
	results := h.svc.TestConnections(r.Context())
	healthy := 0
	for _, res := range results {
		if res.OK {
			healthy++
		}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"providers": results,
		"healthy":   healthy,
		"total":     len(results),
	})
}

// ClearCache handles DELETE /api/cache.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"cleared": h.svc.ClearCache(),
	})
}
