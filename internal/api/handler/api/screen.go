package api

import (
	"net/http"

	"github.com/newthinker/stockscope/internal/api/response"
	"github.com/newthinker/stockscope/internal/screener"
)

// ScreenHandler runs stock screens.
type ScreenHandler struct {
	svc Retriever
}

// NewScreenHandler creates a new screen handler.
func NewScreenHandler(svc Retriever) *ScreenHandler {
	return &ScreenHandler{svc: svc}
}

// Screen handles POST /api/screen. An empty body screens every market.
func (h *ScreenHandler) Screen(w http.ResponseWriter, r *http.Request) {
	var req screener.Request
	if err := decodeBody(r, &req); err != nil {
		response.Fail(w, err)
		return
	}

	criteria, err := screener.ParseCriteria(req, 0)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.ScreenStocks(r.Context(), criteria))
}
