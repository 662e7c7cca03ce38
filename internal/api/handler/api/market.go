package api

import (
	"net/http"

	"github.com/newthinker/stockscope/internal/api/response"
	"github.com/newthinker/stockscope/internal/core"
)

// MarketHandler serves per-symbol data.
type MarketHandler struct {
	svc Retriever
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(svc Retriever) *MarketHandler {
	return &MarketHandler{svc: svc}
}

// Quote handles GET /api/quote/{symbol}.
func (h *MarketHandler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol, err := symbolVar(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.GetQuote(r.Context(), symbol))
}

// History handles GET /api/history/{symbol}?period=1Y.
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol, err := symbolVar(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	period := r.URL.Query().Get("period")
	if period != "" && !core.KnownPeriod(period) {
		response.Fail(w, core.Errorf(core.ErrInvalidInput, "unknown period %q", period))
		return
	}
	response.JSON(w, http.StatusOK, h.svc.GetHistory(r.Context(), symbol, period))
}

// News handles GET /api/news/{symbol}?limit=10.
func (h *MarketHandler) News(w http.ResponseWriter, r *http.Request) {
	symbol, err := symbolVar(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.GetNews(r.Context(), symbol, limit))
}

// Indicators handles GET /api/indicators/{symbol}?list=RSI,MACD.
func (h *MarketHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	symbol, err := symbolVar(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.GetIndicators(r.Context(), symbol, listQuery(r, "list")))
}

// Analysis handles GET /api/analysis/{symbol}.
func (h *MarketHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	symbol, err := symbolVar(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.Analyze(r.Context(), symbol))
}
