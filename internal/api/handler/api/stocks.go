package api

import (
	"encoding/json"
	"net/http"

	"github.com/newthinker/stockscope/internal/collector/proxy"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/screener"
	"go.uber.org/zap"
)

// StocksHandler serves the envelope endpoint other deployments use as a proxy
// source. Only live data counts as success so the caller's own chain can move on.
type StocksHandler struct {
	svc    Retriever
	logger *zap.Logger
}

// NewStocksHandler creates a new envelope handler.
func NewStocksHandler(svc Retriever, logger *zap.Logger) *StocksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StocksHandler{svc: svc, logger: logger}
}

// Handle handles POST /api/stocks.
func (h *StocksHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req proxy.Request
	if err := decodeBody(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, nil, err.Error())
		return
	}

	ctx := r.Context()
	var (
		data   any
		origin core.Origin
	)
	switch req.Action {
	case proxy.ActionQuote, proxy.ActionHistory, proxy.ActionNews, proxy.ActionIndicators:
		if req.Symbol == "" {
			writeEnvelope(w, http.StatusBadRequest, nil, "symbol is required")
			return
		}
	}

	switch req.Action {
	case proxy.ActionQuote:
		q := h.svc.GetQuote(ctx, req.Symbol)
		data, origin = q, q.Origin
	case proxy.ActionHistory:
		hist := h.svc.GetHistory(ctx, req.Symbol, req.Period)
		data, origin = hist, hist.Origin
	case proxy.ActionNews:
		feed := h.svc.GetNews(ctx, req.Symbol, req.Limit)
		data, origin = feed, feed.Origin
	case proxy.ActionIndicators:
		b := h.svc.GetIndicators(ctx, req.Symbol, req.Indicators)
		data, origin = b, b.Origin
	case proxy.ActionScreen:
		var sr screener.Request
		if req.Criteria != nil {
			sr = *req.Criteria
		}
		criteria, err := screener.ParseCriteria(sr, 0)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, nil, err.Error())
			return
		}
		res := h.svc.ScreenStocks(ctx, criteria)
		data, origin = res, res.Origin
	case proxy.ActionTest:
		results := h.svc.TestConnections(ctx)
		for _, res := range results {
			if res.OK {
				writeEnvelope(w, http.StatusOK, results, "")
				return
			}
		}
		writeEnvelope(w, http.StatusOK, results, "no provider reachable")
		return
	default:
		writeEnvelope(w, http.StatusBadRequest, nil, "unknown action "+req.Action)
		return
	}

	if origin.IsMock() {
		h.logger.Debug("envelope request has no live data",
			zap.String("action", req.Action),
			zap.String("symbol", req.Symbol),
			zap.String("reason", origin.Reason),
		)
		writeEnvelope(w, http.StatusOK, nil, "no live data: "+origin.Reason)
		return
	}
	writeEnvelope(w, http.StatusOK, data, "")
}

// writeEnvelope writes {success, data, error}; a non-empty errMsg means failure.
func writeEnvelope(w http.ResponseWriter, status int, data any, errMsg string) {
	env := proxy.Envelope{Success: errMsg == "", Error: errMsg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			status, env.Success, env.Error = http.StatusInternalServerError, false, err.Error()
		} else {
			env.Data = raw
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
