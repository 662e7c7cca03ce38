package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/newthinker/stockscope/internal/api/job"
	"github.com/newthinker/stockscope/internal/api/response"
	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/core"
	"go.uber.org/zap"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for a backtest. Zero strategy fields take
// the configured defaults.
type BacktestRequest struct {
	Symbol  string   `json:"symbol"`
	Period  string   `json:"period,omitempty"`
	MAShort int      `json:"maShort,omitempty"`
	MALong  int      `json:"maLong,omitempty"`
	RSIBuy  *float64 `json:"rsiBuy,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	svc      Retriever
	jobs     *job.Store
	defaults backtest.Params
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(svc Retriever, jobs *job.Store, defaults backtest.Params, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{svc: svc, jobs: jobs, defaults: defaults, logger: logger}
}

// params merges the request over the defaults and validates the result.
func (h *BacktestHandler) params(r *http.Request) (BacktestRequest, backtest.Params, error) {
	var req BacktestRequest
	if err := decodeBody(r, &req); err != nil {
		return req, backtest.Params{}, err
	}
	if req.Symbol == "" {
		return req, backtest.Params{}, core.Errorf(core.ErrInvalidInput, "symbol is required")
	}
	if req.Period != "" && !core.KnownPeriod(req.Period) {
		return req, backtest.Params{}, core.Errorf(core.ErrInvalidInput, "unknown period %q", req.Period)
	}

	p := h.defaults
	if req.MAShort != 0 {
		p.MAShort = req.MAShort
	}
	if req.MALong != 0 {
		p.MALong = req.MALong
	}
	if req.RSIBuy != nil {
		p.RSIBuyThreshold = *req.RSIBuy
	}
	if err := h.svc.ValidateBacktest(p); err != nil {
		return req, backtest.Params{}, err
	}
	return req, p, nil
}

// Run handles POST /api/backtest and answers with the report.
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, p, err := h.params(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, h.svc.RunBacktest(r.Context(), req.Symbol, req.Period, p))
}

// Create handles POST /api/backtest/jobs and runs the backtest in the background.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, p, err := h.params(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobs.Create("backtest")
	go h.runJob(j.ID, req.Symbol, req.Period, p)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"jobId":  j.ID,
		"status": j.Status,
	})
}

func (h *BacktestHandler) runJob(id, symbol, period string, p backtest.Params) {
	h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	report := h.svc.RunBacktest(ctx, symbol, period, p)

	err := h.jobs.Update(id, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Result = report
	})
	if err != nil {
		h.logger.Warn("backtest job evicted before completion", zap.String("job_id", id))
	}
}

// Status handles GET /api/backtest/jobs/{id}.
func (h *BacktestHandler) Status(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}
