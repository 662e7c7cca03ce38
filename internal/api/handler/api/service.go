// Package api holds the JSON handlers behind /api.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/retrieval"
)

// Retriever is the part of retrieval.Service the handlers use.
type Retriever interface {
	GetQuote(ctx context.Context, symbol string) *core.Quote
	GetHistory(ctx context.Context, symbol, period string) *core.HistorySeries
	GetNews(ctx context.Context, symbol string, limit int) *core.NewsFeed
	GetIndicators(ctx context.Context, symbol string, names []string) *core.IndicatorBundle
	ScreenStocks(ctx context.Context, criteria core.ScreenCriteria) *core.ScreeningResult
	ValidateBacktest(params backtest.Params) error
	RunBacktest(ctx context.Context, symbol, period string, params backtest.Params) *retrieval.BacktestReport
	Analyze(ctx context.Context, symbol string) *retrieval.Analysis
	TestConnections(ctx context.Context) []retrieval.ConnectionResult
	ClearCache() int
}

var _ Retriever = (*retrieval.Service)(nil)

// symbolVar reads the {symbol} route variable.
func symbolVar(r *http.Request) (string, error) {
	symbol := strings.TrimSpace(mux.Vars(r)["symbol"])
	if symbol == "" {
		return "", core.Errorf(core.ErrInvalidInput, "symbol is required")
	}
	return symbol, nil
}

// intQuery parses a non-negative integer query parameter; absent means 0.
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.Errorf(core.ErrInvalidInput, "%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

// listQuery splits a comma-separated query parameter.
func listQuery(r *http.Request, name string) []string {
	var out []string
	for _, part := range strings.Split(r.URL.Query().Get(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return core.WrapError(core.ErrInvalidInput, err)
	}
	return nil
}
