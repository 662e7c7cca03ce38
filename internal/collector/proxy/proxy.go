// Package proxy talks to another deployment's POST /api/stocks endpoint, which wraps
// every operation in a {success, data, error} envelope.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"github.com/newthinker/stockscope/internal/screener"
	"go.uber.org/zap"
)

// Path is where the envelope endpoint is mounted.
const Path = "/api/stocks"

// Actions understood by the envelope endpoint.
const (
	ActionQuote      = "quote"
	ActionHistory    = "history"
	ActionNews       = "news"
	ActionIndicators = "indicators"
	ActionScreen     = "screen"
	ActionTest       = "test"
)

// Request is the envelope request body.
type Request struct {
	Action     string            `json:"action"`
	Symbol     string            `json:"symbol,omitempty"`
	Period     string            `json:"period,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Criteria   *screener.Request `json:"criteria,omitempty"`
	Indicators []string          `json:"indicators,omitempty"`
}

// Envelope is the response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Proxy implements every source capability over the envelope endpoint.
type Proxy struct {
	client   *httputil.Client
	endpoint string
}

// New creates a proxy client. BaseURL is required.
func New(cfg collector.Config, logger *zap.Logger, opts ...httputil.Option) (*Proxy, error) {
	if cfg.BaseURL == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "proxy: base_url is required")
	}
	opts = append([]httputil.Option{
		httputil.WithRateLimit(cfg.RateLimitPerMinute),
		httputil.WithLogger(logger),
	}, opts...)
	if cfg.APIKey != "" {
		opts = append(opts, httputil.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}

	return &Proxy{
		client:   httputil.New("proxy", opts...),
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + Path,
	}, nil
}

func (p *Proxy) Name() string {
	return "proxy"
}

func (p *Proxy) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	var q core.Quote
	if err := p.call(ctx, Request{Action: ActionQuote, Symbol: symbol}, &q); err != nil {
		return nil, err
	}
	if !q.IsValid() {
		return nil, core.Errorf(core.ErrNoData, "proxy: empty quote for %s", symbol)
	}
	q.Origin = core.Live(p.Name())
	return &q, nil
}

func (p *Proxy) FetchHistory(ctx context.Context, symbol string, period core.Period) (*core.HistorySeries, error) {
	var h core.HistorySeries
	if err := p.call(ctx, Request{Action: ActionHistory, Symbol: symbol, Period: period.Token}, &h); err != nil {
		return nil, err
	}
	if h.Len() == 0 {
		return nil, core.Errorf(core.ErrNoData, "proxy: empty history for %s", symbol)
	}
	if err := h.Validate(); err != nil {
		return nil, core.WrapError(core.ErrProviderError, err)
	}
	h.Origin = core.Live(p.Name())
	return &h, nil
}

func (p *Proxy) FetchNews(ctx context.Context, symbol string, limit int) ([]core.NewsItem, error) {
	var feed core.NewsFeed
	if err := p.call(ctx, Request{Action: ActionNews, Symbol: symbol, Limit: limit}, &feed); err != nil {
		return nil, err
	}
	if len(feed.Items) == 0 {
		return nil, core.Errorf(core.ErrNoData, "proxy: no news for %s", symbol)
	}
	return feed.Items, nil
}

func (p *Proxy) FetchIndicators(ctx context.Context, symbol string, names []string) (*core.IndicatorBundle, error) {
	var b core.IndicatorBundle
	if err := p.call(ctx, Request{Action: ActionIndicators, Symbol: symbol, Indicators: names}, &b); err != nil {
		return nil, err
	}
	if len(b.Series) == 0 {
		return nil, core.Errorf(core.ErrNoData, "proxy: no indicators for %s", symbol)
	}
	b.Origin = core.Live(p.Name())
	return &b, nil
}

func (p *Proxy) FetchScreeningUniverse(ctx context.Context, criteria core.ScreenCriteria) ([]core.ScreeningCandidate, error) {
	req := screener.RequestFrom(criteria)
	var result core.ScreeningResult
	if err := p.call(ctx, Request{Action: ActionScreen, Criteria: &req}, &result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 {
		return nil, core.Errorf(core.ErrNoData, "proxy: empty screening result")
	}
	return result.Candidates, nil
}

// Probe asks the remote deployment to test its own connectivity.
func (p *Proxy) Probe(ctx context.Context) error {
	return p.call(ctx, Request{Action: ActionTest}, nil)
}

func (p *Proxy) call(ctx context.Context, req Request, out any) error {
	resp, err := p.client.PostJSON(ctx, p.endpoint, req)
	if err != nil {
		return fmt.Errorf("proxy %s: %w", req.Action, err)
	}

	var env Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if err := httputil.CheckStatus("proxy", resp); err != nil {
			return err
		}
		return core.Errorf(core.ErrNoData, "proxy: decoding envelope: %v", err)
	}
	if resp.Status == http.StatusTooManyRequests {
		return core.Errorf(core.ErrRateLimited, "proxy: %s", env.Error)
	}
	if !env.Success {
		return core.Errorf(core.ErrProviderError, "proxy: %s", env.Error)
	}
	if err := httputil.CheckStatus("proxy", resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return core.Errorf(core.ErrNoData, "proxy: empty data for %s", req.Action)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return core.Errorf(core.ErrNoData, "proxy: decoding %s data: %v", req.Action, err)
	}
	return nil
}
