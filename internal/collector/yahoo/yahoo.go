package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
)

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return core.Errorf(core.ErrProviderError, "symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return core.Errorf(core.ErrProviderError, "symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return core.Errorf(core.ErrProviderError, "invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the Yahoo Finance chart source
type Yahoo struct {
	client  *httputil.Client
	baseURL string
	now     func() time.Time
}

// New creates a new Yahoo source
func New(cfg collector.Config, logger *zap.Logger, opts ...httputil.Option) *Yahoo {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	opts = append([]httputil.Option{
		httputil.WithRateLimit(cfg.RateLimitPerMinute),
		httputil.WithLogger(logger),
		httputil.WithHeader("User-Agent", "Mozilla/5.0"),
	}, opts...)

	return &Yahoo{
		client:  httputil.New("yahoo", opts...),
		baseURL: baseURL,
		now:     time.Now,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func (y *Yahoo) toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// FetchQuote fetches a quote from the chart meta block
func (y *Yahoo) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	r, err := y.chart(ctx, symbol, url.Values{"interval": {"1d"}, "range": {"1d"}})
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	meta := r.Meta
	if meta.RegularMarketPrice == 0 {
		return nil, core.Errorf(core.ErrNoData, "yahoo: no price for %s", symbol)
	}

	prev := meta.ChartPreviousClose
	if meta.PreviousClose != 0 {
		prev = meta.PreviousClose
	}

	q := &core.Quote{
		Symbol:        symbol,
		Price:         meta.RegularMarketPrice,
		Volume:        meta.RegularMarketVolume,
		High:          meta.RegularMarketDayHigh,
		Low:           meta.RegularMarketDayLow,
		PreviousClose: prev,
		Time:          time.Unix(meta.RegularMarketTime, 0),
		Origin:        core.Live("yahoo"),
	}
	if prev != 0 {
		q.Change = q.Price - prev
		q.ChangePercent = q.Change / prev * 100
	} else {
		q.Unavailable = append(q.Unavailable, "previousClose", "change", "changePercent")
	}
	if len(r.Indicators.Quote) > 0 && len(r.Indicators.Quote[0].Open) > 0 && r.Indicators.Quote[0].Open[0] != nil {
		q.Open = *r.Indicators.Quote[0].Open[0]
	} else {
		q.Unavailable = append(q.Unavailable, "open")
	}
	if meta.RegularMarketVolume == 0 {
		q.Unavailable = append(q.Unavailable, "volume")
	}

	return q, nil
}

// FetchHistory fetches bars covering period
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, period core.Period) (*core.HistorySeries, error) {
	if err := validateSymbol(symbol); err != nil {
		return nil, err
	}

	end := y.now()
	start := end.AddDate(0, 0, -period.Days)
	r, err := y.chart(ctx, symbol, url.Values{
		"interval": {y.toYahooInterval(period.Granularity)},
		"period1":  {fmt.Sprint(start.Unix())},
		"period2":  {fmt.Sprint(end.Unix())},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	if len(r.Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrNoData, "yahoo: no bars for %s", symbol)
	}

	layout := "2006-01-02"
	if period.Granularity == core.Intraday {
		layout = "2006-01-02 15:04"
	}

	quotes := r.Indicators.Quote[0]
	h := &core.HistorySeries{Symbol: symbol, Period: period.Token, Origin: core.Live("yahoo")}
	for i, ts := range r.Timestamp {
		closePrice := at(quotes.Close, i)
		if closePrice == nil {
			continue // Skip missing data
		}
		high, low := *closePrice, *closePrice
		if v := at(quotes.High, i); v != nil {
			high = *v
		} else {
			h.MarkUnavailable("high")
		}
		if v := at(quotes.Low, i); v != nil {
			low = *v
		} else {
			h.MarkUnavailable("low")
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = *quotes.Volume[i]
		} else {
			h.MarkUnavailable("volume")
		}
		h.Append(time.Unix(ts, 0).UTC().Format(layout), *closePrice, high, low, volume)
	}

	if h.Len() == 0 {
		return nil, core.Errorf(core.ErrNoData, "yahoo: no bars for %s", symbol)
	}
	return h, nil
}

// Probe fetches a one-day chart for a well-known symbol.
func (y *Yahoo) Probe(ctx context.Context) error {
	_, err := y.FetchQuote(ctx, "AAPL")
	return err
}

func (y *Yahoo) chart(ctx context.Context, symbol string, params url.Values) (*chartResult, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", y.baseURL, url.PathEscape(y.toYahooSymbol(symbol)), params.Encode())
	resp, err := y.client.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var result chartResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		if err := httputil.CheckStatus("yahoo", resp); err != nil {
			return nil, err
		}
		return nil, core.Errorf(core.ErrNoData, "yahoo: decoding response: %v", err)
	}

	// A 404 with a chart.error body is a bad symbol, not a transport fault.
	if result.Chart.Error != nil {
		return nil, core.Errorf(core.ErrProviderError, "yahoo: %s", result.Chart.Error.Description)
	}
	if resp.Status != http.StatusOK {
		return nil, httputil.CheckStatus("yahoo", resp)
	}
	if len(result.Chart.Result) == 0 {
		return nil, core.Errorf(core.ErrNoData, "yahoo: no data for symbol: %s", symbol)
	}
	return &result.Chart.Result[0], nil
}

func (y *Yahoo) toYahooInterval(g core.Granularity) string {
	switch g {
	case core.Intraday:
		return "5m"
	case core.Weekly:
		return "1wk"
	default:
		return "1d"
	}
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol               string  `json:"symbol"`
	RegularMarketPrice   float64 `json:"regularMarketPrice"`
	RegularMarketVolume  int64   `json:"regularMarketVolume"`
	RegularMarketTime    int64   `json:"regularMarketTime"`
	RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
	ChartPreviousClose   float64 `json:"chartPreviousClose"`
	PreviousClose        float64 `json:"previousClose"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
