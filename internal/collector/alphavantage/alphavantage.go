package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	// Free tier allowance.
	defaultRateLimit = 5
	// Compact responses carry this many bars.
	compactSize = 100
)

// AlphaVantage implements quote, history, and indicator sources backed by Alpha Vantage.
type AlphaVantage struct {
	client  *httputil.Client
	apiKey  string
	baseURL string
	logger  *zap.Logger
}

// New creates an Alpha Vantage client.
func New(cfg collector.Config, logger *zap.Logger, opts ...httputil.Option) *AlphaVantage {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := cfg.RateLimitPerMinute
	if limit == 0 {
		limit = defaultRateLimit
	}

	opts = append([]httputil.Option{
		httputil.WithRateLimit(limit),
		httputil.WithLogger(logger),
	}, opts...)

	return &AlphaVantage{
		client:  httputil.New("alphavantage", opts...),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		logger:  logger,
	}
}

func (a *AlphaVantage) Name() string {
	return "alphavantage"
}

// FetchQuote fetches GLOBAL_QUOTE.
func (a *AlphaVantage) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	body, err := a.query(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}
	return parseQuote(symbol, body)
}

// FetchHistory picks intraday, daily, or weekly series from the period.
func (a *AlphaVantage) FetchHistory(ctx context.Context, symbol string, period core.Period) (*core.HistorySeries, error) {
	params := url.Values{"symbol": {symbol}}
	switch period.Granularity {
	case core.Intraday:
		params.Set("function", "TIME_SERIES_INTRADAY")
		params.Set("interval", "5min")
		if period.Days > 1 {
			params.Set("outputsize", "full")
		}
	case core.Weekly:
		params.Set("function", "TIME_SERIES_WEEKLY")
	default:
		params.Set("function", "TIME_SERIES_DAILY")
		if period.Days > compactSize {
			params.Set("outputsize", "full")
		}
	}

	body, err := a.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return parseHistory(symbol, period, body)
}

// FetchIndicators fetches the technical RSI and MACD endpoints. Series are aligned on
// the dates every requested indicator reports.
func (a *AlphaVantage) FetchIndicators(ctx context.Context, symbol string, names []string) (*core.IndicatorBundle, error) {
	values := make(map[string]map[string]float64, len(names))
	for _, name := range names {
		params := url.Values{
			"symbol":      {symbol},
			"interval":    {"daily"},
			"series_type": {"close"},
		}
		switch name {
		case "RSI":
			params.Set("function", "RSI")
			params.Set("time_period", "14")
		case "MACD":
			params.Set("function", "MACD")
		default:
			return nil, core.Errorf(core.ErrProviderError, "alphavantage: unsupported indicator %s", name)
		}

		body, err := a.query(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", name, err)
		}
		series, err := parseTechnical(name, body)
		if err != nil {
			return nil, err
		}
		values[name] = series
	}

	return alignIndicators(symbol, names, values, core.DefaultPeriod.Days)
}

// Probe runs a GLOBAL_QUOTE for a well-known symbol.
func (a *AlphaVantage) Probe(ctx context.Context) error {
	_, err := a.FetchQuote(ctx, "AAPL")
	return err
}

func (a *AlphaVantage) query(ctx context.Context, params url.Values) ([]byte, error) {
	if a.apiKey == "" {
		return nil, core.Errorf(core.ErrProviderError, "alphavantage: api key not configured")
	}
	params.Set("apikey", a.apiKey)

	resp, err := a.client.Get(ctx, a.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if err := httputil.CheckStatus("alphavantage", resp); err != nil {
		return nil, err
	}
	if err := checkEnvelope(resp.Body); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// checkEnvelope maps the provider's in-band error fields.
func checkEnvelope(body []byte) error {
	if !gjson.ValidBytes(body) {
		return core.Errorf(core.ErrNoData, "alphavantage: malformed response")
	}
	if msg := gjson.GetBytes(body, "Error Message"); msg.Exists() {
		return core.Errorf(core.ErrProviderError, "alphavantage: %s", msg.String())
	}
	if note := gjson.GetBytes(body, "Note"); note.Exists() {
		return core.Errorf(core.ErrRateLimited, "alphavantage: %s", note.String())
	}
	if info := gjson.GetBytes(body, "Information"); info.Exists() {
		return core.Errorf(core.ErrRateLimited, "alphavantage: %s", info.String())
	}
	return nil
}

func parseQuote(symbol string, body []byte) (*core.Quote, error) {
	gq := gjson.GetBytes(body, "Global Quote")
	if !gq.Exists() || len(gq.Map()) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: no quote for %s", symbol)
	}

	price, ok := number(gq, "05. price")
	if !ok {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: quote for %s has no price", symbol)
	}

	q := &core.Quote{
		Symbol: symbol,
		Price:  price,
		Origin: core.Live("alphavantage"),
	}
	if s := gq.Get(escape("01. symbol")).String(); s != "" {
		q.Symbol = s
	}

	var missing []string
	field := func(key, name string) float64 {
		v, ok := number(gq, key)
		if !ok {
			missing = append(missing, name)
		}
		return v
	}
	q.Open = field("02. open", "open")
	q.High = field("03. high", "high")
	q.Low = field("04. low", "low")
	q.PreviousClose = field("08. previous close", "previousClose")
	q.Change = field("09. change", "change")
	q.ChangePercent = field("10. change percent", "changePercent")

	if v, ok := number(gq, "06. volume"); ok {
		q.Volume = int64(v)
	} else {
		missing = append(missing, "volume")
	}
	if t, err := time.Parse("2006-01-02", gq.Get(escape("07. latest trading day")).String()); err == nil {
		q.Time = t
	}

	q.Unavailable = missing
	return q, nil
}

type bar struct {
	label  string
	time   time.Time
	close  float64
	high   float64
	low    float64
	volume  int64
	missing []string
}

func parseHistory(symbol string, period core.Period, body []byte) (*core.HistorySeries, error) {
	var series gjson.Result
	gjson.ParseBytes(body).ForEach(func(key, value gjson.Result) bool {
		if strings.Contains(key.String(), "Time Series") {
			series = value
			return false
		}
		return true
	})
	if !series.Exists() || len(series.Map()) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: no history for %s", symbol)
	}

	var bars []bar
	series.ForEach(func(key, value gjson.Result) bool {
		t, err := parseStamp(key.String())
		if err != nil {
			return true
		}
		c, ok := number(value, "4. close")
		if !ok {
			return true
		}
		b := bar{label: key.String(), time: t, close: c}
		if b.high, ok = number(value, "2. high"); !ok {
			b.missing = append(b.missing, "high")
		}
		if b.low, ok = number(value, "3. low"); !ok {
			b.missing = append(b.missing, "low")
		}
		if v, ok := number(value, "5. volume"); ok {
			b.volume = int64(v)
		} else {
			b.missing = append(b.missing, "volume")
		}
		bars = append(bars, b)
		return true
	})
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: empty history for %s", symbol)
	}

	// Upstream lists newest first.
	sort.Slice(bars, func(i, j int) bool { return bars[i].time.Before(bars[j].time) })

	cutoff := bars[len(bars)-1].time.AddDate(0, 0, -period.Days)
	h := &core.HistorySeries{Symbol: symbol, Period: period.Token, Origin: core.Live("alphavantage")}
	for _, b := range bars {
		if !b.time.After(cutoff) {
			continue
		}
		h.Append(b.label, b.close, b.high, b.low, b.volume)
		h.MarkUnavailable(b.missing...)
	}
	return h, nil
}

func parseTechnical(name string, body []byte) (map[string]float64, error) {
	data := gjson.GetBytes(body, escape("Technical Analysis: "+name))
	if !data.Exists() || len(data.Map()) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: no %s data", name)
	}

	out := make(map[string]float64)
	data.ForEach(func(key, value gjson.Result) bool {
		if v, ok := number(value, name); ok {
			out[key.String()] = v
		}
		return true
	})
	if len(out) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: no %s values", name)
	}
	return out, nil
}

func alignIndicators(symbol string, names []string, values map[string]map[string]float64, keep int) (*core.IndicatorBundle, error) {
	var labels []string
	if len(names) > 0 {
		for date := range values[names[0]] {
			shared := true
			for _, name := range names[1:] {
				if _, ok := values[name][date]; !ok {
					shared = false
					break
				}
			}
			if shared {
				labels = append(labels, date)
			}
		}
	}
	if len(labels) == 0 {
		return nil, core.Errorf(core.ErrNoData, "alphavantage: no overlapping indicator dates for %s", symbol)
	}

	sort.Strings(labels)
	if keep > 0 && len(labels) > keep {
		labels = labels[len(labels)-keep:]
	}

	b := &core.IndicatorBundle{
		Symbol: symbol,
		Labels: labels,
		Series: make(map[string][]float64, len(names)),
		Origin: core.Live("alphavantage"),
	}
	for _, name := range names {
		s := make([]float64, len(labels))
		for i, date := range labels {
			s[i] = values[name][date]
		}
		b.Series[name] = s
	}
	return b, nil
}

// number reads a numeric-as-string field, dropping a trailing percent sign.
func number(r gjson.Result, key string) (float64, bool) {
	v := r.Get(escape(key))
	if !v.Exists() {
		return 0, false
	}
	s := strings.TrimSpace(strings.TrimSuffix(v.String(), "%"))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// escape makes a literal key safe for a gjson path.
func escape(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

func parseStamp(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
