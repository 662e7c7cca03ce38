package eastmoney

import (
	"context"
	"fmt"
	"net/url"
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
	defaultQuoteBase   = "https://push2.eastmoney.com"
	defaultHistoryBase = "https://push2his.eastmoney.com"

	quotePath   = "/api/qt/stock/get"
	historyPath = "/api/qt/stock/kline/get"
	listPath    = "/api/qt/clist/get"

	defaultPageSize = 100
	// clist reports market cap in yuan; candidates carry billions.
	capDivisor = 1e9
)

// Board filters per market for the clist endpoint.
var marketFilters = map[core.Market]string{
	core.MarketCN: "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23",
	core.MarketHK: "m:116+t:3,m:116+t:4",
	core.MarketUS: "m:105,m:106,m:107",
}

// Eastmoney implements quote, history, and screening sources backed by Eastmoney push2.
type Eastmoney struct {
	client      *httputil.Client
	quoteBase   string
	historyBase string
	pageSize    int
	now         func() time.Time
}

// New creates an Eastmoney client. BaseURL overrides both hosts; Extra["history_url"]
// overrides the kline host alone.
func New(cfg collector.Config, logger *zap.Logger, opts ...httputil.Option) *Eastmoney {
	e := &Eastmoney{
		quoteBase:   defaultQuoteBase,
		historyBase: defaultHistoryBase,
		pageSize:    defaultPageSize,
		now:         time.Now,
	}
	if cfg.BaseURL != "" {
		e.quoteBase = cfg.BaseURL
		e.historyBase = cfg.BaseURL
	}
	if u := cfg.Extra["history_url"]; u != "" {
		e.historyBase = u
	}
	if n, err := strconv.Atoi(cfg.Extra["page_size"]); err == nil && n > 0 {
		e.pageSize = n
	}

	opts = append([]httputil.Option{
		httputil.WithRateLimit(cfg.RateLimitPerMinute),
		httputil.WithLogger(logger),
		httputil.WithHeader("Referer", "https://quote.eastmoney.com/"),
	}, opts...)
	e.client = httputil.New("eastmoney", opts...)
	return e
}

func (e *Eastmoney) Name() string {
	return "eastmoney"
}

// parseSymbol converts 600519.SH to (600519, 1) for Eastmoney API
// Shanghai = 1, Shenzhen = 0
func (e *Eastmoney) parseSymbol(symbol string) (code, market string) {
	parts := strings.Split(symbol, ".")
	if len(parts) != 2 {
		return symbol, "1"
	}

	code = parts[0]
	switch strings.ToUpper(parts[1]) {
	case "SZ":
		market = "0"
	case "HK":
		market = "116"
	default:
		market = "1"
	}
	return
}

func (e *Eastmoney) secid(symbol string) (string, error) {
	if core.DetectMarket(symbol) == core.MarketUS {
		return "", core.Errorf(core.ErrNoData, "eastmoney: %s is not an exchange-suffixed symbol", symbol)
	}
	code, market := e.parseSymbol(symbol)
	return market + "." + code, nil
}

// FetchQuote fetches real-time quote from Eastmoney
func (e *Eastmoney) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	secid, err := e.secid(symbol)
	if err != nil {
		return nil, err
	}
	params := url.Values{
		"secid":  {secid},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fields": {"f43,f44,f45,f46,f47,f57,f58,f60,f169,f170"},
	}
	data, err := e.get(ctx, e.quoteBase+quotePath, params)
	if err != nil {
		return nil, fmt.Errorf("fetching quote: %w", err)
	}

	price, ok := field(data, "f43")
	if !ok || price <= 0 {
		return nil, core.Errorf(core.ErrNoData, "eastmoney: no price for %s", symbol)
	}

	q := &core.Quote{
		Symbol: symbol,
		Price:  price,
		Time:   e.now(),
		Origin: core.Live(e.Name()),
	}
	mark := func(name, key string, dst *float64) {
		if v, ok := field(data, key); ok {
			*dst = v
		} else {
			q.Unavailable = append(q.Unavailable, name)
		}
	}
	mark("high", "f44", &q.High)
	mark("low", "f45", &q.Low)
	mark("open", "f46", &q.Open)
	mark("previousClose", "f60", &q.PreviousClose)
	mark("change", "f169", &q.Change)
	mark("changePercent", "f170", &q.ChangePercent)
	if v, ok := field(data, "f47"); ok {
		// Volume is reported in lots of 100 shares.
		q.Volume = int64(v) * 100
	} else {
		q.Unavailable = append(q.Unavailable, "volume")
	}
	return q, nil
}

// FetchHistory fetches kline bars covering period.
func (e *Eastmoney) FetchHistory(ctx context.Context, symbol string, period core.Period) (*core.HistorySeries, error) {
	secid, err := e.secid(symbol)
	if err != nil {
		return nil, err
	}
	end := e.now()
	start := end.AddDate(0, 0, -period.Days)

	params := url.Values{
		"secid":   {secid},
		"klt":     {e.toKlineType(period.Granularity)},
		"fqt":     {"1"},
		"beg":     {start.Format("20060102")},
		"end":     {end.Format("20060102")},
		"fields1": {"f1,f2,f3,f4,f5,f6"},
		"fields2": {"f51,f52,f53,f54,f55,f56"},
	}
	data, err := e.get(ctx, e.historyBase+historyPath, params)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	series := &core.HistorySeries{Symbol: symbol, Period: period.Token, Origin: core.Live(e.Name())}
	for _, line := range data.Get("klines").Array() {
		k, ok := parseKline(line.String())
		if !ok {
			continue
		}
		series.Append(k.label, k.close, k.high, k.low, k.volume)
		series.MarkUnavailable(k.missing...)
	}
	if series.Len() == 0 {
		return nil, core.Errorf(core.ErrNoData, "eastmoney: no history for %s", symbol)
	}
	return series, nil
}

// FetchScreeningUniverse lists the boards for the requested markets. clist carries
// no RSI, so candidates report the neutral value and mark it unavailable.
func (e *Eastmoney) FetchScreeningUniverse(ctx context.Context, criteria core.ScreenCriteria) ([]core.ScreeningCandidate, error) {
	markets := criteria.Markets
	if criteria.AllMarkets() {
		markets = core.Markets
	}

	var out []core.ScreeningCandidate
	seen := make(map[core.Market]bool)
	for _, m := range markets {
		if seen[m] {
			continue
		}
		seen[m] = true

		candidates, err := e.listMarket(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, candidates...)
	}
	if len(out) == 0 {
		return nil, core.Errorf(core.ErrNoData, "eastmoney: empty screening universe")
	}
	return out, nil
}

func (e *Eastmoney) listMarket(ctx context.Context, m core.Market) ([]core.ScreeningCandidate, error) {
	fs, ok := marketFilters[m]
	if !ok {
		return nil, core.Errorf(core.ErrInvalidInput, "eastmoney: unknown market %q", m)
	}
	params := url.Values{
		"pn":     {"1"},
		"pz":     {strconv.Itoa(e.pageSize)},
		"po":     {"1"},
		"np":     {"1"},
		"fltt":   {"2"},
		"invt":   {"2"},
		"fid":    {"f3"},
		"fs":     {fs},
		"fields": {"f2,f3,f10,f12,f13,f14,f20,f100"},
	}
	data, err := e.get(ctx, e.quoteBase+listPath, params)
	if err != nil {
		return nil, fmt.Errorf("fetching %s universe: %w", m, err)
	}

	rows := data.Get("diff").Array()
	out := make([]core.ScreeningCandidate, 0, len(rows))
	for _, row := range rows {
		price, ok := field(row, "f2")
		if !ok {
			// Suspended listings carry no price.
			continue
		}
		c := core.ScreeningCandidate{
			Symbol: listingSymbol(m, row),
			Name:   row.Get("f14").String(),
			Market: m,
			Sector: row.Get("f100").String(),
			Price:  price,
			RSI:    50,
		}
		if v, ok := field(row, "f3"); ok {
			c.ChangePercent = v
		} else {
			c.Unavailable = append(c.Unavailable, "changePercent")
		}
		if v, ok := field(row, "f10"); ok {
			c.VolumeRatio = v
		} else {
			c.Unavailable = append(c.Unavailable, "volumeRatio")
		}
		if v, ok := field(row, "f20"); ok {
			c.MarketCap = v / capDivisor
		} else {
			c.Unavailable = append(c.Unavailable, "marketCap")
		}
		if c.Sector == "-" {
			c.Sector = ""
		}
		c.Unavailable = append(c.Unavailable, "rsi")
		out = append(out, c)
	}
	return out, nil
}

// Probe fetches a Shanghai quote.
func (e *Eastmoney) Probe(ctx context.Context) error {
	_, err := e.FetchQuote(ctx, "600519.SH")
	return err
}

// get performs the request and returns the data object after envelope checks.
func (e *Eastmoney) get(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	resp, err := e.client.Get(ctx, endpoint+"?"+params.Encode())
	if err != nil {
		return gjson.Result{}, err
	}
	if err := httputil.CheckStatus("eastmoney", resp); err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, core.Errorf(core.ErrNoData, "eastmoney: malformed response")
	}

	root := gjson.ParseBytes(resp.Body)
	if rc := root.Get("rc"); rc.Exists() && rc.Int() != 0 {
		return gjson.Result{}, core.Errorf(core.ErrProviderError, "eastmoney: rc=%d", rc.Int())
	}
	data := root.Get("data")
	if !data.Exists() || data.Type == gjson.Null {
		return gjson.Result{}, core.Errorf(core.ErrNoData, "eastmoney: empty data")
	}
	return data, nil
}

func (e *Eastmoney) toKlineType(g core.Granularity) string {
	switch g {
	case core.Intraday:
		return "5"
	case core.Weekly:
		return "102"
	default:
		return "101"
	}
}

type kline struct {
	label   string
	close   float64
	high    float64
	low     float64
	volume  int64
	missing []string
}

// parseKline splits "date,open,close,high,low,volume". A bad close drops the
// bar; other bad fields read as zero and are reported missing.
func parseKline(line string) (kline, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return kline{}, false
	}
	closePrice, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return kline{}, false
	}
	k := kline{label: parts[0], close: closePrice}
	if k.high, err = strconv.ParseFloat(parts[3], 64); err != nil {
		k.missing = append(k.missing, "high")
	}
	if k.low, err = strconv.ParseFloat(parts[4], 64); err != nil {
		k.missing = append(k.missing, "low")
	}
	if k.volume, err = strconv.ParseInt(parts[5], 10, 64); err != nil {
		k.missing = append(k.missing, "volume")
	}
	return k, true
}

// field reads a numeric field; "-" and missing values are unavailable.
func field(r gjson.Result, key string) (float64, bool) {
	v := r.Get(key)
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.String:
		f, err := strconv.ParseFloat(v.String(), 64)
		return f, err == nil
	}
	return 0, false
}

func listingSymbol(m core.Market, row gjson.Result) string {
	code := row.Get("f12").String()
	switch m {
	case core.MarketCN:
		if row.Get("f13").Int() == 0 {
			return code + ".SZ"
		}
		return code + ".SH"
	case core.MarketHK:
		return code + ".HK"
	}
	return code
}
