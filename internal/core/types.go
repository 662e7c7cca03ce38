package core

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/moznion/go-optional"
)

// Market represents a trading market
type Market string

const (
	MarketUS Market = "US"
	MarketHK Market = "HK"
	MarketCN Market = "CN"
)

// Markets lists every market the screener understands.
var Markets = []Market{MarketUS, MarketHK, MarketCN}

// ParseMarket matches a market name case-insensitively.
func ParseMarket(s string) (Market, bool) {
	for _, m := range Markets {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return "", false
}

// DetectMarket infers the market from a symbol suffix.
func DetectMarket(symbol string) Market {
	switch {
	case strings.HasSuffix(symbol, ".HK"):
		return MarketHK
	case strings.HasSuffix(symbol, ".SH"), strings.HasSuffix(symbol, ".SZ"):
		return MarketCN
	}
	return MarketUS
}

// Provenance tells whether a record came from a real provider or was synthesized.
type Provenance string

const (
	ProvenanceLive Provenance = "live"
	ProvenanceMock Provenance = "mock"
)

// Origin is attached to every record handed to callers.
type Origin struct {
	Provenance  Provenance `json:"provenance"`
	Provider    string     `json:"provider,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Unavailable []string   `json:"unavailable,omitempty"`
}

// Live returns an origin for a record served by provider.
func Live(provider string) Origin {
	return Origin{Provenance: ProvenanceLive, Provider: provider}
}

// Mock returns an origin for synthetic data.
func Mock(reason string) Origin {
	return Origin{Provenance: ProvenanceMock, Provider: "mock", Reason: reason}
}

// IsMock reports whether the record was synthesized.
func (o Origin) IsMock() bool {
	return o.Provenance == ProvenanceMock
}

// MarkUnavailable records fields the provider did not supply, once each.
func (o *Origin) MarkUnavailable(fields ...string) {
	for _, f := range fields {
		if !slices.Contains(o.Unavailable, f) {
			o.Unavailable = append(o.Unavailable, f)
		}
	}
}

// Quote is a point-in-time price snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previousClose"`
	Time          time.Time `json:"time"`
	Origin
}

// IsValid checks if the quote has required fields
func (q Quote) IsValid() bool {
	return q.Symbol != "" && q.Price > 0
}

// Consistent checks change and changePercent against price and previous close within tol.
func (q Quote) Consistent(tol float64) bool {
	if math.Abs(q.Change-(q.Price-q.PreviousClose)) > tol {
		return false
	}
	if q.PreviousClose == 0 {
		return true
	}
	return math.Abs(q.ChangePercent-q.Change/q.PreviousClose*100) <= tol
}

// HistorySeries is an ascending sequence of bars stored as parallel arrays.
type HistorySeries struct {
	Symbol  string    `json:"symbol"`
	Period  string    `json:"period"`
	Labels  []string  `json:"labels"`
	Prices  []float64 `json:"prices"`
	Close   []float64 `json:"close"`
	High    []float64 `json:"high"`
	Low     []float64 `json:"low"`
	Volumes []int64   `json:"volumes"`
	Origin
}

// Len returns the number of bars.
func (h *HistorySeries) Len() int {
	return len(h.Labels)
}

// Append adds one bar; prices mirror closes.
func (h *HistorySeries) Append(label string, closePrice, high, low float64, volume int64) {
	h.Labels = append(h.Labels, label)
	h.Prices = append(h.Prices, closePrice)
	h.Close = append(h.Close, closePrice)
	h.High = append(h.High, high)
	h.Low = append(h.Low, low)
	h.Volumes = append(h.Volumes, volume)
}

// Validate checks the parallel arrays line up.
func (h *HistorySeries) Validate() error {
	n := len(h.Labels)
	if len(h.Prices) != n || len(h.Close) != n || len(h.High) != n || len(h.Low) != n || len(h.Volumes) != n {
		return Errorf(ErrInvalidInput, "history %s: parallel arrays differ in length", h.Symbol)
	}
	for i := range h.Prices {
		if h.Prices[i] != h.Close[i] {
			return Errorf(ErrInvalidInput, "history %s: price and close differ at %d", h.Symbol, i)
		}
	}
	return nil
}

// Tail keeps the last n bars.
func (h *HistorySeries) Tail(n int) {
	if n <= 0 || n >= h.Len() {
		return
	}
	from := h.Len() - n
	h.Labels = h.Labels[from:]
	h.Prices = h.Prices[from:]
	h.Close = h.Close[from:]
	h.High = h.High[from:]
	h.Low = h.Low[from:]
	h.Volumes = h.Volumes[from:]
}

// IndicatorBundle holds named indicator series aligned to labels.
type IndicatorBundle struct {
	Symbol string               `json:"symbol"`
	Labels []string             `json:"labels"`
	Series map[string][]float64 `json:"series"`
	Origin
}

// NewsItem is a single headline.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	SourceName  string    `json:"source"`
}

// NewsFeed is the news result for one symbol.
type NewsFeed struct {
	Symbol string     `json:"symbol"`
	Items  []NewsItem `json:"items"`
	Origin
}

// ScreeningCandidate is one stock in a screening universe.
type ScreeningCandidate struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Market        Market   `json:"market"`
	Sector        string   `json:"sector"`
	Price         float64  `json:"price"`
	ChangePercent float64  `json:"changePercent"`
	VolumeRatio   float64  `json:"volumeRatio"`
	RSI           float64  `json:"rsi"`
	MarketCap     float64  `json:"marketCap"` // billions
	Score         int      `json:"score"`
	Unavailable   []string `json:"unavailable,omitempty"`
}

// RSIBand is an inclusive RSI range.
type RSIBand struct {
	Min float64
	Max float64
}

// Contains reports whether rsi lies inside the band.
func (b RSIBand) Contains(rsi float64) bool {
	return rsi >= b.Min && rsi <= b.Max
}

func (b RSIBand) String() string {
	return fmt.Sprintf("%s-%s", formatFloat(b.Min), formatFloat(b.Max))
}

// ScreenCriteria is a normalized screening request. None thresholds are skipped.
type ScreenCriteria struct {
	Markets      []Market
	PriceChange  optional.Option[float64]
	VolumeRatio  optional.Option[float64]
	RSIBand      optional.Option[RSIBand]
	MinMarketCap optional.Option[float64]
	Limit        int
}

// AllMarkets reports whether the criteria accept every market.
func (c ScreenCriteria) AllMarkets() bool {
	return len(c.Markets) == 0
}

// Key builds a canonical cache key; market order and duplicates do not matter.
func (c ScreenCriteria) Key() string {
	seen := make(map[Market]bool, len(c.Markets))
	markets := make([]string, 0, len(c.Markets))
	for _, m := range c.Markets {
		if !seen[m] {
			seen[m] = true
			markets = append(markets, string(m))
		}
	}
	slices.Sort(markets)
	if len(markets) == 0 {
		markets = []string{"all"}
	}

	parts := []string{
		"markets=" + strings.Join(markets, ","),
		"priceChange=" + optionalString(c.PriceChange),
		"volumeRatio=" + optionalString(c.VolumeRatio),
		"minMarketCap=" + optionalString(c.MinMarketCap),
		"limit=" + strconv.Itoa(c.Limit),
	}
	if c.RSIBand.IsSome() {
		parts = append(parts, "rsi="+c.RSIBand.Unwrap().String())
	} else {
		parts = append(parts, "rsi=all")
	}
	return strings.Join(parts, "&")
}

// ScreeningResult is the ranked output of a screen.
type ScreeningResult struct {
	Candidates []ScreeningCandidate `json:"candidates"`
	Criteria   string               `json:"criteria"`
	Timestamp  time.Time            `json:"timestamp"`
	Origin
}

// Action represents a trading signal action
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

func optionalString(o optional.Option[float64]) string {
	if o.IsSome() {
		return formatFloat(o.Unwrap())
	}
	return "-"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
