package retrieval

import (
	"time"

	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/core"
)

// Operation names, shared with chain configuration and metrics labels.
const (
	OpQuote      = "quote"
	OpHistory    = "history"
	OpNews       = "news"
	OpIndicators = "indicators"
	OpScreening  = "screening"
	OpBacktest   = "backtest"
)

// Indicator names understood by GetIndicators.
const (
	IndicatorRSI  = "RSI"
	IndicatorMACD = "MACD"
)

// DefaultIndicators is used when a request names none.
var DefaultIndicators = []string{IndicatorRSI, IndicatorMACD}

// DefaultNewsLimit applies when a news request has no positive limit.
const DefaultNewsLimit = 10

// BacktestReport is a backtest result for one symbol and period.
type BacktestReport struct {
	Symbol string           `json:"symbol"`
	Period string           `json:"period"`
	Params backtest.Params  `json:"params"`
	Labels []string         `json:"labels,omitempty"`
	Result *backtest.Result `json:"result"`
	core.Origin
}

// ConnectionResult is one provider's connectivity test outcome.
type ConnectionResult struct {
	Provider  string        `json:"provider"`
	OK        bool          `json:"ok"`
	ErrorKind string        `json:"errorKind,omitempty"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"-"`
	LatencyMS int64         `json:"latencyMs"`
}

// Analysis joins everything the dashboard shows for one symbol.
type Analysis struct {
	Symbol     string                `json:"symbol"`
	Quote      *core.Quote           `json:"quote"`
	History    *core.HistorySeries   `json:"history"`
	Indicators *core.IndicatorBundle `json:"indicators"`
	News       *core.NewsFeed        `json:"news"`
	// Degraded lists the parts served from the mock generator.
	Degraded []string `json:"degraded,omitempty"`
}

// Recorder receives retrieval metrics.
type Recorder interface {
	RecordSourceCall(source, operation, outcome string, duration float64)
	RecordCacheLookup(operation string, hit bool)
	RecordMockFallback(operation string)
	RecordBacktest(status string, duration float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordSourceCall(string, string, string, float64) {}
func (nopRecorder) RecordCacheLookup(string, bool)                   {}
func (nopRecorder) RecordMockFallback(string)                        {}
func (nopRecorder) RecordBacktest(string, float64)                   {}
