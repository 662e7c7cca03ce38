// Package mock synthesizes plausible market data when every live source fails.
// Everything it returns is tagged with mock provenance.
package mock

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/newthinker/stockscope/internal/core"
	"github.com/shopspring/decimal"
)

// Generator produces randomized records. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand injects the random source; tests pass a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithClock overrides the time source used for labels and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a generator seeded from the wall clock unless overridden.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) float() float64 {
	return g.rng.Float64()
}

// Quote returns a synthetic quote with high >= price >= low.
func (g *Generator) Quote(symbol, reason string) *core.Quote {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := round2(g.float()*200 + 50)
	price := round2(prev + (g.float()-0.5)*20)
	change := round2(price - prev)
	open := round2(prev * (0.98 + g.float()*0.04))
	high := round2(math.Max(price, open) * (1 + g.float()*0.05))
	low := round2(math.Min(price, open) * (1 - g.float()*0.05))

	return &core.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: round2(change / prev * 100),
		Volume:        1_000_000 + g.rng.Int63n(10_000_000),
		Open:          open,
		High:          high,
		Low:           low,
		PreviousClose: prev,
		Time:          g.now(),
		Origin:        core.Mock(reason),
	}
}

// History returns a compounding random walk covering period, ascending.
func (g *Generator) History(symbol string, period core.Period, reason string) *core.HistorySeries {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, step := period.Days, 1
	if period.Granularity == core.Weekly {
		n, step = period.Days/7, 7
	}
	if n < 1 {
		n = 1
	}

	h := &core.HistorySeries{Symbol: symbol, Period: period.Token, Origin: core.Mock(reason)}
	end := g.now()
	price := g.float()*200 + 50
	for i := 0; i < n; i++ {
		price *= 1 + (g.float()-0.5)*0.1
		label := end.AddDate(0, 0, -(n-1-i)*step).Format("2006-01-02")
		h.Append(label,
			round2(price),
			round2(price*(1+g.float()*0.05)),
			round2(price*(1-g.float()*0.05)),
			1_000_000+g.rng.Int63n(5_000_000),
		)
	}
	return h
}

// RSI returns a bounded random walk starting at the neutral level.
func (g *Generator) RSI(n int) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]float64, n)
	v := 50.0
	for i := range out {
		v = math.Max(0, math.Min(100, v+(g.float()-0.5)*10))
		out[i] = round2(v)
	}
	return out
}

// MACD returns a random walk starting at zero.
func (g *Generator) MACD(n int) []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]float64, n)
	v := 0.0
	for i := range out {
		v += (g.float() - 0.5) * 2
		out[i] = round2(v)
	}
	return out
}

// Indicators builds a bundle for the requested names over n daily labels.
func (g *Generator) Indicators(symbol string, names []string, n int, reason string) *core.IndicatorBundle {
	end := g.now()
	labels := make([]string, n)
	for i := range labels {
		labels[i] = end.AddDate(0, 0, -(n-1-i)).Format("2006-01-02")
	}

	b := &core.IndicatorBundle{
		Symbol: symbol,
		Labels: labels,
		Series: make(map[string][]float64, len(names)),
		Origin: core.Mock(reason),
	}
	for _, name := range names {
		switch name {
		case "RSI":
			b.Series[name] = g.RSI(n)
		case "MACD":
			b.Series[name] = g.MACD(n)
		}
	}
	return b
}

var newsTemplates = []struct {
	title  string
	desc   string
	source string
}{
	{"%s Announces Strong Quarterly Results", "%s reported earnings ahead of analyst expectations.", "Financial News"},
	{"Analysts Upgrade %s Stock Rating", "Several analysts raised their outlook on %s.", "Investment Research"},
	{"%s Expands Market Presence", "%s announced new initiatives to grow its footprint.", "Business Wire"},
}

// News returns up to three templated headlines from the past week.
func (g *Generator) News(symbol string, limit int, reason string) *core.NewsFeed {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(newsTemplates)
	if limit > 0 && limit < n {
		n = limit
	}

	now := g.now()
	items := make([]core.NewsItem, n)
	for i := 0; i < n; i++ {
		tpl := newsTemplates[i]
		age := time.Duration(g.float() * float64(7*24*time.Hour))
		items[i] = core.NewsItem{
			Title:       fmt.Sprintf(tpl.title, symbol),
			Description: fmt.Sprintf(tpl.desc, symbol),
			PublishedAt: now.Add(-age),
			SourceName:  tpl.source,
		}
	}
	return &core.NewsFeed{Symbol: symbol, Items: items, Origin: core.Mock(reason)}
}

// Equity returns strategy and benchmark value curves over days starting from initial.
// The strategy drift is biased slightly above the benchmark.
func (g *Generator) Equity(days int, initial float64) (strategy, benchmark []float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	strategy = make([]float64, days)
	benchmark = make([]float64, days)
	s, b := initial, initial
	for i := 0; i < days; i++ {
		s *= 1 + (g.float()-0.46)*0.03
		b *= 1 + (g.float()-0.48)*0.02
		strategy[i] = round2(s)
		benchmark[i] = round2(b)
	}
	return strategy, benchmark
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
