package retrieval

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/newthinker/stockscope/internal/core"
)

// fakeSource implements every capability; nil funcs answer NoData.
type fakeSource struct {
	name  string
	delay time.Duration // ignores ctx on purpose
	calls atomic.Int32

	quote     func(symbol string) (*core.Quote, error)
	history   func(symbol string, p core.Period) (*core.HistorySeries, error)
	news      func(symbol string, limit int) ([]core.NewsItem, error)
	universe  func(c core.ScreenCriteria) ([]core.ScreeningCandidate, error)
	indicator func(symbol string, names []string) (*core.IndicatorBundle, error)
	probe     func() error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) enter() {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func noData() error { return core.Errorf(core.ErrNoData, "nothing here") }

func (f *fakeSource) FetchQuote(_ context.Context, symbol string) (*core.Quote, error) {
	f.enter()
	if f.quote == nil {
		return nil, noData()
	}
	return f.quote(symbol)
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol string, p core.Period) (*core.HistorySeries, error) {
	f.enter()
	if f.history == nil {
		return nil, noData()
	}
	return f.history(symbol, p)
}

func (f *fakeSource) FetchNews(_ context.Context, symbol string, limit int) ([]core.NewsItem, error) {
	f.enter()
	if f.news == nil {
		return nil, noData()
	}
	return f.news(symbol, limit)
}

func (f *fakeSource) FetchScreeningUniverse(_ context.Context, c core.ScreenCriteria) ([]core.ScreeningCandidate, error) {
	f.enter()
	if f.universe == nil {
		return nil, noData()
	}
	return f.universe(c)
}

func (f *fakeSource) FetchIndicators(_ context.Context, symbol string, names []string) (*core.IndicatorBundle, error) {
	f.enter()
	if f.indicator == nil {
		return nil, noData()
	}
	return f.indicator(symbol, names)
}

func (f *fakeSource) Probe(context.Context) error {
	f.enter()
	if f.probe == nil {
		return nil
	}
	return f.probe()
}

// dailySeries builds n ascending daily bars ending 2024-06-14.
func dailySeries(symbol string, closes []float64) *core.HistorySeries {
	h := &core.HistorySeries{Symbol: symbol}
	end := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		label := end.AddDate(0, 0, -(len(closes)-1-i)).Format("2006-01-02")
		h.Append(label, c, c+1, c-1, 1000)
	}
	return h
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// countingRecorder tallies recorder calls.
type countingRecorder struct {
	mu        sync.Mutex
	sources   map[string]int // source/op/outcome
	hits      int
	misses    int
	fallbacks map[string]int
	backtests map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		sources:   map[string]int{},
		fallbacks: map[string]int{},
		backtests: map[string]int{},
	}
}

func (r *countingRecorder) RecordSourceCall(source, op, outcome string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source+"/"+op+"/"+outcome]++
}

func (r *countingRecorder) RecordCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) RecordMockFallback(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[op]++
}

func (r *countingRecorder) RecordBacktest(status string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backtests[status]++
}
