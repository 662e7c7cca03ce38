// Package retrieval serves market data through per-operation fallback chains:
// cache, then each configured source in order, then the mock generator. The six
// data operations never fail; results carry their provenance instead.
package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/cache"
	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/indicator"
	"github.com/newthinker/stockscope/internal/mock"
	"github.com/newthinker/stockscope/internal/screener"
	"go.uber.org/zap"
)

// DefaultSourceTimeout bounds each source call.
const DefaultSourceTimeout = 10 * time.Second

// Settings are the tunables taken from configuration.
type Settings struct {
	Chains          map[string][]string
	SourceTimeout   time.Duration
	RSIPeriod       int
	RSIMode         indicator.RSIMode
	IndicatorPeriod core.Period
	BacktestPeriod  core.Period
	MaxResults      int
}

// DefaultSettings returns settings with every source chain empty.
func DefaultSettings() Settings {
	return Settings{
		Chains:          map[string][]string{},
		SourceTimeout:   DefaultSourceTimeout,
		RSIPeriod:       indicator.DefaultRSIPeriod,
		RSIMode:         indicator.ModeRelaxed,
		IndicatorPeriod: core.DefaultPeriod,
		BacktestPeriod:  core.ParsePeriod("2Y"),
		MaxResults:      50,
	}
}

// Service is the retrieval orchestrator. Safe for concurrent use.
type Service struct {
	registry *collector.Registry
	settings Settings
	cache    *cache.Cache
	mock     *mock.Generator
	engine   *backtest.Backtester
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache replaces the default cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMock replaces the mock generator.
func WithMock(g *mock.Generator) Option {
	return func(s *Service) { s.mock = g }
}

// WithBacktester replaces the backtest engine.
func WithBacktester(b *backtest.Backtester) Option {
	return func(s *Service) { s.engine = b }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service over the sources in registry.
func New(registry *collector.Registry, settings Settings, opts ...Option) *Service {
	if settings.SourceTimeout <= 0 {
		settings.SourceTimeout = DefaultSourceTimeout
	}
	if settings.RSIPeriod <= 0 {
		settings.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if settings.RSIMode == "" {
		settings.RSIMode = indicator.ModeRelaxed
	}
	if settings.IndicatorPeriod.Token == "" {
		settings.IndicatorPeriod = core.DefaultPeriod
	}
	if settings.BacktestPeriod.Token == "" {
		settings.BacktestPeriod = core.ParsePeriod("2Y")
	}
	if settings.Chains == nil {
		settings.Chains = map[string][]string{}
	}

	s := &Service{
		registry: registry,
		settings: settings,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.New(cache.DefaultTTL)
	}
	if s.mock == nil {
		s.mock = mock.New()
	}
	if s.engine == nil {
		s.engine = backtest.New(backtest.WithRSIPeriod(settings.RSIPeriod))
	}
	return s
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// GetQuote returns a quote from the first source that answers, or a mock.
func (s *Service) GetQuote(ctx context.Context, symbol string) *core.Quote {
	symbol = normalizeSymbol(symbol)
	key := cache.Key(OpQuote, map[string]string{"symbol": symbol})

	return cachedFetch(s, OpQuote, key, func() (*core.Quote, bool, error) {
		sources := collector.Chain[collector.QuoteSource](s.registry, s.settings.Chains[OpQuote])
		q, provider, err := run(ctx, s, OpQuote, sources, func(ctx context.Context, src collector.QuoteSource) (*core.Quote, error) {
			return src.FetchQuote(ctx, symbol)
		})
		if err != nil {
			s.fellBack(OpQuote, symbol, err)
			return s.mock.Quote(symbol, err.Error()), false, nil
		}
		q.Symbol = symbol
		q.Origin = live(q.Origin, provider)
		return q, true, nil
	})
}

// GetHistory returns an ascending series for period; unknown periods mean 3M.
func (s *Service) GetHistory(ctx context.Context, symbol, period string) *core.HistorySeries {
	symbol = normalizeSymbol(symbol)
	p := core.ParsePeriod(period)
	key := cache.Key(OpHistory, map[string]string{"symbol": symbol, "period": p.Token})

	return cachedFetch(s, OpHistory, key, func() (*core.HistorySeries, bool, error) {
		sources := collector.Chain[collector.HistorySource](s.registry, s.settings.Chains[OpHistory])
		h, provider, err := run(ctx, s, OpHistory, sources, func(ctx context.Context, src collector.HistorySource) (*core.HistorySeries, error) {
			h, err := src.FetchHistory(ctx, symbol, p)
			if err != nil {
				return nil, err
			}
			if h.Len() == 0 {
				return nil, core.Errorf(core.ErrNoData, "empty history for %s", symbol)
			}
			if err := h.Validate(); err != nil {
				return nil, core.WrapError(core.ErrProviderError, err)
			}
			return h, nil
		})
		if err != nil {
			s.fellBack(OpHistory, symbol, err)
			return s.mock.History(symbol, p, err.Error()), false, nil
		}
		h.Symbol = symbol
		h.Period = p.Token
		h.Origin = live(h.Origin, provider)
		return h, true, nil
	})
}

// GetNews returns up to limit recent headlines.
func (s *Service) GetNews(ctx context.Context, symbol string, limit int) *core.NewsFeed {
	symbol = normalizeSymbol(symbol)
	if limit <= 0 {
		limit = DefaultNewsLimit
	}
	key := cache.Key(OpNews, map[string]string{"symbol": symbol, "limit": strconv.Itoa(limit)})

	return cachedFetch(s, OpNews, key, func() (*core.NewsFeed, bool, error) {
		sources := collector.Chain[collector.NewsSource](s.registry, s.settings.Chains[OpNews])
		items, provider, err := run(ctx, s, OpNews, sources, func(ctx context.Context, src collector.NewsSource) ([]core.NewsItem, error) {
			items, err := src.FetchNews(ctx, symbol, limit)
			if err == nil && len(items) == 0 {
				err = core.Errorf(core.ErrNoData, "no news for %s", symbol)
			}
			return items, err
		})
		if err != nil {
			s.fellBack(OpNews, symbol, err)
			return s.mock.News(symbol, limit, err.Error()), false, nil
		}
		if len(items) > limit {
			items = items[:limit]
		}
		return &core.NewsFeed{Symbol: symbol, Items: items, Origin: core.Live(provider)}, true, nil
	})
}

// GetIndicators returns the named indicator series. Indicator sources are tried
// first, then the series are computed from live history.
func (s *Service) GetIndicators(ctx context.Context, symbol string, names []string) *core.IndicatorBundle {
	symbol = normalizeSymbol(symbol)
	names = normalizeIndicators(names)
	key := cache.Key(OpIndicators, map[string]string{
		"symbol":     symbol,
		"indicators": strings.Join(names, ","),
		"mode":       string(s.settings.RSIMode),
	})

	return cachedFetch(s, OpIndicators, key, func() (*core.IndicatorBundle, bool, error) {
		sources := collector.Chain[collector.IndicatorSource](s.registry, s.settings.Chains[OpIndicators])
		b, provider, err := run(ctx, s, OpIndicators, sources, func(ctx context.Context, src collector.IndicatorSource) (*core.IndicatorBundle, error) {
			b, err := src.FetchIndicators(ctx, symbol, names)
			if err != nil {
				return nil, err
			}
			for _, name := range names {
				if len(b.Series[name]) == 0 {
					return nil, core.Errorf(core.ErrNoData, "%s missing from response", name)
				}
			}
			return b, nil
		})
		if err == nil {
			b.Symbol = symbol
			b.Origin = live(b.Origin, provider)
			return b, true, nil
		}

		b, cerr := s.computeIndicators(ctx, symbol, names)
		if cerr == nil {
			return b, true, nil
		}
		s.logger.Debug("computing indicators failed",
			zap.String("symbol", symbol),
			zap.Error(cerr),
		)

		err = fmt.Errorf("%w; computed: %v", err, cerr)
		s.fellBack(OpIndicators, symbol, err)
		return s.mock.Indicators(symbol, names, s.mockIndicatorBars(), err.Error()), false, nil
	})
}

// computeIndicators derives the bundle from live history.
func (s *Service) computeIndicators(ctx context.Context, symbol string, names []string) (*core.IndicatorBundle, error) {
	h := s.GetHistory(ctx, symbol, s.settings.IndicatorPeriod.Token)
	if h.IsMock() {
		return nil, fmt.Errorf("history unavailable: %s", h.Reason)
	}
	if s.settings.RSIMode == indicator.ModeStrict && h.Len() <= s.settings.RSIPeriod {
		return nil, core.Errorf(core.ErrInsufficientData,
			"strict rsi(%d) needs %d bars, got %d", s.settings.RSIPeriod, s.settings.RSIPeriod+1, h.Len())
	}

	b := &core.IndicatorBundle{
		Symbol: symbol,
		Labels: h.Labels,
		Series: make(map[string][]float64, len(names)),
		Origin: core.Live("computed:" + h.Provider),
	}
	start := 0
	for _, name := range names {
		switch name {
		case IndicatorRSI:
			rsi, err := indicator.RSI(h.Close, s.settings.RSIPeriod, s.settings.RSIMode)
			if err != nil {
				return nil, err
			}
			if s.settings.RSIMode == indicator.ModeStrict {
				// Strict mode leaves the warm-up undefined; trim every series to match.
				start = s.settings.RSIPeriod
			}
			b.Series[name] = rsi.Fill(indicator.NeutralRSI)
		case IndicatorMACD:
			macd, err := indicator.MACD(h.Close)
			if err != nil {
				return nil, err
			}
			b.Series[name] = macd
		}
	}

	if start > 0 {
		b.Labels = b.Labels[start:]
		for name, series := range b.Series {
			b.Series[name] = series[start:]
		}
	}
	return b, nil
}

// mockIndicatorBars sizes a synthetic bundle like a computed one, without the
// strict warm-up.
func (s *Service) mockIndicatorBars() int {
	n := s.settings.IndicatorPeriod.Days
	if s.settings.RSIMode == indicator.ModeStrict {
		n -= s.settings.RSIPeriod
	}
	return max(n, 1)
}

// ScreenStocks filters and ranks a screening universe.
func (s *Service) ScreenStocks(ctx context.Context, criteria core.ScreenCriteria) *core.ScreeningResult {
	if criteria.Limit <= 0 {
		criteria.Limit = s.settings.MaxResults
	}
	key := OpScreening + "?" + criteria.Key()

	return cachedFetch(s, OpScreening, key, func() (*core.ScreeningResult, bool, error) {
		sources := collector.Chain[collector.ScreeningSource](s.registry, s.settings.Chains[OpScreening])
		universe, provider, err := run(ctx, s, OpScreening, sources, func(ctx context.Context, src collector.ScreeningSource) ([]core.ScreeningCandidate, error) {
			u, err := src.FetchScreeningUniverse(ctx, criteria)
			if err == nil && len(u) == 0 {
				err = core.Errorf(core.ErrNoData, "empty screening universe")
			}
			return u, err
		})

		origin := core.Live(provider)
		keep := true
		if err != nil {
			s.fellBack(OpScreening, "", err)
			universe = s.mock.Universe()
			origin = core.Mock(err.Error())
			keep = false
		}

		return &core.ScreeningResult{
			Candidates: screener.Apply(universe, criteria),
			Criteria:   criteria.Key(),
			Timestamp:  s.now(),
			Origin:     origin,
		}, keep, nil
	})
}

// ValidateBacktest checks strategy parameters.
func (s *Service) ValidateBacktest(params backtest.Params) error {
	return s.engine.Validate(params)
}

// RunBacktest runs the strategy over the symbol's history. If the engine cannot
// run, a mock report is returned.
func (s *Service) RunBacktest(ctx context.Context, symbol, period string, params backtest.Params) *BacktestReport {
	symbol = normalizeSymbol(symbol)
	p := s.settings.BacktestPeriod
	if period != "" {
		p = core.ParsePeriod(period)
	}
	key := cache.Key(OpBacktest, map[string]string{
		"symbol":  symbol,
		"period":  p.Token,
		"maShort": strconv.Itoa(params.MAShort),
		"maLong":  strconv.Itoa(params.MALong),
		"rsiBuy":  strconv.FormatFloat(params.RSIBuyThreshold, 'g', -1, 64),
	})

	return cachedFetch(s, OpBacktest, key, func() (*BacktestReport, bool, error) {
		start := time.Now()
		report := &BacktestReport{Symbol: symbol, Period: p.Token, Params: params}

		h := s.GetHistory(ctx, symbol, p.Token)
		res, err := s.engine.Run(ctx, h.Close, h.Labels, params)
		if err != nil {
			s.logger.Warn("backtest failed",
				zap.String("symbol", symbol),
				zap.String("period", p.Token),
				zap.Error(err),
			)
			s.recorder.RecordMockFallback(OpBacktest)
			s.recorder.RecordBacktest("mock", time.Since(start).Seconds())
			report.Result = s.mock.Backtest(params, s.engine.InitialCash())
			report.Origin = core.Mock(err.Error())
			return report, false, nil
		}

		report.Result = res
		report.Labels = h.Labels
		if h.IsMock() {
			report.Origin = core.Mock("history: " + h.Reason)
			s.recorder.RecordBacktest("mock", time.Since(start).Seconds())
			return report, false, nil
		}
		report.Origin = core.Live(h.Provider)
		s.recorder.RecordBacktest("live", time.Since(start).Seconds())
		return report, true, nil
	})
}

// ClearCache drops every cached result and returns how many there were.
func (s *Service) ClearCache() int {
	n := s.cache.Clear()
	s.logger.Info("cache cleared", zap.Int("entries", n))
	return n
}

// cachedFetch wraps cache.GetOrFetch with hit/miss accounting.
func cachedFetch[T any](s *Service, op, key string, fetch cache.Fetcher[T]) T {
	v, hit, err := cache.GetOrFetch(s.cache, key, fetch)
	s.recorder.RecordCacheLookup(op, hit)
	if err != nil {
		s.logger.Error("retrieval fetch failed", zap.String("operation", op), zap.Error(err))
	}
	return v
}

// run tries each source in order and returns the first success. Each call gets
// its own deadline; a call that overruns it counts as a transport failure even if
// the source ignores its context. The returned error describes the last failure.
func run[S collector.Source, T any](ctx context.Context, s *Service, op string, sources []S, call func(context.Context, S) (T, error)) (T, string, error) {
	var zero T
	if len(sources) == 0 {
		return zero, "", core.Errorf(core.ErrNoData, "no %s sources configured", op)
	}

	var lastErr error
	for _, src := range sources {
		name := src.Name()
		start := time.Now()
		v, err := callWithTimeout(ctx, s.settings.SourceTimeout, src, call)

		outcome := "ok"
		if err != nil {
			outcome = core.Kind(err)
		}
		s.recorder.RecordSourceCall(name, op, outcome, time.Since(start).Seconds())

		if err == nil {
			return v, name, nil
		}
		lastErr = fmt.Errorf("%s: %w", name, err)
		s.logger.Warn("source failed",
			zap.String("operation", op),
			zap.String("source", name),
			zap.String("kind", outcome),
			zap.Error(err),
		)
	}
	return zero, "", lastErr
}

type callResult[T any] struct {
	value T
	err   error
}

func callWithTimeout[S collector.Source, T any](ctx context.Context, timeout time.Duration, src S, call func(context.Context, S) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := call(callCtx, src)
		done <- callResult[T]{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-callCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, core.WrapError(core.ErrTransport, ctx.Err())
		}
		return zero, core.Errorf(core.ErrTransport, "timed out after %s", timeout)
	}
}

func (s *Service) fellBack(op, symbol string, err error) {
	s.recorder.RecordMockFallback(op)
	s.logger.Info("serving mock data",
		zap.String("operation", op),
		zap.String("symbol", symbol),
		zap.String("reason", err.Error()),
	)
}

// live stamps a record as served by provider, keeping unavailable-field markers.
func live(o core.Origin, provider string) core.Origin {
	stamped := core.Live(provider)
	stamped.Unavailable = o.Unavailable
	return stamped
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// normalizeIndicators upper-cases, drops unknown names and duplicates, and falls
// back to DefaultIndicators.
func normalizeIndicators(names []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if (n == IndicatorRSI || n == IndicatorMACD) && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return DefaultIndicators
	}
	return out
}
