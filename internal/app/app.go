// Package app assembles the source registry, cache, metrics, and retrieval
// service from configuration.
package app

import (
	"fmt"
	"time"

	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/cache"
	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/collector/alphavantage"
	"github.com/newthinker/stockscope/internal/collector/eastmoney"
	"github.com/newthinker/stockscope/internal/collector/newsapi"
	"github.com/newthinker/stockscope/internal/collector/proxy"
	"github.com/newthinker/stockscope/internal/collector/yahoo"
	"github.com/newthinker/stockscope/internal/config"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"github.com/newthinker/stockscope/internal/indicator"
	"github.com/newthinker/stockscope/internal/logger"
	"github.com/newthinker/stockscope/internal/metrics"
	"github.com/newthinker/stockscope/internal/retrieval"
	"go.uber.org/zap"
)

// registrationOrder fixes the order sources are registered, and so the order
// connectivity results are reported in.
var registrationOrder = []string{
	config.AlphaVantage,
	config.Yahoo,
	config.Eastmoney,
	config.NewsAPI,
	config.Proxy,
}

// keyed providers are useless without credentials.
var keyed = map[string]bool{
	config.AlphaVantage: true,
	config.NewsAPI:      true,
}

// App is the wired application.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	sources *collector.Registry
	metrics *metrics.Registry
	service *retrieval.Service
	started time.Time
}

// Option configures an App.
type Option func(*options)

type options struct {
	metrics    *metrics.Registry
	clientOpts []httputil.Option
}

// WithMetrics records retrieval metrics into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithClientOptions appends options to every source's HTTP client.
func WithClientOptions(opts ...httputil.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// New wires an App from a validated config.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sources, err := buildSources(cfg, log, o.clientOpts)
	if err != nil {
		return nil, err
	}

	settings, err := settingsFrom(cfg)
	if err != nil {
		return nil, err
	}

	svcOpts := []retrieval.Option{
		retrieval.WithLogger(logger.Component(log, "retrieval")),
		retrieval.WithCache(cache.New(cfg.Retrieval.CacheTTL, cache.WithMaxEntries(cfg.Retrieval.CacheMaxItems))),
		retrieval.WithBacktester(backtest.New(
			backtest.WithInitialCash(cfg.Backtest.InitialCash),
			backtest.WithRSIPeriod(cfg.Indicators.RSIPeriod),
		)),
	}
	if o.metrics != nil {
		svcOpts = append(svcOpts, retrieval.WithRecorder(o.metrics))
	}

	a := &App{
		cfg:     cfg,
		logger:  log,
		sources: sources,
		metrics: o.metrics,
		service: retrieval.New(sources, settings, svcOpts...),
		started: time.Now(),
	}
	log.Info("sources registered", zap.Strings("sources", a.Sources()))
	return a, nil
}

// buildSources registers every enabled provider. Keyed providers without a key
// are skipped with a warning rather than failing every call.
func buildSources(cfg *config.Config, log *zap.Logger, clientOpts []httputil.Option) (*collector.Registry, error) {
	reg := collector.NewRegistry()

	base := []httputil.Option{
		httputil.WithTimeout(cfg.Retrieval.SourceTimeout),
		httputil.WithRetry(httputil.RetryConfig{
			MaxAttempts: cfg.Retrieval.RetryAttempts,
			BaseDelay:   httputil.DefaultRetry.BaseDelay,
			MaxDelay:    httputil.DefaultRetry.MaxDelay,
		}),
	}

	for _, name := range registrationOrder {
		pc, enabled := cfg.Provider(name)
		if !enabled {
			continue
		}
		if keyed[name] && pc.APIKey == "" {
			log.Warn("provider has no api key, skipping", zap.String("provider", name))
			continue
		}

		ccfg := collector.Config{
			Enabled:            pc.Enabled,
			APIKey:             pc.APIKey,
			BaseURL:            pc.BaseURL,
			RateLimitPerMinute: pc.RateLimitPerMinute,
			Extra:              pc.Extra,
		}
		clog := logger.Component(log, name)
		opts := append(append([]httputil.Option{}, base...), clientOpts...)

		switch name {
		case config.AlphaVantage:
			reg.Register(alphavantage.New(ccfg, clog, opts...))
		case config.Yahoo:
			reg.Register(yahoo.New(ccfg, clog, opts...))
		case config.Eastmoney:
			reg.Register(eastmoney.New(ccfg, clog, opts...))
		case config.NewsAPI:
			reg.Register(newsapi.New(ccfg, clog, opts...))
		case config.Proxy:
			p, err := proxy.New(ccfg, clog, opts...)
			if err != nil {
				return nil, fmt.Errorf("creating proxy source: %w", err)
			}
			reg.Register(p)
		}
	}
	return reg, nil
}

func settingsFrom(cfg *config.Config) (retrieval.Settings, error) {
	mode, err := indicator.ParseRSIMode(cfg.Indicators.RSIMode)
	if err != nil {
		return retrieval.Settings{}, core.WrapError(core.ErrConfigInvalid, err)
	}
	return retrieval.Settings{
		Chains:          cfg.Retrieval.Chains,
		SourceTimeout:   cfg.Retrieval.SourceTimeout,
		RSIPeriod:       cfg.Indicators.RSIPeriod,
		RSIMode:         mode,
		IndicatorPeriod: core.ParsePeriod(cfg.Indicators.HistoryPeriod),
		BacktestPeriod:  core.ParsePeriod(cfg.Backtest.DefaultPeriod),
		MaxResults:      cfg.Screening.MaxResults,
	}, nil
}

// Service returns the retrieval service.
func (a *App) Service() *retrieval.Service {
	return a.service
}

// Metrics returns the metrics registry, or nil when metrics are off.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Sources returns the registered source names in registration order.
func (a *App) Sources() []string {
	all := a.sources.GetAll()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
	}
	return names
}

// BacktestDefaults returns the configured strategy parameters.
func (a *App) BacktestDefaults() backtest.Params {
	return backtest.Params{
		MAShort:         a.cfg.Backtest.MAShort,
		MALong:          a.cfg.Backtest.MALong,
		RSIBuyThreshold: a.cfg.Backtest.RSIBuy,
	}
}

// Stats summarizes the running configuration.
func (a *App) Stats() map[string]any {
	return map[string]any{
		"sources":        a.Sources(),
		"cache_ttl":      a.cfg.Retrieval.CacheTTL.String(),
		"source_timeout": a.cfg.Retrieval.SourceTimeout.String(),
		"uptime":         time.Since(a.started).Round(time.Second).String(),
	}
}
