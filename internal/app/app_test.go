package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/stockscope/internal/config"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"github.com/newthinker/stockscope/internal/indicator"
	"github.com/newthinker/stockscope/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// offline returns defaults with every provider disabled.
func offline() *config.Config {
	cfg := config.Defaults()
	for name, p := range cfg.Providers {
		p.Enabled = false
		cfg.Providers[name] = p
	}
	return cfg
}

func TestNew_SkipsKeyedProvidersWithoutKey(t *testing.T) {
	cfg := config.Defaults()

	obsCore, logs := observer.New(zap.WarnLevel)
	a, err := New(cfg, zap.New(obsCore))
	require.NoError(t, err)

	assert.Equal(t, []string{config.Yahoo, config.Eastmoney}, a.Sources())
	assert.Equal(t, 2, logs.FilterMessage("provider has no api key, skipping").Len())
}

func TestNew_RegistersKeyedProvidersWithKey(t *testing.T) {
	cfg := config.Defaults()
	av := cfg.Providers[config.AlphaVantage]
	av.APIKey = "demo"
	cfg.Providers[config.AlphaVantage] = av
	news := cfg.Providers[config.NewsAPI]
	news.APIKey = "demo"
	cfg.Providers[config.NewsAPI] = news

	a, err := New(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{config.AlphaVantage, config.Yahoo, config.Eastmoney, config.NewsAPI}, a.Sources())
}

func TestNew_ProxyWithoutBaseURLFails(t *testing.T) {
	cfg := offline()
	cfg.Providers[config.Proxy] = config.ProviderConfig{Enabled: true}

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, core.ErrConfigMissing)
}

func TestNew_BadRSIModeFails(t *testing.T) {
	cfg := offline()
	cfg.Indicators.RSIMode = "wobbly"

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNew_SettingsFromConfig(t *testing.T) {
	cfg := offline()
	cfg.Indicators.RSIMode = "strict"
	cfg.Indicators.HistoryPeriod = "6M"
	cfg.Backtest.DefaultPeriod = "1Y"
	cfg.Screening.MaxResults = 7

	a, err := New(cfg, nil)
	require.NoError(t, err)

	s := a.Service().Settings()
	assert.Equal(t, indicator.ModeStrict, s.RSIMode)
	assert.Equal(t, "6M", s.IndicatorPeriod.Token)
	assert.Equal(t, "1Y", s.BacktestPeriod.Token)
	assert.Equal(t, 7, s.MaxResults)
	assert.Equal(t, cfg.Backtest.MAShort, a.BacktestDefaults().MAShort)
}

func TestApp_OfflineServesMocks(t *testing.T) {
	reg := metrics.NewRegistry()
	a, err := New(offline(), nil, WithMetrics(reg))
	require.NoError(t, err)

	q := a.Service().GetQuote(context.Background(), "AAPL")

	assert.True(t, q.IsMock())
	assert.Empty(t, a.Sources())
	assert.Same(t, reg, a.Metrics())
}

func TestApp_SourcesUseConfiguredBaseURL(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	cfg := offline()
	cfg.Providers[config.Yahoo] = config.ProviderConfig{Enabled: true, BaseURL: ts.URL}
	cfg.Retrieval.RetryAttempts = 1
	cfg.Retrieval.Chains[config.OpQuote] = []string{config.Yahoo}

	a, err := New(cfg, nil, WithClientOptions(httputil.WithTimeout(time.Second)))
	require.NoError(t, err)

	q := a.Service().GetQuote(context.Background(), "AAPL")

	assert.True(t, q.IsMock())
	assert.Contains(t, q.Reason, "yahoo")
	assert.Equal(t, int32(1), hits.Load())
}

func TestApp_Stats(t *testing.T) {
	a, err := New(offline(), nil)
	require.NoError(t, err)

	stats := a.Stats()
	assert.Contains(t, stats, "sources")
	assert.Equal(t, "5m0s", stats["cache_ttl"])
}
