package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/indicator"
	"github.com/spf13/viper"
)

// Provider names.
const (
	AlphaVantage = "alphavantage"
	NewsAPI      = "newsapi"
	Yahoo        = "yahoo"
	Eastmoney    = "eastmoney"
	Proxy        = "proxy"
)

// Operation names used for retrieval chains.
const (
	OpQuote      = "quote"
	OpHistory    = "history"
	OpNews       = "news"
	OpIndicators = "indicators"
	OpScreening  = "screening"
)

// Server modes. Debug switches to development logging.
const (
	ModeDebug   = "debug"
	ModeRelease = "release"
)

// Environment variables consulted when a provider has no api_key.
var apiKeyEnv = map[string]string{
	AlphaVantage: "ALPHA_VANTAGE_API_KEY",
	NewsAPI:      "NEWS_API_KEY",
	Proxy:        "STOCKSCOPE_PROXY_TOKEN",
}

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Retrieval  RetrievalConfig           `mapstructure:"retrieval"`
	Indicators IndicatorsConfig          `mapstructure:"indicators"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Screening  ScreeningConfig           `mapstructure:"screening"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// APIKey guards /api when set; falls back to STOCKSCOPE_API_KEY.
	APIKey string `mapstructure:"api_key"`
}

// ProviderConfig configures one upstream source.
type ProviderConfig struct {
	Enabled            bool              `mapstructure:"enabled"`
	APIKey             string            `mapstructure:"api_key"`
	BaseURL            string            `mapstructure:"base_url"`
	RateLimitPerMinute int               `mapstructure:"rate_limit_per_minute"`
	Extra              map[string]string `mapstructure:"extra"`
}

// RetrievalConfig drives the fallback chains.
type RetrievalConfig struct {
	CacheTTL      time.Duration       `mapstructure:"cache_ttl"`
	CacheMaxItems int                 `mapstructure:"cache_max_items"`
	SourceTimeout time.Duration       `mapstructure:"source_timeout"`
	RetryAttempts int                 `mapstructure:"retry_attempts"`
	Chains        map[string][]string `mapstructure:"chains"`
}

type IndicatorsConfig struct {
	RSIPeriod     int    `mapstructure:"rsi_period"`
	RSIMode       string `mapstructure:"rsi_mode"`
	HistoryPeriod string `mapstructure:"history_period"`
}

type BacktestConfig struct {
	InitialCash   float64 `mapstructure:"initial_cash"`
	MAShort       int     `mapstructure:"ma_short"`
	MALong        int     `mapstructure:"ma_long"`
	RSIBuy        float64 `mapstructure:"rsi_buy"`
	DefaultPeriod string  `mapstructure:"default_period"`
}

type ScreeningConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults. An empty path skips the
// file. A .env next to the file (or in the working directory) is loaded first and
// never overrides variables already set.
func Load(path string) (*Config, error) {
	envFile := ".env"
	if path != "" {
		envFile = filepath.Join(filepath.Dir(path), ".env")
	}
	_ = godotenv.Load(envFile)

	v := viper.New()

	// Support environment variable overrides
	v.SetEnvPrefix("STOCKSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.fillAPIKeys()
	if cfg.Server.APIKey == "" {
		cfg.Server.APIKey = os.Getenv("STOCKSCOPE_API_KEY")
	}

	return cfg, nil
}

// fillAPIKeys takes keys from the environment for providers that have none.
func (c *Config) fillAPIKeys() {
	for name, env := range apiKeyEnv {
		p, ok := c.Providers[name]
		if !ok || p.APIKey != "" {
			continue
		}
		p.APIKey = os.Getenv(env)
		c.Providers[name] = p
	}
}

// Provider returns the named provider config and whether it is enabled.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	return p, ok && p.Enabled
}

// Chain returns the configured source order for op.
func (c *Config) Chain(op string) []string {
	return c.Retrieval.Chains[op]
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         ModeRelease,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Providers: map[string]ProviderConfig{
			AlphaVantage: {Enabled: true, RateLimitPerMinute: 5},
			NewsAPI:      {Enabled: true, RateLimitPerMinute: 60},
			Yahoo:        {Enabled: true},
			Eastmoney:    {Enabled: true},
			Proxy:        {Enabled: false},
		},
		Retrieval: RetrievalConfig{
			CacheTTL:      5 * time.Minute,
			CacheMaxItems: 1000,
			SourceTimeout: 10 * time.Second,
			RetryAttempts: 2,
			Chains: map[string][]string{
				OpQuote:      {AlphaVantage, Yahoo, Eastmoney, Proxy},
				OpHistory:    {AlphaVantage, Yahoo, Eastmoney, Proxy},
				OpNews:       {NewsAPI, Proxy},
				OpIndicators: {AlphaVantage, Proxy},
				OpScreening:  {Eastmoney, Proxy},
			},
		},
		Indicators: IndicatorsConfig{
			RSIPeriod:     indicator.DefaultRSIPeriod,
			RSIMode:       string(indicator.ModeRelaxed),
			HistoryPeriod: "3M",
		},
		Backtest: BacktestConfig{
			InitialCash:   100_000,
			MAShort:       50,
			MALong:        200,
			RSIBuy:        50,
			DefaultPeriod: "2Y",
		},
		Screening: ScreeningConfig{
			MaxResults: 50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.Mode != ModeDebug && c.Server.Mode != ModeRelease {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("server mode must be debug or release, got %q", c.Server.Mode))
	}

	// Retrieval validation
	if c.Retrieval.CacheTTL <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("cache_ttl must be positive, got %s", c.Retrieval.CacheTTL))
	}
	if c.Retrieval.SourceTimeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("source_timeout must be positive, got %s", c.Retrieval.SourceTimeout))
	}
	for op, chain := range c.Retrieval.Chains {
		for _, name := range chain {
			if _, ok := c.Providers[name]; !ok {
				return core.WrapError(core.ErrConfigInvalid,
					fmt.Errorf("chain %s references unknown provider %q", op, name))
			}
		}
	}

	// Proxy needs somewhere to go
	if p, ok := c.Provider(Proxy); ok && p.BaseURL == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("proxy base_url required when proxy is enabled"))
	}

	// Indicator validation
	if c.Indicators.RSIPeriod < 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi_period must be at least 2, got %d", c.Indicators.RSIPeriod))
	}
	if _, err := indicator.ParseRSIMode(c.Indicators.RSIMode); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if !core.KnownPeriod(c.Indicators.HistoryPeriod) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown indicators history_period %q", c.Indicators.HistoryPeriod))
	}

	// Backtest validation
	if c.Backtest.InitialCash <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_cash must be positive, got %f", c.Backtest.InitialCash))
	}
	if c.Backtest.MAShort < 1 || c.Backtest.MALong <= c.Backtest.MAShort {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("need 1 <= ma_short < ma_long, got %d/%d", c.Backtest.MAShort, c.Backtest.MALong))
	}
	if c.Backtest.RSIBuy < 0 || c.Backtest.RSIBuy > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rsi_buy must be between 0 and 100, got %f", c.Backtest.RSIBuy))
	}

	if c.Screening.MaxResults < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_results cannot be negative, got %d", c.Screening.MaxResults))
	}

	return nil
}
