package collector

import (
	"context"

	"github.com/newthinker/stockscope/internal/core"
)

// Config holds source client configuration
type Config struct {
	Enabled            bool
	APIKey             string
	BaseURL            string
	RateLimitPerMinute int
	Extra              map[string]string
}

// Source is anything the registry can hold.
type Source interface {
	Name() string
}

// QuoteSource fetches point-in-time quotes.
type QuoteSource interface {
	Source
	FetchQuote(ctx context.Context, symbol string) (*core.Quote, error)
}

// HistorySource fetches ascending price history for a period.
type HistorySource interface {
	Source
	FetchHistory(ctx context.Context, symbol string, period core.Period) (*core.HistorySeries, error)
}

// NewsSource fetches recent headlines.
type NewsSource interface {
	Source
	FetchNews(ctx context.Context, symbol string, limit int) ([]core.NewsItem, error)
}

// ScreeningSource returns an unfiltered candidate universe for the requested markets.
type ScreeningSource interface {
	Source
	FetchScreeningUniverse(ctx context.Context, criteria core.ScreenCriteria) ([]core.ScreeningCandidate, error)
}

// IndicatorSource serves precomputed indicator series.
type IndicatorSource interface {
	Source
	FetchIndicators(ctx context.Context, symbol string, names []string) (*core.IndicatorBundle, error)
}

// Prober answers the connectivity test.
type Prober interface {
	Source
	Probe(ctx context.Context) error
}
