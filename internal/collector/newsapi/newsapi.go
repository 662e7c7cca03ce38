package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/httputil"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://newsapi.org/v2"
	defaultLimit   = 10
	maxPageSize    = 100
)

// NewsAPI implements a news source backed by newsapi.org.
type NewsAPI struct {
	client  *httputil.Client
	apiKey  string
	baseURL string
}

// New creates a NewsAPI source
func New(cfg collector.Config, logger *zap.Logger, opts ...httputil.Option) *NewsAPI {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	opts = append([]httputil.Option{
		httputil.WithRateLimit(cfg.RateLimitPerMinute),
		httputil.WithLogger(logger),
	}, opts...)

	return &NewsAPI{
		client:  httputil.New("newsapi", opts...),
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
	}
}

func (n *NewsAPI) Name() string {
	return "newsapi"
}

// FetchNews returns the newest articles mentioning symbol.
func (n *NewsAPI) FetchNews(ctx context.Context, symbol string, limit int) ([]core.NewsItem, error) {
	if n.apiKey == "" {
		return nil, core.Errorf(core.ErrProviderError, "newsapi: api key not configured")
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	params := url.Values{
		"q":        {symbol},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(limit)},
		"apiKey":   {n.apiKey},
	}
	resp, err := n.client.Get(ctx, n.baseURL+"/everything?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetching news: %w", err)
	}

	var result everythingResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		if err := httputil.CheckStatus("newsapi", resp); err != nil {
			return nil, err
		}
		return nil, core.Errorf(core.ErrNoData, "newsapi: decoding response: %v", err)
	}

	if result.Status == "error" {
		if result.Code == "rateLimited" {
			return nil, core.Errorf(core.ErrRateLimited, "newsapi: %s", result.Message)
		}
		return nil, core.Errorf(core.ErrProviderError, "newsapi: %s: %s", result.Code, result.Message)
	}
	if err := httputil.CheckStatus("newsapi", resp); err != nil {
		return nil, err
	}
	if len(result.Articles) == 0 {
		return nil, core.Errorf(core.ErrNoData, "newsapi: no articles for %s", symbol)
	}

	items := make([]core.NewsItem, 0, len(result.Articles))
	for _, a := range result.Articles {
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		items = append(items, core.NewsItem{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: published,
			SourceName:  a.Source.Name,
		})
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// Probe requests a single article.
func (n *NewsAPI) Probe(ctx context.Context) error {
	_, err := n.FetchNews(ctx, "AAPL", 1)
	return err
}

type everythingResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []article `json:"articles"`
}

type article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
