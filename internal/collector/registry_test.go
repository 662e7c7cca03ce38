package collector

import (
	"context"
	"testing"

	"github.com/newthinker/stockscope/internal/core"
)

type quoteOnly struct {
	name string
}

func (m *quoteOnly) Name() string { return m.name }
func (m *quoteOnly) FetchQuote(ctx context.Context, symbol string) (*core.Quote, error) {
	return &core.Quote{Symbol: symbol, Price: 100}, nil
}

type quoteAndProbe struct {
	quoteOnly
}

func (m *quoteAndProbe) Probe(ctx context.Context) error { return nil }

type newsOnly struct{}

func (newsOnly) Name() string { return "news" }
func (newsOnly) FetchNews(ctx context.Context, symbol string, limit int) ([]core.NewsItem, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	r.Register(&quoteOnly{name: "mock"})

	s, ok := r.Get("mock")
	if !ok {
		t.Fatal("expected to find registered source")
	}
	if s.Name() != "mock" {
		t.Errorf("expected name 'mock', got '%s'", s.Name())
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get("nonexistent"); ok {
		t.Error("expected not to find nonexistent source")
	}
}

func TestRegistry_GetAllKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&quoteOnly{name: "b"})
	r.Register(&quoteOnly{name: "a"})
	r.Register(&quoteOnly{name: "b"})

	all := r.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(all))
	}
	if all[0].Name() != "b" || all[1].Name() != "a" {
		t.Errorf("unexpected order: %s, %s", all[0].Name(), all[1].Name())
	}
}

func TestChain_FiltersByCapability(t *testing.T) {
	r := NewRegistry()
	r.Register(&quoteOnly{name: "primary"})
	r.Register(newsOnly{})
	r.Register(&quoteAndProbe{quoteOnly{name: "secondary"}})

	quotes := Chain[QuoteSource](r, []string{"secondary", "news", "missing", "primary"})
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quote sources, got %d", len(quotes))
	}
	if quotes[0].Name() != "secondary" || quotes[1].Name() != "primary" {
		t.Errorf("chain order not preserved: %s, %s", quotes[0].Name(), quotes[1].Name())
	}

	news := Chain[NewsSource](r, []string{"primary", "news"})
	if len(news) != 1 || news[0].Name() != "news" {
		t.Errorf("expected only the news source, got %v", news)
	}
}

func TestRegistry_Probers(t *testing.T) {
	r := NewRegistry()
	r.Register(&quoteOnly{name: "primary"})
	r.Register(&quoteAndProbe{quoteOnly{name: "secondary"}})

	probers := r.Probers()
	if len(probers) != 1 || probers[0].Name() != "secondary" {
		t.Errorf("expected only secondary to probe, got %d", len(probers))
	}
}
