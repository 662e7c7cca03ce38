package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
)

var (
	_ collector.QuoteSource   = (*Yahoo)(nil)
	_ collector.HistorySource = (*Yahoo)(nil)
	_ collector.Prober        = (*Yahoo)(nil)
)

const chartBody = `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","regularMarketPrice":110.0,"regularMarketVolume":5000000,"regularMarketTime":1718380800,
          "regularMarketDayHigh":111.0,"regularMarketDayLow":108.5,"chartPreviousClose":100.0},
  "timestamp":[1718208000,1718294400,1718380800],
  "indicators":{"quote":[{
    "open":[101.0,null,109.0],
    "high":[102.0,null,111.0],
    "low":[99.0,null,108.5],
    "close":[101.5,null,110.0],
    "volume":[1000,null,3000]
  }]}
}],"error":null}}`

func newTestYahoo(t *testing.T, status int, body string) *Yahoo {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(collector.Config{BaseURL: srv.URL}, nil)
}

func TestYahoo_Name(t *testing.T) {
	y := New(collector.Config{}, nil)
	if y.Name() != "yahoo" {
		t.Errorf("expected 'yahoo', got '%s'", y.Name())
	}
}

func TestYahoo_ToYahooSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"0700.HK", "0700.HK"},
		{"600519.SH", "600519.SS"}, // Shanghai -> SS for Yahoo
		{"000001.SZ", "000001.SZ"},
	}

	y := New(collector.Config{}, nil)
	for _, tc := range tests {
		got := y.toYahooSymbol(tc.input)
		if got != tc.expected {
			t.Errorf("toYahooSymbol(%s) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestYahoo_ToYahooInterval(t *testing.T) {
	y := New(collector.Config{}, nil)
	tests := map[core.Granularity]string{
		core.Intraday: "5m",
		core.Daily:    "1d",
		core.Weekly:   "1wk",
	}
	for g, want := range tests {
		if got := y.toYahooInterval(g); got != want {
			t.Errorf("toYahooInterval(%s) = %s, want %s", g, got, want)
		}
	}
}

func TestValidateSymbol(t *testing.T) {
	valid := []string{"AAPL", "600519.SH", "0700.HK", "BRK.B"}
	for _, s := range valid {
		if err := validateSymbol(s); err != nil {
			t.Errorf("validateSymbol(%s) unexpected error: %v", s, err)
		}
	}

	invalid := []string{"", "AAPL/../x", strings.Repeat("A", 25), "A B"}
	for _, s := range invalid {
		if err := validateSymbol(s); !errors.Is(err, core.ErrProviderError) {
			t.Errorf("validateSymbol(%q) = %v, want ErrProviderError", s, err)
		}
	}
}

func TestYahoo_FetchQuote(t *testing.T) {
	y := newTestYahoo(t, http.StatusOK, chartBody)

	q, err := y.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchQuote() error = %v", err)
	}

	if q.Price != 110 || q.PreviousClose != 100 {
		t.Errorf("price/prev = %v/%v, want 110/100", q.Price, q.PreviousClose)
	}
	if q.Change != 10 || q.ChangePercent != 10 {
		t.Errorf("change = %v (%v%%), want 10 (10%%)", q.Change, q.ChangePercent)
	}
	if q.Open != 101 {
		t.Errorf("open = %v, want 101", q.Open)
	}
	if !q.Consistent(1e-9) {
		t.Error("quote should be internally consistent")
	}
	if q.Provenance != core.ProvenanceLive || q.Provider != "yahoo" {
		t.Errorf("unexpected origin: %+v", q.Origin)
	}
}

func TestYahoo_FetchHistory_SkipsNullBars(t *testing.T) {
	y := newTestYahoo(t, http.StatusOK, chartBody)
	y.now = func() time.Time { return time.Unix(1718380800, 0) }

	h, err := y.FetchHistory(context.Background(), "AAPL", core.ParsePeriod("1M"))
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if h.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", h.Len())
	}
	if h.Close[0] != 101.5 || h.Close[1] != 110 {
		t.Errorf("closes = %v", h.Close)
	}
	if h.Labels[0] != "2024-06-12" {
		t.Errorf("first label = %s, want 2024-06-12", h.Labels[0])
	}
}

func TestYahoo_FetchHistory_MissingFieldsMarked(t *testing.T) {
	body := `{"chart":{"result":[{
  "meta":{"symbol":"AAPL","regularMarketPrice":110.0},
  "timestamp":[1718208000,1718294400],
  "indicators":{"quote":[{
    "high":[102.0,null],
    "low":[99.0,108.5],
    "close":[101.5,110.0],
    "volume":[1000,null]
  }]}
}],"error":null}}`
	y := newTestYahoo(t, http.StatusOK, body)
	y.now = func() time.Time { return time.Unix(1718380800, 0) }

	h, err := y.FetchHistory(context.Background(), "AAPL", core.ParsePeriod("1M"))
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", h.Len())
	}
	want := []string{"high", "volume"}
	if !slices.Equal(h.Unavailable, want) {
		t.Errorf("unavailable = %v, want %v", h.Unavailable, want)
	}
	if h.High[1] != 110 {
		t.Errorf("missing high = %v, want close 110", h.High[1])
	}
}

func TestYahoo_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   *core.Error
	}{
		{"unknown symbol", http.StatusNotFound, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`, core.ErrProviderError},
		{"too many requests", http.StatusTooManyRequests, `Too Many Requests`, core.ErrRateLimited},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, core.ErrNoData},
		{"forbidden", http.StatusForbidden, `denied`, core.ErrTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			y := newTestYahoo(t, tc.status, tc.body)
			_, err := y.FetchQuote(context.Background(), "AAPL")
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %s", err, tc.want.Code)
			}
		})
	}
}
