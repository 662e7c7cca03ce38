package alphavantage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ collector.QuoteSource     = (*AlphaVantage)(nil)
	_ collector.HistorySource   = (*AlphaVantage)(nil)
	_ collector.IndicatorSource = (*AlphaVantage)(nil)
	_ collector.Prober          = (*AlphaVantage)(nil)
)

const globalQuote = `{
  "Global Quote": {
    "01. symbol": "IBM",
    "02. open": "168.0000",
    "03. high": "170.5000",
    "04. low": "167.2500",
    "05. price": "169.9000",
    "06. volume": "3560243",
    "07. latest trading day": "2024-06-14",
    "08. previous close": "168.2000",
    "09. change": "1.7000",
    "10. change percent": "1.0107%"
  }
}`

const dailySeries = `{
  "Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM"},
  "Time Series (Daily)": {
    "2024-06-14": {"1. open": "168.0", "2. high": "170.5", "3. low": "167.2", "4. close": "169.9", "5. volume": "3560243"},
    "2024-06-13": {"1. open": "167.0", "2. high": "168.9", "3. low": "166.1", "4. close": "168.2", "5. volume": "2990000"},
    "2024-06-12": {"1. open": "166.0", "2. high": "167.5", "3. low": "165.0", "4. close": "167.0", "5. volume": "3100000"},
    "2024-01-02": {"1. open": "160.0", "2. high": "161.0", "3. low": "159.0", "4. close": "160.5", "5. volume": "4000000"}
  }
}`

func newTestServer(t *testing.T, responses map[string]string) *AlphaVantage {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		body, ok := responses[r.URL.Query().Get("function")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return New(collector.Config{APIKey: "test-key", BaseURL: srv.URL, RateLimitPerMinute: 100}, nil)
}

func TestAlphaVantage_Name(t *testing.T) {
	a := New(collector.Config{}, nil)
	if a.Name() != "alphavantage" {
		t.Errorf("expected 'alphavantage', got '%s'", a.Name())
	}
}

func TestAlphaVantage_FetchQuote(t *testing.T) {
	a := newTestServer(t, map[string]string{"GLOBAL_QUOTE": globalQuote})

	q, err := a.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)

	assert.Equal(t, "IBM", q.Symbol)
	assert.Equal(t, 169.9, q.Price)
	assert.Equal(t, 1.7, q.Change)
	assert.InDelta(t, 1.0107, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(3560243), q.Volume)
	assert.Equal(t, 168.2, q.PreviousClose)
	assert.Equal(t, 170.5, q.High)
	assert.Equal(t, core.ProvenanceLive, q.Provenance)
	assert.Empty(t, q.Unavailable)
	assert.Equal(t, "2024-06-14", q.Time.Format("2006-01-02"))
}

func TestAlphaVantage_FetchQuote_MissingVolume(t *testing.T) {
	body := `{"Global Quote": {"01. symbol": "IBM", "05. price": "100.00", "08. previous close": "99.00", "09. change": "1.00", "10. change percent": "1.0101%"}}`
	a := newTestServer(t, map[string]string{"GLOBAL_QUOTE": body})

	q, err := a.FetchQuote(context.Background(), "IBM")
	require.NoError(t, err)
	assert.Contains(t, q.Unavailable, "volume")
	assert.Equal(t, int64(0), q.Volume)
}

func TestAlphaVantage_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *core.Error
	}{
		{"error message", `{"Error Message": "Invalid API call."}`, core.ErrProviderError},
		{"note", `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, core.ErrRateLimited},
		{"information", `{"Information": "We have detected your API key and our standard API rate limit is 25 requests per day."}`, core.ErrRateLimited},
		{"empty quote", `{"Global Quote": {}}`, core.ErrNoData},
		{"missing payload", `{}`, core.ErrNoData},
		{"not json", `<html>oops</html>`, core.ErrNoData},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestServer(t, map[string]string{"GLOBAL_QUOTE": tc.body})
			_, err := a.FetchQuote(context.Background(), "IBM")
			assert.True(t, errors.Is(err, tc.want), "got %v, want %s", err, tc.want.Code)
		})
	}
}

func TestAlphaVantage_HTTPFailureIsTransport(t *testing.T) {
	a := newTestServer(t, map[string]string{})
	_, err := a.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, core.ErrTransport), "got %v", err)
}

func TestAlphaVantage_MissingKeyIsProviderError(t *testing.T) {
	a := New(collector.Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := a.FetchQuote(context.Background(), "IBM")
	assert.True(t, errors.Is(err, core.ErrProviderError), "got %v", err)
}

func TestAlphaVantage_FetchHistory_AscendingAndTrimmed(t *testing.T) {
	a := newTestServer(t, map[string]string{"TIME_SERIES_DAILY": dailySeries})

	h, err := a.FetchHistory(context.Background(), "IBM", core.ParsePeriod("1M"))
	require.NoError(t, err)
	require.NoError(t, h.Validate())

	assert.Equal(t, []string{"2024-06-12", "2024-06-13", "2024-06-14"}, h.Labels)
	assert.True(t, sort.Float64sAreSorted(h.Close))
	assert.Equal(t, h.Close, h.Prices)
	assert.Equal(t, int64(3560243), h.Volumes[2])
	assert.Equal(t, "1M", h.Period)
	assert.Empty(t, h.Unavailable)
}

func TestAlphaVantage_FetchHistory_MissingFieldsMarked(t *testing.T) {
	body := `{"Time Series (Daily)": {
    "2024-06-14": {"2. high": "n/a", "3. low": "167.2", "4. close": "169.9", "5. volume": "3560243"},
    "2024-06-13": {"2. high": "168.9", "3. low": "166.1", "4. close": "168.2"}
  }}`
	a := newTestServer(t, map[string]string{"TIME_SERIES_DAILY": body})

	h, err := a.FetchHistory(context.Background(), "IBM", core.ParsePeriod("1M"))
	require.NoError(t, err)
	require.NoError(t, h.Validate())

	assert.Equal(t, 2, h.Len())
	assert.ElementsMatch(t, []string{"high", "volume"}, h.Unavailable)
	assert.Equal(t, int64(0), h.Volumes[0])
	assert.Equal(t, 0.0, h.High[1])
}

func TestAlphaVantage_FetchHistory_PeriodSelectsFunction(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Query().Get("function")+"/"+r.URL.Query().Get("interval"))
		w.Write([]byte(`{"Error Message": "stop"}`))
	}))
	defer srv.Close()

	a := New(collector.Config{APIKey: "k", BaseURL: srv.URL, RateLimitPerMinute: 100}, nil)
	for _, p := range []string{"1D", "1W", "1Y", "5Y", "10Y", "weird"} {
		a.FetchHistory(context.Background(), "IBM", core.ParsePeriod(p))
	}

	assert.Equal(t, []string{
		"TIME_SERIES_INTRADAY/5min",
		"TIME_SERIES_INTRADAY/5min",
		"TIME_SERIES_DAILY/",
		"TIME_SERIES_WEEKLY/",
		"TIME_SERIES_WEEKLY/",
		"TIME_SERIES_DAILY/",
	}, got)
}

func TestAlphaVantage_FetchIndicators(t *testing.T) {
	rsi := `{"Meta Data": {}, "Technical Analysis: RSI": {
		"2024-06-14": {"RSI": "61.5"}, "2024-06-13": {"RSI": "58.2"}, "2024-06-12": {"RSI": "55.0"}}}`
	macd := `{"Meta Data": {}, "Technical Analysis: MACD": {
		"2024-06-14": {"MACD": "1.2", "MACD_Signal": "0.9", "MACD_Hist": "0.3"},
		"2024-06-13": {"MACD": "1.0", "MACD_Signal": "0.8", "MACD_Hist": "0.2"}}}`
	a := newTestServer(t, map[string]string{"RSI": rsi, "MACD": macd})

	b, err := a.FetchIndicators(context.Background(), "IBM", []string{"RSI", "MACD"})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-06-13", "2024-06-14"}, b.Labels)
	assert.Equal(t, []float64{58.2, 61.5}, b.Series["RSI"])
	assert.Equal(t, []float64{1.0, 1.2}, b.Series["MACD"])
}

func TestAlphaVantage_FetchIndicators_Unsupported(t *testing.T) {
	a := newTestServer(t, map[string]string{})
	_, err := a.FetchIndicators(context.Background(), "IBM", []string{"BOLL"})
	assert.True(t, errors.Is(err, core.ErrProviderError))
}
