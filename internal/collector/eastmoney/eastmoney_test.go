package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/stockscope/internal/collector"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ collector.QuoteSource     = (*Eastmoney)(nil)
	_ collector.HistorySource   = (*Eastmoney)(nil)
	_ collector.ScreeningSource = (*Eastmoney)(nil)
	_ collector.Prober          = (*Eastmoney)(nil)
)

func newTestEastmoney(t *testing.T, routes map[string]string) *Eastmoney {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	e := New(collector.Config{BaseURL: srv.URL}, nil)
	e.now = func() time.Time { return time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC) }
	return e
}

func TestEastmoney_Name(t *testing.T) {
	e := New(collector.Config{}, nil)
	if e.Name() != "eastmoney" {
		t.Errorf("expected 'eastmoney', got '%s'", e.Name())
	}
}

func TestEastmoney_ParseSymbol(t *testing.T) {
	tests := []struct {
		input      string
		wantCode   string
		wantMarket string
	}{
		{"600519.SH", "600519", "1"}, // Shanghai = 1
		{"000001.SZ", "000001", "0"}, // Shenzhen = 0
		{"0700.HK", "0700", "116"},
		{"600519", "600519", "1"},
	}

	e := New(collector.Config{}, nil)
	for _, tt := range tests {
		code, market := e.parseSymbol(tt.input)
		if code != tt.wantCode || market != tt.wantMarket {
			t.Errorf("parseSymbol(%s) = (%s, %s), want (%s, %s)",
				tt.input, code, market, tt.wantCode, tt.wantMarket)
		}
	}
}

func TestEastmoney_FetchQuote(t *testing.T) {
	e := newTestEastmoney(t, map[string]string{
		quotePath: `{"rc":0,"data":{"f43":1688.5,"f44":1700.0,"f45":"-","f46":1670.0,"f47":25000,
			"f57":"600519","f58":"Kweichow Moutai","f60":1660.0,"f169":28.5,"f170":1.72}}`,
	})

	q, err := e.FetchQuote(context.Background(), "600519.SH")
	require.NoError(t, err)

	assert.Equal(t, 1688.5, q.Price)
	assert.Equal(t, 1700.0, q.High)
	assert.Equal(t, 28.5, q.Change)
	assert.Equal(t, int64(2_500_000), q.Volume)
	assert.Equal(t, []string{"low"}, q.Unavailable)
	assert.Equal(t, "eastmoney", q.Provider)
}

func TestEastmoney_FetchQuote_RejectsUSSymbols(t *testing.T) {
	e := New(collector.Config{}, nil)
	_, err := e.FetchQuote(context.Background(), "AAPL")
	assert.True(t, errors.Is(err, core.ErrNoData))
}

func TestEastmoney_FetchHistory(t *testing.T) {
	e := newTestEastmoney(t, map[string]string{
		historyPath: `{"rc":0,"data":{"code":"600519","klines":[
			"2024-06-12,1650.0,1655.0,1660.0,1640.0,30000",
			"bad line",
			"2024-06-13,1655.0,1661.0,1670.0,1650.0,28000"
		]}}`,
	})

	h, err := e.FetchHistory(context.Background(), "600519.SH", core.ParsePeriod("1M"))
	require.NoError(t, err)
	require.NoError(t, h.Validate())

	assert.Equal(t, []string{"2024-06-12", "2024-06-13"}, h.Labels)
	assert.Equal(t, []float64{1655.0, 1661.0}, h.Close)
	assert.Equal(t, "1M", h.Period)
	assert.Empty(t, h.Unavailable)
}

func TestEastmoney_FetchHistory_MissingFieldsMarked(t *testing.T) {
	e := newTestEastmoney(t, map[string]string{
		historyPath: `{"rc":0,"data":{"code":"600519","klines":[
			"2024-06-12,1650.0,1655.0,-,1640.0,30000",
			"2024-06-13,1655.0,1661.0,1670.0,-,",
			"2024-06-14,1661.0,1665.0,1672.0,-,29000"
		]}}`,
	})

	h, err := e.FetchHistory(context.Background(), "600519.SH", core.ParsePeriod("1M"))
	require.NoError(t, err)
	require.NoError(t, h.Validate())

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []string{"high", "low", "volume"}, h.Unavailable)
	assert.Equal(t, 0.0, h.High[0])
	assert.Equal(t, int64(0), h.Volumes[1])
}

func TestEastmoney_FetchScreeningUniverse(t *testing.T) {
	e := newTestEastmoney(t, map[string]string{
		listPath: `{"rc":0,"data":{"total":3,"diff":[
			{"f2":10.5,"f3":3.2,"f10":1.8,"f12":"600000","f13":1,"f14":"SPDB","f20":300000000000,"f100":"Banks"},
			{"f2":"-","f3":"-","f10":"-","f12":"000002","f13":0,"f14":"Suspended","f20":"-","f100":"-"},
			{"f2":8.1,"f3":-1.0,"f10":"-","f12":"000001","f13":0,"f14":"PAB","f20":150000000000,"f100":"-"}
		]}}`,
	})

	got, err := e.FetchScreeningUniverse(context.Background(), core.ScreenCriteria{Markets: []core.Market{core.MarketCN}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "600000.SH", got[0].Symbol)
	assert.Equal(t, 300.0, got[0].MarketCap)
	assert.Equal(t, "Banks", got[0].Sector)
	assert.Equal(t, 50.0, got[0].RSI)
	assert.Contains(t, got[0].Unavailable, "rsi")

	assert.Equal(t, "000001.SZ", got[1].Symbol)
	assert.Empty(t, got[1].Sector)
	assert.Contains(t, got[1].Unavailable, "volumeRatio")
}

func TestEastmoney_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *core.Error
	}{
		{"nonzero rc", `{"rc":102,"data":null}`, core.ErrProviderError},
		{"null data", `{"rc":0,"data":null}`, core.ErrNoData},
		{"garbage", `not json`, core.ErrNoData},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEastmoney(t, map[string]string{quotePath: tc.body})
			_, err := e.FetchQuote(context.Background(), "600519.SH")
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
