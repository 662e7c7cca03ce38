package screener

import (
	"math"
	"math/rand"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func universe() []core.ScreeningCandidate {
	return []core.ScreeningCandidate{
		{Symbol: "AAPL", Market: core.MarketUS, ChangePercent: 6, VolumeRatio: 2.5, RSI: 55, MarketCap: 2800},
		{Symbol: "MSFT", Market: core.MarketUS, ChangePercent: 1, VolumeRatio: 3, RSI: 60, MarketCap: 3000},
		{Symbol: "NVDA", Market: core.MarketUS, ChangePercent: -8, VolumeRatio: 4, RSI: 25, MarketCap: 2200},
		{Symbol: "TSLA", Market: core.MarketUS, ChangePercent: 12, VolumeRatio: 1.5, RSI: 75, MarketCap: 700},
		{Symbol: "AMZN", Market: core.MarketUS, ChangePercent: 5, VolumeRatio: 2, RSI: 80, MarketCap: 1800},
		{Symbol: "META", Market: core.MarketUS, ChangePercent: 4.9, VolumeRatio: 5, RSI: 50, MarketCap: 1200},
		{Symbol: "0700.HK", Market: core.MarketHK, ChangePercent: 7, VolumeRatio: 3, RSI: 50, MarketCap: 450},
		{Symbol: "9988.HK", Market: core.MarketHK, ChangePercent: -6, VolumeRatio: 2.1, RSI: 45, MarketCap: 200},
		{Symbol: "600519.SH", Market: core.MarketCN, ChangePercent: 9, VolumeRatio: 2.2, RSI: 65, MarketCap: 290},
		{Symbol: "000001.SZ", Market: core.MarketCN, ChangePercent: 0.5, VolumeRatio: 0.8, RSI: 40, MarketCap: 30},
	}
}

func symbols(cs []core.ScreeningCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Symbol
	}
	return out
}

func TestApply_USMomentum(t *testing.T) {
	criteria := core.ScreenCriteria{
		Markets:     []core.Market{core.MarketUS},
		PriceChange: optional.Some(5.0),
		VolumeRatio: optional.Some(2.0),
	}

	got := Apply(universe(), criteria)
	require.Len(t, got, 3)

	// NVDA: 50 - 24 + 20 + 10 = 56; AAPL: 50 + 18 + 12.5 + 9 = 89.5 -> 90; AMZN: 50 + 15 + 10 - 10 = 65
	assert.Equal(t, []string{"AAPL", "AMZN", "NVDA"}, symbols(got))
	assert.Equal(t, 90, got[0].Score)
	assert.Equal(t, 65, got[1].Score)
	assert.Equal(t, 56, got[2].Score)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	in := universe()
	Apply(in, core.ScreenCriteria{})
	for _, c := range in {
		assert.Zero(t, c.Score)
	}
}

func TestApply_Limit(t *testing.T) {
	got := Apply(universe(), core.ScreenCriteria{Limit: 4})
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestFilter_EachPredicate(t *testing.T) {
	tests := []struct {
		name     string
		criteria core.ScreenCriteria
		want     []string
	}{
		{"no criteria", core.ScreenCriteria{}, symbols(universe())},
		{"markets", core.ScreenCriteria{Markets: []core.Market{core.MarketHK, core.MarketCN}},
			[]string{"0700.HK", "9988.HK", "600519.SH", "000001.SZ"}},
		{"absolute change", core.ScreenCriteria{PriceChange: optional.Some(8.0)},
			[]string{"NVDA", "TSLA", "600519.SH"}},
		{"rsi band inclusive", core.ScreenCriteria{RSIBand: optional.Some(core.RSIBand{Min: 25, Max: 45})},
			[]string{"NVDA", "9988.HK", "000001.SZ"}},
		{"market cap", core.ScreenCriteria{MinMarketCap: optional.Some(2000.0)},
			[]string{"AAPL", "MSFT", "NVDA"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, symbols(Filter(universe(), tc.criteria)))
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		cand core.ScreeningCandidate
		want int
	}{
		{"neutral", core.ScreeningCandidate{RSI: 50}, 60},
		{"change clamped up", core.ScreeningCandidate{ChangePercent: 50, RSI: 50}, 90},
		{"change clamped down", core.ScreeningCandidate{ChangePercent: -50, RSI: 50}, 30},
		{"volume capped", core.ScreeningCandidate{VolumeRatio: 100, RSI: 50}, 85},
		{"oversold", core.ScreeningCandidate{RSI: 20}, 60},
		{"overbought", core.ScreeningCandidate{RSI: 90}, 40},
		{"upper clamp", core.ScreeningCandidate{ChangePercent: 20, VolumeRatio: 10, RSI: 10}, 100},
		{"lower clamp", core.ScreeningCandidate{ChangePercent: -20, VolumeRatio: -20, RSI: 90}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.cand))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		c := core.ScreeningCandidate{
			ChangePercent: rng.NormFloat64() * 40,
			VolumeRatio:   rng.Float64()*20 - 5,
			RSI:           rng.Float64()*140 - 20,
		}
		s := Score(c)
		if s < 0 || s > 100 {
			t.Fatalf("score %d out of range for %+v", s, c)
		}
	}
	assert.Equal(t, 0, Score(core.ScreeningCandidate{ChangePercent: math.NaN()}))
}
