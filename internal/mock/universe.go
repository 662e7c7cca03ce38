package mock

import (
	"math"

	"github.com/newthinker/stockscope/internal/backtest"
	"github.com/newthinker/stockscope/internal/core"
)

type listing struct {
	symbol    string
	name      string
	market    core.Market
	sector    string
	marketCap float64 // billions
}

var universe = []listing{
	{"AAPL", "Apple Inc.", core.MarketUS, "Tech", 3000},
	{"MSFT", "Microsoft Corp.", core.MarketUS, "Tech", 2800},
	{"GOOGL", "Alphabet Inc.", core.MarketUS, "Tech", 1700},
	{"TSLA", "Tesla Inc.", core.MarketUS, "Automotive", 800},
	{"NVDA", "NVIDIA Corp.", core.MarketUS, "Tech", 1100},
	{"AMZN", "Amazon.com Inc.", core.MarketUS, "Consumer Discretionary", 1500},
	{"META", "Meta Platforms Inc.", core.MarketUS, "Tech", 900},
	{"JPM", "JPMorgan Chase & Co.", core.MarketUS, "Financial", 450},
	{"V", "Visa Inc.", core.MarketUS, "Financial", 500},
	{"UNH", "UnitedHealth Group", core.MarketUS, "Healthcare", 480},

	{"0700.HK", "Tencent Holdings", core.MarketHK, "Tech", 380},
	{"0941.HK", "China Mobile", core.MarketHK, "Telecom", 180},
	{"0005.HK", "HSBC Holdings", core.MarketHK, "Financial", 160},
	{"1299.HK", "AIA Group", core.MarketHK, "Financial", 120},
	{"1398.HK", "ICBC", core.MarketHK, "Financial", 220},
	{"2318.HK", "Ping An Insurance", core.MarketHK, "Financial", 110},
	{"3690.HK", "Meituan", core.MarketHK, "Consumer Discretionary", 100},
	{"9988.HK", "Alibaba Group", core.MarketHK, "Tech", 200},
	{"2020.HK", "ANTA Sports", core.MarketHK, "Consumer Discretionary", 30},
	{"1810.HK", "Xiaomi Corp.", core.MarketHK, "Tech", 60},

	{"000001.SZ", "Ping An Bank", core.MarketCN, "Financial", 30},
	{"000002.SZ", "China Vanke", core.MarketCN, "Real Estate", 15},
	{"000858.SZ", "Wuliangye Yibin", core.MarketCN, "Consumer Staples", 80},
	{"300059.SZ", "East Money Information", core.MarketCN, "Financial", 35},
	{"600036.SH", "China Merchants Bank", core.MarketCN, "Financial", 120},
	{"600519.SH", "Kweichow Moutai", core.MarketCN, "Consumer Staples", 300},
	{"600887.SH", "Inner Mongolia Yili", core.MarketCN, "Consumer Staples", 30},
	{"002415.SZ", "Hikvision", core.MarketCN, "Tech", 45},
	{"300750.SZ", "CATL", core.MarketCN, "Automotive", 140},
	{"002594.SZ", "BYD Company", core.MarketCN, "Automotive", 110},
}

var sectorVolatility = map[string]float64{
	"Tech":                   0.08,
	"Financial":              0.05,
	"Healthcare":             0.04,
	"Consumer Staples":       0.03,
	"Consumer Discretionary": 0.06,
	"Automotive":             0.10,
	"Telecom":                0.04,
	"Real Estate":            0.05,
}

const defaultVolatility = 0.05

// UniverseSize is the number of listings in the synthetic screening universe.
func UniverseSize() int {
	return len(universe)
}

// Universe returns the fixed 30-stock screening universe with randomized market data.
// Daily change scales with sector volatility.
func (g *Generator) Universe() []core.ScreeningCandidate {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]core.ScreeningCandidate, len(universe))
	for i, l := range universe {
		vol, ok := sectorVolatility[l.sector]
		if !ok {
			vol = defaultVolatility
		}
		out[i] = core.ScreeningCandidate{
			Symbol:        l.symbol,
			Name:          l.name,
			Market:        l.market,
			Sector:        l.sector,
			Price:         round2(g.float()*300 + 10),
			ChangePercent: round2((g.float() - 0.5) * 16 * vol / defaultVolatility),
			VolumeRatio:   round2(g.volumeRatio()),
			RSI:           round2(g.rsi()),
			MarketCap:     l.marketCap,
		}
	}
	return out
}

// rsi draws 10% oversold, 10% overbought, the rest neutral.
func (g *Generator) rsi() float64 {
	switch r := g.float(); {
	case r < 0.1:
		return 10 + g.float()*20
	case r < 0.2:
		return 70 + g.float()*20
	default:
		return 30 + g.float()*40
	}
}

// volumeRatio draws 70% in [0.5,2), 20% in [2,4), 10% in [4,10).
func (g *Generator) volumeRatio() float64 {
	switch r := g.float(); {
	case r < 0.7:
		return 0.5 + g.float()*1.5
	case r < 0.9:
		return 2 + g.float()*2
	default:
		return 4 + g.float()*6
	}
}

// Backtest fabricates a result over a 252-day equity curve.
func (g *Generator) Backtest(params backtest.Params, initialCash float64) *backtest.Result {
	curve, benchmark := g.Equity(252, initialCash)

	g.mu.Lock()
	trades := 5 + g.rng.Intn(20)
	winRate := round2(40 + g.float()*30)
	sharpe := round2(0.5 + g.float()*1.5)
	g.mu.Unlock()

	peak, maxDD := curve[0], 0.0
	for _, v := range curve {
		peak = math.Max(peak, v)
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-v)/peak*100)
		}
	}

	final := curve[len(curve)-1]
	wins := int(math.Round(float64(trades) * winRate / 100))
	totalReturn := round2((final - initialCash) / initialCash * 100)

	return &backtest.Result{
		Params: params,
		Metrics: backtest.Metrics{
			TotalTrades:   trades,
			WinningTrades: wins,
			LosingTrades:  trades - wins,
			WinRate:       winRate,
			TotalReturn:   totalReturn,
			AvgReturn:     round2(totalReturn / float64(trades)),
			MaxDrawdown:   round2(maxDD),
			SharpeRatio:   sharpe,
		},
		Equity:    curve,
		Benchmark: benchmark,
		FinalCash: final,
	}
}
