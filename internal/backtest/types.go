package backtest

import "github.com/newthinker/stockscope/internal/core"

// DefaultInitialCash is the starting balance of every simulation.
const DefaultInitialCash = 100_000.0

// Params are the MA-crossover + RSI strategy parameters.
type Params struct {
	MAShort         int     `json:"maShort" validate:"gte=1"`
	MALong          int     `json:"maLong" validate:"gtfield=MAShort"`
	RSIBuyThreshold float64 `json:"rsiBuyThreshold" validate:"gte=0,lte=100"`
}

// DefaultParams returns the 50/200 crossover with an RSI filter of 50.
func DefaultParams() Params {
	return Params{MAShort: 50, MALong: 200, RSIBuyThreshold: 50}
}

// Result holds the complete backtest output
type Result struct {
	Params       Params        `json:"params"`
	Signals      []core.Action `json:"signals"` // one per bar
	Trades       []Trade       `json:"trades"`
	Metrics      Metrics       `json:"metrics"`
	Equity       []float64     `json:"equity"`    // cash + marked position per bar
	Benchmark    []float64     `json:"benchmark"` // buy and hold from the first bar
	FinalCash    float64       `json:"finalCash"`
	OpenPosition *Position     `json:"openPosition,omitempty"`
}

// Position is a long holding that has not been sold yet.
type Position struct {
	Shares     int64   `json:"shares"`
	EntryPrice float64 `json:"entryPrice"`
	EntryIndex int     `json:"entryIndex"`
}

// Trade represents a completed round trip
type Trade struct {
	EntryIndex int     `json:"entryIndex"`
	EntryLabel string  `json:"entryLabel,omitempty"`
	EntryPrice float64 `json:"entryPrice"`
	ExitIndex  int     `json:"exitIndex"`
	ExitLabel  string  `json:"exitLabel,omitempty"`
	ExitPrice  float64 `json:"exitPrice"`
	Shares     int64   `json:"shares"`
	Profit     float64 `json:"profit"`
	Return     float64 `json:"return"` // fraction, (exit-entry)/entry
}

// Metrics holds performance statistics over completed trades.
type Metrics struct {
	TotalTrades   int     `json:"totalTrades"`
	WinningTrades int     `json:"winningTrades"`
	LosingTrades  int     `json:"losingTrades"`
	WinRate       float64 `json:"winRate"`     // percent
	TotalReturn   float64 `json:"totalReturn"` // percent of initial cash
	AvgReturn     float64 `json:"avgReturn"`   // percent per trade
	MaxDrawdown   float64 `json:"maxDrawdown"` // percent of peak cumulative profit
	SharpeRatio   float64 `json:"sharpeRatio"`
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.Profit > 0
}
