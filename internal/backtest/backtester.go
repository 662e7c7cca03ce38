package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/newthinker/stockscope/internal/core"
	"github.com/newthinker/stockscope/internal/indicator"
)

// Backtester runs the MA-crossover + RSI strategy over a close series.
type Backtester struct {
	initialCash float64
	rsiPeriod   int
	validate    *validator.Validate
}

// Option configures a Backtester.
type Option func(*Backtester)

// WithInitialCash overrides the starting balance.
func WithInitialCash(cash float64) Option {
	return func(b *Backtester) { b.initialCash = cash }
}

// WithRSIPeriod overrides the RSI lookback used by the buy filter.
func WithRSIPeriod(period int) Option {
	return func(b *Backtester) { b.rsiPeriod = period }
}

// New creates a Backtester with 100,000 starting cash and RSI(14).
func New(opts ...Option) *Backtester {
	b := &Backtester{
		initialCash: DefaultInitialCash,
		rsiPeriod:   indicator.DefaultRSIPeriod,
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// InitialCash returns the configured starting balance.
func (b *Backtester) InitialCash() float64 {
	return b.initialCash
}

// Validate checks strategy parameters.
func (b *Backtester) Validate(p Params) error {
	if err := b.validate.Struct(p); err != nil {
		return core.WrapError(core.ErrInvalidInput, err)
	}
	return nil
}

// Run executes the strategy over prices. labels, when given, must align with prices.
// A position still open at the end is reported but not closed.
func (b *Backtester) Run(ctx context.Context, prices []float64, labels []string, p Params) (*Result, error) {
	if err := b.Validate(p); err != nil {
		return nil, err
	}
	if len(prices) <= p.MALong {
		return nil, core.Errorf(core.ErrInsufficientData,
			"backtest needs more than %d prices, got %d", p.MALong, len(prices))
	}
	if labels != nil && len(labels) != len(prices) {
		return nil, core.Errorf(core.ErrInvalidInput,
			"labels (%d) and prices (%d) differ in length", len(labels), len(prices))
	}

	signals, err := b.generateSignals(ctx, prices, p)
	if err != nil {
		return nil, err
	}

	res := b.simulate(prices, labels, signals)
	res.Params = p
	res.Signals = signals
	res.Metrics = CalculateMetrics(res.Trades, b.initialCash)
	return res, nil
}

// generateSignals emits one action per bar; bars before MALong are hold.
func (b *Backtester) generateSignals(ctx context.Context, prices []float64, p Params) ([]core.Action, error) {
	short, err := indicator.MovingAverage(prices, p.MAShort)
	if err != nil {
		return nil, fmt.Errorf("short moving average: %w", err)
	}
	long, err := indicator.MovingAverage(prices, p.MALong)
	if err != nil {
		return nil, fmt.Errorf("long moving average: %w", err)
	}
	rsi, err := indicator.RSI(prices, b.rsiPeriod, indicator.ModeStrict)
	if err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}

	signals := make([]core.Action, len(prices))
	for i := range signals {
		signals[i] = core.ActionHold
	}

	for i := p.MALong; i < len(prices); i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		s, okS := short.At(i)
		l, okL := long.At(i)
		ps, okPS := short.At(i - 1)
		pl, okPL := long.At(i - 1)
		if !okS || !okL || !okPS || !okPL {
			continue
		}

		switch {
		case s > l && ps <= pl:
			if r, ok := rsi.At(i); ok && r > p.RSIBuyThreshold {
				signals[i] = core.ActionBuy
			}
		case s < l && ps >= pl:
			signals[i] = core.ActionSell
		}
	}
	return signals, nil
}

// simulate trades a single long position in whole shares.
func (b *Backtester) simulate(prices []float64, labels []string, signals []core.Action) *Result {
	cash := b.initialCash
	var open *Position
	var trades []Trade
	equity := make([]float64, len(prices))

	for i, price := range prices {
		switch signals[i] {
		case core.ActionBuy:
			if open == nil && price > 0 {
				shares := int64(math.Floor(cash / price))
				if shares > 0 {
					cash -= float64(shares) * price
					open = &Position{Shares: shares, EntryPrice: price, EntryIndex: i}
				}
			}
		case core.ActionSell:
			if open != nil {
				proceeds := float64(open.Shares) * price
				cost := float64(open.Shares) * open.EntryPrice
				cash += proceeds
				trades = append(trades, Trade{
					EntryIndex: open.EntryIndex,
					EntryLabel: labelAt(labels, open.EntryIndex),
					EntryPrice: open.EntryPrice,
					ExitIndex:  i,
					ExitLabel:  labelAt(labels, i),
					ExitPrice:  price,
					Shares:     open.Shares,
					Profit:     proceeds - cost,
					Return:     (price - open.EntryPrice) / open.EntryPrice,
				})
				open = nil
			}
		}

		equity[i] = cash
		if open != nil {
			equity[i] += float64(open.Shares) * price
		}
	}

	return &Result{
		Trades:       trades,
		Equity:       equity,
		Benchmark:    b.buyAndHold(prices),
		FinalCash:    cash,
		OpenPosition: open,
	}
}

// buyAndHold values a position bought with all cash on the first bar.
func (b *Backtester) buyAndHold(prices []float64) []float64 {
	curve := make([]float64, len(prices))
	var shares int64
	cash := b.initialCash
	if len(prices) > 0 && prices[0] > 0 {
		shares = int64(math.Floor(cash / prices[0]))
		cash -= float64(shares) * prices[0]
	}
	for i, price := range prices {
		curve[i] = cash + float64(shares)*price
	}
	return curve
}

func labelAt(labels []string, i int) string {
	if i < len(labels) {
		return labels[i]
	}
	return ""
}
