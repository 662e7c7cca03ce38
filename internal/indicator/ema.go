package indicator

import "github.com/newthinker/stockscope/internal/core"

// Standard MACD spans.
const (
	MACDFast = 12
	MACDSlow = 26
)

// EMA returns the exponential moving average of the whole series, seeded with
// its first value and smoothed with k = 2/(period+1).
func EMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, core.Errorf(core.ErrInvalidInput, "ema period must be positive, got %d", period)
	}
	if len(prices) == 0 {
		return 0, core.Errorf(core.ErrInsufficientData, "ema of empty series")
	}

	k := 2.0 / float64(period+1)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = p*k + ema*(1-k)
	}
	return ema, nil
}

// EMASeries returns the EMA of every prefix of prices.
// Element i equals EMA(prices[:i+1], period).
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "ema period must be positive, got %d", period)
	}
	if len(prices) == 0 {
		return nil, core.Errorf(core.ErrInsufficientData, "ema of empty series")
	}

	k := 2.0 / float64(period+1)
	out := make([]float64, len(prices))
	out[0] = prices[0]
	for i := 1; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}

// MACD returns EMA(12) - EMA(26) at every index, each computed from the prefix
// ending at that index only.
func MACD(prices []float64) ([]float64, error) {
	fast, err := EMASeries(prices, MACDFast)
	if err != nil {
		return nil, err
	}
	slow, err := EMASeries(prices, MACDSlow)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(prices))
	for i := range prices {
		out[i] = fast[i] - slow[i]
	}
	return out, nil
}
