package indicator

import (
	"github.com/moznion/go-optional"
	"github.com/newthinker/stockscope/internal/core"
)

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// MovingAverage returns the trailing mean of period values at every index.
// The first period-1 entries are None.
func MovingAverage(prices []float64, period int) (Series, error) {
	if period <= 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "moving average period must be positive, got %d", period)
	}
	if len(prices) == 0 {
		return nil, core.Errorf(core.ErrInsufficientData, "moving average of empty series")
	}

	out := make(Series, len(prices))
	for i := 0; i < period-1 && i < len(prices); i++ {
		out[i] = optional.None[float64]()
	}
	for i, v := range SMA(prices, period) {
		out[i+period-1] = optional.Some(v)
	}
	return out, nil
}
