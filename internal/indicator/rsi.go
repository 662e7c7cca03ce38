package indicator

import (
	"fmt"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/newthinker/stockscope/internal/core"
)

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// NeutralRSI fills the warm-up of a relaxed RSI series.
const NeutralRSI = 50.0

// RSIMode selects how the warm-up window is reported.
type RSIMode string

const (
	// ModeStrict leaves the first period entries absent.
	ModeStrict RSIMode = "strict"
	// ModeRelaxed reports the neutral value over the warm-up so the series spans every bar.
	ModeRelaxed RSIMode = "relaxed"
)

// ParseRSIMode accepts "strict" or "relaxed" in any case.
func ParseRSIMode(s string) (RSIMode, error) {
	switch RSIMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeStrict:
		return ModeStrict, nil
	case ModeRelaxed, "":
		return ModeRelaxed, nil
	}
	return "", fmt.Errorf("unknown rsi mode %q", s)
}

// RSI computes the relative strength index over a trailing window of day-over-day
// changes ending at each index. A window with no losses reads 100. Values are
// always within [0, 100].
func RSI(prices []float64, period int, mode RSIMode) (Series, error) {
	if period <= 0 {
		return nil, core.Errorf(core.ErrInvalidInput, "rsi period must be positive, got %d", period)
	}
	if len(prices) == 0 {
		return nil, core.Errorf(core.ErrInsufficientData, "rsi of empty series")
	}

	out := make(Series, len(prices))
	for i := range prices {
		if i < period {
			if mode == ModeRelaxed {
				out[i] = optional.Some(NeutralRSI)
			} else {
				out[i] = optional.None[float64]()
			}
			continue
		}
		out[i] = optional.Some(rsiAt(prices, i, period))
	}
	return out, nil
}

// LastRSI returns the most recent strict RSI value.
func LastRSI(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, core.Errorf(core.ErrInvalidInput, "rsi period must be positive, got %d", period)
	}
	if len(prices) <= period {
		return 0, core.Errorf(core.ErrInsufficientData, "rsi(%d) needs %d prices, got %d", period, period+1, len(prices))
	}
	return rsiAt(prices, len(prices)-1, period), nil
}

func rsiAt(prices []float64, i, period int) float64 {
	var gains, losses float64
	for j := i - period + 1; j <= i; j++ {
		delta := prices[j] - prices[j-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return clamp(100-100/(1+rs), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
