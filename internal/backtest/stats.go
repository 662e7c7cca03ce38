package backtest

import (
	"math"
)

// CalculateMetrics computes performance statistics from completed trades.
// Open positions never reach this function.
func CalculateMetrics(trades []Trade, initialCash float64) Metrics {
	if len(trades) == 0 {
		return Metrics{}
	}

	var winning int
	var totalProfit, sumReturn float64
	returns := make([]float64, 0, len(trades))
	profits := make([]float64, 0, len(trades))

	for _, t := range trades {
		returns = append(returns, t.Return)
		profits = append(profits, t.Profit)
		totalProfit += t.Profit
		sumReturn += t.Return
		if t.IsWin() {
			winning++
		}
	}

	var totalReturn float64
	if initialCash > 0 {
		totalReturn = totalProfit / initialCash * 100
	}

	return Metrics{
		TotalTrades:   len(trades),
		WinningTrades: winning,
		LosingTrades:  len(trades) - winning,
		WinRate:       float64(winning) / float64(len(trades)) * 100,
		TotalReturn:   totalReturn,
		AvgReturn:     sumReturn / float64(len(trades)) * 100,
		MaxDrawdown:   calculateMaxDrawdown(profits),
		SharpeRatio:   calculateSharpeRatio(returns),
	}
}

// calculateMaxDrawdown walks cumulative profit trade by trade and returns the
// largest decline from the running peak, in percent. A peak that never rises
// above zero yields 0.
func calculateMaxDrawdown(profits []float64) float64 {
	var maxDD, peak, cumulative float64

	for _, p := range profits {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio is mean over population standard deviation of per-trade
// return fractions. No risk-free rate, no annualization.
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)))

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev
}
