// Package screener filters a candidate universe against screening criteria and
// ranks the survivors by momentum score.
package screener

import (
	"math"
	"slices"

	"github.com/newthinker/stockscope/internal/core"
)

const (
	baseScore      = 50.0
	maxChangeBoost = 30.0
	maxVolumeBoost = 25.0
	oversold       = 30.0
	overbought     = 70.0
)

// predicate rejects a candidate by returning false.
type predicate func(core.ScreeningCandidate) bool

// filters returns the predicates for criteria in evaluation order. Unset thresholds
// contribute no predicate.
func filters(c core.ScreenCriteria) []predicate {
	var ps []predicate
	if !c.AllMarkets() {
		markets := c.Markets
		ps = append(ps, func(s core.ScreeningCandidate) bool {
			return slices.Contains(markets, s.Market)
		})
	}
	if c.PriceChange.IsSome() {
		threshold := c.PriceChange.Unwrap()
		ps = append(ps, func(s core.ScreeningCandidate) bool {
			return math.Abs(s.ChangePercent) >= threshold
		})
	}
	if c.VolumeRatio.IsSome() {
		threshold := c.VolumeRatio.Unwrap()
		ps = append(ps, func(s core.ScreeningCandidate) bool {
			return s.VolumeRatio >= threshold
		})
	}
	if c.RSIBand.IsSome() {
		band := c.RSIBand.Unwrap()
		ps = append(ps, func(s core.ScreeningCandidate) bool {
			return band.Contains(s.RSI)
		})
	}
	if c.MinMarketCap.IsSome() {
		threshold := c.MinMarketCap.Unwrap()
		ps = append(ps, func(s core.ScreeningCandidate) bool {
			return s.MarketCap >= threshold
		})
	}
	return ps
}

// Filter keeps candidates passing every predicate, stopping at the first failure.
func Filter(candidates []core.ScreeningCandidate, c core.ScreenCriteria) []core.ScreeningCandidate {
	ps := filters(c)
	out := make([]core.ScreeningCandidate, 0, len(candidates))
next:
	for _, cand := range candidates {
		for _, p := range ps {
			if !p(cand) {
				continue next
			}
		}
		out = append(out, cand)
	}
	return out
}

// Score computes the momentum score, an integer in [0,100].
func Score(cand core.ScreeningCandidate) int {
	score := baseScore
	score += clamp(cand.ChangePercent*3, -maxChangeBoost, maxChangeBoost)
	score += math.Min(cand.VolumeRatio*5, maxVolumeBoost)

	switch {
	case cand.RSI < oversold:
		score += 10
	case cand.RSI > overbought:
		score -= 10
	default:
		score += (50 - math.Abs(cand.RSI-50)) / 5
	}

	if math.IsNaN(score) {
		return 0
	}
	return int(math.Round(clamp(score, 0, 100)))
}

// Apply filters, scores, and ranks candidates. A positive Limit caps the result.
// The input slice is not modified.
func Apply(candidates []core.ScreeningCandidate, c core.ScreenCriteria) []core.ScreeningCandidate {
	out := Filter(candidates, c)
	for i := range out {
		out[i].Score = Score(out[i])
	}
	slices.SortStableFunc(out, func(a, b core.ScreeningCandidate) int {
		return b.Score - a.Score
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
