package indicator

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/newthinker/stockscope/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Classic 15-close worked example.
var textbookCloses = []float64{
	44.00, 44.25, 44.50, 43.75, 44.65, 45.12, 45.34, 45.25,
	45.65, 45.80, 45.70, 45.90, 46.10, 45.90, 46.30,
}

func TestRSI_TextbookValue(t *testing.T) {
	rsi, err := RSI(textbookCloses, 14, ModeStrict)
	require.NoError(t, err)
	require.Len(t, rsi, len(textbookCloses))

	for i := 0; i < 14; i++ {
		_, ok := rsi.At(i)
		assert.False(t, ok, "strict rsi[%d] should be absent", i)
	}

	got, ok := rsi.At(14)
	require.True(t, ok)
	assert.InDelta(t, 75.109, got, 0.01)

	last, err := LastRSI(textbookCloses, 14)
	require.NoError(t, err)
	assert.InDelta(t, got, last, 1e-12)
}

func TestRSI_RelaxedFillsWarmUp(t *testing.T) {
	rsi, err := RSI(textbookCloses, 14, ModeRelaxed)
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		v, ok := rsi.At(i)
		require.True(t, ok)
		assert.Equal(t, NeutralRSI, v)
	}
	v, _ := rsi.At(14)
	assert.InDelta(t, 75.109, v, 0.01)
}

func TestRSI_AllGainsIs100(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6}
	rsi, err := RSI(prices, 3, ModeStrict)
	require.NoError(t, err)

	for i := 3; i < len(prices); i++ {
		v, _ := rsi.At(i)
		assert.Equal(t, 100.0, v)
	}
}

func TestRSI_AlwaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		prices := make([]float64, 200)
		p := 100.0
		for i := range prices {
			p *= 1 + (rng.Float64()-0.5)*0.2
			prices[i] = p
		}
		rsi, err := RSI(prices, 14, ModeRelaxed)
		require.NoError(t, err)
		for i, v := range rsi.Fill(0) {
			if v < 0 || v > 100 {
				t.Fatalf("trial %d: rsi[%d] = %v out of bounds", trial, i, v)
			}
		}
	}
}

func TestRSI_Errors(t *testing.T) {
	_, err := RSI(nil, 14, ModeStrict)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))

	_, err = RSI([]float64{1, 2}, 0, ModeStrict)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = LastRSI([]float64{1, 2, 3}, 14)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))
}

func TestParseRSIMode(t *testing.T) {
	m, err := ParseRSIMode("STRICT")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)

	m, err = ParseRSIMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeRelaxed, m)

	_, err = ParseRSIMode("wilder-smoothed")
	assert.Error(t, err)
}
