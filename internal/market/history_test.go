package market

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsOf(closes ...float64) []Bar {
	res := make([]Bar, len(closes))
	for i, c := range closes {
		res[i] = Bar{Close: decimal.NewFromFloat(c)}
	}
	return res
}

func TestHistoryBars(t *testing.T) {
	tbl := []struct {
		size int
		in   []float64
		out  []float64
	}{
		{size: 6, in: []float64{1, 2, 3, 4, 5, 6}, out: []float64{1, 2, 3, 4, 5, 6}},
		{size: 3, in: []float64{-1, -2, -3, -4, -5, -6}, out: []float64{-4, -5, -6}},
		{size: 4, in: []float64{1, 2, 3, 4, 5, 6}, out: []float64{3, 4, 5, 6}},
		{size: 5, in: []float64{1, 2}, out: []float64{1, 2}},
		{size: 4, in: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, out: []float64{6, 7, 8, 9}},
		{size: 3, in: []float64{}, out: []float64{}},
		{size: 0, in: []float64{1, 2, 3}, out: []float64{}},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			h := NewHistoryWithBars(c.size, barsOf(c.in...))

			bars := h.Bars()
			assert.Equal(t, len(c.out), h.Len())
			assert.Equal(t, c.out, Closes(bars))
		})
	}
}

func TestHistoryBars_returnsCopy(t *testing.T) {
	h := NewHistoryWithBars(2, barsOf(1, 2))

	bars := h.Bars()
	bars[0].Close = decimal.NewFromInt(100)

	assert.Equal(t, []float64{1, 2}, Closes(h.Bars()))
}

func TestHistoryLast(t *testing.T) {
	h := NewHistory(3)

	_, ok := h.Last()
	assert.False(t, ok)

	for _, b := range barsOf(1, 2, 3, 4) {
		h.Receive(b)
	}

	last, ok := h.Last()
	require.True(t, ok)
	assert.True(t, last.Close.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, 3, h.Cap())
}
