package chart

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/gamma-omg/signal-engine/internal/signal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n")

func testConfig(maxBars int) config.Chart {
	return config.Chart{Strategy: "trend", MaxBars: maxBars, Width: 400, Height: 120}
}

func testRecords(n int) ([]indicator.Record, []signal.Step) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []indicator.Record
	var steps []signal.Step
	for i := range n {
		price := 100 + 5*math.Sin(float64(i)/4)
		r := indicator.Record{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Price: decimal.NewFromFloat(price),
			EMA:   map[int]indicator.Optional[float64]{9: indicator.None[float64]()},
		}
		if i >= 8 {
			r.EMA[9] = indicator.Some(price - 0.5)
			r.Bollinger = indicator.Some(indicator.Bands{Upper: price + 2, Middle: price, Lower: price - 2})
			r.StochRSI = indicator.Some(indicator.StochRSI{K: float64(i % 100), D: float64((i + 5) % 100)})
			r.MACD = indicator.Some(indicator.MACD{MACD: math.Sin(float64(i)), Signal: math.Cos(float64(i))})
		}

		mark := signal.Mark{Strategy: "trend"}
		if i%10 == 0 {
			mark.Buy = indicator.Some(r.Price)
		}
		if i%10 == 5 {
			mark.Sell = indicator.Some(r.Price)
		}

		records = append(records, r)
		steps = append(steps, signal.Step{Time: r.Time, Marks: []signal.Mark{{Strategy: "other"}, mark}})
	}
	return records, steps
}

func TestChart_keepsLastBars(t *testing.T) {
	c := New(testConfig(20), []int{9})
	records, steps := testRecords(100)
	c.AddAll(records, steps)

	assert.Equal(t, 20, c.Len())
	window, marks := c.window()
	assert.Equal(t, records[80:], window)
	require.Len(t, marks, 20)
	assert.Equal(t, "trend", marks[0].Strategy)
	assert.True(t, marks[0].Buy.Present())
	assert.True(t, marks[5].Sell.Present())
}

func TestChart_WriteTo(t *testing.T) {
	c := New(testConfig(50), []int{9, 21})
	records, steps := testRecords(60)
	c.AddAll(records, steps)

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngHeader))
}

func TestChart_warmupOnly(t *testing.T) {
	c := New(testConfig(50), []int{9})
	records, steps := testRecords(5)
	c.AddAll(records, steps)

	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, c.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngHeader))
}

func TestChart_empty(t *testing.T) {
	c := New(testConfig(50), []int{9})

	var buf bytes.Buffer
	_, err := c.WriteTo(&buf)
	assert.Error(t, err)
}
