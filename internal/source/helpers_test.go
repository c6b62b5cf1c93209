package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gamma-omg/signal-engine/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeCsv(t *testing.T, path, src string) string {
	t.Helper()

	fullPath := filepath.Join(t.TempDir(), path)
	err := os.WriteFile(fullPath, []byte(src), 0o644)
	require.NoError(t, err)
	return fullPath
}

func readAll(t *testing.T, src BarSource, count int) []market.Bar {
	t.Helper()

	var res []market.Bar
	for {
		bars, err := src.NextBars(context.Background(), count)
		if errors.Is(err, io.EOF) {
			return res
		}
		require.NoError(t, err)
		require.LessOrEqual(t, len(bars), count)
		res = append(res, bars...)
	}
}

func closeBar(sec int64, c float64) market.Bar {
	p := decimal.NewFromFloat(c)
	return market.Bar{
		Time:   time.Unix(sec, 0).UTC(),
		Open:   p,
		High:   p,
		Low:    p,
		Close:  p,
		Volume: decimal.NewFromInt(1),
		Count:  1,
	}
}

func closes(bars []market.Bar) []float64 {
	return market.Closes(bars)
}

func times(bars []market.Bar) []int64 {
	res := make([]int64, len(bars))
	for i, b := range bars {
		res[i] = b.Time.Unix()
	}
	return res
}
