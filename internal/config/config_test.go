package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalMarkets = `
markets:
    XBTEUR_1440:
        store: /var/data/xbteur.db
        source:
            csv:
                path: /var/data/XBTEUR_1440.csv
`

func TestRead_Defaults(t *testing.T) {
	cfg, err := Read(strings.NewReader(`
strategies:
    - stoch_rsi_trend: {}
` + minimalMarkets))

	require.NoError(t, err)

	assert.Equal(t, 100000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 200, cfg.Pipeline.Overlap)
	assert.Equal(t, []int{9, 21, 50, 100, 200}, cfg.Indicators.EMA)
	assert.Equal(t, 20, cfg.Indicators.Bollinger.Period)
	assert.Equal(t, 2.0, cfg.Indicators.Bollinger.StdDev)
	assert.Equal(t, StochasticRSI{RSIPeriod: 14, StochasticPeriod: 14, KPeriod: 3, DPeriod: 3}, cfg.Indicators.StochRSI)
	assert.Equal(t, MACD{Fast: 12, Slow: 26, Signal: 9, OscillatorMA: MASimple, SignalMA: MASimple}, cfg.Indicators.MACD)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	require.Len(t, cfg.Strategies, 1)
	s, ok := cfg.Strategies[0].Strategy.(StochRSITrend)
	require.True(t, ok)
	assert.Equal(t, 20.0, s.Oversold)
	assert.Equal(t, 80.0, s.Overbought)
	assert.Equal(t, 200, s.TrendEMA)
	assert.Equal(t, KindStochRSITrend, cfg.Strategies[0].Name())

	m, ok := cfg.Markets["XBTEUR_1440"]
	require.True(t, ok)
	assert.Equal(t, "/var/data/xbteur.db", m.Store)
	assert.Equal(t, 500, m.Chart.MaxBars)
	assert.Nil(t, m.Resample)

	src, ok := m.SourceRef.Source.(CSV)
	require.True(t, ok)
	assert.Equal(t, "/var/data/XBTEUR_1440.csv", src.Path)
}

func TestRead_Strategies(t *testing.T) {
	cfg, err := Read(strings.NewReader(`
indicators:
    ema: [9, 21, 50, 100]
strategies:
    - stoch_rsi_trend:
        oversold: 0
        overbought: 90
        trend_ema: 100
    - ema_trend:
        name: ema_fast
        ema: 9
    - ema_trend:
        ema: 100
    - bb_bounce: {}
    - bb_breakout: {}
    - bb_squeeze:
        threshold: 2.5
    - mean_reversion:
        tolerance: 0.2
    - stoch_rsi_cross:
        upper: 70
` + minimalMarkets))

	require.NoError(t, err)
	require.Len(t, cfg.Strategies, 8)

	srsi, ok := cfg.Strategies[0].Strategy.(StochRSITrend)
	require.True(t, ok)
	assert.Equal(t, 0.0, srsi.Oversold)
	assert.Equal(t, 90.0, srsi.Overbought)
	assert.Equal(t, 100, srsi.TrendEMA)

	fast, ok := cfg.Strategies[1].Strategy.(EMATrend)
	require.True(t, ok)
	assert.Equal(t, 9, fast.EMA)
	assert.Equal(t, "ema_fast", cfg.Strategies[1].Name())
	assert.Equal(t, KindEMATrend, cfg.Strategies[2].Name())

	_, ok = cfg.Strategies[3].Strategy.(BollingerBounce)
	assert.True(t, ok)
	_, ok = cfg.Strategies[4].Strategy.(BollingerBreakout)
	assert.True(t, ok)

	squeeze, ok := cfg.Strategies[5].Strategy.(BollingerSqueeze)
	require.True(t, ok)
	assert.Equal(t, 2.5, squeeze.Threshold)

	mr, ok := cfg.Strategies[6].Strategy.(MeanReversion)
	require.True(t, ok)
	assert.Equal(t, 0.2, mr.Tolerance)

	cross, ok := cfg.Strategies[7].Strategy.(StochRSICross)
	require.True(t, ok)
	assert.Equal(t, 20.0, cross.Lower)
	assert.Equal(t, 70.0, cross.Upper)
	assert.Equal(t, KindStochRSICross, cfg.Strategies[7].Name())
}

func TestRead_Alpaca(t *testing.T) {
	cfg, err := Read(strings.NewReader(`
strategies:
    - ema_trend: {}
markets:
    BTC:
        store: /var/data/btc.db
        resume: true
        dump: /var/data/btc.csv
        resample:
            bar: 1m
            interval: 1h
        chart:
            path: /var/data/btc.png
            strategy: ema_trend
            max_bars: 200
        source:
            alpaca:
                api_key: key
                secret: secret
                symbol: BTC/USD
                start: 2014-09-12T11:45:26.000Z
                end: 2020-12-31T08:30:12.000Z
`))

	require.NoError(t, err)

	m := cfg.Markets["BTC"]
	assert.True(t, m.Resume)
	assert.Equal(t, "/var/data/btc.csv", m.Dump)
	require.NotNil(t, m.Resample)
	assert.Equal(t, time.Minute, m.Resample.Bar)
	assert.Equal(t, time.Hour, m.Resample.Interval)
	assert.Equal(t, "ema_trend", m.Chart.Strategy)
	assert.Equal(t, 200, m.Chart.MaxBars)
	assert.Equal(t, 1600, m.Chart.Width)

	a, ok := m.SourceRef.Source.(Alpaca)
	require.True(t, ok)

	start, err := time.Parse("2006-01-02T15:04:05.000Z", "2014-09-12T11:45:26.000Z")
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02T15:04:05.000Z", "2020-12-31T08:30:12.000Z")
	require.NoError(t, err)

	assert.Equal(t, "key", a.ApiKey)
	assert.Equal(t, "secret", a.Secret)
	assert.Equal(t, "BTC/USD", a.Symbol)
	assert.Equal(t, time.Minute, a.TimeFrame)
	assert.True(t, start.Equal(a.Start))
	assert.True(t, end.Equal(a.End))
}

func TestRead_Invalid(t *testing.T) {
	tbl := []struct {
		name string
		src  string
	}{
		{
			name: "no strategies",
			src:  minimalMarkets,
		},
		{
			name: "no markets",
			src: `
strategies:
    - ema_trend: {}
`,
		},
		{
			name: "oversold above overbought",
			src: `
strategies:
    - stoch_rsi_trend:
        oversold: 80
        overbought: 20
` + minimalMarkets,
		},
		{
			name: "threshold out of range",
			src: `
strategies:
    - stoch_rsi_trend:
        overbought: 120
` + minimalMarkets,
		},
		{
			name: "cross lower above upper",
			src: `
strategies:
    - stoch_rsi_cross:
        lower: 60
        upper: 40
` + minimalMarkets,
		},
		{
			name: "trend ema not configured",
			src: `
strategies:
    - stoch_rsi_trend:
        trend_ema: 300
` + minimalMarkets,
		},
		{
			name: "ema trend period not configured",
			src: `
strategies:
    - ema_trend:
        ema: 7
` + minimalMarkets,
		},
		{
			name: "duplicate strategy names",
			src: `
strategies:
    - ema_trend: {}
    - ema_trend:
        ema: 50
` + minimalMarkets,
		},
		{
			name: "zero chunk size",
			src: `
pipeline:
    chunk_size: 0
strategies:
    - ema_trend: {}
` + minimalMarkets,
		},
		{
			name: "macd fast not below slow",
			src: `
indicators:
    macd:
        fast: 26
        slow: 12
strategies:
    - ema_trend: {}
` + minimalMarkets,
		},
		{
			name: "unknown strategy",
			src: `
strategies:
    - unicorn: {}
` + minimalMarkets,
		},
		{
			name: "unknown source",
			src: `
strategies:
    - ema_trend: {}
markets:
    X:
        store: x.db
        source:
            mongo:
                uri: mongodb://localhost
`,
		},
		{
			name: "csv without path",
			src: `
strategies:
    - ema_trend: {}
markets:
    X:
        store: x.db
        source:
            csv: {}
`,
		},
		{
			name: "resample interval not above bar",
			src: `
strategies:
    - ema_trend: {}
markets:
    X:
        store: x.db
        resample:
            bar: 1h
            interval: 1m
        source:
            csv:
                path: x.csv
`,
		},
		{
			name: "unknown chart strategy",
			src: `
strategies:
    - ema_trend: {}
markets:
    X:
        store: x.db
        chart:
            path: x.png
            strategy: bb_bounce
        source:
            csv:
                path: x.csv
`,
		},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(c.src))
			assert.Error(t, err)
		})
	}
}
