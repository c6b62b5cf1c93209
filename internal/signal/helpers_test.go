package signal

import (
	"time"

	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/shopspring/decimal"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type recordOpt func(r *indicator.Record)

func withK(k float64) recordOpt {
	return func(r *indicator.Record) {
		r.StochRSI = indicator.Some(indicator.StochRSI{Value: k, K: k, D: k})
	}
}

func withEMA(period int, v float64) recordOpt {
	return func(r *indicator.Record) {
		r.EMA[period] = indicator.Some(v)
	}
}

func withBands(lower, middle, upper float64) recordOpt {
	return func(r *indicator.Record) {
		r.Bollinger = indicator.Some(indicator.Bands{
			Upper:  upper,
			Middle: middle,
			Lower:  lower,
			Width:  (upper - lower) / middle * 100,
		})
	}
}

func record(i int, price float64, opts ...recordOpt) indicator.Record {
	r := indicator.Record{
		Time:  t0.Add(time.Duration(i) * time.Minute),
		Price: decimal.NewFromFloat(price),
		EMA:   map[int]indicator.Optional[float64]{},
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

type fakeStrategy struct {
	name     string
	evaluate func(r indicator.Record, s State, emit Emitter) State
}

func (f *fakeStrategy) Name() string {
	return f.name
}

func (f *fakeStrategy) Evaluate(r indicator.Record, s State, emit Emitter) State {
	return f.evaluate(r, s, emit)
}

func withKD(k, d float64) recordOpt {
	return func(r *indicator.Record) {
		r.StochRSI = indicator.Some(indicator.StochRSI{Value: k, K: k, D: d})
	}
}
