package signal

import (
	"fmt"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
)

// StochRSITrend buys when %K crosses above the oversold level while the close
// is above the trend EMA, and sells when %K crosses below the overbought level
// while the close is below it.
type StochRSITrend struct {
	name       string
	oversold   float64
	overbought float64
	trendEMA   int
}

func NewStochRSITrend(name string, cfg config.StochRSITrend) *StochRSITrend {
	return &StochRSITrend{
		name:       name,
		oversold:   cfg.Oversold,
		overbought: cfg.Overbought,
		trendEMA:   cfg.TrendEMA,
	}
}

func (st *StochRSITrend) Name() string {
	return st.name
}

func (st *StochRSITrend) Evaluate(r indicator.Record, s State, emit Emitter) State {
	next := s
	next.PreviousK = indicator.None[float64]()

	srsi, ok := r.StochRSI.Get()
	if !ok {
		return next
	}
	next.PreviousK = indicator.Some(srsi.K)

	prevK, ok := s.PreviousK.Get()
	if !ok {
		return next
	}

	trend, ok := r.EMA[st.trendEMA].Get()
	if !ok {
		return next
	}

	k := srsi.K
	price := r.Close()
	switch {
	case prevK <= st.oversold && k > st.oversold && price > trend:
		emit(ActBuy, fmt.Sprintf("Stochastic RSI %%K crossed above %v (%.2f -> %.2f), price above EMA %d", st.oversold, prevK, k, st.trendEMA))
	case prevK >= st.overbought && k < st.overbought && price < trend:
		emit(ActSell, fmt.Sprintf("Stochastic RSI %%K crossed below %v (%.2f -> %.2f), price below EMA %d", st.overbought, prevK, k, st.trendEMA))
	}

	return next
}

// StochRSICross compares %K with %D while both sit inside the band between the
// lower and upper levels: %K under %D buys, %K over %D sells.
type StochRSICross struct {
	name  string
	lower float64
	upper float64
}

func NewStochRSICross(name string, cfg config.StochRSICross) *StochRSICross {
	return &StochRSICross{name: name, lower: cfg.Lower, upper: cfg.Upper}
}

func (st *StochRSICross) Name() string {
	return st.name
}

func (st *StochRSICross) Evaluate(r indicator.Record, s State, emit Emitter) State {
	srsi, ok := r.StochRSI.Get()
	if !ok {
		return s
	}

	k, d := srsi.K, srsi.D
	switch {
	case k > st.lower && d > st.lower && k < d:
		emit(ActBuy, fmt.Sprintf("Stochastic RSI %%K %.2f below %%D %.2f above %v", k, d, st.lower))
	case k < st.upper && d < st.upper && k > d:
		emit(ActSell, fmt.Sprintf("Stochastic RSI %%K %.2f above %%D %.2f below %v", k, d, st.upper))
	}

	return s
}
