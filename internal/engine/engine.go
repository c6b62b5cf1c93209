package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/gamma-omg/signal-engine/internal/market"
)

var (
	ErrOutOfOrder      = errors.New("bar timestamps are not strictly increasing")
	ErrOverlapTooSmall = errors.New("overlap is smaller than the indicator warm-up")
)

const (
	IndicatorBollinger = "bollinger"
	IndicatorStochRSI  = "stoch_rsi"
	IndicatorMACD      = "macd"
)

// Engine turns chunks of bars into indicator records. It keeps the last
// overlap bars between chunks, so chunked processing matches a single pass
// over the whole sequence.
type Engine struct {
	cfg     config.Indicators
	emas    []int
	warmups map[string]int
	osc     indicator.MovingAverage
	sig     indicator.MovingAverage
	tail    *market.History
	seen    int64
}

type Snapshot struct {
	Tail []market.Bar `json:"tail"`
	Seen int64        `json:"seen"`
}

func New(cfg config.Indicators, overlap int) (*Engine, error) {
	warmups := Warmups(cfg)
	if w := MaxWarmup(warmups); overlap < w {
		return nil, fmt.Errorf("%w: overlap %d, required %d", ErrOverlapTooSmall, overlap, w)
	}

	emas := slices.Clone(cfg.EMA)
	slices.Sort(emas)
	emas = slices.Compact(emas)

	return &Engine{
		cfg:     cfg,
		emas:    emas,
		warmups: warmups,
		osc:     movingAverage(cfg.MACD.OscillatorMA),
		sig:     movingAverage(cfg.MACD.SignalMA),
		tail:    market.NewHistory(overlap),
	}, nil
}

// Warmups returns the number of leading bars of a sequence for which each
// indicator has no value.
func Warmups(cfg config.Indicators) map[string]int {
	res := map[string]int{
		IndicatorBollinger: indicator.BollingerWarmup(cfg.Bollinger.Period),
		IndicatorStochRSI: indicator.StochRSIWarmup(
			cfg.StochRSI.RSIPeriod,
			cfg.StochRSI.StochasticPeriod,
			cfg.StochRSI.KPeriod,
			cfg.StochRSI.DPeriod),
		IndicatorMACD: indicator.MACDWarmup(cfg.MACD.Slow, cfg.MACD.Signal),
	}
	for _, p := range cfg.EMA {
		res[emaKey(p)] = indicator.EMAWarmup(p)
	}

	return res
}

// Stabilizations returns, per indicator, the number of leading bars after
// which a value no longer depends on where the sequence started. An overlap
// of at least the largest one makes recursive indicators continuous across
// chunk boundaries; windowed indicators only need their warm-up.
func Stabilizations(cfg config.Indicators) map[string]int {
	res := map[string]int{
		IndicatorBollinger: indicator.BollingerWarmup(cfg.Bollinger.Period),
		IndicatorStochRSI: indicator.RSIStabilization(cfg.StochRSI.RSIPeriod) +
			(cfg.StochRSI.StochasticPeriod - 1) +
			indicator.SMAWarmup(cfg.StochRSI.KPeriod) +
			indicator.SMAWarmup(cfg.StochRSI.DPeriod),
		IndicatorMACD: maStabilization(cfg.MACD.OscillatorMA, cfg.MACD.Slow) +
			maStabilization(cfg.MACD.SignalMA, cfg.MACD.Signal),
	}
	for _, p := range cfg.EMA {
		res[emaKey(p)] = indicator.EMAStabilization(p)
	}

	return res
}

func maStabilization(t config.MAType, period int) int {
	if t == config.MAExponential {
		return indicator.EMAStabilization(period)
	}
	return indicator.SMAWarmup(period)
}

func MaxWarmup(warmups map[string]int) int {
	res := 0
	for _, w := range warmups {
		res = max(res, w)
	}
	return res
}

// Process computes the records of the bars in chunk. The chunk must continue
// the sequence seen so far; otherwise ErrOutOfOrder is returned and the
// engine state is left untouched.
func (e *Engine) Process(chunk []market.Bar) ([]indicator.Record, error) {
	if len(chunk) == 0 {
		return nil, nil
	}

	if err := e.checkOrder(chunk); err != nil {
		return nil, err
	}

	combined := append(e.tail.Bars(), chunk...)
	closes := market.Closes(combined)
	n := len(combined)

	emas := make(map[int]indicator.Aligned[float64], len(e.emas))
	for _, p := range e.emas {
		emas[p] = indicator.AlignToTail(n, indicator.EMA(closes, p))
	}

	bb := indicator.AlignToTail(n, indicator.Bollinger(closes, e.cfg.Bollinger.Period, e.cfg.Bollinger.StdDev))
	srsi := indicator.AlignToTail(n, indicator.StochasticRSI(closes,
		e.cfg.StochRSI.RSIPeriod,
		e.cfg.StochRSI.StochasticPeriod,
		e.cfg.StochRSI.KPeriod,
		e.cfg.StochRSI.DPeriod))
	macd := indicator.AlignToTail(n, indicator.MACDSeries(closes,
		e.cfg.MACD.Fast,
		e.cfg.MACD.Slow,
		e.cfg.MACD.Signal,
		e.osc,
		e.sig))

	start := n - len(chunk)
	records := make([]indicator.Record, len(chunk))
	for i := start; i < n; i++ {
		g := e.seen + int64(i-start)
		r := indicator.Record{
			Time:      combined[i].Time,
			Price:     combined[i].Close,
			EMA:       make(map[int]indicator.Optional[float64], len(e.emas)),
			Bollinger: bb.At(i),
			StochRSI:  srsi.At(i),
			MACD:      macd.At(i),
		}
		for _, p := range e.emas {
			r.EMA[p] = emas[p].At(i)
			e.assertWarm(emaKey(p), g, r.EMA[p].Present())
		}
		e.assertWarm(IndicatorBollinger, g, r.Bollinger.Present())
		e.assertWarm(IndicatorStochRSI, g, r.StochRSI.Present())
		e.assertWarm(IndicatorMACD, g, r.MACD.Present())

		records[i-start] = r
	}

	for _, b := range chunk {
		e.tail.Receive(b)
	}
	e.seen += int64(len(chunk))

	return records, nil
}

func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Tail: e.tail.Bars(),
		Seen: e.seen,
	}
}

// Restore replaces the engine state with a snapshot taken by an engine with
// the same configuration.
func (e *Engine) Restore(s Snapshot) error {
	if len(s.Tail) > e.tail.Cap() {
		return fmt.Errorf("snapshot tail (%d bars) exceeds overlap (%d)", len(s.Tail), e.tail.Cap())
	}
	if int64(len(s.Tail)) > s.Seen {
		return fmt.Errorf("snapshot tail (%d bars) exceeds seen bars (%d)", len(s.Tail), s.Seen)
	}
	if int64(len(s.Tail)) < min(s.Seen, int64(e.tail.Cap())) {
		return fmt.Errorf("snapshot tail (%d bars) is shorter than required history", len(s.Tail))
	}
	for i := 1; i < len(s.Tail); i++ {
		if !s.Tail[i].Time.After(s.Tail[i-1].Time) {
			return fmt.Errorf("invalid snapshot tail: %w", ErrOutOfOrder)
		}
	}

	e.tail = market.NewHistoryWithBars(e.tail.Cap(), s.Tail)
	e.seen = s.Seen
	return nil
}

// Last returns the time of the last processed bar.
func (e *Engine) Last() (time.Time, bool) {
	b, ok := e.tail.Last()
	return b.Time, ok
}

func (e *Engine) checkOrder(chunk []market.Bar) error {
	prev, ok := e.Last()
	for i, b := range chunk {
		if ok && !b.Time.After(prev) {
			return fmt.Errorf("%w: bar %d at %s follows %s", ErrOutOfOrder, i, b.Time.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		prev, ok = b.Time, true
	}
	return nil
}

func (e *Engine) assertWarm(name string, g int64, present bool) {
	if !present && g >= int64(e.warmups[name]) {
		panic(fmt.Sprintf("%s is absent at bar %d past its warm-up of %d bars", name, g, e.warmups[name]))
	}
}

func movingAverage(t config.MAType) indicator.MovingAverage {
	if t == config.MAExponential {
		return indicator.EMA
	}
	return indicator.SMA
}

func emaKey(period int) string {
	return fmt.Sprintf("ema_%d", period)
}
