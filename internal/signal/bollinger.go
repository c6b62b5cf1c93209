package signal

import (
	"fmt"
	"math"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
)

// BollingerBounce buys below the lower band and sells above the upper band.
type BollingerBounce struct {
	name string
}

func NewBollingerBounce(name string, _ config.BollingerBounce) *BollingerBounce {
	return &BollingerBounce{name: name}
}

func (st *BollingerBounce) Name() string {
	return st.name
}

func (st *BollingerBounce) Evaluate(r indicator.Record, s State, emit Emitter) State {
	bb, ok := r.Bollinger.Get()
	if !ok {
		return s
	}

	price := r.Close()
	switch {
	case price < bb.Lower:
		emit(ActBuy, "Price below lower BB")
	case price > bb.Upper:
		emit(ActSell, "Price above upper BB")
	}

	return s
}

// BollingerBreakout follows a close outside of the bands.
type BollingerBreakout struct {
	name string
}

func NewBollingerBreakout(name string, _ config.BollingerBreakout) *BollingerBreakout {
	return &BollingerBreakout{name: name}
}

func (st *BollingerBreakout) Name() string {
	return st.name
}

func (st *BollingerBreakout) Evaluate(r indicator.Record, s State, emit Emitter) State {
	bb, ok := r.Bollinger.Get()
	if !ok {
		return s
	}

	price := r.Close()
	switch {
	case price > bb.Upper:
		emit(ActBuy, "Price broke out above upper BB")
	case price < bb.Lower:
		emit(ActSell, "Price broke out below lower BB")
	}

	return s
}

// BollingerSqueeze trades the expansion that follows a period of narrow
// bands, in the direction of the close relative to the middle band.
type BollingerSqueeze struct {
	name      string
	threshold float64
}

func NewBollingerSqueeze(name string, cfg config.BollingerSqueeze) *BollingerSqueeze {
	return &BollingerSqueeze{name: name, threshold: cfg.Threshold}
}

func (st *BollingerSqueeze) Name() string {
	return st.name
}

func (st *BollingerSqueeze) Evaluate(r indicator.Record, s State, emit Emitter) State {
	next := s
	next.PreviousWidth = indicator.None[float64]()

	bb, ok := r.Bollinger.Get()
	if !ok {
		return next
	}
	next.PreviousWidth = indicator.Some(bb.Width)

	prev, ok := s.PreviousWidth.Get()
	if !ok || prev >= st.threshold || bb.Width < st.threshold {
		return next
	}

	price := r.Close()
	switch {
	case price > bb.Middle:
		emit(ActBuy, fmt.Sprintf("BB width expanded above %v (%.2f -> %.2f), price above middle band", st.threshold, prev, bb.Width))
	case price < bb.Middle:
		emit(ActSell, fmt.Sprintf("BB width expanded above %v (%.2f -> %.2f), price below middle band", st.threshold, prev, bb.Width))
	}

	return next
}

// MeanReversion buys near the lower band and sells near the upper band.
// Nearness is a fraction of the distance between the bands.
type MeanReversion struct {
	name      string
	tolerance float64
}

func NewMeanReversion(name string, cfg config.MeanReversion) *MeanReversion {
	return &MeanReversion{name: name, tolerance: cfg.Tolerance}
}

func (st *MeanReversion) Name() string {
	return st.name
}

func (st *MeanReversion) Evaluate(r indicator.Record, s State, emit Emitter) State {
	bb, ok := r.Bollinger.Get()
	if !ok {
		return s
	}

	price := r.Close()
	band := (bb.Upper - bb.Lower) * st.tolerance
	switch {
	case math.Abs(price-bb.Lower) <= band && price < bb.Middle:
		emit(ActBuy, "Price near lower BB")
	case math.Abs(price-bb.Upper) <= band && price > bb.Middle:
		emit(ActSell, "Price near upper BB")
	}

	return s
}
