package signal

import (
	"time"

	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/shopspring/decimal"
)

type Action string

const (
	ActBuy  Action = "buy"
	ActSell Action = "sell"
)

type Position string

const (
	PositionFlat  Position = "flat"
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// target is the position held after an action is taken.
func (a Action) target() Position {
	if a == ActBuy {
		return PositionLong
	}
	return PositionShort
}

type Event struct {
	Time      time.Time       `json:"time"`
	Strategy  string          `json:"strategy"`
	Action    Action          `json:"action"`
	Price     decimal.Decimal `json:"price"`
	Rationale string          `json:"rationale"`
}

// State is carried from one bar to the next for a single strategy.
type State struct {
	Position      Position                    `json:"position"`
	PreviousK     indicator.Optional[float64] `json:"previous_k"`
	PreviousWidth indicator.Optional[float64] `json:"previous_width"`
}

func InitialState() State {
	return State{Position: PositionFlat}
}

// Mark annotates a bar with the price of the buy or sell taken on it.
type Mark struct {
	Strategy string                              `json:"strategy"`
	Buy      indicator.Optional[decimal.Decimal] `json:"buy"`
	Sell     indicator.Optional[decimal.Decimal] `json:"sell"`
}

type Step struct {
	Time   time.Time
	Events []Event
	Marks  []Mark
}

// Emitter requests an action for the bar being evaluated.
type Emitter func(a Action, rationale string)

type Strategy interface {
	Name() string
	Evaluate(r indicator.Record, s State, emit Emitter) State
}

// StepsFromEvents rebuilds the steps of stored records from stored events.
// Events that match no record are ignored.
func StepsFromEvents(records []indicator.Record, events []Event) []Step {
	byTime := make(map[int64][]Event, len(events))
	for _, e := range events {
		k := e.Time.UnixNano()
		byTime[k] = append(byTime[k], e)
	}

	res := make([]Step, len(records))
	for i, r := range records {
		s := Step{Time: r.Time, Events: byTime[r.Time.UnixNano()]}
		for _, e := range s.Events {
			m := Mark{Strategy: e.Strategy}
			if e.Action == ActBuy {
				m.Buy = indicator.Some(e.Price)
			} else {
				m.Sell = indicator.Some(e.Price)
			}
			s.Marks = append(s.Marks, m)
		}
		res[i] = s
	}

	return res
}
