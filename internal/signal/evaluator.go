package signal

import (
	"fmt"
	"maps"

	"github.com/gamma-omg/signal-engine/internal/indicator"
)

// Evaluator runs records through every strategy in order and turns the
// requested actions into events. An action on the side of the position
// already held is dropped.
type Evaluator struct {
	strategies []Strategy
	states     map[string]State
}

// NewEvaluator creates an evaluator. Strategies missing from states start flat.
func NewEvaluator(strategies []Strategy, states map[string]State) (*Evaluator, error) {
	e := &Evaluator{
		strategies: strategies,
		states:     make(map[string]State, len(strategies)),
	}

	for _, s := range strategies {
		name := s.Name()
		if _, ok := e.states[name]; ok {
			return nil, fmt.Errorf("duplicate strategy name: %s", name)
		}

		st, ok := states[name]
		if !ok {
			st = InitialState()
		}
		e.states[name] = st
	}

	return e, nil
}

func (e *Evaluator) Step(r indicator.Record) Step {
	step := Step{
		Time:  r.Time,
		Marks: make([]Mark, 0, len(e.strategies)),
	}

	for _, s := range e.strategies {
		name := s.Name()
		cur := e.states[name]

		var act *Action
		var rationale string
		emit := func(a Action, why string) {
			if act != nil {
				panic(fmt.Sprintf("strategy %s emitted twice at %s", name, r.Time))
			}
			act, rationale = &a, why
		}

		next := s.Evaluate(r, cur, emit)
		next.Position = cur.Position

		mark := Mark{Strategy: name}
		if act != nil && act.target() != cur.Position {
			step.Events = append(step.Events, Event{
				Time:      r.Time,
				Strategy:  name,
				Action:    *act,
				Price:     r.Price,
				Rationale: rationale,
			})
			next.Position = act.target()

			if *act == ActBuy {
				mark.Buy = indicator.Some(r.Price)
			} else {
				mark.Sell = indicator.Some(r.Price)
			}
		}

		e.states[name] = next
		step.Marks = append(step.Marks, mark)
	}

	return step
}

func (e *Evaluator) Run(records []indicator.Record) []Step {
	res := make([]Step, len(records))
	for i, r := range records {
		res[i] = e.Step(r)
	}
	return res
}

func (e *Evaluator) Snapshot() map[string]State {
	return maps.Clone(e.states)
}
