package combine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gamma-omg/signal-engine/internal/signal"
)

var ErrOutOfOrder = errors.New("strategy events are out of order")

// Record groups the events of several strategies that fired on the same bar.
type Record struct {
	Time    time.Time      `json:"time"`
	Signals []signal.Event `json:"signals"`
}

func NewRecord(t time.Time, events []signal.Event) Record {
	if len(events) < 2 {
		panic(fmt.Sprintf("combined record at %s needs at least 2 events, got %d", t, len(events)))
	}

	return Record{
		Time:    t,
		Signals: slices.Clone(events),
	}
}

// Combine groups events by timestamp and returns a record for every
// timestamp with at least two events, ordered by time.
func Combine(events []signal.Event) []Record {
	groups := make(map[int64][]signal.Event)
	for _, ev := range events {
		k := ev.Time.UnixNano()
		groups[k] = append(groups[k], ev)
	}

	return collect(groups)
}

// Aggregator combines events incrementally. Events of one strategy must
// arrive in increasing time order.
type Aggregator struct {
	pending map[int64][]signal.Event
	last    map[string]time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		pending: make(map[int64][]signal.Event),
		last:    make(map[string]time.Time),
	}
}

// Restore seeds the last seen time of each strategy.
func (a *Aggregator) Restore(last map[string]time.Time) {
	for k, v := range last {
		a.last[k] = v
	}
}

func (a *Aggregator) Add(events ...signal.Event) error {
	for _, ev := range events {
		if prev, ok := a.last[ev.Strategy]; ok && !ev.Time.After(prev) {
			return fmt.Errorf("%w: %s event at %s follows %s", ErrOutOfOrder, ev.Strategy, ev.Time, prev)
		}
		a.last[ev.Strategy] = ev.Time

		k := ev.Time.UnixNano()
		a.pending[k] = append(a.pending[k], ev)
	}

	return nil
}

// Flush returns the combined records of all pending events and clears them.
func (a *Aggregator) Flush() []Record {
	res := collect(a.pending)
	a.pending = make(map[int64][]signal.Event)
	return res
}

// Last returns the time of the latest event of each strategy.
func (a *Aggregator) Last() map[string]time.Time {
	res := make(map[string]time.Time, len(a.last))
	for k, v := range a.last {
		res[k] = v
	}
	return res
}

func collect(groups map[int64][]signal.Event) []Record {
	keys := make([]int64, 0, len(groups))
	for k, g := range groups {
		if len(g) >= 2 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	res := make([]Record, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		res = append(res, NewRecord(g[0].Time, g))
	}
	return res
}
