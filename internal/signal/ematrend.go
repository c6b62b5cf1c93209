package signal

import (
	"fmt"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
)

// EMATrend wants to be long while the close is above the EMA and short while
// it is below.
type EMATrend struct {
	name   string
	period int
}

func NewEMATrend(name string, cfg config.EMATrend) *EMATrend {
	return &EMATrend{name: name, period: cfg.EMA}
}

func (st *EMATrend) Name() string {
	return st.name
}

func (st *EMATrend) Evaluate(r indicator.Record, s State, emit Emitter) State {
	ema, ok := r.EMA[st.period].Get()
	if !ok {
		return s
	}

	price := r.Close()
	switch {
	case price > ema:
		emit(ActBuy, fmt.Sprintf("Price above EMA %d", st.period))
	case price < ema:
		emit(ActSell, fmt.Sprintf("Price below EMA %d", st.period))
	}

	return s
}
