package signal

import (
	"fmt"

	"github.com/gamma-omg/signal-engine/internal/config"
)

func NewStrategy(ref config.StrategyReference) (Strategy, error) {
	name := ref.Name()
	switch c := ref.Strategy.(type) {
	case config.StochRSITrend:
		return NewStochRSITrend(name, c), nil
	case config.StochRSICross:
		return NewStochRSICross(name, c), nil
	case config.EMATrend:
		return NewEMATrend(name, c), nil
	case config.BollingerBounce:
		return NewBollingerBounce(name, c), nil
	case config.BollingerBreakout:
		return NewBollingerBreakout(name, c), nil
	case config.BollingerSqueeze:
		return NewBollingerSqueeze(name, c), nil
	case config.MeanReversion:
		return NewMeanReversion(name, c), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %T", c)
	}
}

func NewStrategies(refs []config.StrategyReference) ([]Strategy, error) {
	res := make([]Strategy, 0, len(refs))
	for _, ref := range refs {
		s, err := NewStrategy(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to create strategy: %w", err)
		}
		res = append(res, s)
	}
	return res, nil
}
