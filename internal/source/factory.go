package source

import (
	"errors"
	"fmt"
	"time"

	"github.com/gamma-omg/signal-engine/internal/config"
)

// Open builds the bar source of a market. Only bars strictly after from are
// returned.
func Open(cfg config.Market, from time.Time) (Source, error) {
	var src Source
	var err error

	switch c := cfg.SourceRef.Source.(type) {
	case config.CSV:
		src, err = NewCSVSource(c.Path, from)
	case config.Alpaca:
		src, err = NewAlpacaSource(c, from)
	default:
		return nil, fmt.Errorf("unknown source type: %T", c)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open bar source: %w", err)
	}

	if cfg.Resample != nil {
		src = NewResampledSource(src, cfg.Resample.Bar, cfg.Resample.Interval, from)
	}

	if cfg.Dump != "" {
		dump, err := NewDumpSource(src, cfg.Dump, from)
		if err != nil {
			return nil, errors.Join(err, src.Close())
		}
		src = dump
	}

	return src, nil
}
