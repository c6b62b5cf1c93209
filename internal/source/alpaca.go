package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/market"
	"github.com/shopspring/decimal"
)

type alpacaApi interface {
	GetCryptoBars(symbol string, req marketdata.GetCryptoBarsRequest) ([]marketdata.CryptoBar, error)
}

// AlpacaSource pages historical crypto bars from the Alpaca market data api.
type AlpacaSource struct {
	api       alpacaApi
	symbol    string
	timeFrame marketdata.TimeFrame
	step      time.Duration
	next      time.Time
	end       time.Time
	from      time.Time
	eof       bool
}

func NewAlpacaSource(cfg config.Alpaca, from time.Time) (*AlpacaSource, error) {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.ApiKey,
		APISecret: cfg.Secret,
		BaseURL:   cfg.BaseUrl,
	})

	return newAlpacaSource(client, cfg, from)
}

func newAlpacaSource(api alpacaApi, cfg config.Alpaca, from time.Time) (*AlpacaSource, error) {
	tf, err := timeFrame(cfg.TimeFrame)
	if err != nil {
		return nil, err
	}

	next := cfg.Start
	if from.After(next) {
		next = from
	}

	return &AlpacaSource{
		api:       api,
		symbol:    cfg.Symbol,
		timeFrame: tf,
		step:      cfg.TimeFrame,
		next:      next,
		end:       cfg.End,
		from:      from,
	}, nil
}

func (s *AlpacaSource) NextBars(ctx context.Context, count int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.eof {
		return nil, io.EOF
	}

	data, err := s.api.GetCryptoBars(s.symbol, marketdata.GetCryptoBarsRequest{
		TimeFrame:  s.timeFrame,
		Start:      s.next,
		End:        s.end,
		TotalLimit: count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get crypto bars: %w", err)
	}

	if len(data) < count {
		s.eof = true
	}

	bars := make([]market.Bar, 0, len(data))
	for _, b := range data {
		if !b.Timestamp.After(s.from) {
			continue
		}

		bars = append(bars, market.Bar{
			Time:   b.Timestamp.UTC(),
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: decimal.NewFromFloat(b.Volume),
			Count:  int64(b.TradeCount),
		})
	}

	if len(data) > 0 {
		s.next = data[len(data)-1].Timestamp.Add(s.step)
	}

	if len(bars) == 0 {
		if s.eof {
			return nil, io.EOF
		}
		return s.NextBars(ctx, count)
	}

	return bars, nil
}

func (s *AlpacaSource) Close() error {
	return nil
}

func timeFrame(d time.Duration) (marketdata.TimeFrame, error) {
	switch {
	case d <= 0:
		return marketdata.TimeFrame{}, fmt.Errorf("invalid timeframe: %s", d)
	case d%(24*time.Hour) == 0:
		return marketdata.NewTimeFrame(int(d/(24*time.Hour)), marketdata.Day), nil
	case d%time.Hour == 0:
		return marketdata.NewTimeFrame(int(d/time.Hour), marketdata.Hour), nil
	case d%time.Minute == 0:
		return marketdata.NewTimeFrame(int(d/time.Minute), marketdata.Min), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("unsupported timeframe: %s", d)
	}
}
