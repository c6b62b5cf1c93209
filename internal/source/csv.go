package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gamma-omg/signal-engine/internal/market"
	"github.com/shopspring/decimal"
)

// CSVSource reads OHLCV bars from a csv file with the columns
// time,open,high,low,close,volume and an optional trade count.
// The header row is optional.
type CSVSource struct {
	f     *os.File
	rdr   *csv.Reader
	from  time.Time
	first bool
	eof   bool
}

// NewCSVSource opens the file at path. Bars at or before from are skipped.
func NewCSVSource(path string, from time.Time) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bars file: %w", err)
	}

	rdr := csv.NewReader(bufio.NewReader(f))
	rdr.FieldsPerRecord = -1
	rdr.ReuseRecord = true

	return &CSVSource{
		f:     f,
		rdr:   rdr,
		from:  from,
		first: true,
	}, nil
}

func (s *CSVSource) NextBars(ctx context.Context, count int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.eof {
		return nil, io.EOF
	}

	bars := make([]market.Bar, 0, count)
	for len(bars) < count {
		data, err := s.rdr.Read()
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bar data: %w", err)
		}

		if s.first {
			s.first = false
			if isHeader(data) {
				continue
			}
		}

		bar, err := parseBar(data)
		if err != nil {
			line, _ := s.rdr.FieldPos(0)
			return nil, fmt.Errorf("failed to parse bar at line %d: %w", line, err)
		}

		if !bar.Time.After(s.from) {
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, io.EOF
	}

	return bars, nil
}

func (s *CSVSource) Close() error {
	return s.f.Close()
}

func isHeader(data []string) bool {
	return len(data) > 0 && strings.EqualFold(strings.TrimSpace(data[0]), "time")
}

func parseBar(data []string) (market.Bar, error) {
	if len(data) < 6 {
		return market.Bar{}, fmt.Errorf("expected at least 6 columns, got %d", len(data))
	}

	timestamp, err := strconv.ParseInt(data[0], 10, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to parse bar time: %w", err)
	}

	open, err := decimal.NewFromString(data[1])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read open price: %w", err)
	}

	high, err := decimal.NewFromString(data[2])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read high price: %w", err)
	}

	low, err := decimal.NewFromString(data[3])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read low price: %w", err)
	}

	close, err := decimal.NewFromString(data[4])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read close price: %w", err)
	}

	volume, err := decimal.NewFromString(data[5])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read volume: %w", err)
	}

	var count int64
	if len(data) > 6 && data[6] != "" {
		count, err = strconv.ParseInt(data[6], 10, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("failed to read trade count: %w", err)
		}
	}

	return market.Bar{
		Time:   time.Unix(timestamp, 0).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
		Count:  count,
	}, nil
}
