package source

import (
	"context"
	"io"

	"github.com/gamma-omg/signal-engine/internal/market"
)

// BarSource yields ordered bars. NextBars returns at most count bars and
// io.EOF once the stream is exhausted.
type BarSource interface {
	NextBars(ctx context.Context, count int) ([]market.Bar, error)
}

type Source interface {
	BarSource
	io.Closer
}

type SliceSource struct {
	bars []market.Bar
	pos  int
}

func NewSliceSource(bars []market.Bar) *SliceSource {
	return &SliceSource{bars: bars}
}

func (s *SliceSource) NextBars(ctx context.Context, count int) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.pos >= len(s.bars) {
		return nil, io.EOF
	}

	e := min(s.pos+count, len(s.bars))
	res := s.bars[s.pos:e]
	s.pos = e
	return res, nil
}

func (s *SliceSource) Close() error {
	return nil
}
