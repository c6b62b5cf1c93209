package source

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gamma-omg/signal-engine/internal/market"
)

// ResampledSource aggregates the bars of the wrapped source into coarser
// intervals. Only complete intervals are returned, so the source can grow
// between runs. Aggregated bars at or before from are dropped, so an interval
// committed by an earlier run is never emitted twice on resume.
type ResampledSource struct {
	src     Source
	rs      market.Resampler
	from    time.Time
	pending []market.Bar
	done    bool
}

func NewResampledSource(src Source, bar, interval time.Duration, from time.Time) *ResampledSource {
	return &ResampledSource{
		src:  src,
		rs:   market.Resampler{BarDuration: bar, Interval: interval},
		from: from,
	}
}

func (s *ResampledSource) NextBars(ctx context.Context, count int) ([]market.Bar, error) {
	for len(s.pending) < count && !s.done {
		bars, err := s.src.NextBars(ctx, count)
		if errors.Is(err, io.EOF) {
			s.done = true
			break
		}
		if err != nil {
			return nil, err
		}

		for _, b := range bars {
			for _, r := range s.rs.Add(b) {
				s.push(r)
			}
		}
	}

	if len(s.pending) == 0 {
		return nil, io.EOF
	}

	n := min(count, len(s.pending))
	res := make([]market.Bar, n)
	copy(res, s.pending[:n])
	s.pending = s.pending[n:]
	return res, nil
}

func (s *ResampledSource) push(b market.Bar) {
	if b.Time.After(s.from) {
		s.pending = append(s.pending, b)
	}
}

func (s *ResampledSource) Close() error {
	return s.src.Close()
}
