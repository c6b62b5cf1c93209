package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gamma-omg/signal-engine/internal/signal"
)

// JsonReportBuilder collects a per market summary of a run. It is safe for
// concurrent use.
type JsonReportBuilder struct {
	log    *slog.Logger
	report JsonReport
	mu     sync.Mutex
}

type JsonReport struct {
	Markets map[string]*JsonMarket `json:"markets"`
}

type JsonMarket struct {
	Bars     int64                  `json:"bars"`
	Chunks   int                    `json:"chunks"`
	Combined int                    `json:"combined"`
	Signals  map[string]JsonSignals `json:"signals,omitempty"`
	First    time.Time              `json:"first,omitzero"`
	Last     time.Time              `json:"last,omitzero"`
	Error    string                 `json:"error,omitempty"`
}

type JsonSignals struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
}

func NewJsonReportBuilder(log *slog.Logger) *JsonReportBuilder {
	return &JsonReportBuilder{
		log: log,
		report: JsonReport{
			Markets: map[string]*JsonMarket{},
		},
	}
}

func (r *JsonReportBuilder) market(name string) *JsonMarket {
	m, ok := r.report.Markets[name]
	if !ok {
		m = &JsonMarket{Signals: map[string]JsonSignals{}}
		r.report.Markets[name] = m
	}
	return m
}

func (r *JsonReportBuilder) SubmitBatch(market string, b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.market(market)
	m.Chunks++
	m.Bars += int64(len(b.Records))
	m.Combined += len(b.Combined)

	if len(b.Records) > 0 {
		if m.First.IsZero() {
			m.First = b.Records[0].Time
		}
		m.Last = b.Records[len(b.Records)-1].Time
	}

	for _, e := range b.Events {
		s := m.Signals[e.Strategy]
		if e.Action == signal.ActBuy {
			s.Buy++
		} else {
			s.Sell++
		}
		m.Signals[e.Strategy] = s
	}

	r.log.Debug("chunk reported",
		slog.String("market", market),
		slog.Int("records", len(b.Records)),
		slog.Int("events", len(b.Events)),
		slog.Int("combined", len(b.Combined)))
}

func (r *JsonReportBuilder) SubmitError(market string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.market(market).Error = err.Error()
}

func (r *JsonReportBuilder) Write(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := json.NewEncoder(w)
	if err := e.Encode(r.report); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	return nil
}
