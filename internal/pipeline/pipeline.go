package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gamma-omg/signal-engine/internal/chart"
	"github.com/gamma-omg/signal-engine/internal/combine"
	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/engine"
	"github.com/gamma-omg/signal-engine/internal/market"
	"github.com/gamma-omg/signal-engine/internal/metrics"
	"github.com/gamma-omg/signal-engine/internal/signal"
	"github.com/gamma-omg/signal-engine/internal/source"
	"github.com/gamma-omg/signal-engine/internal/store"
)

var ErrFingerprintMismatch = errors.New("checkpoint was written with a different indicator configuration")

type batchStore interface {
	store.Sink
	LoadCheckpoint(ctx context.Context) (store.Checkpoint, error)
}

type reportBuilder interface {
	SubmitBatch(market string, b store.Batch)
	SubmitError(market string, err error)
}

type sourceOpener func(cfg config.Market, from time.Time) (source.Source, error)

// RunError is returned when a run stops before the end of the stream.
// Everything up to LastCommitted is durable and a resumed run continues
// right after it.
type RunError struct {
	Market        string
	LastCommitted time.Time
	Err           error
}

func (e *RunError) Error() string {
	if e.LastCommitted.IsZero() {
		return fmt.Sprintf("market %s failed before the first commit: %v", e.Market, e.Err)
	}
	return fmt.Sprintf("market %s failed after %s: %v", e.Market, e.LastCommitted.Format(time.RFC3339), e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Pipeline runs the bars of one market through the indicator engine, the
// strategies and the aggregator, one chunk at a time, and commits every
// chunk with the checkpoint needed to resume after it.
type Pipeline struct {
	log         *slog.Logger
	market      string
	cfg         config.Market
	chunkSize   int
	fingerprint string
	strategies  []signal.Strategy
	engine      *engine.Engine
	eval        *signal.Evaluator
	agg         *combine.Aggregator
	store       batchStore
	metrics     *metrics.Pipeline
	report      reportBuilder
	chart       *chart.Chart
	open        sourceOpener
	last        time.Time
}

func New(log *slog.Logger, market string, cfg *config.Config, st batchStore, m *metrics.Pipeline, report reportBuilder) (*Pipeline, error) {
	mcfg, ok := cfg.Markets[market]
	if !ok {
		return nil, fmt.Errorf("market %s is not configured", market)
	}

	eng, err := engine.New(cfg.Indicators, cfg.Pipeline.Overlap)
	if err != nil {
		return nil, fmt.Errorf("failed to create indicator engine: %w", err)
	}

	if stable := engine.MaxWarmup(engine.Stabilizations(cfg.Indicators)); cfg.Pipeline.Overlap < stable {
		log.Warn("overlap is shorter than the indicator stabilization, ema and rsi values will drift at chunk boundaries",
			slog.String("market", market),
			slog.Int("overlap", cfg.Pipeline.Overlap),
			slog.Int("stable_overlap", stable))
	}

	strategies, err := signal.NewStrategies(cfg.Strategies)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategies: %w", err)
	}

	eval, err := signal.NewEvaluator(strategies, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluator: %w", err)
	}

	fp, err := Fingerprint(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		log:         log.With(slog.String("market", market)),
		market:      market,
		cfg:         mcfg,
		chunkSize:   cfg.Pipeline.ChunkSize,
		fingerprint: fp,
		strategies:  strategies,
		engine:      eng,
		eval:        eval,
		agg:         combine.NewAggregator(),
		store:       st,
		metrics:     m,
		report:      report,
		open:        source.Open,
	}

	if mcfg.Chart.Path != "" {
		p.chart = chart.New(mcfg.Chart, cfg.Indicators.EMA)
	}

	return p, nil
}

// Fingerprint identifies the settings that make a checkpoint reusable: the
// overlap and every indicator parameter.
func Fingerprint(cfg *config.Config) (string, error) {
	data, err := json.Marshal(struct {
		Overlap    int               `json:"overlap"`
		Indicators config.Indicators `json:"indicators"`
	}{cfg.Pipeline.Overlap, cfg.Indicators})
	if err != nil {
		return "", fmt.Errorf("failed to encode indicator configuration: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Run processes the market until its source is exhausted or ctx is done.
// ctx is checked between chunks only; a chunk that has started is always
// committed or failed.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = p.fail(err)
		}
	}()

	from, err := p.resume(ctx)
	if err != nil {
		return err
	}

	src, err := p.open(p.cfg, from)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close bar source: %w", cerr))
		}
	}()

	p.log.Info("pipeline started", slog.Time("from", from), slog.Int("chunk_size", p.chunkSize))

	work := context.WithoutCancel(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, eof, err := p.readChunk(work, src)
		if err != nil {
			return err
		}

		if len(chunk) > 0 {
			if err := p.processChunk(work, chunk); err != nil {
				return err
			}
		}

		if eof {
			break
		}
	}

	if p.chart != nil {
		if err := p.chart.Save(p.cfg.Chart.Path); err != nil {
			return fmt.Errorf("failed to save chart: %w", err)
		}
	}

	p.log.Info("pipeline finished", slog.Time("last", p.last))
	return nil
}

func (p *Pipeline) fail(err error) error {
	p.metrics.Failures.WithLabelValues(p.market).Inc()
	p.report.SubmitError(p.market, err)
	p.log.Error("pipeline failed", slog.Time("last_committed", p.last), slog.String("error", err.Error()))

	return &RunError{
		Market:        p.market,
		LastCommitted: p.last,
		Err:           err,
	}
}

func (p *Pipeline) resume(ctx context.Context) (time.Time, error) {
	if !p.cfg.Resume {
		return time.Time{}, nil
	}

	cp, err := p.store.LoadCheckpoint(ctx)
	if errors.Is(err, store.ErrNoCheckpoint) {
		p.log.Info("no checkpoint found, starting from the beginning")
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	if cp.Fingerprint != p.fingerprint {
		return time.Time{}, ErrFingerprintMismatch
	}

	if err := p.engine.Restore(cp.Engine); err != nil {
		return time.Time{}, fmt.Errorf("failed to restore indicator engine: %w", err)
	}

	p.eval, err = signal.NewEvaluator(p.strategies, cp.States)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to restore evaluator: %w", err)
	}

	p.agg.Restore(cp.StrategyLast)
	p.last = cp.Last

	p.log.Info("resuming from checkpoint", slog.Time("last", cp.Last), slog.Int64("seen", cp.Engine.Seen))
	return cp.Last, nil
}

// readChunk collects up to chunkSize bars. The returned flag reports the
// end of the stream.
func (p *Pipeline) readChunk(ctx context.Context, src source.BarSource) ([]market.Bar, bool, error) {
	chunk := make([]market.Bar, 0, min(p.chunkSize, 4096))
	eof := false
	for !eof && len(chunk) < p.chunkSize {
		bars, err := src.NextBars(ctx, p.chunkSize-len(chunk))
		if errors.Is(err, io.EOF) {
			eof = true
		} else if err != nil {
			return nil, false, fmt.Errorf("failed to read bars: %w", err)
		}
		chunk = append(chunk, bars...)
	}

	p.metrics.Bars.WithLabelValues(p.market).Add(float64(len(chunk)))
	return chunk, eof, nil
}

func (p *Pipeline) processChunk(ctx context.Context, chunk []market.Bar) error {
	start := time.Now()

	records, err := p.engine.Process(chunk)
	if err != nil {
		return fmt.Errorf("failed to process chunk: %w", err)
	}

	steps := p.eval.Run(records)

	var events []signal.Event
	for _, s := range steps {
		events = append(events, s.Events...)
	}

	if err := p.agg.Add(events...); err != nil {
		return fmt.Errorf("failed to combine events: %w", err)
	}

	b := store.Batch{
		Records:  records,
		Events:   events,
		Combined: p.agg.Flush(),
		Checkpoint: store.Checkpoint{
			Last:         records[len(records)-1].Time,
			Fingerprint:  p.fingerprint,
			Engine:       p.engine.Snapshot(),
			States:       p.eval.Snapshot(),
			StrategyLast: p.agg.Last(),
		},
	}

	if err := p.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}
	p.last = b.Checkpoint.Last

	p.observe(b, time.Since(start))
	if p.chart != nil {
		p.chart.AddAll(records, steps)
	}

	p.log.Info("chunk committed",
		slog.Int("bars", len(records)),
		slog.Int("events", len(b.Events)),
		slog.Int("combined", len(b.Combined)),
		slog.Time("last", p.last))

	return nil
}

func (p *Pipeline) observe(b store.Batch, d time.Duration) {
	p.metrics.Records.WithLabelValues(p.market).Add(float64(len(b.Records)))
	p.metrics.Chunks.WithLabelValues(p.market).Inc()
	p.metrics.Combined.WithLabelValues(p.market).Add(float64(len(b.Combined)))
	p.metrics.ChunkDuration.WithLabelValues(p.market).Observe(d.Seconds())
	p.metrics.LastCommitted.WithLabelValues(p.market).Set(float64(b.Checkpoint.Last.Unix()))
	for _, e := range b.Events {
		p.metrics.Signals.WithLabelValues(p.market, e.Strategy, string(e.Action)).Inc()
	}

	p.report.SubmitBatch(p.market, b)
}
