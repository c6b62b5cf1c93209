package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pipeline struct {
	Bars          *prometheus.CounterVec
	Records       *prometheus.CounterVec
	Chunks        *prometheus.CounterVec
	Signals       *prometheus.CounterVec
	Combined      *prometheus.CounterVec
	Failures      *prometheus.CounterVec
	ChunkDuration *prometheus.HistogramVec
	LastCommitted *prometheus.GaugeVec
}

func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	m := &Pipeline{
		Bars: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_bars_total", Help: "Bars read from the source"},
			[]string{"market"},
		),
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_records_total", Help: "Indicator records committed"},
			[]string{"market"},
		),
		Chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_chunks_total", Help: "Chunks committed"},
			[]string{"market"},
		),
		Signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_signals_total", Help: "Signal events committed"},
			[]string{"market", "strategy", "action"},
		),
		Combined: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_combined_total", Help: "Combined signal records committed"},
			[]string{"market"},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipeline_failures_total", Help: "Runs aborted by an error"},
			[]string{"market"},
		),
		ChunkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_chunk_duration_seconds",
				Help:    "Time to process and commit a chunk",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"market"},
		),
		LastCommitted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pipeline_last_committed_timestamp_seconds", Help: "Timestamp of the last committed bar"},
			[]string{"market"},
		),
	}

	for _, c := range []prometheus.Collector{m.Bars, m.Records, m.Chunks, m.Signals, m.Combined, m.Failures, m.ChunkDuration, m.LastCommitted} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Serve exposes the metrics of g on addr until ctx is done.
func Serve(ctx context.Context, log *slog.Logger, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown metrics server", slog.String("error", err.Error()))
		}
	}()

	log.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}

	return nil
}
