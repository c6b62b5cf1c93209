package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/metrics"
	"github.com/gamma-omg/signal-engine/internal/pipeline"
	"github.com/gamma-omg/signal-engine/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.Log)

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) (err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.NewPipeline(reg)
	if err != nil {
		return err
	}

	report := store.NewJsonReportBuilder(logger)
	defer func() {
		if cfg.Report == "" {
			return
		}
		if werr := writeReport(cfg.Report, report); werr != nil {
			err = errors.Join(err, werr)
		}
	}()

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	var srv errgroup.Group
	if cfg.MetricsAddr != "" {
		srv.Go(func() error {
			return metrics.Serve(srvCtx, logger, cfg.MetricsAddr, reg)
		})
	}

	var g errgroup.Group
	for name, mcfg := range cfg.Markets {
		g.Go(func() error {
			return runMarket(ctx, logger, cfg, name, mcfg, m, report)
		})
	}

	err = g.Wait()
	stopServer()

	return errors.Join(err, srv.Wait())
}

func runMarket(ctx context.Context, logger *slog.Logger, cfg *config.Config, name string, mcfg config.Market, m *metrics.Pipeline, report *store.JsonReportBuilder) (err error) {
	db, err := store.OpenSQLite(mcfg.Store)
	if err != nil {
		return fmt.Errorf("market %s: %w", name, err)
	}
	defer func() {
		err = errors.Join(err, db.Close())
	}()

	p, err := pipeline.New(logger, name, cfg, db, m, report)
	if err != nil {
		return fmt.Errorf("market %s: %w", name, err)
	}

	return p.Run(ctx)
}

func writeReport(path string, report *store.JsonReportBuilder) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close report file: %w", cerr))
		}
	}()

	return report.Write(f)
}
