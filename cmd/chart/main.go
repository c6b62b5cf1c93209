package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gamma-omg/signal-engine/internal/chart"
	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/signal"
	"github.com/gamma-omg/signal-engine/internal/store"
)

// Renders the stored records and signals of one market in [FROM, TO).
func main() {
	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	name := os.Getenv("MARKET")
	mcfg, ok := cfg.Markets[name]
	if !ok {
		log.Fatalf("unknown market: %s", name)
	}

	from, err := parseTime(os.Getenv("FROM"), time.Unix(0, 0))
	if err != nil {
		log.Fatal(err)
	}
	to, err := parseTime(os.Getenv("TO"), time.Now())
	if err != nil {
		log.Fatal(err)
	}

	out := os.Getenv("OUT")
	if out == "" {
		out = mcfg.Chart.Path
	}
	if out == "" {
		log.Fatal("no output path: set OUT or chart.path")
	}

	logger := slog.Default()

	db, err := store.OpenSQLite(mcfg.Store)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	records, err := db.Records(ctx, from, to)
	if err != nil {
		log.Fatal(err)
	}
	events, err := db.Events(ctx, from, to)
	if err != nil {
		log.Fatal(err)
	}

	steps := signal.StepsFromEvents(records, events)

	mcfg.Chart.MaxBars = max(len(records), 1)
	c := chart.New(mcfg.Chart, cfg.Indicators.EMA)
	c.AddAll(records, steps)

	if err := c.Save(out); err != nil {
		log.Fatal(err)
	}

	logger.Info("chart saved",
		slog.String("market", name),
		slog.String("path", out),
		slog.Int("bars", len(records)),
		slog.Int("events", len(events)))
}

func parseTime(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}
