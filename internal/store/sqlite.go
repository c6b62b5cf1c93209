package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gamma-omg/signal-engine/internal/combine"
	"github.com/gamma-omg/signal-engine/internal/engine"
	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/gamma-omg/signal-engine/internal/signal"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNoCheckpoint = errors.New("no checkpoint stored")

// Checkpoint is everything needed to continue a run after the last
// committed bar.
type Checkpoint struct {
	Last         time.Time               `json:"last"`
	Fingerprint  string                  `json:"fingerprint"`
	Engine       engine.Snapshot         `json:"engine"`
	States       map[string]signal.State `json:"states"`
	StrategyLast map[string]time.Time    `json:"strategy_last"`
}

// Batch is the output of one chunk. It is committed atomically.
type Batch struct {
	Records    []indicator.Record
	Events     []signal.Event
	Combined   []combine.Record
	Checkpoint Checkpoint
}

// Sink persists committed batches.
type Sink interface {
	Commit(ctx context.Context, b Batch) error
}

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create sqlite schema: %w", err), db.Close())
	}

	return &SQLite{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			ts    INTEGER PRIMARY KEY,
			price TEXT    NOT NULL,
			data  TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			ts        INTEGER NOT NULL,
			strategy  TEXT    NOT NULL,
			action    TEXT    NOT NULL,
			price     TEXT    NOT NULL,
			rationale TEXT    NOT NULL,
			PRIMARY KEY (ts, strategy)
		);

		CREATE TABLE IF NOT EXISTS combined (
			ts      INTEGER PRIMARY KEY,
			signals TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS checkpoint (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			last_ts INTEGER NOT NULL,
			data    TEXT    NOT NULL
		);
	`)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Commit writes a batch in a single transaction. Rows are keyed by
// timestamp, so committing the same batch twice leaves the same data.
func (s *SQLite) Commit(ctx context.Context, b Batch) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if err = insertRecords(ctx, tx, b.Records); err != nil {
		return err
	}
	if err = insertEvents(ctx, tx, b.Events); err != nil {
		return err
	}
	if err = insertCombined(ctx, tx, b.Combined); err != nil {
		return err
	}
	if err = saveCheckpoint(ctx, tx, b.Checkpoint); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []indicator.Record) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO records (ts, price, data) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare records insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.Time.UnixNano(), r.Price.String(), string(data)); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, events []signal.Event) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO events (ts, strategy, action, price, rationale) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare events insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, e.Time.UnixNano(), e.Strategy, string(e.Action), e.Price.String(), e.Rationale); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	return nil
}

func insertCombined(ctx context.Context, tx *sql.Tx, records []combine.Record) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO combined (ts, signals) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare combined insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		data, err := json.Marshal(r.Signals)
		if err != nil {
			return fmt.Errorf("failed to encode combined signals: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.Time.UnixNano(), string(data)); err != nil {
			return fmt.Errorf("failed to insert combined record: %w", err)
		}
	}

	return nil
}

func saveCheckpoint(ctx context.Context, tx *sql.Tx, c Checkpoint) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO checkpoint (id, last_ts, data) VALUES (1, ?, ?)`, c.Last.UnixNano(), string(data))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

func (s *SQLite) LoadCheckpoint(ctx context.Context) (Checkpoint, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM checkpoint WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNoCheckpoint
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var c Checkpoint
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	return c, nil
}

// Records returns the stored records in [from, to), ordered by time.
func (s *SQLite) Records(ctx context.Context, from, to time.Time) ([]indicator.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM records
		WHERE ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var res []indicator.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		var r indicator.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		res = append(res, r)
	}

	return res, rows.Err()
}

// Events returns the stored events in [from, to), ordered by time and strategy.
func (s *SQLite) Events(ctx context.Context, from, to time.Time) ([]signal.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, strategy, action, price, rationale FROM events
		WHERE ts >= ? AND ts < ?
		ORDER BY ts ASC, strategy ASC
	`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var res []signal.Event
	for rows.Next() {
		var ts int64
		var action, price string
		var e signal.Event
		if err := rows.Scan(&ts, &e.Strategy, &action, &price, &e.Rationale); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		e.Time = time.Unix(0, ts).UTC()
		e.Action = signal.Action(action)
		e.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event price: %w", err)
		}
		res = append(res, e)
	}

	return res, rows.Err()
}

// Combined returns the stored combined records in [from, to), ordered by time.
func (s *SQLite) Combined(ctx context.Context, from, to time.Time) ([]combine.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, signals FROM combined
		WHERE ts >= ? AND ts < ?
		ORDER BY ts ASC
	`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query combined records: %w", err)
	}
	defer rows.Close()

	var res []combine.Record
	for rows.Next() {
		var ts int64
		var data string
		if err := rows.Scan(&ts, &data); err != nil {
			return nil, fmt.Errorf("failed to scan combined record: %w", err)
		}

		var events []signal.Event
		if err := json.Unmarshal([]byte(data), &events); err != nil {
			return nil, fmt.Errorf("failed to decode combined signals: %w", err)
		}
		res = append(res, combine.NewRecord(time.Unix(0, ts).UTC(), events))
	}

	return res, rows.Err()
}
