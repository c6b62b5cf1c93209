package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gamma-omg/signal-engine/internal/market"
)

type csvBarsDump struct {
	w           *csv.Writer
	writeHeader bool
}

func newCsvBarsDump(w io.Writer) *csvBarsDump {
	return &csvBarsDump{csv.NewWriter(w), true}
}

func (d *csvBarsDump) Dump(bars []market.Bar) error {
	if d.writeHeader {
		if err := d.w.Write([]string{"time", "open", "high", "low", "close", "volume", "count"}); err != nil {
			return fmt.Errorf("failed to write bars dump csv header: %w", err)
		}
		d.writeHeader = false
	}

	for _, bar := range bars {
		err := d.w.Write([]string{
			strconv.FormatInt(bar.Time.Unix(), 10),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Volume.String(),
			strconv.FormatInt(bar.Count, 10)})

		if err != nil {
			return fmt.Errorf("failed to dump bar: %w", err)
		}
	}

	d.w.Flush()
	return d.w.Error()
}

// DumpSource copies every bar read from the wrapped source to a csv file
// readable by CSVSource.
type DumpSource struct {
	src  Source
	f    *os.File
	dump *csvBarsDump
}

// NewDumpSource wraps src. A non-zero from resumes an earlier dump: rows after
// from were read but never committed, so they are cut before new bars are
// appended.
func NewDumpSource(src Source, path string, from time.Time) (*DumpSource, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to create bars dump file: %w", err)
	}

	var keep int64
	if !from.IsZero() {
		keep, err = dumpedUntil(f, from)
		if err != nil {
			return nil, errors.Join(err, f.Close())
		}
	}

	if err := f.Truncate(keep); err != nil {
		return nil, errors.Join(fmt.Errorf("unable to truncate bars dump file: %w", err), f.Close())
	}
	if _, err := f.Seek(keep, io.SeekStart); err != nil {
		return nil, errors.Join(fmt.Errorf("unable to seek bars dump file: %w", err), f.Close())
	}

	dump := newCsvBarsDump(f)
	dump.writeHeader = keep == 0

	return &DumpSource{
		src:  src,
		f:    f,
		dump: dump,
	}, nil
}

// dumpedUntil returns the length of the leading part of a dump that holds
// bars at or before from.
func dumpedUntil(r io.Reader, from time.Time) (int64, error) {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1

	var keep int64
	for {
		data, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			return keep, nil
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read bars dump: %w", err)
		}

		if isHeader(data) {
			keep = rdr.InputOffset()
			continue
		}

		bar, err := parseBar(data)
		if err != nil {
			return 0, fmt.Errorf("failed to parse dumped bar: %w", err)
		}
		if bar.Time.After(from) {
			return keep, nil
		}
		keep = rdr.InputOffset()
	}
}

func (s *DumpSource) NextBars(ctx context.Context, count int) ([]market.Bar, error) {
	bars, err := s.src.NextBars(ctx, count)
	if len(bars) > 0 {
		if dumpErr := s.dump.Dump(bars); dumpErr != nil {
			return nil, dumpErr
		}
	}

	return bars, err
}

func (s *DumpSource) Close() error {
	return errors.Join(s.src.Close(), s.f.Close())
}
