package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resampler merges bars of BarDuration into bars of Interval. Output bars
// are stamped with the start of their interval. An interval is returned once
// its last bar arrives or a bar of a later interval does; a trailing interval
// that is still filling is never returned.
type Resampler struct {
	BarDuration time.Duration
	Interval    time.Duration

	cur *Bar
	end time.Time
}

func (a *Resampler) Add(b Bar) []Bar {
	var res []Bar
	if a.cur != nil && !b.Time.Before(a.end) {
		res = append(res, *a.cur)
		a.cur = nil
	}

	if a.cur == nil {
		start := b.Time.Truncate(a.Interval)
		a.end = start.Add(a.Interval)
		a.cur = &Bar{
			Time: start,
			Open: b.Open,
			High: b.High,
			Low:  b.Low,
		}
	}

	a.cur.Close = b.Close
	a.cur.High = decimal.Max(a.cur.High, b.High)
	a.cur.Low = decimal.Min(a.cur.Low, b.Low)
	a.cur.Volume = a.cur.Volume.Add(b.Volume)
	a.cur.Count += b.Count

	if !b.Time.Add(a.BarDuration).Before(a.end) {
		res = append(res, *a.cur)
		a.cur = nil
	}

	return res
}
