package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"slices"

	"github.com/gamma-omg/signal-engine/internal/config"
	"github.com/gamma-omg/signal-engine/internal/indicator"
	"github.com/gamma-omg/signal-engine/internal/signal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	buyColor  = color.RGBA{R: 0, G: 160, B: 0, A: 255}
	sellColor = color.RGBA{R: 200, G: 0, B: 0, A: 255}
)

// Chart keeps the most recent records of a market together with the buy and
// sell marks of one strategy and draws them as a png.
type Chart struct {
	cfg      config.Chart
	emas     []int
	records  []indicator.Record
	marks    []signal.Mark
	received int
}

func New(cfg config.Chart, emas []int) *Chart {
	emas = slices.Clone(emas)
	slices.Sort(emas)

	return &Chart{
		cfg:  cfg,
		emas: slices.Compact(emas),
	}
}

func (c *Chart) Add(r indicator.Record, step signal.Step) {
	mark := signal.Mark{Strategy: c.cfg.Strategy}
	for _, m := range step.Marks {
		if m.Strategy == c.cfg.Strategy {
			mark = m
			break
		}
	}

	c.records = append(c.records, r)
	c.marks = append(c.marks, mark)
	c.received++

	if len(c.records) > 2*c.cfg.MaxBars {
		c.records = slices.Clone(c.records[len(c.records)-c.cfg.MaxBars:])
		c.marks = slices.Clone(c.marks[len(c.marks)-c.cfg.MaxBars:])
	}
}

func (c *Chart) AddAll(records []indicator.Record, steps []signal.Step) {
	for i, r := range records {
		c.Add(r, steps[i])
	}
}

// Len returns the number of bars that will be drawn.
func (c *Chart) Len() int {
	return min(len(c.records), c.cfg.MaxBars)
}

func (c *Chart) window() ([]indicator.Record, []signal.Mark) {
	n := c.Len()
	return c.records[len(c.records)-n:], c.marks[len(c.marks)-n:]
}

func (c *Chart) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close chart file: %w", cerr))
		}
	}()

	_, err = c.WriteTo(f)
	return err
}

func (c *Chart) WriteTo(w io.Writer) (int64, error) {
	panels, err := c.panels()
	if err != nil {
		return 0, err
	}
	return render(w, c.cfg.Width, c.cfg.Height, panels)
}

func (c *Chart) panels() ([]panel, error) {
	records, marks := c.window()
	if len(records) == 0 {
		return nil, errors.New("no bars to draw")
	}

	price, err := c.pricePlot(records, marks)
	if err != nil {
		return nil, err
	}

	srsi, err := c.stochRSIPlot(records)
	if err != nil {
		return nil, err
	}

	macd, err := c.macdPlot(records)
	if err != nil {
		return nil, err
	}

	return []panel{
		{Plot: price, weight: 2},
		{Plot: srsi, weight: 1},
		{Plot: macd, weight: 1},
	}, nil
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04:05"}
	p.Legend.Top = true
	p.Legend.Left = true
	return p
}

func x(r indicator.Record) float64 {
	return float64(r.Time.Unix())
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	if len(pts) == 0 {
		return nil
	}

	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create %s line: %w", name, err)
	}
	l.Color = c

	p.Add(l)
	p.Legend.Add(name, l)
	return nil
}

func addMarks(p *plot.Plot, name string, pts plotter.XYs, c color.Color, shape draw.GlyphDrawer) error {
	if len(pts) == 0 {
		return nil
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to create %s marks: %w", name, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Radius = vg.Points(4)

	p.Add(s)
	p.Legend.Add(name, s)
	return nil
}

func (c *Chart) pricePlot(records []indicator.Record, marks []signal.Mark) (*plot.Plot, error) {
	p := newPlot("Price")

	var closes, upper, lower, buys, sells plotter.XYs
	emas := make(map[int]plotter.XYs, len(c.emas))
	for i, r := range records {
		closes = append(closes, plotter.XY{X: x(r), Y: r.Close()})

		for _, period := range c.emas {
			if v, ok := r.EMA[period].Get(); ok {
				emas[period] = append(emas[period], plotter.XY{X: x(r), Y: v})
			}
		}

		if bb, ok := r.Bollinger.Get(); ok {
			upper = append(upper, plotter.XY{X: x(r), Y: bb.Upper})
			lower = append(lower, plotter.XY{X: x(r), Y: bb.Lower})
		}

		if v, ok := marks[i].Buy.Get(); ok {
			buys = append(buys, plotter.XY{X: x(r), Y: v.InexactFloat64()})
		}
		if v, ok := marks[i].Sell.Get(); ok {
			sells = append(sells, plotter.XY{X: x(r), Y: v.InexactFloat64()})
		}
	}

	if err := addLine(p, "close", closes, color.Black); err != nil {
		return nil, err
	}
	for i, period := range c.emas {
		if err := addLine(p, fmt.Sprintf("ema %d", period), emas[period], plotutil.Color(i)); err != nil {
			return nil, err
		}
	}
	grey := color.Gray{Y: 140}
	if err := addLine(p, "bb upper", upper, grey); err != nil {
		return nil, err
	}
	if err := addLine(p, "bb lower", lower, grey); err != nil {
		return nil, err
	}
	if err := addMarks(p, "buy", buys, buyColor, draw.TriangleGlyph{}); err != nil {
		return nil, err
	}
	if err := addMarks(p, "sell", sells, sellColor, draw.CrossGlyph{}); err != nil {
		return nil, err
	}

	return p, nil
}

func (c *Chart) stochRSIPlot(records []indicator.Record) (*plot.Plot, error) {
	p := newPlot("Stochastic RSI")
	p.Y.Min, p.Y.Max = 0, 100

	var k, d plotter.XYs
	for _, r := range records {
		if s, ok := r.StochRSI.Get(); ok {
			k = append(k, plotter.XY{X: x(r), Y: s.K})
			d = append(d, plotter.XY{X: x(r), Y: s.D})
		}
	}

	if err := addLine(p, "%K", k, plotutil.Color(0)); err != nil {
		return nil, err
	}
	if err := addLine(p, "%D", d, plotutil.Color(1)); err != nil {
		return nil, err
	}

	return p, nil
}

func (c *Chart) macdPlot(records []indicator.Record) (*plot.Plot, error) {
	p := newPlot("MACD")

	var macd, sig plotter.XYs
	for _, r := range records {
		if m, ok := r.MACD.Get(); ok {
			macd = append(macd, plotter.XY{X: x(r), Y: m.MACD})
			sig = append(sig, plotter.XY{X: x(r), Y: m.Signal})
		}
	}

	if err := addLine(p, "macd", macd, plotutil.Color(0)); err != nil {
		return nil, err
	}
	if err := addLine(p, "signal", sig, plotutil.Color(1)); err != nil {
		return nil, err
	}

	return p, nil
}
