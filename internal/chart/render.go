package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/pplcc/plotext"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// panel is one plot of the chart and its share of the image height, in units
// of the configured panel height.
type panel struct {
	*plot.Plot
	weight float64
}

// render stacks panels top to bottom on one time axis and encodes them as png.
func render(w io.Writer, width, unit int, panels []panel) (int64, error) {
	if len(panels) == 0 {
		return 0, errors.New("nothing to draw")
	}

	axes := make([]*plot.Axis, len(panels))
	rows := make([][]*plot.Plot, len(panels))
	weights := make([]float64, len(panels))
	total := 0.0
	for i, p := range panels {
		axes[i] = &p.X
		rows[i] = []*plot.Plot{p.Plot}
		weights[i] = p.weight
		total += p.weight
	}
	plotext.UniteAxisRanges(axes)

	img := vgimg.NewWith(
		vgimg.UseWH(vg.Points(float64(width)), vg.Points(total*float64(unit))),
		vgimg.UseBackgroundColor(color.White),
	)

	layout := plotext.Table{RowHeights: weights, ColWidths: []float64{1}}
	cells := layout.Align(rows, draw.New(img))
	for i, row := range rows {
		row[0].Draw(cells[i][0])
	}

	n, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to encode chart: %w", err)
	}

	return n, nil
}
