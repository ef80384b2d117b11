package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/momentics/jfetmeter/pkg/fit"
	"github.com/momentics/jfetmeter/pkg/meter"
)

var (
	colorPoints = color.RGBA{B: 255, A: 255}
	colorCurve  = color.RGBA{R: 255, A: 255}
	colorMarker = color.RGBA{G: 128, A: 255}
)

// AxisLimits подбирает границы графика: левую по последней точке развертки,
// верхнюю по первому значению тока.
func AxisLimits(sw meter.Sweep) (xmin, ymax float64) {
	if sw.Len() == 0 {
		return -5, 100
	}
	switch last := sw.Vg[len(sw.Vg)-1]; {
	case last > -0.5:
		xmin = -0.5
	case last > -1:
		xmin = -1
	case last > -2:
		xmin = -2
	default:
		xmin = -5
	}
	switch first := sw.Id[0]; {
	case first <= 2:
		ymax = 2
	case first <= 5:
		ymax = 5
	case first <= 10:
		ymax = 10
	case first <= 20:
		ymax = 20
	case first <= 50:
		ymax = 50
	default:
		ymax = 100
	}
	return xmin, ymax
}

// NewPlot строит график передаточной характеристики с отметками Idss, Voff и Vsat.
func NewPlot(p fit.Params, sw meter.Sweep) (*plot.Plot, error) {
	xmin, ymax := AxisLimits(sw)

	pl := plot.New()
	pl.Title.Text = "N JFET"
	pl.Title.TextStyle.Font.Size = vg.Points(16)
	pl.X.Label.Text = "Gate Voltage, V"
	pl.Y.Label.Text = "Drain Current, mA"
	pl.X.Min, pl.X.Max = xmin, 0
	pl.Y.Min, pl.Y.Max = 0, ymax
	pl.Add(plotter.NewGrid())

	pts := make(plotter.XYs, sw.Len())
	for i := range sw.Vg {
		pts[i].X, pts[i].Y = sw.Vg[i], sw.Id[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения кривой: %w", err)
	}
	curve.LineStyle.Color = colorCurve
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения точек: %w", err)
	}
	scatter.GlyphStyle.Color = colorPoints
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	pl.Add(curve, scatter)

	markers := []plotter.XYs{
		{{X: 0, Y: p.Idss}, {X: xmin * 0.1, Y: p.Idss}},
		{{X: p.Voff, Y: 0}, {X: p.Voff, Y: ymax * 0.1}},
		{{X: p.Voff + p.Vsat, Y: 0}, {X: p.Voff + p.Vsat, Y: ymax * 0.1}},
	}
	for _, m := range markers {
		line, err := plotter.NewLine(m)
		if err != nil {
			return nil, fmt.Errorf("ошибка построения отметки: %w", err)
		}
		line.LineStyle.Color = colorMarker
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		pl.Add(line)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs: plotter.XYs{
			{X: xmin * 0.16, Y: p.Idss},
			{X: p.Voff + xmin*0.03, Y: ymax * 0.11},
			{X: p.Voff + p.Vsat + xmin*0.03, Y: ymax * 0.11},
			{X: xmin * 0.95, Y: ymax * 0.9},
			{X: xmin * 0.95, Y: ymax * 0.8},
			{X: xmin * 0.95, Y: ymax * 0.7},
			{X: xmin * 0.95, Y: ymax * 0.6},
		},
		Labels: []string{
			"Idss",
			"Voff",
			"Vsat",
			fmt.Sprintf("Idss = %.2f mA", p.Idss),
			fmt.Sprintf("Vds(off) = %.2f V", p.Voff),
			fmt.Sprintf("Yfs = %.2f mA/V", p.Yfs),
			fmt.Sprintf("Vsat = %.2f V", p.Vsat),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка построения подписей: %w", err)
	}
	pl.Add(labels)
	return pl, nil
}

// Plot сохраняет график в base+".png".
func Plot(base string, p fit.Params, sw meter.Sweep) (string, error) {
	pl, err := NewPlot(p, sw)
	if err != nil {
		return "", err
	}
	path := base + ".png"
	if err := pl.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("ошибка сохранения графика %s: %w", path, err)
	}
	return path, nil
}
