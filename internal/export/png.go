package export

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/AnthonyZalev/gridtrace/internal/storage"
)

// SavePNG renders the PV curves (|V| against lambda, one line per bus) of a
// stored trace to a PNG file.
func SavePNG(path string, meta *storage.RunMetadata, curve *storage.Curve) error {
	if len(curve.Lambdas) < 2 {
		return fmt.Errorf("export: curve too short to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("PV curve: %s", meta.Case)
	p.X.Label.Text = "lambda"
	p.Y.Label.Text = "|V| (p.u.)"

	nb := len(curve.Vm[0])
	for b := 0; b < nb; b++ {
		pts := make(plotter.XYs, len(curve.Lambdas))
		for i := range curve.Lambdas {
			pts[i].X = curve.Lambdas[i]
			pts[i].Y = curve.Vm[i][b]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotColor(b)
		p.Add(line)
		name := fmt.Sprintf("bus%d", b)
		if b < len(meta.BusNames) {
			name = meta.BusNames[b]
		}
		p.Legend.Add(name, line)
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

var palette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

func plotColor(i int) color.RGBA {
	return palette[i%len(palette)]
}
