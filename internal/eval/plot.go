package eval

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// generateFitCurves renders one validation-curve PNG with a line per
// training run.
func (r *Reporter) generateFitCurves() error {
	if len(r.fitLogs) == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = "Validation Score by Training Batch"
	p.X.Label.Text = "Batch"
	p.Y.Label.Text = "Validation Score"

	runs := r.sortedRuns()
	colors := curveColors(len(runs))
	for i, name := range runs {
		fitLog := r.fitLogs[name]
		pts := make(plotter.XYs, 0, fitLog.Len())
		for _, point := range fitLog.Points {
			pts = append(pts, plotter.XY{X: float64(point.Batch), Y: point.Score})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("fit curve %s: %w", name, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(name, line)
	}

	out := filepath.Join(r.outputPath, "fit_curves.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, out); err != nil {
		return fmt.Errorf("save fit curves: %w", err)
	}
	return nil
}

func curveColors(n int) []color.Color {
	palette := []color.Color{
		color.RGBA{R: 31, G: 119, B: 180, A: 255},
		color.RGBA{R: 255, G: 127, B: 14, A: 255},
		color.RGBA{R: 44, G: 160, B: 44, A: 255},
		color.RGBA{R: 214, G: 39, B: 40, A: 255},
		color.RGBA{R: 148, G: 103, B: 189, A: 255},
		color.RGBA{R: 140, G: 86, B: 75, A: 255},
	}
	out := make([]color.Color, n)
	for i := range out {
		out[i] = palette[i%len(palette)]
	}
	return out
}
