package pcoa

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders a 2-D annotated scatter of two 1-based ordination axes,
// with the proportion of variance explained in the axis labels.
func Plot(res *Result, axisX, axisY int, outPath string) error {
	if axisX < 1 || axisX > res.Axes() || axisY < 1 || axisY > res.Axes() {
		return fmt.Errorf("plot axes %d/%d out of range: %d axes available", axisX, axisY, res.Axes())
	}
	x, y := axisX-1, axisY-1

	points := make(plotter.XYs, len(res.IDs))
	labels := make([]string, len(res.IDs))
	for i, id := range res.IDs {
		points[i].X = res.Coordinates.At(i, x)
		points[i].Y = res.Coordinates.At(i, y)
		labels[i] = filepath.Base(id)
	}

	p := plot.New()
	p.Title.Text = "PCoA ordination"
	p.X.Label.Text = fmt.Sprintf("PC%d (%.2f%% variance explained)", axisX, res.Proportions[x]*100)
	p.Y.Label.Text = fmt.Sprintf("PC%d (%.2f%% variance explained)", axisY, res.Proportions[y]*100)
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	p.Add(scatter)

	names, err := plotter.NewLabels(plotter.XYLabels{XYs: points, Labels: labels})
	if err != nil {
		return err
	}
	p.Add(names)

	return p.Save(7*vg.Inch, 7*vg.Inch, outPath)
}
