package visualization

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"multi-uuv-sim/internal/simulation"
)

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 8 * vg.Inch
)

// TrajectoryPlot draws the path of every vehicle, axis limits from AutoLimits.
func TrajectoryPlot(r *simulation.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s: %d vehicles, K=%.2f, ω0=%.2f", shortID(r.RunID), len(r.Trajectories), r.Law.Gain, r.Law.Omega0)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	for id := range r.Trajectories {
		positions := r.Positions(id)
		if len(positions) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(positions))
		for i, pos := range positions {
			pts[i] = plotter.XY{X: pos.X, Y: pos.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", id, err)
		}
		line.Color = plotutil.Color(id)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("vehicle %d", id), line)
	}
	p.Legend.Top = true

	if b := AutoLimits(r); !b.IsEmpty() {
		p.X.Min, p.X.Max = b.MinX, b.MaxX
		p.Y.Min, p.Y.Max = b.MinY, b.MaxY
	}
	return p, nil
}

// SpreadPlot draws the orbit-center spread against simulated time.
func SpreadPlot(r *simulation.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Orbit-center spread"
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "spread (m²)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(r.Spread)+1)
	pts[0] = plotter.XY{X: 0, Y: r.InitialSpread}
	for i, s := range r.Spread {
		pts[i+1] = plotter.XY{X: float64(i+1) * r.Dt, Y: s}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	return p, nil
}

// WritePNG saves the trajectory plot to path and the spread plot next to it
// with a "-spread" suffix. It returns the paths written.
func WritePNG(r *simulation.Result, path string) ([]string, error) {
	traj, err := TrajectoryPlot(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build trajectory plot: %w", err)
	}
	if err := traj.Save(plotWidth, plotHeight, path); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", path, err)
	}

	spread, err := SpreadPlot(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build spread plot: %w", err)
	}
	spreadPath := SpreadPath(path)
	if err := spread.Save(plotWidth, plotHeight/2, spreadPath); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", spreadPath, err)
	}
	return []string{path, spreadPath}, nil
}

// SpreadPath returns where WritePNG puts the spread plot for path.
func SpreadPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-spread" + ext
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
