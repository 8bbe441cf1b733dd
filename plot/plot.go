// Package plot renders the simulator/hardware comparison figure from a pair
// of test records.
package plot

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/servokit/servotune/tune"
)

var (
	simColor  = color.RGBA{B: 200, A: 255}
	realColor = color.RGBA{R: 200, A: 255}
	cmdColor  = color.Black
)

// Options controls the comparison figure.
type Options struct {
	// Dir the PNG is written into; created if missing
	Dir string

	// Kind of test, "sine" or "step"; embedded in the file name
	Kind string

	// Timestamp embedded in the file name
	Timestamp time.Time

	// SimTitle and RealTitle annotate the top of each column; multi-line
	// strings carry the configuration and overshoot summary
	SimTitle, RealTitle string

	// VelocityCommand overlays the commanded velocity on the velocity rows
	// (sine tests; step tests record a velocity limit, not a trajectory)
	VelocityCommand bool
}

// Comparison writes a 2x2 figure (sim and real columns, position and velocity
// rows) with dashed command overlays, returning the path written.  Call it
// only after both runs completed; a failed run never leaves a partial image.
func Comparison(simRec, realRec *tune.Record, opts Options) (string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("plot: create output dir: %w", err)
	}

	simPos, err := column(opts.SimTitle, "Position (deg)",
		simRec.CmdTime, simRec.CmdPos, true,
		simRec.Time, simRec.Position, simColor, "Sim")
	if err != nil {
		return "", err
	}
	realPos, err := column(opts.RealTitle, "Position (deg)",
		realRec.CmdTime, realRec.CmdPos, true,
		realRec.Time, realRec.Position, realColor, "Real")
	if err != nil {
		return "", err
	}
	simVel, err := column("Sim - Velocity", "Velocity (deg/s)",
		simRec.CmdTime, simRec.CmdVel, opts.VelocityCommand,
		simRec.Time, simRec.Velocity, simColor, "Sim")
	if err != nil {
		return "", err
	}
	realVel, err := column("Real - Velocity", "Velocity (deg/s)",
		realRec.CmdTime, realRec.CmdVel, opts.VelocityCommand,
		realRec.Time, realRec.Velocity, realColor, "Real")
	if err != nil {
		return "", err
	}
	simVel.X.Label.Text = "Time (s)"
	realVel.X.Label.Text = "Time (s)"

	grid := [][]*plot.Plot{
		{simPos, realPos},
		{simVel, realVel},
	}

	img := vgimg.New(14*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 2,
		PadX: vg.Points(12), PadY: vg.Points(12),
		PadTop: vg.Points(8), PadBottom: vg.Points(8),
		PadLeft: vg.Points(8), PadRight: vg.Points(8),
	}
	canvases := plot.Align(grid, tiles, dc)
	for i := range grid {
		for j := range grid[i] {
			grid[i][j].Draw(canvases[i][j])
		}
	}

	name := fmt.Sprintf("%s_comparison_%s.png",
		opts.Kind, opts.Timestamp.Format("20060102_150405"))
	path := filepath.Join(opts.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("plot: create %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(bw); err != nil {
		return "", fmt.Errorf("plot: write %s: %w", path, err)
	}
	return path, bw.Flush()
}

// column builds one subplot: an optional dashed command overlay plus the
// measured trace, with NaN samples rendered as gaps.
func column(title, ylabel string, cmdT, cmdV []float64, withCmd bool,
	t, v []float64, clr color.Color, label string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	if withCmd && len(cmdT) > 0 {
		line, err := plotter.NewLine(xys(cmdT, cmdV))
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = cmdColor
		line.LineStyle.Width = vg.Points(1.2)
		line.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		p.Add(line)
		p.Legend.Add(label+" Command", line)
	}

	segs := segments(t, v)
	var legendEntry *plotter.Line
	for _, seg := range segs {
		line, err := plotter.NewLine(seg)
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = clr
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		legendEntry = line
	}
	if legendEntry != nil {
		p.Legend.Add(label+" Measured", legendEntry)
	}
	p.Legend.Top = true
	return p, nil
}

func xys(t, v []float64) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range t {
		pts[i].X = t[i]
		pts[i].Y = v[i]
	}
	return pts
}

// segments splits a series at NaN values so gaps stay gaps instead of being
// bridged by a line.
func segments(t, v []float64) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i := range t {
		if math.IsNaN(v[i]) {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: t[i], Y: v[i]})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
