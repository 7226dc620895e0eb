// Package live shows a running simulation in an ebiten window.
package live

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"
	"gonum.org/v1/plot/plotutil"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/formation"
	"multi-uuv-sim/internal/simulation"
	"multi-uuv-sim/internal/visualization"
)

const (
	vehicleRadius = 5.0
	headingLength = 18.0
	padding       = 50.0
	trailLength   = 100
)

var (
	backgroundColor = color.RGBA{230, 230, 230, 255}
	centerColor     = color.RGBA{0, 0, 0, 90}
)

// Renderer implements ebiten.Game. Every Update advances the simulation by
// stepsPerFrame ticks until steps ticks have run.
type Renderer struct {
	sim           *simulation.Simulation
	steps         int
	stepsPerFrame int
	log           zerolog.Logger

	screenWidth  int
	screenHeight int
	transform    visualization.Transform
	done         bool
}

// NewRenderer creates a renderer for sim.
func NewRenderer(sim *simulation.Simulation, steps, stepsPerFrame int, logger zerolog.Logger) *Renderer {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	return &Renderer{
		sim:           sim,
		steps:         steps,
		stepsPerFrame: stepsPerFrame,
		log:           logger,
	}
}

// Done reports whether every requested tick has run.
func (r *Renderer) Done() bool {
	return r.done
}

// Update steps the simulation and refits the view to the visible trails.
func (r *Renderer) Update() error {
	for i := 0; i < r.stepsPerFrame && r.sim.Tick() < r.steps; i++ {
		if err := r.sim.Step(); err != nil {
			return err
		}
	}
	if !r.done && r.sim.Tick() >= r.steps {
		r.done = true
		r.log.Info().Int("tick", r.sim.Tick()).Float64("spread", r.sim.Result().FinalSpread()).Msg("live run finished")
	}

	bounds := visualization.EmptyBounds()
	for id := range r.sim.Vehicles() {
		for _, p := range r.trail(id) {
			bounds = bounds.Extend(p)
		}
	}
	for _, v := range r.sim.Vehicles() {
		bounds = bounds.Extend(v.Pose().Position)
	}
	r.transform = visualization.FitTransform(bounds.WithMargin(visualization.DefaultMargin),
		float64(r.screenWidth), float64(r.screenHeight), padding)
	return nil
}

// trail returns the last trailLength recorded positions of vehicle id.
func (r *Renderer) trail(id int) []common.Vec2 {
	samples := r.sim.Result().Trajectories[id]
	if len(samples) > trailLength {
		samples = samples[len(samples)-trailLength:]
	}
	out := make([]common.Vec2, len(samples))
	for i, s := range samples {
		out[i] = s.Position
	}
	return out
}

// Draw renders trails, vehicles with their headings, their orbit centers
// and the natural orbit around the group center.
func (r *Renderer) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	law := r.sim.Law()

	for _, obj := range r.sim.Objects() {
		c := plotutil.Color(obj.ID())

		trail := r.trail(obj.ID())
		for i := 1; i < len(trail); i++ {
			x0, y0 := r.transform.Apply(trail[i-1])
			x1, y1 := r.transform.Apply(trail[i])
			vector.StrokeLine(screen, x0, y0, x1, y1, 1.5, c, true)
		}

		p := obj.Pose()
		x, y := r.transform.Apply(p.Position)
		hx, hy := r.transform.Apply(p.Position.Add(p.Heading().MultiplyByScalar(headingLength / r.transform.Scale)))
		vector.DrawFilledCircle(screen, x, y, vehicleRadius, c, true)
		vector.StrokeLine(screen, x, y, hx, hy, 2, c, true)

		cx, cy := r.transform.Apply(formation.Center(p, law.Omega0, law.Speed))
		vector.StrokeCircle(screen, cx, cy, 3, 1, centerColor, true)
	}

	group := formation.GroupCenter(formation.Centers(r.sim.Poses(), law.Omega0, law.Speed))
	gx, gy := r.transform.Apply(group)
	vector.StrokeCircle(screen, gx, gy, float32(law.OrbitRadius()*r.transform.Scale), 1, centerColor, true)

	r.drawDebugInfo(screen)
}

func (r *Renderer) drawDebugInfo(screen *ebiten.Image) {
	res := r.sim.Result()
	lines := []string{
		fmt.Sprintf("Time: %.2fs  Tick: %d/%d", r.sim.CurrentTime(), r.sim.Tick(), r.steps),
		fmt.Sprintf("FPS: %.1f, TPS: %.1f", ebiten.ActualFPS(), ebiten.ActualTPS()),
		fmt.Sprintf("Spread: %.4f (initial %.4f)", res.FinalSpread(), res.InitialSpread),
	}
	vehicles := r.sim.Vehicles()
	for _, v := range vehicles {
		phase := common.AngleDiff(v.Pose().Yaw(), vehicles[0].Pose().Yaw())
		lines = append(lines, fmt.Sprintf("  %d %s yaw %.2f phase %+.2f rate %.3f", v.ID(), v.Label(), v.Pose().Yaw(), phase, v.YawRate()))
	}
	if r.done {
		lines = append(lines, "Finished")
	}
	ebitenutil.DebugPrint(screen, strings.Join(lines, "\n"))
}

// Layout is called when the window size changes.
func (r *Renderer) Layout(outsideWidth, outsideHeight int) (int, int) {
	r.screenWidth = outsideWidth
	r.screenHeight = outsideHeight
	return r.screenWidth, r.screenHeight
}
