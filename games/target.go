package games

import (
	"math"
	"time"
)

const (
	targetWidth         = 360
	targetHeight        = 240
	targetGoal          = 5
	targetSpeed         = 0.6
	targetMargin        = 60
	targetRadius        = 23
	targetHitSlack      = 24
	targetFrameInterval = 33 * time.Millisecond
	targetPopDelay      = 200 * time.Millisecond
	targetRespawnDelay  = 150 * time.Millisecond
	targetSuccessDelay  = 500 * time.Millisecond
)

// Dot is the moving target.
type Dot struct {
	X, Y   float64
	VX, VY float64
}

// NewDot places a dot at least margin away from the edges of a w×h arena,
// moving at speed in a random direction.
func NewDot(r Rand, w, h, margin, speed float64) Dot {
	angle := r.Float64() * 2 * math.Pi

	return Dot{
		X:  between(r, margin, w-margin),
		Y:  between(r, margin, h-margin),
		VX: math.Cos(angle) * speed,
		VY: math.Sin(angle) * speed,
	}
}

// Step moves the dot by dt frames and reflects it off any wall it has
// crossed. Reflection flips the axis velocity and leaves the position
// alone.
func (d *Dot) Step(dt, w, h, r float64) {
	d.X += d.VX * dt
	d.Y += d.VY * dt

	if d.X < r || d.X > w-r {
		d.VX = -d.VX
	}
	if d.Y < r || d.Y > h-r {
		d.VY = -d.VY
	}
}

// Contains reports whether (x, y) lands on the dot, allowing slack pixels
// for the distance the dot travels while a click is in flight.
func (d Dot) Contains(x, y, radius, slack float64) bool {
	return math.Hypot(x-d.X, y-d.Y) <= radius+slack
}

// TargetView is drawn by the target game on every frame.
type TargetView struct {
	Type    string  `json:"type"` // "target"
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Radius  int     `json:"radius"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
	Hits    int     `json:"hits"`
	Goal    int     `json:"goal"`
}

// Target asks the player to click a bouncing dot.
type Target struct {
	base
	dot     Dot
	hits    int
	playing bool
	visible bool
	last    time.Time
}

// NewTarget returns a game whose first dot appears on Render.
func NewTarget(env Env, onSuccess func()) *Target {
	return &Target{
		base:    newBase(env, onSuccess),
		playing: true,
	}
}

func (g *Target) Kind() Kind { return KindTarget }

// Dot returns the current dot.
func (g *Target) Dot() Dot { return g.dot }

// Hits returns the number of hits so far.
func (g *Target) Hits() int { return g.hits }

func (g *Target) Render() {
	g.spawn()
	g.after(targetFrameInterval, g.frame)
}

func (g *Target) spawn() {
	g.dot = NewDot(g.env.Rand, targetWidth, targetHeight, targetMargin, targetSpeed)
	g.visible = true
	g.last = g.env.Scheduler.Now()
	g.redraw()
}

func (g *Target) frame() {
	if !g.playing {
		return
	}

	now := g.env.Scheduler.Now()
	if g.visible {
		g.dot.Step(frames(now.Sub(g.last)), targetWidth, targetHeight, targetRadius)
		g.redraw()
	}
	g.last = now

	g.after(targetFrameInterval, g.frame)
}

func (g *Target) redraw() {
	g.show(TargetView{
		Type:    string(KindTarget),
		Width:   targetWidth,
		Height:  targetHeight,
		Radius:  targetRadius,
		X:       g.dot.X,
		Y:       g.dot.Y,
		Visible: g.visible,
		Hits:    g.hits,
		Goal:    targetGoal,
	})
}

func (g *Target) Input(in Input) {
	if !g.playing || !g.visible || in.Action != "hit" {
		return
	}
	if !g.dot.Contains(in.X, in.Y, targetRadius, targetHitSlack) {
		return
	}

	g.hits++
	g.visible = false
	g.redraw()

	g.after(targetPopDelay, func() {
		if g.hits >= targetGoal {
			g.playing = false
			g.toast("PASS", "success")
			g.win(targetSuccessDelay)
			return
		}

		g.after(targetRespawnDelay, g.spawn)
	})
}
