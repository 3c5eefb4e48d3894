package games

import (
	"math"
	"time"
)

const (
	sliderMinTarget     = 20
	sliderTargetSpread  = 60
	sliderTolerance     = 5.0
	sliderNearPercent   = 5.0
	sliderSuccessDelay  = 600 * time.Millisecond
	sliderBounceRelease = 400 * time.Millisecond
)

// SliderHit reports whether releasing at percent p matches target t.
func SliderHit(t, p float64) bool {
	return math.Abs(p-t) < sliderTolerance
}

// SliderView is drawn by the slider game. Positions are percentages of the
// track width.
type SliderView struct {
	Type     string  `json:"type"` // "slider"
	Target   int     `json:"target"`
	Thumb    float64 `json:"thumb"`
	Dragging bool    `json:"dragging,omitempty"`
	Near     bool    `json:"near,omitempty"`
	Matched  bool    `json:"matched,omitempty"`
	Bounce   bool    `json:"bounce,omitempty"`
}

// Slider asks the player to drop a handle on a randomly placed marker.
type Slider struct {
	base
	target   int
	thumb    float64
	dragging bool
	bounce   bool
}

// NewSlider places its target in [20, 80).
func NewSlider(env Env, onSuccess func()) *Slider {
	return &Slider{
		base:   newBase(env, onSuccess),
		target: sliderMinTarget + pick(env.Rand, sliderTargetSpread),
	}
}

func (g *Slider) Kind() Kind { return KindSlider }

// Target returns the marker position in percent.
func (g *Slider) Target() int { return g.target }

func (g *Slider) Render() {
	g.redraw(false)
}

func (g *Slider) redraw(matched bool) {
	g.show(SliderView{
		Type:     string(KindSlider),
		Target:   g.target,
		Thumb:    g.thumb,
		Dragging: g.dragging,
		Near:     g.dragging && math.Abs(g.thumb-float64(g.target)) < sliderNearPercent,
		Matched:  matched,
		Bounce:   g.bounce,
	})
}

func clampPercent(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

func (g *Slider) Input(in Input) {
	if g.done {
		return
	}

	switch in.Action {
	case "press":
		g.dragging = true
		g.bounce = false
		g.redraw(false)

	case "move":
		if !g.dragging {
			return
		}
		g.thumb = clampPercent(in.X)
		g.redraw(false)

	case "release":
		if !g.dragging {
			return
		}
		g.dragging = false
		g.thumb = clampPercent(in.X)

		if SliderHit(float64(g.target), g.thumb) {
			g.redraw(true)
			g.toast("Perfect match!", "success")
			g.win(sliderSuccessDelay)
			return
		}

		g.thumb = 0
		g.bounce = true
		g.redraw(false)
		g.toast("Missed! Try again", "error")
		g.after(sliderBounceRelease, func() {
			g.bounce = false
		})
	}
}
