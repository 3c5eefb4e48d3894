package games

import (
	"math"
	"time"
)

const (
	connectDots         = 5
	connectWidth        = 320
	connectHeight       = 240
	connectDotRadius    = 12
	connectEdgePadding  = 5
	connectEdgeMargin   = connectDotRadius + connectEdgePadding
	connectMinDistance  = 60
	connectMaxAttempts  = 500
	connectSuccessDelay = 800 * time.Millisecond
)

// Point is a position in arena pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlaceDots picks n dot centres inside a w×h arena, keeping them off the
// edges and apart from each other. When no clear spot turns up the
// required distance is relaxed, and after the last attempt the final
// sample is used anyway.
func PlaceDots(r Rand, w, h float64, n int) []Point {
	positions := make([]Point, 0, n)

	for len(positions) < n {
		var p Point
		minDist := float64(connectMinDistance)

		for attempt := 1; attempt <= connectMaxAttempts; attempt++ {
			p = Point{
				X: between(r, connectEdgeMargin, w-connectEdgeMargin),
				Y: between(r, connectEdgeMargin, h-connectEdgeMargin),
			}

			if clearOf(p, positions, minDist) {
				break
			}

			if attempt > connectMaxAttempts/2 {
				minDist = math.Max(connectDotRadius*2.5, minDist*0.9)
			}
		}

		positions = append(positions, p)
	}

	return positions
}

func clearOf(p Point, others []Point, minDist float64) bool {
	for _, o := range others {
		if math.Hypot(p.X-o.X, p.Y-o.Y) < minDist {
			return false
		}
	}

	return true
}

// ConnectDot is one dot as the client sees it.
type ConnectDot struct {
	Point
	Done bool `json:"done,omitempty"`
}

// ConnectView is drawn by the connect game.
type ConnectView struct {
	Type   string       `json:"type"` // "connect"
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Radius int          `json:"radius"`
	Dots   []ConnectDot `json:"dots"`
	Filled int          `json:"filled"`
	Total  int          `json:"total"`
}

// Connect asks the player to click every dot.
type Connect struct {
	base
	dots      []ConnectDot
	connected int
}

// NewConnect returns a game with no dots; they are placed on Render.
func NewConnect(env Env, onSuccess func()) *Connect {
	return &Connect{base: newBase(env, onSuccess)}
}

func (g *Connect) Kind() Kind { return KindConnect }

// Dots returns the current dots.
func (g *Connect) Dots() []ConnectDot { return g.dots }

func (g *Connect) Render() {
	g.dots = g.dots[:0]
	g.connected = 0

	for _, p := range PlaceDots(g.env.Rand, connectWidth, connectHeight, connectDots) {
		g.dots = append(g.dots, ConnectDot{Point: p})
	}

	g.redraw()
}

func (g *Connect) redraw() {
	dots := make([]ConnectDot, len(g.dots))
	copy(dots, g.dots)

	g.show(ConnectView{
		Type:   string(KindConnect),
		Width:  connectWidth,
		Height: connectHeight,
		Radius: connectDotRadius,
		Dots:   dots,
		Filled: g.connected,
		Total:  connectDots,
	})
}

func (g *Connect) Input(in Input) {
	if g.done || in.Action != "click" {
		return
	}
	if in.Index < 0 || in.Index >= len(g.dots) || g.dots[in.Index].Done {
		return
	}

	g.dots[in.Index].Done = true
	g.connected++
	g.redraw()

	if g.connected == connectDots {
		g.toast("Perfect! All dots connected!", "success")
		g.win(connectSuccessDelay)
	}
}
