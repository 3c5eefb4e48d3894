package games

import (
	"math"
	"testing"
	"time"
)

func TestPlaceDots(t *testing.T) {
	for nonce := uint64(0); nonce < 25; nonce++ {
		dots := PlaceDots(NewStream(testSeeds(nonce)), connectWidth, connectHeight, connectDots)

		if len(dots) != connectDots {
			t.Fatalf("expected %d dots, got %d", connectDots, len(dots))
		}

		for i, p := range dots {
			if p.X < connectEdgeMargin || p.X > connectWidth-connectEdgeMargin ||
				p.Y < connectEdgeMargin || p.Y > connectHeight-connectEdgeMargin {
				t.Errorf("dot %d at %+v is too close to an edge", i, p)
			}

			for j := i + 1; j < len(dots); j++ {
				if d := math.Hypot(p.X-dots[j].X, p.Y-dots[j].Y); d < connectDotRadius*2.5 {
					t.Errorf("dots %d and %d only %.1fpx apart", i, j, d)
				}
			}
		}
	}
}

func TestPlaceDotsCrowdedArena(t *testing.T) {
	// Nothing fits at the requested spacing; placement still terminates.
	dots := PlaceDots(NewStream(testSeeds(1)), 40, 40, connectDots)
	if len(dots) != connectDots {
		t.Fatalf("expected %d dots, got %d", connectDots, len(dots))
	}
}

func TestConnectCountsEachDotOnce(t *testing.T) {
	h := newHarness(NewStream(testSeeds(4)))
	g := NewConnect(h.env, h.onSuccess)
	g.Render()

	if len(g.Dots()) != connectDots {
		t.Fatalf("expected %d dots, got %d", connectDots, len(g.Dots()))
	}

	for i := 0; i < 4; i++ {
		g.Input(Input{Action: "click", Index: i})
		g.Input(Input{Action: "click", Index: i})
	}
	g.Input(Input{Action: "click", Index: 99})

	if v := h.surface.last().(ConnectView); v.Filled != 4 {
		t.Fatalf("expected 4 filled dots, got %d", v.Filled)
	}

	h.scheduler.Advance(time.Second)
	if h.successes != 0 {
		t.Fatal("expected no success with a dot left")
	}

	g.Input(Input{Action: "click", Index: 4})
	h.scheduler.Advance(connectSuccessDelay - time.Millisecond)
	if h.successes != 0 {
		t.Fatal("success fired early")
	}
	h.scheduler.Advance(time.Millisecond)

	g.Input(Input{Action: "click", Index: 4})
	h.scheduler.Advance(time.Second)
	if h.successes != 1 {
		t.Errorf("expected 1 success, got %d", h.successes)
	}
}
