package games

import (
	"fmt"
	"math"
	"time"
)

const (
	reactionWinGood      = 2
	reactionGoodMs       = 700
	reactionDelayMin     = 1500 * time.Millisecond
	reactionDelayMax     = 3500 * time.Millisecond
	reactionSuccessDelay = 1000 * time.Millisecond
)

var reactionPrompts = []string{"CLICK", "TAP"}

// ReactionMode is the state of the reaction pad.
type ReactionMode string

const (
	ReactionIdle    ReactionMode = "idle"
	ReactionWaiting ReactionMode = "waiting"
	ReactionShow    ReactionMode = "show"
	ReactionDone    ReactionMode = "done"
)

// ReactionTime picks the reaction time to score. The client's own
// measurement is preferred since it excludes network delay, but it is only
// trusted when it is positive and no longer than what the server observed.
func ReactionTime(serverMs, clientMs float64) float64 {
	if clientMs > 0 && clientMs <= serverMs {
		return clientMs
	}

	return serverMs
}

// ReactionView is drawn by the reaction game.
type ReactionView struct {
	Type   string       `json:"type"` // "reaction"
	Mode   ReactionMode `json:"mode"`
	State  string       `json:"state"`
	Hint   string       `json:"hint"`
	Round  int          `json:"round"`
	Rounds int          `json:"rounds"`
	Good   int          `json:"good"`
	Last   string       `json:"last"`
}

// Reaction is a two-round reflex test.
type Reaction struct {
	base
	mode    ReactionMode
	shownAt time.Time
	round   int
	good    int
	last    string
	cancel  func()
}

// NewReaction returns an idle pad.
func NewReaction(env Env, onSuccess func()) *Reaction {
	return &Reaction{
		base: newBase(env, onSuccess),
		mode: ReactionIdle,
	}
}

func (g *Reaction) Kind() Kind { return KindReaction }

// Mode returns the current pad state.
func (g *Reaction) Mode() ReactionMode { return g.mode }

// Good returns how many good reactions have been recorded.
func (g *Reaction) Good() int { return g.good }

func (g *Reaction) Render() {
	g.redraw("CLICK TO START", "Wait... then click when the word appears. Don't click early.")
}

func (g *Reaction) redraw(state, hint string) {
	g.show(ReactionView{
		Type:   string(KindReaction),
		Mode:   g.mode,
		State:  state,
		Hint:   hint,
		Round:  min(g.round+1, len(reactionPrompts)),
		Rounds: len(reactionPrompts),
		Good:   g.good,
		Last:   g.last,
	})
}

func (g *Reaction) stopTimer() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
}

func (g *Reaction) startRound() {
	g.stopTimer()
	g.mode = ReactionWaiting
	g.redraw("WAIT...", fmt.Sprintf("Round %d: wait for %q.", g.round+1, reactionPrompts[g.round]))

	delay := time.Duration(between(g.env.Rand, float64(reactionDelayMin), float64(reactionDelayMax)))
	g.cancel = g.env.Scheduler.After(delay, func() {
		g.cancel = nil
		g.mode = ReactionShow
		g.shownAt = g.env.Scheduler.Now()
		g.redraw(reactionPrompts[g.round], "NOW CLICK!")
	})
}

func (g *Reaction) Input(in Input) {
	if in.Action != "click" {
		return
	}

	switch g.mode {
	case ReactionIdle:
		g.startRound()

	case ReactionWaiting:
		g.stopTimer()
		g.mode = ReactionIdle
		g.last = "early"
		g.redraw("TOO EARLY", "Click to try the round again.")

	case ReactionShow:
		serverMs := float64(g.env.Scheduler.Now().Sub(g.shownAt)) / float64(time.Millisecond)
		ms := math.Round(ReactionTime(serverMs, in.ElapsedMs))
		g.last = fmt.Sprintf("%.0fms", ms)

		if ms > reactionGoodMs {
			g.mode = ReactionIdle
			g.redraw("SLOW", fmt.Sprintf("Try again. Need under %dms. Click to retry Round %d.", reactionGoodMs, g.round+1))
			return
		}

		g.good++
		g.round++

		if g.good >= reactionWinGood || g.round >= len(reactionPrompts) {
			g.finish()
			return
		}

		g.mode = ReactionIdle
		g.redraw("NICE", fmt.Sprintf("Good! Click to start Round %d.", g.round+1))
	}
}

func (g *Reaction) finish() {
	g.mode = ReactionDone
	g.stopTimer()
	g.redraw("PASS ✓", fmt.Sprintf("%d good reactions under %dms.", reactionWinGood, reactionGoodMs))
	g.toast("Perfect reaction time!", "success")
	g.win(reactionSuccessDelay)
}

// Close also cancels a pending prompt.
func (g *Reaction) Close() {
	g.stopTimer()
	g.base.Close()
}
