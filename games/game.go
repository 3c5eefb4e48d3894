/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package games implements the daily check-in challenge: a pool of small
// mini-games, one of which must be won before a photo is captured.
//
// Games never touch a network connection or a timer directly. They draw
// views onto a Surface, schedule work through a Scheduler and draw random
// numbers from a Rand. All three are provided by the caller, which is
// expected to invoke every game method and every scheduled callback from a
// single goroutine.
package games

import (
	"time"
)

// Kind identifies a game in the pool.
type Kind string

const (
	KindMath     Kind = "math"
	KindSlider   Kind = "slider"
	KindPuzzle   Kind = "puzzle"
	KindConnect  Kind = "connect"
	KindDodge    Kind = "dodge"
	KindReaction Kind = "reaction"
	KindTarget   Kind = "target"
	KindCamera   Kind = "camera"
)

// Surface is where a game draws itself. It stands in for the page element
// the challenge is mounted on.
type Surface interface {
	// Clear removes everything currently shown.
	Clear()
	// Show replaces the current view.
	Show(view any)
	// Toast shows a short notice; level is "info", "success" or "error".
	Toast(msg, level string)
}

// Scheduler runs callbacks after a delay on the same goroutine that drives
// the game.
type Scheduler interface {
	Now() time.Time
	// After schedules f to run once d has elapsed. The returned function
	// cancels it; calling it after f has run is a no-op.
	After(d time.Duration, f func()) (cancel func())
}

// Rand is the random source a challenge draws from.
type Rand interface {
	// Float64 returns a number in [0, 1).
	Float64() float64
}

// Env bundles what every game is built against.
type Env struct {
	Surface   Surface
	Scheduler Scheduler
	Rand      Rand
	// MaxPhotoSize bounds the size in bytes of an uploaded camera frame.
	// Zero means DefaultMaxPhotoSize.
	MaxPhotoSize int
}

// Input is a single player event forwarded from the client.
type Input struct {
	Action string  `json:"action"`
	Value  string  `json:"value,omitempty"`
	Key    string  `json:"key,omitempty"`
	Index  int     `json:"index,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	// ElapsedMs is a client-side measurement, used only where the server
	// can bound it.
	ElapsedMs float64 `json:"elapsed_ms,omitempty"`
	Photo     string  `json:"photo,omitempty"`
}

// Game is the capability every mini-game provides.
type Game interface {
	Kind() Kind
	// Render draws the initial view and starts any loops or timers.
	Render()
	// Input handles a player event. Events the game does not expect, or
	// that arrive after it has finished, are ignored.
	Input(in Input)
	// Close cancels everything the game has scheduled. It is safe to
	// call more than once.
	Close()
}

// Entry is one slot of the game pool.
type Entry struct {
	Kind Kind
	New  func(env Env, onSuccess func()) Game
}

// Pool lists the games a daily challenge can pick from.
var Pool = []Entry{
	{Kind: KindMath, New: func(env Env, onSuccess func()) Game { return NewMath(env, onSuccess) }},
	{Kind: KindSlider, New: func(env Env, onSuccess func()) Game { return NewSlider(env, onSuccess) }},
	{Kind: KindPuzzle, New: func(env Env, onSuccess func()) Game { return NewPuzzle(env, onSuccess) }},
	{Kind: KindConnect, New: func(env Env, onSuccess func()) Game { return NewConnect(env, onSuccess) }},
	{Kind: KindDodge, New: func(env Env, onSuccess func()) Game { return NewDodge(env, onSuccess) }},
	{Kind: KindReaction, New: func(env Env, onSuccess func()) Game { return NewReaction(env, onSuccess) }},
	{Kind: KindTarget, New: func(env Env, onSuccess func()) Game { return NewTarget(env, onSuccess) }},
}

// Lookup returns the pool entry for kind.
func Lookup(kind Kind) (Entry, bool) {
	for _, e := range Pool {
		if e.Kind == kind {
			return e, true
		}
	}

	return Entry{}, false
}

// Kinds returns the kinds in the pool, in pool order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(Pool))
	for _, e := range Pool {
		kinds = append(kinds, e.Kind)
	}

	return kinds
}

// pick maps a draw in [0, 1) onto an index in [0, n).
func pick(r Rand, n int) int {
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}

	return i
}

// between returns a draw in [lo, hi).
func between(r Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// frameUnit is the frame length the per-frame speeds are expressed in.
const frameUnit = 1000.0 / 60.0

// frames converts an elapsed duration into frame units.
func frames(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond) / frameUnit
}

// base holds what every game shares: its environment, the success
// callback, the completion flag and the timers it has outstanding.
type base struct {
	env       Env
	onSuccess func()
	done      bool
	succeeded bool
	timers    map[int]func()
	nextTimer int
}

func newBase(env Env, onSuccess func()) base {
	return base{
		env:       env,
		onSuccess: onSuccess,
		timers:    make(map[int]func()),
	}
}

// after schedules f and keeps its cancel handle until it fires.
func (b *base) after(d time.Duration, f func()) {
	id := b.nextTimer
	b.nextTimer++

	b.timers[id] = b.env.Scheduler.After(d, func() {
		delete(b.timers, id)
		f()
	})
}

// win marks the game finished and fires the success callback once delay
// has passed. Later calls do nothing.
func (b *base) win(delay time.Duration) {
	if b.done {
		return
	}
	b.done = true

	b.after(delay, func() {
		if b.succeeded {
			return
		}
		b.succeeded = true
		if b.onSuccess != nil {
			b.onSuccess()
		}
	})
}

// Close cancels all outstanding timers.
func (b *base) Close() {
	for id, cancel := range b.timers {
		cancel()
		delete(b.timers, id)
	}
}

func (b *base) show(view any) {
	b.env.Surface.Show(view)
}

func (b *base) toast(msg, level string) {
	b.env.Surface.Toast(msg, level)
}
