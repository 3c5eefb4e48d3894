package games

import "time"

const (
	puzzlePairs         = 4
	puzzleMatchDelay    = 400 * time.Millisecond
	puzzleMismatchDelay = 1000 * time.Millisecond
	puzzleSuccessDelay  = 800 * time.Millisecond
)

var puzzleFaces = [puzzlePairs]string{"🔥", "💀", "🍀", "💎"}

// Board is the state of a memory-matching grid.
type Board struct {
	Values  []string
	open    []bool
	matched []bool
	flipped []int
	Pairs   int
}

// NewBoard lays out every face twice and shuffles the cards.
func NewBoard(r Rand) *Board {
	values := make([]string, 0, 2*puzzlePairs)
	for _, f := range puzzleFaces {
		values = append(values, f, f)
	}

	for i := len(values) - 1; i > 0; i-- {
		j := pick(r, i+1)
		values[i], values[j] = values[j], values[i]
	}

	return &Board{
		Values:  values,
		open:    make([]bool, len(values)),
		matched: make([]bool, len(values)),
	}
}

// Flip turns card i face up. It reports false when the card is out of
// range, already showing, or two cards are already waiting.
func (b *Board) Flip(i int) bool {
	if i < 0 || i >= len(b.Values) || b.open[i] || b.matched[i] || len(b.flipped) >= 2 {
		return false
	}

	b.open[i] = true
	b.flipped = append(b.flipped, i)

	return true
}

// Pending reports whether two cards are face up and waiting to be resolved.
func (b *Board) Pending() bool {
	return len(b.flipped) == 2
}

// Same reports whether the two pending cards show the same face.
func (b *Board) Same() bool {
	return b.Pending() && b.Values[b.flipped[0]] == b.Values[b.flipped[1]]
}

// Resolve locks the pending cards if they match, or turns them back over.
// It reports whether they matched.
func (b *Board) Resolve() bool {
	if !b.Pending() {
		return false
	}

	c1, c2 := b.flipped[0], b.flipped[1]
	b.flipped = b.flipped[:0]

	if b.Values[c1] == b.Values[c2] {
		b.matched[c1], b.matched[c2] = true, true
		b.Pairs++
		return true
	}

	b.open[c1], b.open[c2] = false, false

	return false
}

// Solved reports whether every pair has been found.
func (b *Board) Solved() bool {
	return b.Pairs == puzzlePairs
}

// PuzzleCard is one card as the client sees it. Face is empty while the
// card is hidden.
type PuzzleCard struct {
	Face    string `json:"face,omitempty"`
	Open    bool   `json:"open,omitempty"`
	Matched bool   `json:"matched,omitempty"`
}

// PuzzleView is drawn by the puzzle game.
type PuzzleView struct {
	Type    string       `json:"type"` // "puzzle"
	Cards   []PuzzleCard `json:"cards"`
	Matched int          `json:"matched"`
	Total   int          `json:"total"`
}

// Puzzle is a four-pair memory game.
type Puzzle struct {
	base
	board      *Board
	processing bool
}

// NewPuzzle shuffles a fresh board.
func NewPuzzle(env Env, onSuccess func()) *Puzzle {
	return &Puzzle{
		base:  newBase(env, onSuccess),
		board: NewBoard(env.Rand),
	}
}

func (g *Puzzle) Kind() Kind { return KindPuzzle }

// Board exposes the underlying grid.
func (g *Puzzle) Board() *Board { return g.board }

func (g *Puzzle) Render() {
	g.redraw()
}

func (g *Puzzle) redraw() {
	cards := make([]PuzzleCard, len(g.board.Values))
	for i, v := range g.board.Values {
		c := PuzzleCard{Open: g.board.open[i], Matched: g.board.matched[i]}
		if c.Open || c.Matched {
			c.Face = v
		}
		cards[i] = c
	}

	g.show(PuzzleView{
		Type:    string(KindPuzzle),
		Cards:   cards,
		Matched: g.board.Pairs,
		Total:   puzzlePairs,
	})
}

func (g *Puzzle) Input(in Input) {
	if g.done || g.processing || in.Action != "flip" {
		return
	}

	if !g.board.Flip(in.Index) {
		return
	}
	g.redraw()

	if !g.board.Pending() {
		return
	}

	g.processing = true

	delay := puzzleMismatchDelay
	if g.board.Same() {
		delay = puzzleMatchDelay
	}

	g.after(delay, func() {
		g.board.Resolve()
		g.processing = false
		g.redraw()

		if g.board.Solved() {
			g.toast("Perfect! All pairs matched!", "success")
			g.win(puzzleSuccessDelay)
		}
	})
}
