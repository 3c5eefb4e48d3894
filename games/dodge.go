package games

import (
	"math"
	"strings"
	"time"
)

const (
	dodgeWidth         = 320
	dodgeHeight        = 400
	dodgeCatchGoal     = 10
	dodgePlayerW       = 46
	dodgePlayerH       = 14
	dodgePlayerYPad    = 20
	dodgePlayerSpeed   = 5.2
	dodgeBlockSize     = 26
	dodgeBlockSpeed    = 1.1 * 3.1
	dodgeSpawnEveryMs  = 650
	dodgeFrameInterval = 33 * time.Millisecond
	dodgeSuccessDelay  = 800 * time.Millisecond
)

// Rect is an axis-aligned box.
type Rect struct {
	X, Y, W, H float64
}

// Overlaps reports whether r and o intersect with positive area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Block is a falling block.
type Block struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (b Block) rect() Rect {
	return Rect{X: b.X, Y: b.Y, W: dodgeBlockSize, H: dodgeBlockSize}
}

// DodgeSim is the catch-the-blocks simulation, independent of any
// presentation.
type DodgeSim struct {
	Width, Height float64
	PlayerX       float64
	MoveDir       int
	Dragging      bool
	Blocks        []Block
	Caught        int
	Playing       bool

	spawnMs float64
	nextID  int
	rand    Rand
}

// NewDodgeSim centres the paddle in a w×h arena and starts playing.
func NewDodgeSim(r Rand, w, h float64) *DodgeSim {
	s := &DodgeSim{Width: w, Height: h, Playing: true, rand: r}
	s.SetPlayerX(w / 2)

	return s
}

// SetPlayerX moves the paddle centre, keeping the paddle inside the arena.
func (s *DodgeSim) SetPlayerX(x float64) {
	s.PlayerX = math.Max(dodgePlayerW/2, math.Min(s.Width-dodgePlayerW/2, x))
}

// Paddle returns the paddle's bounding box.
func (s *DodgeSim) Paddle() Rect {
	return Rect{
		X: s.PlayerX - dodgePlayerW/2,
		Y: s.Height - dodgePlayerYPad - dodgePlayerH,
		W: dodgePlayerW,
		H: dodgePlayerH,
	}
}

// Spawn drops a new block just above the arena at a random column.
func (s *DodgeSim) Spawn() {
	s.Blocks = append(s.Blocks, Block{
		ID: s.nextID,
		X:  s.rand.Float64() * (s.Width - dodgeBlockSize),
		Y:  -dodgeBlockSize - 6,
	})
	s.nextID++
}

// Step advances the simulation by d and returns how many blocks were caught
// during it.
func (s *DodgeSim) Step(d time.Duration) int {
	if !s.Playing {
		return 0
	}

	dt := frames(d)

	if !s.Dragging {
		s.SetPlayerX(s.PlayerX + float64(s.MoveDir)*dodgePlayerSpeed*dt)
	}

	s.spawnMs += float64(d) / float64(time.Millisecond)
	for s.spawnMs >= dodgeSpawnEveryMs {
		s.spawnMs -= dodgeSpawnEveryMs
		s.Spawn()
	}

	kept := s.Blocks[:0]
	for _, b := range s.Blocks {
		b.Y += dodgeBlockSpeed * dt
		if b.Y > s.Height+dodgeBlockSize+20 {
			continue
		}
		kept = append(kept, b)
	}
	s.Blocks = kept

	return s.Catch()
}

// Catch removes every block overlapping the paddle and counts it. Reaching
// the goal stops the simulation.
func (s *DodgeSim) Catch() int {
	paddle := s.Paddle()
	caught := 0

	kept := s.Blocks[:0]
	for _, b := range s.Blocks {
		if b.rect().Overlaps(paddle) {
			caught++
			continue
		}
		kept = append(kept, b)
	}
	s.Blocks = kept

	s.Caught += caught
	if s.Caught >= dodgeCatchGoal {
		s.Playing = false
	}

	return caught
}

// DodgeView is drawn by the dodge game on every frame.
type DodgeView struct {
	Type    string  `json:"type"` // "dodge"
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	PlayerX float64 `json:"player_x"` // paddle centre
	PlayerY float64 `json:"player_y"`
	PlayerW int     `json:"player_w"`
	PlayerH int     `json:"player_h"`
	Block   int     `json:"block"`
	Blocks  []Block `json:"blocks"`
	Caught  int     `json:"caught"`
	Goal    int     `json:"goal"`
}

// Dodge asks the player to catch falling blocks with a paddle.
type Dodge struct {
	base
	sim  *DodgeSim
	last time.Time
}

// NewDodge builds the simulation; it starts moving on Render.
func NewDodge(env Env, onSuccess func()) *Dodge {
	return &Dodge{
		base: newBase(env, onSuccess),
		sim:  NewDodgeSim(env.Rand, dodgeWidth, dodgeHeight),
	}
}

func (g *Dodge) Kind() Kind { return KindDodge }

// Sim exposes the simulation state.
func (g *Dodge) Sim() *DodgeSim { return g.sim }

func (g *Dodge) Render() {
	g.last = g.env.Scheduler.Now()
	g.redraw()
	g.after(dodgeFrameInterval, g.frame)
}

func (g *Dodge) frame() {
	if !g.sim.Playing {
		return
	}

	now := g.env.Scheduler.Now()
	g.sim.Step(now.Sub(g.last))
	g.last = now
	g.redraw()

	if !g.sim.Playing {
		g.toast("Perfect! All blocks caught!", "success")
		g.win(dodgeSuccessDelay)
		return
	}

	g.after(dodgeFrameInterval, g.frame)
}

func (g *Dodge) redraw() {
	blocks := make([]Block, len(g.sim.Blocks))
	copy(blocks, g.sim.Blocks)

	paddle := g.sim.Paddle()
	g.show(DodgeView{
		Type:    string(KindDodge),
		Width:   dodgeWidth,
		Height:  dodgeHeight,
		PlayerX: g.sim.PlayerX,
		PlayerY: paddle.Y,
		PlayerW: dodgePlayerW,
		PlayerH: dodgePlayerH,
		Block:   dodgeBlockSize,
		Blocks:  blocks,
		Caught:  g.sim.Caught,
		Goal:    dodgeCatchGoal,
	})
}

func keyDir(key string) int {
	switch strings.ToLower(key) {
	case "arrowleft", "a":
		return -1
	case "arrowright", "d":
		return 1
	}

	return 0
}

func (g *Dodge) Input(in Input) {
	if g.done || !g.sim.Playing {
		return
	}

	switch in.Action {
	case "key_down":
		if dir := keyDir(in.Key); dir != 0 {
			g.sim.MoveDir = dir
		}

	case "key_up":
		if dir := keyDir(in.Key); dir != 0 && g.sim.MoveDir == dir {
			g.sim.MoveDir = 0
		}

	case "drag_start":
		g.sim.Dragging = true
		g.sim.SetPlayerX(in.X)

	case "drag_move":
		if g.sim.Dragging {
			g.sim.SetPlayerX(in.X)
		}

	case "drag_end":
		g.sim.Dragging = false
	}
}
