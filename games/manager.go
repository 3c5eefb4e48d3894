package games

// Phase is the part of a challenge currently on screen.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseGame   Phase = "game"
	PhaseCamera Phase = "camera"
	PhaseDone   Phase = "done"
)

// Manager runs one daily challenge: a randomly chosen mini-game followed
// by the camera.
type Manager struct {
	env        Env
	onComplete func(photo string)

	// OnSelect, if set, is told which game was drawn before it renders.
	OnSelect func(kind Kind)

	phase   Phase
	kind    Kind
	current Game
}

// NewManager returns a manager that hands the captured photo to onComplete.
func NewManager(env Env, onComplete func(photo string)) *Manager {
	return &Manager{
		env:        env,
		onComplete: onComplete,
		phase:      PhaseIdle,
	}
}

// Phase returns the phase currently on screen.
func (m *Manager) Phase() Phase { return m.phase }

// Kind returns the game drawn for this challenge.
func (m *Manager) Kind() Kind { return m.kind }

// Current returns the active game, or nil.
func (m *Manager) Current() Game { return m.current }

// StartDailyChallenge draws a game from the pool and renders it. Any game
// already running is torn down first.
func (m *Manager) StartDailyChallenge() Kind {
	m.teardown()

	entry := Pool[pick(m.env.Rand, len(Pool))]
	m.kind = entry.Kind
	m.phase = PhaseGame

	if m.OnSelect != nil {
		m.OnSelect(entry.Kind)
	}

	var game Game
	game = entry.New(m.env, func() {
		if m.current != game {
			return
		}
		m.startCameraPhase()
	})
	m.current = game
	game.Render()

	return entry.Kind
}

func (m *Manager) startCameraPhase() {
	m.teardown()
	m.phase = PhaseCamera

	var camera *Camera
	camera = NewCamera(m.env, func(photo string) {
		if m.current != Game(camera) {
			return
		}
		m.teardown()
		m.phase = PhaseDone
		if m.onComplete != nil {
			m.onComplete(photo)
		}
	})
	m.current = camera
	camera.Render()
}

// Input forwards a player event to the active game.
func (m *Manager) Input(in Input) {
	if m.current != nil {
		m.current.Input(in)
	}
}

// Close tears down whatever is running.
func (m *Manager) Close() {
	m.teardown()
}

func (m *Manager) teardown() {
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
	m.env.Surface.Clear()
}
