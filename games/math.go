package games

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const mathSuccessDelay = 500 * time.Millisecond

// Question is a single arithmetic problem.
type Question struct {
	A, B   int
	Op     string
	Answer int
}

// String renders the question as shown to the player.
func (q Question) String() string {
	return fmt.Sprintf("%d %s %d = ?", q.A, q.Op, q.B)
}

// Check reports whether answer solves q.
func (q Question) Check(answer int) bool {
	return answer == q.Answer
}

// NewQuestion draws two operands in [1, 9] and either adds or multiplies
// them.
func NewQuestion(r Rand) Question {
	a := pick(r, 9) + 1
	b := pick(r, 9) + 1

	if r.Float64() > 0.5 {
		return Question{A: a, B: b, Op: "+", Answer: a + b}
	}

	return Question{A: a, B: b, Op: "×", Answer: a * b}
}

// MathView is drawn by the math game.
type MathView struct {
	Type     string `json:"type"` // "math"
	Question string `json:"question"`
	Correct  bool   `json:"correct,omitempty"`
	Shake    bool   `json:"shake,omitempty"`
}

// Math asks the player to solve one question.
type Math struct {
	base
	q Question
}

// NewMath draws its question immediately.
func NewMath(env Env, onSuccess func()) *Math {
	return &Math{
		base: newBase(env, onSuccess),
		q:    NewQuestion(env.Rand),
	}
}

func (g *Math) Kind() Kind { return KindMath }

// Question returns the question being asked.
func (g *Math) Question() Question { return g.q }

func (g *Math) Render() {
	g.show(MathView{Type: string(KindMath), Question: g.q.String()})
}

func (g *Math) Input(in Input) {
	if g.done || in.Action != "submit" {
		return
	}

	answer, err := strconv.Atoi(strings.TrimSpace(in.Value))
	if err != nil {
		g.toast("Please enter a number", "error")
		return
	}

	if !g.q.Check(answer) {
		g.show(MathView{Type: string(KindMath), Question: g.q.String(), Shake: true})
		g.toast("Wrong answer, try again!", "error")
		return
	}

	g.show(MathView{Type: string(KindMath), Question: g.q.String(), Correct: true})
	g.win(mathSuccessDelay)
}
