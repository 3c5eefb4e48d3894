package games

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sort"
	"testing"
	"time"
)

type fakeTimer struct {
	id        int
	at        time.Time
	f         func()
	fired     bool
	cancelled bool
}

// fakeScheduler runs callbacks only when the test advances its clock.
type fakeScheduler struct {
	now    time.Time
	nextID int
	timers []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) Now() time.Time { return s.now }

func (s *fakeScheduler) After(d time.Duration, f func()) func() {
	t := &fakeTimer{id: s.nextID, at: s.now.Add(d), f: f}
	s.nextID++
	s.timers = append(s.timers, t)

	return func() { t.cancelled = true }
}

// Advance moves the clock forward by d, firing due timers in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	end := s.now.Add(d)

	for {
		due := s.due(end)
		if due == nil {
			break
		}
		s.now = due.at
		due.fired = true
		due.f()
	}

	s.now = end
}

func (s *fakeScheduler) due(end time.Time) *fakeTimer {
	var live []*fakeTimer
	for _, t := range s.timers {
		if !t.fired && !t.cancelled && !t.at.After(end) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}

	sort.Slice(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].id < live[j].id
		}
		return live[i].at.Before(live[j].at)
	})

	return live[0]
}

// Pending counts timers that are neither fired nor cancelled.
func (s *fakeScheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.cancelled {
			n++
		}
	}

	return n
}

type fakeSurface struct {
	views  []any
	toasts []string
	clears int
}

func (s *fakeSurface) Clear()                  { s.clears++ }
func (s *fakeSurface) Show(view any)           { s.views = append(s.views, view) }
func (s *fakeSurface) Toast(msg, level string) { s.toasts = append(s.toasts, level+":"+msg) }

func (s *fakeSurface) last() any {
	if len(s.views) == 0 {
		return nil
	}

	return s.views[len(s.views)-1]
}

func (s *fakeSurface) lastToast() string {
	if len(s.toasts) == 0 {
		return ""
	}

	return s.toasts[len(s.toasts)-1]
}

// fixedRand cycles through vals.
type fixedRand struct {
	vals []float64
	i    int
}

func (r *fixedRand) Float64() float64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++

	return v
}

type harness struct {
	env       Env
	surface   *fakeSurface
	scheduler *fakeScheduler
	successes int
}

func newHarness(r Rand) *harness {
	h := &harness{
		surface:   &fakeSurface{},
		scheduler: newFakeScheduler(),
	}
	h.env = Env{Surface: h.surface, Scheduler: h.scheduler, Rand: r}

	return h
}

func (h *harness) onSuccess() { h.successes++ }

func testSeeds(nonce uint64) Seeds {
	return Seeds{Server: "test_server", Client: "test_client", Nonce: nonce}
}

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// hugePNGDataURI encodes a blank grayscale image, which compresses to a
// payload far smaller than its pixel count.
func hugePNGDataURI(t *testing.T, w, h int) string {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if buf.Len() > DefaultMaxPhotoSize {
		t.Fatalf("expected a small payload, got %d bytes", buf.Len())
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
