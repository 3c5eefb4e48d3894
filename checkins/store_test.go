package checkins

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "sticky.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Migrate(context.Background()); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM b WHERE c = ? AND d = ?`

	if got := rebind(DriverSQLite, q); got != q {
		t.Errorf("expected sqlite query unchanged, got %q", got)
	}

	want := `SELECT a FROM b WHERE c = $1 AND d = $2`
	if got := rebind(DriverPostgres, q); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSubmitOncePerDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.Submit(ctx, CheckIn{UserID: "alice", Day: "2026-03-10", Photo: "data:image/jpeg;base64,AAAA", Game: "math", SeedHash: "abc"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.CheckIn.ID == "" {
		t.Error("expected an id to be assigned")
	}
	if res.CheckIn.Mood != DefaultMood {
		t.Errorf("expected default mood, got %q", res.CheckIn.Mood)
	}
	if res.Summary.Total != 1 || res.Summary.Streak != 1 || !res.Summary.CheckedInToday {
		t.Errorf("unexpected summary %+v", res.Summary)
	}

	_, err = s.Submit(ctx, CheckIn{UserID: "alice", Day: "2026-03-10", Game: "slider"})
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	summary, err := s.Summary(ctx, "alice", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 {
		t.Errorf("expected duplicate to leave total at 1, got %d", summary.Total)
	}

	photo, err := s.Photo(ctx, "alice", "2026-03-10")
	if err != nil || photo != "data:image/jpeg;base64,AAAA" {
		t.Errorf("unexpected photo %q, %v", photo, err)
	}
	if _, err := s.Photo(ctx, "alice", "2026-03-11"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitValidates(t *testing.T) {
	s := newTestStore(t)

	for _, c := range []CheckIn{{Day: "2026-03-10"}, {UserID: "bob", Day: "10/03/2026"}} {
		if _, err := s.Submit(context.Background(), c); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for %+v, got %v", c, err)
		}
	}
}

func TestSummaryStreak(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, day := range []string{"2026-03-01", "2026-03-03", "2026-03-04", "2026-03-05"} {
		if _, err := s.Submit(ctx, CheckIn{UserID: "carol", Day: day}); err != nil {
			t.Fatalf("Submit %s failed: %v", day, err)
		}
	}

	tests := []struct {
		today   string
		streak  int
		checked bool
	}{
		{"2026-03-05", 3, true},
		{"2026-03-06", 3, false},
		{"2026-03-07", 0, false},
	}

	for _, tt := range tests {
		summary, err := s.Summary(ctx, "carol", tt.today)
		if err != nil {
			t.Fatal(err)
		}
		if summary.Streak != tt.streak || summary.CheckedInToday != tt.checked || summary.Total != 4 {
			t.Errorf("%s: unexpected summary %+v", tt.today, summary)
		}
	}

	history, err := s.History(ctx, "carol", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Day != "2026-03-05" || history[1].Day != "2026-03-04" {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestMoodLastsOneDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.SetMood(ctx, "dave", "not-a-mood", "2026-03-10"); !errors.Is(err, ErrInvalidMood) {
		t.Fatalf("expected ErrInvalidMood, got %v", err)
	}

	if err := s.SetMood(ctx, "dave", "🚀", "2026-03-10"); err != nil {
		t.Fatalf("SetMood failed: %v", err)
	}

	res, err := s.Submit(ctx, CheckIn{UserID: "dave", Day: "2026-03-10"})
	if err != nil {
		t.Fatal(err)
	}
	if res.CheckIn.Mood != "🚀" {
		t.Errorf("expected check-in to carry mood, got %q", res.CheckIn.Mood)
	}

	// Changing the mood later the same day rewrites that day's check-in.
	if err := s.SetMood(ctx, "dave", "☕", "2026-03-10"); err != nil {
		t.Fatal(err)
	}
	history, err := s.History(ctx, "dave", 1)
	if err != nil {
		t.Fatal(err)
	}
	if history[0].Mood != "☕" {
		t.Errorf("expected updated check-in mood, got %q", history[0].Mood)
	}

	mood, err := s.Mood(ctx, "dave", "2026-03-11")
	if err != nil {
		t.Fatal(err)
	}
	if mood != DefaultMood {
		t.Errorf("expected mood to reset the next day, got %q", mood)
	}
}

func TestGroupCheckInCountedOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.CreateGroup(ctx, "   ", "erin"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a blank name, got %v", err)
	}

	g, err := s.CreateGroup(ctx, " Night Owls ", "erin")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g.Name != "Night Owls" {
		t.Errorf("expected trimmed name, got %q", g.Name)
	}

	if _, err := s.JoinGroup(ctx, "missing", "frank"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	g, err = s.JoinGroup(ctx, g.ID, "frank")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.JoinGroup(ctx, g.ID, "frank"); err != nil {
		t.Errorf("expected rejoin to succeed, got %v", err)
	}
	if len(g.Members) != 2 {
		t.Fatalf("expected 2 members, got %v", g.Members)
	}

	res, err := s.Submit(ctx, CheckIn{UserID: "erin", Day: "2026-03-10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.GroupsCompleted) != 0 {
		t.Errorf("expected no completed group yet, got %v", res.GroupsCompleted)
	}

	res, err = s.Submit(ctx, CheckIn{UserID: "frank", Day: "2026-03-10"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.GroupsCompleted) != 1 || res.GroupsCompleted[0] != g.ID {
		t.Errorf("expected group %s completed, got %v", g.ID, res.GroupsCompleted)
	}

	// A member joining late and checking in completes the day again, but it
	// is only counted once.
	if _, err := s.JoinGroup(ctx, g.ID, "gina"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ctx, CheckIn{UserID: "gina", Day: "2026-03-10"}); err != nil {
		t.Fatal(err)
	}

	g, err = s.Group(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalGroupCheckIns != 1 {
		t.Errorf("expected 1 group check-in, got %d", g.TotalGroupCheckIns)
	}

	groups, err := s.Groups(ctx, "gina")
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Members) != 3 {
		t.Errorf("unexpected groups %+v", groups)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	plays := []struct{ day, game string }{
		{"2026-03-09", "math"},
		{"2026-03-10", "math"},
		{"2026-03-10", "math"},
		{"2026-03-10", "dodge"},
	}
	for _, p := range plays {
		if err := s.RecordPlay(ctx, p.day, p.game); err != nil {
			t.Fatalf("RecordPlay failed: %v", err)
		}
	}

	stats, err := s.Stats(ctx, "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}

	if stats.Counts["math"] != 2 || stats.Counts["dodge"] != 1 {
		t.Errorf("unexpected daily counts %v", stats.Counts)
	}
	if stats.Global["math"] != 3 || stats.Global["dodge"] != 1 {
		t.Errorf("unexpected global counts %v", stats.Global)
	}
}
