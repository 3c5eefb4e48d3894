/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package checkins

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	maxGroupName = 64
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS check_ins (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		day TEXT NOT NULL,
		photo TEXT NOT NULL DEFAULT '',
		game TEXT NOT NULL DEFAULT '',
		mood TEXT NOT NULL DEFAULT '',
		seed_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (user_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		mood TEXT NOT NULL,
		mood_day TEXT NOT NULL DEFAULT '',
		total_check_ins INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS check_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		total_group_check_ins INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_check_ins (
		group_id TEXT NOT NULL,
		day TEXT NOT NULL,
		PRIMARY KEY (group_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS game_plays (
		day TEXT NOT NULL,
		game TEXT NOT NULL,
		plays INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, game)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_check_ins_day ON check_ins(day)`,
	`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id)`,
}

// Result is what a successful Submit produced.
type Result struct {
	CheckIn         CheckIn  `json:"check_in"`
	Summary         Summary  `json:"summary"`
	GroupsCompleted []string `json:"groups_completed,omitempty"`
}

// Store persists check-ins on SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies migrations. driver is
// DriverSQLite or DriverPostgres; for SQLite dsn is a file path or
// ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, driver: driver}

	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" on a single database.
		db.SetMaxOpenConns(1)

		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
			}
		}
	}

	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Driver returns the database driver in use.
func (s *Store) Driver() string { return s.driver }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders as $n for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

func (s *Store) q(query string) string {
	return rebind(s.driver, query)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) mood(ctx context.Context, db querier, userID, day string) (string, error) {
	var mood, moodDay string

	err := db.QueryRowContext(ctx, s.q(`SELECT mood, mood_day FROM profiles WHERE user_id = ?`), userID).Scan(&mood, &moodDay)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return DefaultMood, nil
	case err != nil:
		return "", fmt.Errorf("failed to read mood: %w", err)
	}

	// Moods only last for the day they were picked on.
	if moodDay != day || mood == "" {
		return DefaultMood, nil
	}

	return mood, nil
}

// Submit records a check-in for c.UserID on c.Day, stamped with the
// player's mood for that day. A second check-in on the same day fails with
// ErrAlreadyCheckedIn. Groups whose every member has now checked in for
// the day are credited once.
func (s *Store) Submit(ctx context.Context, c CheckIn) (*Result, error) {
	if c.UserID == "" || !ValidDay(c.Day) {
		return nil, ErrInvalidInput
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin check-in: %w", err)
	}
	defer tx.Rollback()

	c.Mood, err = s.mood(ctx, tx, c.UserID, c.Day)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO check_ins (id, user_id, day, photo, game, mood, seed_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, day) DO NOTHING`),
		c.ID, c.UserID, c.Day, c.Photo, c.Game, c.Mood, c.SeedHash, c.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to save check-in: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to save check-in: %w", err)
	} else if n == 0 {
		return nil, ErrAlreadyCheckedIn
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO profiles (user_id, mood, mood_day, total_check_ins)
		VALUES (?, ?, '', 1)
		ON CONFLICT (user_id) DO UPDATE SET total_check_ins = profiles.total_check_ins + 1`),
		c.UserID, DefaultMood); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	groups, err := s.completeGroups(ctx, tx, c.UserID, c.Day)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit check-in: %w", err)
	}

	summary, err := s.Summary(ctx, c.UserID, c.Day)
	if err != nil {
		return nil, err
	}

	return &Result{CheckIn: c, Summary: *summary, GroupsCompleted: groups}, nil
}

func (s *Store) completeGroups(ctx context.Context, tx *sql.Tx, userID, day string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, s.q(`SELECT group_id FROM group_members WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var completed []string
	for _, id := range ids {
		var members, done int
		err := tx.QueryRowContext(ctx, s.q(`
			SELECT COUNT(*), COUNT(c.user_id)
			FROM group_members m
			LEFT JOIN check_ins c ON c.user_id = m.user_id AND c.day = ?
			WHERE m.group_id = ?`), day, id).Scan(&members, &done)
		if err != nil {
			return nil, fmt.Errorf("failed to count group %s: %w", id, err)
		}
		if members == 0 || done < members {
			continue
		}

		res, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO group_check_ins (group_id, day) VALUES (?, ?)
			ON CONFLICT (group_id, day) DO NOTHING`), id, day)
		if err != nil {
			return nil, fmt.Errorf("failed to record group check-in: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx, s.q(`
			UPDATE check_groups SET total_group_check_ins = total_group_check_ins + 1
			WHERE id = ?`), id); err != nil {
			return nil, fmt.Errorf("failed to update group %s: %w", id, err)
		}

		completed = append(completed, id)
	}

	return completed, nil
}

// CheckedIn reports whether userID has checked in on day.
func (s *Store) CheckedIn(ctx context.Context, userID, day string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM check_ins WHERE user_id = ? AND day = ?`), userID, day).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to read check-in: %w", err)
	}

	return n > 0, nil
}

// Summary returns the streak, total and mood of userID as of today.
func (s *Store) Summary(ctx context.Context, userID, today string) (*Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT day FROM check_ins WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read check-ins: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read check-ins: %w", err)
	}
	rows.Close()

	mood, err := s.mood(ctx, s.db, userID, today)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		UserID: userID,
		Day:    today,
		Streak: Streak(days, today),
		Total:  len(days),
		Mood:   mood,
	}

	for _, d := range days {
		if d == today {
			summary.CheckedInToday = true
			break
		}
	}

	return summary, nil
}

// History lists the check-ins of userID, newest first, without photos.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]CheckIn, error) {
	if limit <= 0 {
		limit = 31
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, day, game, mood, seed_hash, created_at
		FROM check_ins WHERE user_id = ?
		ORDER BY day DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var history []CheckIn
	for rows.Next() {
		var (
			c       CheckIn
			created string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Day, &c.Game, &c.Mood, &c.SeedHash, &created); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		history = append(history, c)
	}

	return history, rows.Err()
}

// Photo returns the photo userID took on day.
func (s *Store) Photo(ctx context.Context, userID, day string) (string, error) {
	var photo string

	err := s.db.QueryRowContext(ctx, s.q(`SELECT photo FROM check_ins WHERE user_id = ? AND day = ?`), userID, day).Scan(&photo)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("failed to read photo: %w", err)
	}

	return photo, nil
}

// Mood returns the mood of userID on day.
func (s *Store) Mood(ctx context.Context, userID, day string) (string, error) {
	return s.mood(ctx, s.db, userID, day)
}

// SetMood picks the mood of userID for day, updating that day's check-in
// if there is one.
func (s *Store) SetMood(ctx context.Context, userID, mood, day string) error {
	if userID == "" || !ValidDay(day) {
		return ErrInvalidInput
	}
	if !ValidMood(mood) {
		return ErrInvalidMood
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mood update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO profiles (user_id, mood, mood_day, total_check_ins)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (user_id) DO UPDATE SET mood = excluded.mood, mood_day = excluded.mood_day`),
		userID, mood, day); err != nil {
		return fmt.Errorf("failed to save mood: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`UPDATE check_ins SET mood = ? WHERE user_id = ? AND day = ?`), mood, userID, day); err != nil {
		return fmt.Errorf("failed to update check-in mood: %w", err)
	}

	return tx.Commit()
}

// RecordPlay counts one draw of game on day.
func (s *Store) RecordPlay(ctx context.Context, day, game string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO game_plays (day, game, plays) VALUES (?, ?, 1)
		ON CONFLICT (day, game) DO UPDATE SET plays = game_plays.plays + 1`), day, game)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}

	return nil
}

// Stats returns the draw counts for day and across all days.
func (s *Store) Stats(ctx context.Context, day string) (*GameStats, error) {
	stats := &GameStats{
		Day:    day,
		Counts: make(map[string]int),
		Global: make(map[string]int),
	}

	if err := s.counts(ctx, stats.Counts, `SELECT game, plays FROM game_plays WHERE day = ?`, day); err != nil {
		return nil, err
	}
	if err := s.counts(ctx, stats.Global, `SELECT game, SUM(plays) FROM game_plays GROUP BY game`); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *Store) counts(ctx context.Context, into map[string]int, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			game  string
			plays int
		)
		if err := rows.Scan(&game, &plays); err != nil {
			return fmt.Errorf("failed to scan stats: %w", err)
		}
		into[game] = plays
	}

	return rows.Err()
}

// CreateGroup makes a group with ownerID as its first member.
func (s *Store) CreateGroup(ctx context.Context, name, ownerID string) (*Group, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxGroupName || ownerID == "" {
		return nil, ErrInvalidInput
	}

	g := &Group{ID: uuid.NewString(), Name: name, OwnerID: ownerID, Members: []string{ownerID}}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin group: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO check_groups (id, name, owner_id, total_group_check_ins, created_at)
		VALUES (?, ?, ?, 0, ?)`), g.ID, g.Name, g.OwnerID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`), g.ID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to add group owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}

	return g, nil
}

// JoinGroup adds userID to a group. Joining twice is not an error.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID string) (*Group, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.Group(ctx, groupID); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO group_members (group_id, user_id) VALUES (?, ?)
		ON CONFLICT (group_id, user_id) DO NOTHING`), groupID, userID); err != nil {
		return nil, fmt.Errorf("failed to join group: %w", err)
	}

	return s.Group(ctx, groupID)
}

// Group returns a group and its members.
func (s *Store) Group(ctx context.Context, groupID string) (*Group, error) {
	g := &Group{ID: groupID}

	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT name, owner_id, total_group_check_ins FROM check_groups WHERE id = ?`), groupID).
		Scan(&g.Name, &g.OwnerID, &g.TotalGroupCheckIns)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to read group: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`), groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to read members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		g.Members = append(g.Members, member)
	}

	return g, rows.Err()
}

// Groups lists the groups userID belongs to.
func (s *Store) Groups(ctx context.Context, userID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.Group(ctx, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}

	return groups, nil
}
