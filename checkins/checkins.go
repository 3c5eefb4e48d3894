/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package checkins records daily check-ins and everything derived from
// them: streaks, moods, groups and per-day game statistics.
package checkins

import (
	"errors"
	"slices"
	"time"
)

const (
	// DefaultMood is shown until a mood is picked for the day.
	DefaultMood = "⚙️"

	dayLayout = "2006-01-02"
)

// Moods lists the moods a player may pick.
var Moods = []string{"🔥", "💀", "🍀", "💤", "🎉", "💻", "☕", "😭", "😡", "❤️", "🚀", "✨"}

var (
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	ErrNotFound         = errors.New("not found")
	ErrInvalidMood      = errors.New("invalid mood")
	ErrInvalidInput     = errors.New("invalid input")
)

// CheckIn is one completed daily challenge.
type CheckIn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Day       string    `json:"day"`
	Photo     string    `json:"photo,omitempty"`
	Game      string    `json:"game"`
	Mood      string    `json:"mood"`
	SeedHash  string    `json:"seed_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is what the home page shows a player.
type Summary struct {
	UserID         string `json:"user_id"`
	Day            string `json:"day"`
	Streak         int    `json:"streak"`
	Total          int    `json:"total"`
	CheckedInToday bool   `json:"checked_in_today"`
	Mood           string `json:"mood"`
}

// Group is a set of players who check in together.
type Group struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	OwnerID            string   `json:"owner_id"`
	TotalGroupCheckIns int      `json:"total_group_check_ins"`
	Members            []string `json:"members"`
}

// GameStats counts how often each game was drawn.
type GameStats struct {
	Day    string         `json:"day"`
	Counts map[string]int `json:"counts"`
	Global map[string]int `json:"global"`
}

// Day returns the calendar day of t in t's location.
func Day(t time.Time) string {
	return t.Format(dayLayout)
}

// ValidDay reports whether day is formatted as YYYY-MM-DD.
func ValidDay(day string) bool {
	_, err := time.Parse(dayLayout, day)

	return err == nil
}

// ValidMood reports whether mood may be picked.
func ValidMood(mood string) bool {
	return slices.Contains(Moods, mood)
}

// Streak counts consecutive check-in days ending today, or ending
// yesterday when today has not been checked in yet. days may be in any
// order and contain duplicates.
func Streak(days []string, today string) int {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	t, err := time.Parse(dayLayout, today)
	if err != nil {
		return 0
	}

	if !set[today] {
		t = t.AddDate(0, 0, -1)
	}

	streak := 0
	for set[t.Format(dayLayout)] {
		streak++
		t = t.AddDate(0, 0, -1)
	}

	return streak
}
