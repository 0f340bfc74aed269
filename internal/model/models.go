package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Track is an item of the shared library that can be queued in the playlist.
type Track struct {
	ID              string `json:"id" yaml:"id"`
	Title           string `json:"title" yaml:"title"`
	Artist          string `json:"artist" yaml:"artist"`
	Album           string `json:"album" yaml:"album"`
	DurationSeconds int    `json:"duration_seconds" yaml:"duration_seconds"`
	Genre           string `json:"genre" yaml:"genre"`
	CoverURL        string `json:"cover_url,omitempty" yaml:"cover_url"`
}

// Entry is a track placed in the collaborative playlist. Entries are ordered
// by Position, a fractional key that is never renumbered on insertion.
type Entry struct {
	ID        string     `json:"id"`
	TrackID   string     `json:"track_id"`
	Track     Track      `json:"track"`
	Position  float64    `json:"position"`
	Votes     int        `json:"votes"`
	AddedBy   string     `json:"added_by"`
	AddedAt   time.Time  `json:"added_at"`
	IsPlaying bool       `json:"is_playing"`
	PlayedAt  *time.Time `json:"played_at,omitempty"`
}

// Duration of the underlying track.
func (e Entry) Duration() time.Duration {
	return time.Duration(e.Track.DurationSeconds) * time.Second
}

// Direction of a vote.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func (d Direction) Delta() int {
	if d == Down {
		return -1
	}
	return 1
}

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("direction must be %q or %q", Up, Down)
}

// SortEntries orders entries by position. Ties are broken by id so every
// replica derives the same order from the same state.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].ID < entries[j].ID
	})
}
