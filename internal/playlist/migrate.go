package playlist

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Masbahul-bari/audio-player/internal/model"
)

//go:embed library.yaml
var demoLibrary []byte

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS tracks (
          id               TEXT PRIMARY KEY,
          title            TEXT NOT NULL,
          artist           TEXT NOT NULL,
          album            TEXT NOT NULL DEFAULT '',
          duration_seconds INT NOT NULL DEFAULT 0,
          genre            TEXT NOT NULL DEFAULT '',
          cover_url        TEXT NOT NULL DEFAULT ''
      )
    `); err != nil {
		return fmt.Errorf("migrate tracks: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS playlist_entries (
          id         TEXT PRIMARY KEY,
          track_id   TEXT NOT NULL UNIQUE REFERENCES tracks(id) ON DELETE CASCADE,
          position   DOUBLE PRECISION NOT NULL,
          votes      INT NOT NULL DEFAULT 0,
          added_by   TEXT NOT NULL DEFAULT 'Anonymous',
          added_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
          is_playing BOOLEAN NOT NULL DEFAULT FALSE,
          played_at  TIMESTAMPTZ
      )
    `); err != nil {
		return fmt.Errorf("migrate playlist_entries: %w", err)
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_playlist_entries_position
      ON playlist_entries(position, id)
    `); err != nil {
		return fmt.Errorf("migrate position index: %w", err)
	}
	return nil
}

type library struct {
	Tracks []model.Track `yaml:"tracks"`
}

// LoadLibrary reads a track library from a YAML file, or the built-in demo
// library when path is empty.
func LoadLibrary(path string) ([]model.Track, error) {
	raw := demoLibrary
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("library: %w", err)
		}
		raw = b
	}

	var lib library
	if err := yaml.Unmarshal(raw, &lib); err != nil {
		return nil, fmt.Errorf("library: parse: %w", err)
	}
	seen := make(map[string]bool, len(lib.Tracks))
	for _, t := range lib.Tracks {
		if t.ID == "" || t.Title == "" {
			return nil, fmt.Errorf("library: track needs id and title: %+v", t)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("library: duplicate track id %s", t.ID)
		}
		seen[t.ID] = true
	}
	return lib.Tracks, nil
}

// SeedLibrary inserts tracks that are not present yet. Existing rows are left
// untouched.
func SeedLibrary(ctx context.Context, db DB, tracks []model.Track) (int, error) {
	added := 0
	for _, t := range tracks {
		tag, err := db.Exec(ctx, `
			INSERT INTO tracks (id, title, artist, album, duration_seconds, genre, cover_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, t.ID, t.Title, t.Artist, t.Album, t.DurationSeconds, t.Genre, t.CoverURL)
		if err != nil {
			return added, fmt.Errorf("seed %s: %w", t.ID, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}
