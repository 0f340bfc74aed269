package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Masbahul-bari/audio-player/internal/model"
	"github.com/Masbahul-bari/audio-player/internal/position"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTrack = errors.New("track already in playlist")
)

// DB is satisfied by *pgxpool.Pool and by pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store interface {
	ListTracks(ctx context.Context) ([]model.Track, error)
	ListEntries(ctx context.Context) ([]model.Entry, error)
	// InsertEntry appends at the tail when pos is nil.
	InsertEntry(ctx context.Context, trackID, addedBy string, pos *float64) (*model.Entry, error)
	UpdatePosition(ctx context.Context, id string, pos float64) (*model.Entry, error)
	SetPlaying(ctx context.Context, id string, playing bool) (*model.Entry, error)
	RemoveEntry(ctx context.Context, id string) error
	Vote(ctx context.Context, id string, delta int) (*model.Entry, error)
	Reorder(ctx context.Context, id string, targetIndex int) ([]model.Entry, error)
	Rebalance(ctx context.Context) ([]model.Entry, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entrySelect = `
	SELECT e.id, e.track_id, e.position, e.votes, e.added_by, e.added_at, e.is_playing, e.played_at,
	       t.title, t.artist, t.album, t.duration_seconds, t.genre, t.cover_url
	FROM playlist_entries e
	JOIN tracks t ON t.id = e.track_id`

// lockEntries serialises writers that derive keys from other rows.
const lockEntries = `LOCK TABLE playlist_entries IN EXCLUSIVE MODE`

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var e model.Entry
	err := row.Scan(
		&e.ID, &e.TrackID, &e.Position, &e.Votes, &e.AddedBy, &e.AddedAt, &e.IsPlaying, &e.PlayedAt,
		&e.Track.Title, &e.Track.Artist, &e.Track.Album, &e.Track.DurationSeconds, &e.Track.Genre, &e.Track.CoverURL,
	)
	if err != nil {
		return nil, err
	}
	e.Track.ID = e.TrackID
	return &e, nil
}

func getEntry(ctx context.Context, q querier, id string) (*model.Entry, error) {
	e, err := scanEntry(q.QueryRow(ctx, entrySelect+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func listEntries(ctx context.Context, q querier) ([]model.Entry, error) {
	rows, err := q.Query(ctx, entrySelect+` ORDER BY e.position ASC, e.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListTracks(ctx context.Context) ([]model.Track, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, artist, album, duration_seconds, genre, cover_url
		FROM tracks
		ORDER BY title ASC, artist ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Track{}
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.DurationSeconds, &t.Genre, &t.CoverURL); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	return listEntries(ctx, s.db)
}

func (s *PostgresStore) InsertEntry(ctx context.Context, trackID, addedBy string, pos *float64) (*model.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockEntries); err != nil {
		return nil, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tracks WHERE id = $1)`, trackID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("track %s: %w", trackID, ErrNotFound)
	}

	var queued bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM playlist_entries WHERE track_id = $1)`, trackID).Scan(&queued)
	if err != nil {
		return nil, err
	}
	if queued {
		return nil, ErrDuplicateTrack
	}

	key := 0.0
	if pos != nil {
		key = *pos
	} else {
		var last *float64
		if err := tx.QueryRow(ctx, `SELECT MAX(position) FROM playlist_entries`).Scan(&last); err != nil {
			return nil, err
		}
		key = position.Allocate(last, nil)
	}

	id := "playlist-item-" + uuid.NewString()[:12]
	_, err = tx.Exec(ctx, `
		INSERT INTO playlist_entries (id, track_id, position, added_by)
		VALUES ($1, $2, $3, $4)
	`, id, trackID, key, addedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateTrack
		}
		return nil, err
	}

	e, err := getEntry(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) UpdatePosition(ctx context.Context, id string, pos float64) (*model.Entry, error) {
	tag, err := s.db.Exec(ctx, `UPDATE playlist_entries SET position = $2 WHERE id = $1`, id, pos)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return getEntry(ctx, s.db, id)
}

// SetPlaying marks id as playing or stopped. Starting one entry stops every
// other and stamps their played_at.
func (s *PostgresStore) SetPlaying(ctx context.Context, id string, playing bool) (*model.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM playlist_entries WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if playing {
		if _, err := tx.Exec(ctx, `
			UPDATE playlist_entries
			SET is_playing = FALSE, played_at = now()
			WHERE is_playing AND id <> $1
		`, id); err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE playlist_entries
			SET is_playing = TRUE, played_at = COALESCE(played_at, now())
			WHERE id = $1
		`, id)
	} else {
		_, err = tx.Exec(ctx, `UPDATE playlist_entries SET is_playing = FALSE WHERE id = $1`, id)
	}
	if err != nil {
		return nil, err
	}

	e, err := getEntry(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) RemoveEntry(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM playlist_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Vote(ctx context.Context, id string, delta int) (*model.Entry, error) {
	tag, err := s.db.Exec(ctx, `UPDATE playlist_entries SET votes = votes + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return getEntry(ctx, s.db, id)
}

// Reorder moves id to targetIndex among the other entries, picking the key
// from its new neighbours. When their gap is exhausted the whole list is
// renumbered first.
func (s *PostgresStore) Reorder(ctx context.Context, id string, targetIndex int) ([]model.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockEntries); err != nil {
		return nil, err
	}

	keys, err := orderedKeys(ctx, tx)
	if err != nil {
		return nil, err
	}
	others := make([]float64, 0, len(keys))
	found := false
	for _, k := range keys {
		if k.id == id {
			found = true
			continue
		}
		others = append(others, k.pos)
	}
	if !found {
		return nil, ErrNotFound
	}

	prev, next := position.Bounds(targetIndex, others)
	if position.Exhausted(prev, next) {
		if err := spread(ctx, tx, keys); err != nil {
			return nil, err
		}
		keys, err = orderedKeys(ctx, tx)
		if err != nil {
			return nil, err
		}
		others = others[:0]
		for _, k := range keys {
			if k.id != id {
				others = append(others, k.pos)
			}
		}
		prev, next = position.Bounds(targetIndex, others)
	}

	if _, err := tx.Exec(ctx, `UPDATE playlist_entries SET position = $2 WHERE id = $1`, id, position.Allocate(prev, next)); err != nil {
		return nil, err
	}

	out, err := listEntries(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Rebalance renumbers every entry to evenly spaced keys, keeping the order.
func (s *PostgresStore) Rebalance(ctx context.Context) ([]model.Entry, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, lockEntries); err != nil {
		return nil, err
	}
	keys, err := orderedKeys(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := spread(ctx, tx, keys); err != nil {
		return nil, err
	}

	out, err := listEntries(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type entryKey struct {
	id  string
	pos float64
}

func orderedKeys(ctx context.Context, tx pgx.Tx) ([]entryKey, error) {
	rows, err := tx.Query(ctx, `SELECT id, position FROM playlist_entries ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entryKey
	for rows.Next() {
		var k entryKey
		if err := rows.Scan(&k.id, &k.pos); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func spread(ctx context.Context, tx pgx.Tx, keys []entryKey) error {
	for i, p := range position.Spread(len(keys)) {
		if _, err := tx.Exec(ctx, `UPDATE playlist_entries SET position = $2 WHERE id = $1`, keys[i].id, p); err != nil {
			return err
		}
	}
	return nil
}
