package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Masbahul-bari/audio-player/internal/model"
	"github.com/Masbahul-bari/audio-player/internal/playlist"
	"github.com/Masbahul-bari/audio-player/internal/position"
)

// memStore is an in-memory playlist.Store for driving the commands against
// a real Playlist Service router.
type memStore struct {
	mu      sync.Mutex
	tracks  []model.Track
	entries map[string]model.Entry
	next    int
}

func newMemStore(tracks ...model.Track) *memStore {
	return &memStore{tracks: tracks, entries: make(map[string]model.Entry)}
}

func (s *memStore) sorted() []model.Entry {
	out := make([]model.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	model.SortEntries(out)
	return out
}

func (s *memStore) ListTracks(ctx context.Context) ([]model.Track, error) {
	return s.tracks, nil
}

func (s *memStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(), nil
}

func (s *memStore) InsertEntry(ctx context.Context, trackID, addedBy string, pos *float64) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var track *model.Track
	for i := range s.tracks {
		if s.tracks[i].ID == trackID {
			track = &s.tracks[i]
		}
	}
	if track == nil {
		return nil, playlist.ErrNotFound
	}
	for _, e := range s.entries {
		if e.TrackID == trackID {
			return nil, playlist.ErrDuplicateTrack
		}
	}

	var key float64
	if pos != nil {
		key = *pos
	} else {
		var last *float64
		if list := s.sorted(); len(list) > 0 {
			last = &list[len(list)-1].Position
		}
		key = position.Allocate(last, nil)
	}
	s.next++
	e := model.Entry{
		ID:       fmt.Sprintf("playlist-item-%d", s.next),
		TrackID:  trackID,
		Track:    *track,
		Position: key,
		AddedBy:  addedBy,
		AddedAt:  time.Now().UTC(),
	}
	s.entries[e.ID] = e
	return &e, nil
}

func (s *memStore) update(id string, fn func(*model.Entry)) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, playlist.ErrNotFound
	}
	fn(&e)
	s.entries[id] = e
	return &e, nil
}

func (s *memStore) UpdatePosition(ctx context.Context, id string, pos float64) (*model.Entry, error) {
	return s.update(id, func(e *model.Entry) { e.Position = pos })
}

func (s *memStore) SetPlaying(ctx context.Context, id string, playing bool) (*model.Entry, error) {
	s.mu.Lock()
	if _, ok := s.entries[id]; ok && playing {
		for k, e := range s.entries {
			e.IsPlaying = false
			s.entries[k] = e
		}
	}
	s.mu.Unlock()
	return s.update(id, func(e *model.Entry) { e.IsPlaying = playing })
}

func (s *memStore) RemoveEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return playlist.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *memStore) Vote(ctx context.Context, id string, delta int) (*model.Entry, error) {
	return s.update(id, func(e *model.Entry) { e.Votes += delta })
}

func (s *memStore) Reorder(ctx context.Context, id string, targetIndex int) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, playlist.ErrNotFound
	}
	var others []float64
	for _, o := range s.sorted() {
		if o.ID != id {
			others = append(others, o.Position)
		}
	}
	e.Position = position.Allocate(position.Bounds(targetIndex, others))
	s.entries[id] = e
	return s.sorted(), nil
}

func (s *memStore) Rebalance(ctx context.Context) ([]model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sorted()
	for i, p := range position.Spread(len(list)) {
		e := s.entries[list[i].ID]
		e.Position = p
		s.entries[e.ID] = e
	}
	return s.sorted(), nil
}
