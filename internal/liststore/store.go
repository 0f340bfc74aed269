// Package liststore holds a client's merged view of the playlist together
// with the pre-mutation state of every optimistic edit still in flight.
//
// Writes are expected to come from a single goroutine (the reconcile
// engine). Reads go through View and never block writers: every write
// publishes a fresh immutable Snapshot.
package liststore

import (
	"errors"
	"sync/atomic"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

var (
	ErrNotFound  = errors.New("entry not found")
	ErrDuplicate = errors.New("entry already in playlist")
)

// Kind of an optimistic mutation.
type Kind int

const (
	KindInsert Kind = iota
	KindMove
	KindVote
	KindRemove
	KindActivate
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindMove:
		return "move"
	case KindVote:
		return "vote"
	case KindRemove:
		return "remove"
	case KindActivate:
		return "activate"
	}
	return "unknown"
}

// Mutation is a local intent applied before the service confirms it.
type Mutation struct {
	Seq    uint64
	Kind   Kind
	ItemID string

	Entry    model.Entry // insert
	Position float64     // move
	Delta    int         // vote
}

// record keeps what a mutation overwrote. A nil prior means the entry did
// not exist before.
type record struct {
	kind       Kind
	itemID     string
	prior      map[string]*model.Entry
	superseded bool
}

type Store struct {
	snap    atomic.Pointer[Snapshot]
	records map[uint64]*record
}

func New() *Store {
	s := &Store{records: make(map[uint64]*record)}
	s.snap.Store(newSnapshot(nil))
	return s
}

// View returns the current snapshot. Safe for concurrent use.
func (s *Store) View() Snapshot {
	return *s.snap.Load()
}

// Reset replaces the list wholesale and forgets every recorded mutation.
func (s *Store) Reset(entries []model.Entry) {
	s.publish(entries)
	for _, r := range s.records {
		r.superseded = true
	}
}

// ApplyOptimistic applies m and returns the snapshot it replaced.
func (s *Store) ApplyOptimistic(m Mutation) (Snapshot, error) {
	prev := s.View()
	next := prev.clone()
	rec := &record{kind: m.Kind, itemID: m.ItemID, prior: make(map[string]*model.Entry)}

	switch m.Kind {
	case KindInsert:
		if prev.Index(m.Entry.ID) >= 0 || prev.HasTrack(m.Entry.TrackID) {
			return prev, ErrDuplicate
		}
		rec.itemID = m.Entry.ID
		rec.prior[m.Entry.ID] = nil
		next = append(next, m.Entry)

	case KindMove, KindVote, KindRemove, KindActivate:
		i := prev.Index(m.ItemID)
		if i < 0 {
			return prev, ErrNotFound
		}
		old := prev.entries[i]
		rec.prior[m.ItemID] = &old

		switch m.Kind {
		case KindMove:
			next[i].Position = m.Position
		case KindVote:
			next[i].Votes += m.Delta
		case KindRemove:
			next = append(next[:i], next[i+1:]...)
		case KindActivate:
			for j := range next {
				if next[j].IsPlaying && j != i {
					was := prev.entries[j]
					rec.prior[was.ID] = &was
				}
				next[j].IsPlaying = j == i
			}
		}
	}

	s.records[m.Seq] = rec
	s.publish(next)
	return prev, nil
}

// ApplyAuthoritative folds a service event into the view. Event content
// always replaces local guesses, and any recorded mutation on an affected
// entry is marked superseded so it is never rolled back over the event.
// It reports whether the view changed.
func (s *Store) ApplyAuthoritative(ev events.Event) bool {
	prev := s.View()
	next := prev.clone()
	var touched []string

	switch e := ev.(type) {
	case events.TrackAdded:
		// An optimistic placeholder for the same track is replaced by the
		// service's entry.
		kept := next[:0]
		for _, en := range next {
			if en.TrackID == e.Entry.TrackID && en.ID != e.Entry.ID && e.Entry.TrackID != "" {
				touched = append(touched, en.ID)
				continue
			}
			kept = append(kept, en)
		}
		next = kept
		touched = append(touched, e.Entry.ID)
		if i := indexOf(next, e.Entry.ID); i >= 0 {
			next[i] = e.Entry
		} else {
			next = append(next, e.Entry)
		}

	case events.TrackRemoved:
		i := indexOf(next, e.ID)
		if i < 0 {
			s.supersede(e.ID)
			return false
		}
		touched = append(touched, e.ID)
		next = append(next[:i], next[i+1:]...)

	case events.TrackMoved:
		i := indexOf(next, e.ID)
		if i < 0 {
			return false
		}
		touched = append(touched, e.ID)
		next[i].Position = e.Position

	case events.TrackVoted:
		i := indexOf(next, e.ID)
		if i < 0 {
			return false
		}
		touched = append(touched, e.ID)
		next[i].Votes = e.Votes

	case events.TrackPlaying:
		for j := range next {
			playing := next[j].ID == e.ID
			if next[j].IsPlaying != playing {
				touched = append(touched, next[j].ID)
			}
			next[j].IsPlaying = playing
		}

	case events.PlaylistReordered:
		s.Reset(e.Entries)
		return true

	case events.Heartbeat:
		return false
	}

	s.supersede(touched...)
	if equalEntries(prev.entries, sortedCopy(next)) {
		return false
	}
	s.publish(next)
	return true
}

// Rollback restores what mutation seq overwrote, unless an authoritative
// event has touched those entries since. It reports whether the view changed.
func (s *Store) Rollback(seq uint64) bool {
	rec, ok := s.records[seq]
	if !ok {
		return false
	}
	delete(s.records, seq)
	if rec.superseded {
		return false
	}

	next := s.View().clone()
	for id, old := range rec.prior {
		i := indexOf(next, id)
		switch {
		case old == nil && i >= 0:
			next = append(next[:i], next[i+1:]...)
		case old != nil && i >= 0:
			next[i] = *old
		case old != nil:
			next = append(next, *old)
		}
	}
	s.publish(next)
	return true
}

// Confirm forgets mutation seq. When the record is still current and the
// service returned the resulting entry, that entry is adopted; an insert
// swaps its placeholder for the service's id.
func (s *Store) Confirm(seq uint64, result *model.Entry) bool {
	rec, ok := s.records[seq]
	if !ok {
		return false
	}
	delete(s.records, seq)
	if rec.superseded || result == nil {
		return false
	}

	next := s.View().clone()
	if rec.kind == KindInsert && rec.itemID != result.ID {
		if i := indexOf(next, rec.itemID); i >= 0 {
			next = append(next[:i], next[i+1:]...)
		}
	}
	if i := indexOf(next, result.ID); i >= 0 {
		next[i] = *result
	} else {
		next = append(next, *result)
	}
	if result.IsPlaying {
		for j := range next {
			next[j].IsPlaying = next[j].ID == result.ID
		}
	}
	s.publish(next)
	return true
}

// Pending reports how many optimistic mutations are still recorded.
func (s *Store) Pending() int {
	return len(s.records)
}

func (s *Store) supersede(ids ...string) {
	if len(ids) == 0 {
		return
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for _, r := range s.records {
		if _, ok := set[r.itemID]; ok {
			r.superseded = true
			continue
		}
		for id := range r.prior {
			if _, ok := set[id]; ok {
				r.superseded = true
				break
			}
		}
	}
}

func (s *Store) publish(entries []model.Entry) {
	s.snap.Store(newSnapshot(entries))
}

func indexOf(entries []model.Entry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func sortedCopy(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, len(entries))
	copy(out, entries)
	model.SortEntries(out)
	return out
}

func equalEntries(a, b []model.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Position != b[i].Position ||
			a[i].Votes != b[i].Votes ||
			a[i].IsPlaying != b[i].IsPlaying ||
			a[i].TrackID != b[i].TrackID ||
			a[i].Track != b[i].Track ||
			a[i].AddedBy != b[i].AddedBy ||
			!a[i].AddedAt.Equal(b[i].AddedAt) {
			return false
		}
	}
	return true
}
