package liststore

import "github.com/Masbahul-bari/audio-player/internal/model"

// Snapshot is an immutable, position-sorted view of the playlist.
type Snapshot struct {
	entries []model.Entry
}

func newSnapshot(entries []model.Entry) *Snapshot {
	return &Snapshot{entries: sortedCopy(entries)}
}

// Entries returns a copy of the ordered entries.
func (s Snapshot) Entries() []model.Entry {
	out := make([]model.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s Snapshot) Len() int { return len(s.entries) }

func (s Snapshot) Get(id string) (model.Entry, bool) {
	if i := s.Index(id); i >= 0 {
		return s.entries[i], true
	}
	return model.Entry{}, false
}

// Index returns the display index of id, or -1.
func (s Snapshot) Index(id string) int {
	return indexOf(s.entries, id)
}

func (s Snapshot) HasTrack(trackID string) bool {
	if trackID == "" {
		return false
	}
	for _, e := range s.entries {
		if e.TrackID == trackID {
			return true
		}
	}
	return false
}

// Active returns the playing entry, if any.
func (s Snapshot) Active() (model.Entry, bool) {
	for _, e := range s.entries {
		if e.IsPlaying {
			return e, true
		}
	}
	return model.Entry{}, false
}

// Positions lists the ordered keys, leaving out excludeID.
func (s Snapshot) Positions(excludeID string) []float64 {
	out := make([]float64, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID == excludeID {
			continue
		}
		out = append(out, e.Position)
	}
	return out
}

func (s Snapshot) clone() []model.Entry {
	return s.Entries()
}
