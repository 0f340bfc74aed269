// Package events defines the change events broadcast to every playlist
// client and their JSON wire encoding.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masbahul-bari/audio-player/internal/model"
)

// ErrMalformed is wrapped by every Decode failure.
var ErrMalformed = errors.New("malformed event")

// Type is the wire discriminator.
type Type string

const (
	TypeTrackAdded        Type = "track.added"
	TypeTrackRemoved      Type = "track.removed"
	TypeTrackMoved        Type = "track.moved"
	TypeTrackVoted        Type = "track.voted"
	TypeTrackPlaying      Type = "track.playing"
	TypePlaylistReordered Type = "playlist.reordered"
	TypePing              Type = "ping"
	TypePong              Type = "pong"
)

// Event is one of the concrete event structs below.
type Event interface {
	Type() Type
	event()
}

// TrackAdded carries the full entry. Re-delivery replaces the entry.
type TrackAdded struct {
	Entry model.Entry
}

type TrackRemoved struct {
	ID string
}

type TrackMoved struct {
	ID       string
	Position float64
}

// TrackVoted carries the absolute vote count, never a delta.
type TrackVoted struct {
	ID    string
	Votes int
}

// TrackPlaying marks ID as the only active entry.
type TrackPlaying struct {
	ID string
}

// PlaylistReordered replaces the whole list.
type PlaylistReordered struct {
	Entries []model.Entry
}

// Heartbeat is a ping, or a pong when Reply is set.
type Heartbeat struct {
	Reply bool
	TS    time.Time
}

func (TrackAdded) Type() Type        { return TypeTrackAdded }
func (TrackRemoved) Type() Type      { return TypeTrackRemoved }
func (TrackMoved) Type() Type        { return TypeTrackMoved }
func (TrackVoted) Type() Type        { return TypeTrackVoted }
func (TrackPlaying) Type() Type      { return TypeTrackPlaying }
func (PlaylistReordered) Type() Type { return TypePlaylistReordered }

func (h Heartbeat) Type() Type {
	if h.Reply {
		return TypePong
	}
	return TypePing
}

func (TrackAdded) event()        {}
func (TrackRemoved) event()      {}
func (TrackMoved) event()        {}
func (TrackVoted) event()        {}
func (TrackPlaying) event()      {}
func (PlaylistReordered) event() {}
func (Heartbeat) event()         {}

// envelope is the JSON shape shared by every event type.
type envelope struct {
	Type  Type            `json:"type"`
	Item  json.RawMessage `json:"item,omitempty"`
	ID    string          `json:"id,omitempty"`
	Items json.RawMessage `json:"items,omitempty"`
	TS    *time.Time      `json:"ts,omitempty"`
}

type movedItem struct {
	ID       string   `json:"id"`
	Position *float64 `json:"position"`
}

type votedItem struct {
	ID    string `json:"id"`
	Votes *int   `json:"votes"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Decode parses one wire message.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("%v", err)
	}

	switch env.Type {
	case TypeTrackAdded:
		var e model.Entry
		if len(env.Item) == 0 {
			return nil, malformed("%s without item", env.Type)
		}
		if err := json.Unmarshal(env.Item, &e); err != nil {
			return nil, malformed("%s item: %v", env.Type, err)
		}
		if e.ID == "" {
			return nil, malformed("%s item without id", env.Type)
		}
		return TrackAdded{Entry: e}, nil

	case TypeTrackRemoved, TypeTrackPlaying:
		if env.ID == "" {
			return nil, malformed("%s without id", env.Type)
		}
		if env.Type == TypeTrackRemoved {
			return TrackRemoved{ID: env.ID}, nil
		}
		return TrackPlaying{ID: env.ID}, nil

	case TypeTrackMoved:
		var m movedItem
		if len(env.Item) == 0 {
			return nil, malformed("%s without item", env.Type)
		}
		if err := json.Unmarshal(env.Item, &m); err != nil {
			return nil, malformed("%s item: %v", env.Type, err)
		}
		if m.ID == "" || m.Position == nil {
			return nil, malformed("%s requires id and position", env.Type)
		}
		return TrackMoved{ID: m.ID, Position: *m.Position}, nil

	case TypeTrackVoted:
		var v votedItem
		if len(env.Item) == 0 {
			return nil, malformed("%s without item", env.Type)
		}
		if err := json.Unmarshal(env.Item, &v); err != nil {
			return nil, malformed("%s item: %v", env.Type, err)
		}
		if v.ID == "" || v.Votes == nil {
			return nil, malformed("%s requires id and votes", env.Type)
		}
		return TrackVoted{ID: v.ID, Votes: *v.Votes}, nil

	case TypePlaylistReordered:
		if len(env.Items) == 0 {
			return nil, malformed("%s without items", env.Type)
		}
		var entries []model.Entry
		if err := json.Unmarshal(env.Items, &entries); err != nil {
			return nil, malformed("%s items: %v", env.Type, err)
		}
		if entries == nil {
			entries = []model.Entry{}
		}
		return PlaylistReordered{Entries: entries}, nil

	case TypePing, TypePong:
		h := Heartbeat{Reply: env.Type == TypePong}
		if env.TS != nil {
			h.TS = *env.TS
		}
		return h, nil
	}

	return nil, malformed("unknown type %q", env.Type)
}

// Encode produces the wire form of ev.
func Encode(ev Event) ([]byte, error) {
	env := envelope{Type: ev.Type()}

	var item any
	switch e := ev.(type) {
	case TrackAdded:
		item = e.Entry
	case TrackRemoved:
		env.ID = e.ID
	case TrackPlaying:
		env.ID = e.ID
	case TrackMoved:
		item = movedItem{ID: e.ID, Position: &e.Position}
	case TrackVoted:
		item = votedItem{ID: e.ID, Votes: &e.Votes}
	case PlaylistReordered:
		entries := e.Entries
		if entries == nil {
			entries = []model.Entry{}
		}
		raw, err := json.Marshal(entries)
		if err != nil {
			return nil, err
		}
		env.Items = raw
	case Heartbeat:
		if !e.TS.IsZero() {
			ts := e.TS.UTC()
			env.TS = &ts
		}
	default:
		return nil, fmt.Errorf("encode: unsupported event %T", ev)
	}

	if item != nil {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		env.Item = raw
	}
	return json.Marshal(env)
}
