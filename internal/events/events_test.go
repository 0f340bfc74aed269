package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masbahul-bari/audio-player/internal/model"
)

func TestDecode_OriginalWireFormat(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Event
	}{
		{
			name: "track added",
			raw:  `{"type":"track.added","item":{"id":"pl-1","track_id":"t-1","track":{"id":"t-1","title":"Song","artist":"Band","duration_seconds":200},"position":1.5,"votes":2,"added_by":"ann","is_playing":false}}`,
			want: TrackAdded{Entry: model.Entry{
				ID: "pl-1", TrackID: "t-1", Position: 1.5, Votes: 2, AddedBy: "ann",
				Track: model.Track{ID: "t-1", Title: "Song", Artist: "Band", DurationSeconds: 200},
			}},
		},
		{"track removed", `{"type":"track.removed","id":"pl-1"}`, TrackRemoved{ID: "pl-1"}},
		{"track moved", `{"type":"track.moved","item":{"id":"pl-1","position":0}}`, TrackMoved{ID: "pl-1", Position: 0}},
		{"track voted", `{"type":"track.voted","item":{"id":"pl-1","votes":-3}}`, TrackVoted{ID: "pl-1", Votes: -3}},
		{"track playing", `{"type":"track.playing","id":"pl-2"}`, TrackPlaying{ID: "pl-2"}},
		{"empty reorder", `{"type":"playlist.reordered","items":[]}`, PlaylistReordered{Entries: []model.Entry{}}},
		{"ping", `{"type":"ping"}`, Heartbeat{}},
		{"pong", `{"type":"pong"}`, Heartbeat{Reply: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":           `{"type":`,
		"unknown type":       `{"type":"track.exploded","id":"x"}`,
		"missing type":       `{"id":"x"}`,
		"added without item": `{"type":"track.added"}`,
		"added without id":   `{"type":"track.added","item":{"track_id":"t"}}`,
		"removed without id": `{"type":"track.removed"}`,
		"moved w/o position": `{"type":"track.moved","item":{"id":"x"}}`,
		"voted w/o votes":    `{"type":"track.voted","item":{"id":"x"}}`,
		"voted bad votes":    `{"type":"track.voted","item":{"id":"x","votes":"many"}}`,
		"reorder w/o items":  `{"type":"playlist.reordered"}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			ev, err := Decode([]byte(raw))
			assert.Nil(t, ev)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestEncode_DecodesBack(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	all := []Event{
		TrackAdded{Entry: model.Entry{ID: "a", TrackID: "t", Position: 2, AddedAt: ts}},
		TrackRemoved{ID: "a"},
		TrackMoved{ID: "a", Position: 1.25},
		TrackVoted{ID: "a", Votes: 0},
		TrackPlaying{ID: "a"},
		PlaylistReordered{Entries: []model.Entry{{ID: "a", Position: 1, AddedAt: ts}}},
		Heartbeat{TS: ts},
		Heartbeat{Reply: true, TS: ts},
	}

	for _, ev := range all {
		t.Run(string(ev.Type()), func(t *testing.T) {
			raw, err := Encode(ev)
			require.NoError(t, err)
			got, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestEncode_NilReorderIsEmptyList(t *testing.T) {
	raw, err := Encode(PlaylistReordered{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"playlist.reordered","items":[]}`, string(raw))
}
