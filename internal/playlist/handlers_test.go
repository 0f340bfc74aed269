package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Masbahul-bari/audio-player/internal/client"
	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T, secret []byte) (*MockStore, *capturePublisher, *httptest.Server) {
	t.Helper()
	store := &MockStore{}
	pub := &capturePublisher{}
	srv := NewServer(store, pub, secret, quietLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return store, pub, ts
}

func sampleEntry(id string, pos float64) *model.Entry {
	return &model.Entry{
		ID:       id,
		TrackID:  "track-" + id,
		Track:    model.Track{ID: "track-" + id, Title: "Song " + id, DurationSeconds: 200},
		Position: pos,
		AddedBy:  "Anonymous",
		AddedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func decodeAPIError(t *testing.T, resp *http.Response) apiError {
	t.Helper()
	var body struct {
		Error apiError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInsertEntry_AppendsAndPublishes(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	e := sampleEntry("a", 4)
	store.On("InsertEntry", mock.Anything, "track-a", "ann", (*float64)(nil)).Return(e, nil)

	got, err := client.New(ts.URL).InsertEntry(context.Background(), "track-a", "ann", nil)
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, 4.0, got.Position)

	require.Len(t, pub.published(), 1)
	assert.Equal(t, events.TrackAdded{Entry: *e}, pub.published()[0])
	store.AssertExpectations(t)
}

func TestInsertEntry_ExplicitPosition(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("InsertEntry", mock.Anything, "track-a", "Anonymous", mock.MatchedBy(func(p *float64) bool {
		return p != nil && *p == 1.5
	})).Return(sampleEntry("a", 1.5), nil)

	pos := 1.5
	got, err := client.New(ts.URL).InsertEntry(context.Background(), "track-a", "", &pos)
	require.NoError(t, err)
	assert.Equal(t, 1.5, got.Position)
}

func TestInsertEntry_Validation(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	store.On("InsertEntry", mock.Anything, "track-dup", mock.Anything, mock.Anything).Return(nil, ErrDuplicateTrack)
	store.On("InsertEntry", mock.Anything, "track-none", mock.Anything, mock.Anything).Return(nil, ErrNotFound)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing track id", `{}`, http.StatusBadRequest, CodeMissingTrackID},
		{"blank track id", `{"track_id":"  "}`, http.StatusBadRequest, CodeMissingTrackID},
		{"bad json", `{"track_id":`, http.StatusBadRequest, CodeInvalidBody},
		{"duplicate", `{"track_id":"track-dup"}`, http.StatusBadRequest, CodeDuplicateTrack},
		{"unknown track", `{"track_id":"track-none"}`, http.StatusNotFound, CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/playlist", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeAPIError(t, resp).Code)
		})
	}
	assert.Empty(t, pub.published())
}

func TestInsertEntry_DuplicateMapsToClientSentinel(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("InsertEntry", mock.Anything, "track-a", mock.Anything, mock.Anything).Return(nil, ErrDuplicateTrack)

	_, err := client.New(ts.URL).InsertEntry(context.Background(), "track-a", "ann", nil)
	assert.ErrorIs(t, err, client.ErrDuplicateItem)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "track-a", apiErr.Details["track_id"])
}

func TestUpdateEntry_Position(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	store.On("UpdatePosition", mock.Anything, "a", 2.5).Return(sampleEntry("a", 2.5), nil)

	pos := 2.5
	got, err := client.New(ts.URL).UpdateEntry(context.Background(), "a", client.EntryUpdate{Position: &pos})
	require.NoError(t, err)
	assert.Equal(t, 2.5, got.Position)
	assert.Equal(t, []events.Event{events.TrackMoved{ID: "a", Position: 2.5}}, pub.published())
	store.AssertNotCalled(t, "SetPlaying", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateEntry_Playing(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	playing := sampleEntry("a", 1)
	playing.IsPlaying = true
	stopped := sampleEntry("b", 2)
	store.On("SetPlaying", mock.Anything, "a", true).Return(playing, nil)
	store.On("SetPlaying", mock.Anything, "b", false).Return(stopped, nil)

	c := client.New(ts.URL)
	on, off := true, false
	_, err := c.UpdateEntry(context.Background(), "a", client.EntryUpdate{IsPlaying: &on})
	require.NoError(t, err)
	_, err = c.UpdateEntry(context.Background(), "b", client.EntryUpdate{IsPlaying: &off})
	require.NoError(t, err)

	assert.Equal(t, []events.Event{
		events.TrackPlaying{ID: "a"},
		events.TrackAdded{Entry: *stopped},
	}, pub.published())
}

func TestUpdateEntry_EmptyBodyAndNotFound(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("UpdatePosition", mock.Anything, "gone", 1.0).Return(nil, ErrNotFound)

	c := client.New(ts.URL)
	_, err := c.UpdateEntry(context.Background(), "a", client.EntryUpdate{})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeInvalidBody, apiErr.Code)

	pos := 1.0
	_, err = c.UpdateEntry(context.Background(), "gone", client.EntryUpdate{Position: &pos})
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestRemoveEntry(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	store.On("RemoveEntry", mock.Anything, "a").Return(nil)
	store.On("RemoveEntry", mock.Anything, "gone").Return(ErrNotFound)

	c := client.New(ts.URL)
	require.NoError(t, c.RemoveEntry(context.Background(), "a"))
	assert.ErrorIs(t, c.RemoveEntry(context.Background(), "gone"), client.ErrNotFound)
	assert.Equal(t, []events.Event{events.TrackRemoved{ID: "a"}}, pub.published())
}

func TestVote(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	up := sampleEntry("a", 1)
	up.Votes = 3
	store.On("Vote", mock.Anything, "a", 1).Return(up, nil).Once()
	down := sampleEntry("a", 1)
	down.Votes = 2
	store.On("Vote", mock.Anything, "a", -1).Return(down, nil).Once()

	c := client.New(ts.URL)
	got, err := c.Vote(context.Background(), "a", model.Up)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Votes)
	got, err = c.Vote(context.Background(), "a", model.Down)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Votes)

	assert.Equal(t, []events.Event{
		events.TrackVoted{ID: "a", Votes: 3},
		events.TrackVoted{ID: "a", Votes: 2},
	}, pub.published())
}

func TestVote_DirectionDefaultsAndValidation(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("Vote", mock.Anything, "a", 1).Return(sampleEntry("a", 1), nil)

	resp, err := http.Post(ts.URL+"/api/playlist/a/vote", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/playlist/a/vote", "application/json", strings.NewReader(`{"direction":"sideways"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, CodeInvalidDirection, decodeAPIError(t, resp).Code)
	store.AssertNumberOfCalls(t, "Vote", 1)
}

func TestReorder(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	list := []model.Entry{*sampleEntry("b", 1), *sampleEntry("a", 1.5), *sampleEntry("c", 2)}
	store.On("Reorder", mock.Anything, "a", 1).Return(list, nil)

	got, err := client.New(ts.URL).Reorder(context.Background(), "a", 1)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []events.Event{events.PlaylistReordered{Entries: list}}, pub.published())

	resp, err := http.Post(ts.URL+"/api/playlist/a/reorder", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, CodeMissingTargetIndex, decodeAPIError(t, resp).Code)
}

func TestRebalance(t *testing.T) {
	store, pub, ts := newTestServer(t, nil)
	list := []model.Entry{*sampleEntry("a", 1), *sampleEntry("b", 2)}
	store.On("Rebalance", mock.Anything).Return(list, nil)

	got, err := client.New(ts.URL).Rebalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, list[1].ID, got[1].ID)
	require.Len(t, pub.published(), 1)
	assert.Equal(t, events.TypePlaylistReordered, pub.published()[0].Type())
}

func TestListEndpoints(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("ListTracks", mock.Anything).Return([]model.Track{{ID: "track-1", Title: "Bohemian Rhapsody"}}, nil)
	store.On("ListEntries", mock.Anything).Return([]model.Entry{*sampleEntry("b", 2), *sampleEntry("a", 1)}, nil)

	c := client.New(ts.URL)
	tracks, err := c.ListTracks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bohemian Rhapsody", tracks[0].Title)

	entries, err := c.ListEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", entries[0].ID)
}

func TestStoreFailureIsInternal(t *testing.T) {
	store, _, ts := newTestServer(t, nil)
	store.On("ListEntries", mock.Anything).Return(nil, errors.New("connection reset"))

	_, err := client.New(ts.URL).ListEntries(context.Background())
	assert.ErrorIs(t, err, client.ErrNetwork)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeInternal, apiErr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `playlist_http_requests_total{code="200",route="GET /health"}`)
}
