package playlist

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// storeError maps store failures onto the error contract.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "entry not found", nil)
	default:
		s.log.WithError(err).Errorf("playlist-service: %s", op)
		writeError(w, http.StatusInternalServerError, CodeInternal, "database error", nil)
	}
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.store.ListTracks(r.Context())
	if err != nil {
		s.storeError(w, "list tracks", err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListEntries(r.Context())
	if err != nil {
		s.storeError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleInsertEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		TrackID  string   `json:"track_id"`
		AddedBy  string   `json:"added_by"`
		Position *float64 `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid JSON body", nil)
		return
	}
	body.TrackID = strings.TrimSpace(body.TrackID)
	if body.TrackID == "" {
		writeError(w, http.StatusBadRequest, CodeMissingTrackID, "track_id is required", nil)
		return
	}

	e, err := s.store.InsertEntry(ctx, body.TrackID, requester(r, body.AddedBy), body.Position)
	switch {
	case errors.Is(err, ErrDuplicateTrack):
		writeError(w, http.StatusBadRequest, CodeDuplicateTrack, "This track is already in the playlist",
			map[string]any{"track_id": body.TrackID})
		return
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "track not found", map[string]any{"track_id": body.TrackID})
		return
	case err != nil:
		s.storeError(w, "insert entry", err)
		return
	}

	s.publish(ctx, events.TrackAdded{Entry: *e})
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var body struct {
		Position  *float64 `json:"position"`
		IsPlaying *bool    `json:"is_playing"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid JSON body", nil)
		return
	}
	if body.Position == nil && body.IsPlaying == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "position or is_playing is required", nil)
		return
	}

	var (
		e   *model.Entry
		err error
	)
	if body.Position != nil {
		e, err = s.store.UpdatePosition(ctx, id, *body.Position)
		if err != nil {
			s.storeError(w, "update position", err)
			return
		}
		s.publish(ctx, events.TrackMoved{ID: e.ID, Position: e.Position})
	}
	if body.IsPlaying != nil {
		e, err = s.store.SetPlaying(ctx, id, *body.IsPlaying)
		if err != nil {
			s.storeError(w, "set playing", err)
			return
		}
		if e.IsPlaying {
			s.publish(ctx, events.TrackPlaying{ID: e.ID})
		} else {
			// No stop event exists; re-adding replaces the entry in place.
			s.publish(ctx, events.TrackAdded{Entry: *e})
		}
	}

	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := s.store.RemoveEntry(ctx, id); err != nil {
		s.storeError(w, "remove entry", err)
		return
	}

	s.publish(ctx, events.TrackRemoved{ID: id})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var body struct {
		Direction string `json:"direction"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid JSON body", nil)
		return
	}
	dir := model.Up
	if body.Direction != "" {
		d, err := model.ParseDirection(body.Direction)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidDirection, `direction must be "up" or "down"`, nil)
			return
		}
		dir = d
	}

	e, err := s.store.Vote(ctx, id, dir.Delta())
	if err != nil {
		s.storeError(w, "vote", err)
		return
	}

	s.publish(ctx, events.TrackVoted{ID: e.ID, Votes: e.Votes})
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var body struct {
		TargetIndex *int `json:"target_index"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "invalid JSON body", nil)
		return
	}
	if body.TargetIndex == nil {
		writeError(w, http.StatusBadRequest, CodeMissingTargetIndex, "target_index is required", nil)
		return
	}

	entries, err := s.store.Reorder(ctx, id, *body.TargetIndex)
	if err != nil {
		s.storeError(w, "reorder", err)
		return
	}

	s.publish(ctx, events.PlaylistReordered{Entries: entries})
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := s.store.Rebalance(ctx)
	if err != nil {
		s.storeError(w, "rebalance", err)
		return
	}

	s.log.WithField("entries", len(entries)).Info("playlist-service: rebalanced")
	s.publish(ctx, events.PlaylistReordered{Entries: entries})
	writeJSON(w, http.StatusOK, entries)
}
