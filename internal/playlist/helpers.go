package playlist

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/events"
)

// BroadcastChannel is the Redis channel the realtime service relays.
const BroadcastChannel = "broadcast"

const (
	CodeMissingTrackID     = "MISSING_TRACK_ID"
	CodeMissingTargetIndex = "MISSING_TARGET_INDEX"
	CodeInvalidDirection   = "INVALID_DIRECTION"
	CodeInvalidBody        = "INVALID_BODY"
	CodeDuplicateTrack     = "DUPLICATE_TRACK"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	writeJSON(w, status, map[string]any{
		"error": apiError{Code: code, Message: msg, Details: details},
	})
}

// Publisher fans events out to every connected client.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// RedisPublisher publishes encoded events on BroadcastChannel. A nil client
// drops events.
type RedisPublisher struct {
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewRedisPublisher(rdb *redis.Client, log logrus.FieldLogger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log.WithField("component", "publisher")}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev events.Event) {
	if p.rdb == nil {
		return
	}
	data, err := events.Encode(ev)
	if err != nil {
		p.log.WithError(err).WithField("type", ev.Type()).Error("playlist-service: encode event")
		return
	}
	if err := p.rdb.Publish(ctx, BroadcastChannel, string(data)).Err(); err != nil {
		p.log.WithError(err).WithField("type", ev.Type()).Warn("playlist-service: publish event")
	}
}
