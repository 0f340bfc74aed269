// Package realtime relays playlist events from Redis to every connected
// websocket client.
package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/metrics"
)

// BroadcastChannel is the Redis channel the Playlist Service publishes to.
const BroadcastChannel = "broadcast"

type Server struct {
	hub      *Hub
	rdb      *redis.Client
	ctx      context.Context
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewServer builds the relay. An empty allowedOrigin accepts any origin.
func NewServer(hub *Hub, rdb *redis.Client, ctx context.Context, allowedOrigin string, log logrus.FieldLogger) *Server {
	return &Server{
		hub: hub,
		rdb: rdb,
		ctx: ctx,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		log: log.WithField("component", "realtime-service"),
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Post("/events", s.handleEvents)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// RunRedisSubscriber forwards every valid event published on
// BroadcastChannel to the hub until the server context ends.
func (s *Server) RunRedisSubscriber() {
	sub := s.rdb.Subscribe(s.ctx, BroadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := events.Decode([]byte(msg.Payload)); err != nil {
				metrics.EventsMalformed.Inc()
				s.log.WithError(err).Warn("realtime-service: dropping malformed event")
				continue
			}
			s.hub.Broadcast([]byte(msg.Payload))
		}
	}
}

// RunHeartbeat broadcasts a ping every interval so idle connections stay
// observable on both ends.
func (s *Server) RunHeartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			ping, err := events.Encode(events.Heartbeat{TS: now})
			if err != nil {
				s.log.WithError(err).Error("realtime-service: encode ping")
				continue
			}
			s.hub.Broadcast(ping)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "realtime-service",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("realtime-service: ws upgrade")
		return
	}

	client := newClient(s.hub, conn, s.log)
	if !s.hub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	if ping, err := events.Encode(events.Heartbeat{TS: time.Now()}); err == nil {
		s.hub.Send(client, ping)
	}

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxMessageSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}
	ev, err := events.Decode(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	data, err := events.Encode(ev)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "encode error"})
		return
	}
	if err := s.rdb.Publish(s.ctx, BroadcastChannel, string(data)).Err(); err != nil {
		s.log.WithError(err).Error("realtime-service: publish")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "redis error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
