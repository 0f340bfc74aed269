// Package playlist is the Playlist Service: the authority that stores the
// shared playlist and broadcasts every change it accepts.
package playlist

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/metrics"
)

// publishTimeout bounds a broadcast that outlives its request.
const publishTimeout = 5 * time.Second

type Server struct {
	store  Store
	pub    Publisher
	secret []byte
	log    logrus.FieldLogger
}

// NewServer wires the service. A nil pub drops events.
func NewServer(store Store, pub Publisher, secret []byte, log logrus.FieldLogger) *Server {
	if pub == nil {
		pub = NewRedisPublisher(nil, log)
	}
	return &Server{
		store:  store,
		pub:    pub,
		secret: secret,
		log:    log.WithField("component", "playlist-service"),
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.secret))

		r.Get("/tracks", s.handleListTracks)

		r.Get("/playlist", s.handleListEntries)
		r.Post("/playlist", s.handleInsertEntry)
		r.Post("/playlist/rebalance", s.handleRebalance)
		r.Patch("/playlist/{id}", s.handleUpdateEntry)
		r.Delete("/playlist/{id}", s.handleRemoveEntry)
		r.Post("/playlist/{id}/vote", s.handleVote)
		r.Post("/playlist/{id}/reorder", s.handleReorder)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "playlist-service",
	})
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// publish broadcasts ev for a change the store has already committed. The
// request may be cancelled by then, so only its values are kept.
func (s *Server) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	s.pub.Publish(ctx, ev)
}
