// Package metrics holds the Prometheus collectors shared by the services
// and the sync client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playlist_events_applied_total",
		Help: "Authoritative events folded into the local view, by type",
	}, []string{"type"})

	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playlist_events_malformed_total",
		Help: "Inbound channel messages dropped because they failed to decode",
	})

	Rollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playlist_optimistic_rollbacks_total",
		Help: "Optimistic mutations reverted after the service rejected them, by kind",
	}, []string{"kind"})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "playlist_channel_reconnect_attempts_total",
		Help: "Event channel dial attempts after the first",
	})

	ChannelState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "playlist_channel_state",
		Help: "Event channel state: 0 connecting, 1 open, 2 closed",
	})

	HubClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_hub_clients",
		Help: "Websocket clients currently registered with the hub",
	})

	HubBroadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_hub_broadcasts_total",
		Help: "Messages fanned out by the hub",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "playlist_http_requests_total",
		Help: "Playlist API requests by route pattern and status code",
	}, []string{"route", "code"})
)
