package realtime

import (
	"context"

	"github.com/Masbahul-bari/audio-player/internal/metrics"
)

type direct struct {
	client *Client
	data   []byte
}

// Hub owns the set of connected clients and fans messages out to them.
// Every mutation of the set happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool

	// Messages for every client.
	broadcast chan []byte

	// Messages for a single client, dropped if it is gone.
	direct chan direct

	register   chan *Client
	unregister chan *Client

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		direct:     make(chan direct),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.HubClients.Set(float64(len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case d := <-h.direct:
			if _, ok := h.clients[d.client]; ok {
				h.deliver(d.client, d.data)
			}

		case message := <-h.broadcast:
			metrics.HubBroadcasts.Inc()
			for client := range h.clients {
				h.deliver(client, message)
			}
		}
	}
}

// deliver queues data for client, dropping clients that cannot keep up.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		client.log.Warn("realtime-service: send buffer full, dropping client")
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	_ = client.conn.Close()
	metrics.HubClients.Set(float64(len(h.clients)))
}

// Register adds c to the hub. It reports false once the hub has stopped;
// c is then never served and its send channel stays open.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// Send queues msg for c alone.
func (h *Hub) Send(c *Client, msg []byte) {
	select {
	case h.direct <- direct{client: c, data: msg}:
	case <-h.done:
	}
}
