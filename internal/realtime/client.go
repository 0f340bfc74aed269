package realtime

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/events"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

// Client is one websocket connection registered with the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  logrus.FieldLogger
}

func newClient(hub *Hub, conn *websocket.Conn, log logrus.FieldLogger) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  log.WithField("remote", conn.RemoteAddr().String()),
	}
}

// readPump answers client pings. Other inbound messages are ignored: clients
// change the playlist through the Playlist Service, never through this socket.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("realtime-service: read")
			}
			return
		}

		ev, err := events.Decode(data)
		if err != nil {
			c.log.WithError(err).Debug("realtime-service: ignoring client message")
			continue
		}
		hb, ok := ev.(events.Heartbeat)
		if !ok || hb.Reply {
			continue
		}
		pong, err := events.Encode(events.Heartbeat{Reply: true, TS: time.Now()})
		if err != nil {
			c.log.WithError(err).Error("realtime-service: encode pong")
			continue
		}
		c.hub.Send(c, pong)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				c.log.WithError(err).Debug("realtime-service: write")
			}
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
