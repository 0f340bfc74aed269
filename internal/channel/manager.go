// Package channel keeps a websocket event channel to the realtime service
// open, reconnecting with capped exponential backoff and decoding every
// inbound message into an events.Event.
package channel

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/metrics"
)

const writeWait = 10 * time.Second

// Handler receives decoded events and session changes. Both methods are
// called from the manager's goroutine and must not block for long.
type Handler interface {
	Deliver(events.Event)
	HandleStatus(Session)
}

// Dialer is satisfied by *websocket.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Config struct {
	URL    string
	Header http.Header

	BaseInterval time.Duration
	CapInterval  time.Duration
	MaxRetries   int

	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		BaseInterval:      3 * time.Second,
		CapInterval:       30 * time.Second,
		MaxRetries:        10,
		HeartbeatInterval: 15 * time.Second,
		ReadTimeout:       45 * time.Second,
	}
}

// NewPolicy builds the reconnect schedule: BaseInterval doubling per attempt,
// capped at CapInterval, without jitter, stopping after MaxRetries delays.
func NewPolicy(cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseInterval
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = cfg.CapInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
}

type Manager struct {
	cfg     Config
	dialer  Dialer
	handler Handler
	log     logrus.FieldLogger

	retry chan struct{}

	mu      sync.Mutex
	session Session
}

func NewManager(cfg Config, dialer Dialer, handler Handler, log logrus.FieldLogger) *Manager {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		log:     log.WithField("component", "channel"),
		retry:   make(chan struct{}, 1),
		session: Session{State: Closed},
	}
}

// Session returns a copy of the current session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Retry resets the retry counter and cuts short any pending backoff wait,
// including the indefinite wait after the budget is exhausted.
func (m *Manager) Retry() {
	select {
	case m.retry <- struct{}{}:
	default:
	}
}

// Run keeps the channel open until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	policy := NewPolicy(m.cfg)
	retries := 0

	for {
		m.setSession(Session{State: Connecting, RetryCount: retries})

		opened, err := m.connect(ctx)
		if ctx.Err() != nil {
			m.setSession(Session{State: Closed, RetryCount: retries})
			return ErrClosed
		}
		if opened {
			policy.Reset()
			retries = 0
		}
		if err != nil {
			m.log.WithError(err).WithField("retries", retries).Warn("channel: connection closed")
		}

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			m.setSession(Session{State: Closed, RetryCount: retries, Exhausted: true})
			m.log.WithField("retries", retries).Error("channel: retry budget exhausted")
			select {
			case <-ctx.Done():
				return ErrClosed
			case <-m.retry:
			}
			policy.Reset()
			retries = 0
			continue
		}

		m.setSession(Session{State: Closed, RetryCount: retries})
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrClosed
		case <-m.retry:
			timer.Stop()
			policy.Reset()
			retries = 0
			continue
		case <-timer.C:
		}
		retries++
		metrics.ReconnectAttempts.Inc()
	}
}

// connect dials and serves one connection. It reports whether the dial
// succeeded and the error that ended the connection.
func (m *Manager) connect(ctx context.Context) (bool, error) {
	conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, m.cfg.Header)
	if err != nil {
		return false, err
	}
	m.setSession(Session{State: Open})

	connCtx, cancel := context.WithCancel(ctx)
	pongs := make(chan struct{}, 1)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writeLoop(connCtx, conn, pongs)
	}()

	err = m.readLoop(conn, pongs)
	cancel()
	<-writerDone
	_ = conn.Close()
	return true, err
}

func (m *Manager) readLoop(conn *websocket.Conn, pongs chan<- struct{}) error {
	for {
		if m.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := events.Decode(data)
		if err != nil {
			metrics.EventsMalformed.Inc()
			m.log.WithError(err).Warn("channel: dropping message")
			continue
		}

		if hb, ok := ev.(events.Heartbeat); ok {
			if !hb.Reply {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
			continue
		}
		m.handler.Deliver(ev)
	}
}

// writeLoop is the only writer on conn. Closing conn on exit unblocks the
// reader.
func (m *Manager) writeLoop(ctx context.Context, conn *websocket.Conn, pongs <-chan struct{}) {
	var tick <-chan time.Time
	if m.cfg.HeartbeatInterval > 0 {
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var ev events.Event
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		case <-tick:
			ev = events.Heartbeat{TS: time.Now()}
		case <-pongs:
			ev = events.Heartbeat{Reply: true, TS: time.Now()}
		}

		data, err := events.Encode(ev)
		if err != nil {
			m.log.WithError(err).Error("channel: encode heartbeat")
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			m.log.WithError(err).Debug("channel: write heartbeat")
			_ = conn.Close()
			return
		}
	}
}

// setSession stores s and notifies the handler when it differs from the
// current session.
func (m *Manager) setSession(s Session) {
	m.mu.Lock()
	if m.session == s {
		m.mu.Unlock()
		return
	}
	m.session = s
	m.mu.Unlock()

	metrics.ChannelState.Set(float64(s.State))
	m.log.WithFields(logrus.Fields{
		"state":   s.State.String(),
		"retries": s.RetryCount,
	}).Debug("channel: session changed")
	m.handler.HandleStatus(s)
}
