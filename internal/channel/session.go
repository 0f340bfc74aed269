package channel

import "errors"

// ErrClosed is returned by Run once its context is cancelled.
var ErrClosed = errors.New("event channel closed")

type State int

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Session describes the channel as seen by the view layer.
// RetryCount is the number of reconnect attempts since the last successful
// open. Exhausted is set once the retry budget is spent; the manager then
// waits for Retry.
type Session struct {
	State      State
	RetryCount int
	Exhausted  bool
}
