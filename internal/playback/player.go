// Package playback tracks progress through the playing entry and advances
// to the next one when it ends.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/liststore"
	"github.com/Masbahul-bari/audio-player/internal/reconcile"
)

// Controller is satisfied by *reconcile.Engine.
type Controller interface {
	View() liststore.Snapshot
	Skip(ctx context.Context) error
}

type Player struct {
	ctl      Controller
	interval time.Duration
	log      logrus.FieldLogger

	mu       sync.Mutex
	activeID string
	elapsed  time.Duration
	skipped  bool
}

func New(ctl Controller, interval time.Duration, log logrus.FieldLogger) *Player {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Player{
		ctl:      ctl,
		interval: interval,
		log:      log.WithField("component", "playback"),
	}
}

// Run advances playback every interval until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, p.interval)
		}
	}
}

// Elapsed returns the playing entry id and how far into it playback is.
func (p *Player) Elapsed() (string, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeID, p.elapsed
}

func (p *Player) tick(ctx context.Context, d time.Duration) {
	active, ok := p.ctl.View().Active()

	p.mu.Lock()
	if !ok {
		p.activeID, p.elapsed, p.skipped = "", 0, false
		p.mu.Unlock()
		return
	}
	if active.ID != p.activeID {
		p.activeID, p.elapsed, p.skipped = active.ID, 0, false
	}
	p.elapsed += d
	dur := active.Duration()
	if dur <= 0 || p.elapsed < dur {
		p.mu.Unlock()
		return
	}
	p.elapsed = dur
	if p.skipped {
		p.mu.Unlock()
		return
	}
	p.skipped = true
	p.mu.Unlock()

	err := p.ctl.Skip(ctx)
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrEndOfList):
		p.log.WithField("entry", active.ID).Debug("playback: end of playlist")
	default:
		p.log.WithError(err).WithField("entry", active.ID).Warn("playback: advance")
		p.mu.Lock()
		p.skipped = false
		p.mu.Unlock()
	}
}
