// Package reconcile merges a client's optimistic edits with the events the
// Playlist Service broadcasts. Every change to the local list runs on one
// goroutine, in submission order, so an optimistic apply, an inbound event
// and a rollback never interleave.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Masbahul-bari/audio-player/internal/channel"
	"github.com/Masbahul-bari/audio-player/internal/client"
	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/liststore"
	"github.com/Masbahul-bari/audio-player/internal/metrics"
	"github.com/Masbahul-bari/audio-player/internal/model"
	"github.com/Masbahul-bari/audio-player/internal/position"
)

var (
	// ErrInFlight is returned when an entry already has an unconfirmed
	// mutation.
	ErrInFlight = errors.New("entry has a mutation in flight")
	// ErrExhausted is returned when no key fits between two neighbours even
	// after a rebalance.
	ErrExhausted   = errors.New("no position left between neighbours")
	ErrEndOfList   = errors.New("no entry after the active one")
	ErrStopped     = errors.New("engine stopped")
	errNeedsRebase = errors.New("neighbour gap exhausted")
)

// PlaceholderPrefix marks ids of optimistic inserts not yet confirmed.
const PlaceholderPrefix = "pending-"

// Service is the part of the Playlist Service the engine calls.
type Service interface {
	ListEntries(ctx context.Context) ([]model.Entry, error)
	InsertEntry(ctx context.Context, trackID, addedBy string, position *float64) (*model.Entry, error)
	UpdateEntry(ctx context.Context, id string, upd client.EntryUpdate) (*model.Entry, error)
	RemoveEntry(ctx context.Context, id string) error
	Vote(ctx context.Context, id string, dir model.Direction) (*model.Entry, error)
	Rebalance(ctx context.Context) ([]model.Entry, error)
}

type Config struct {
	RequestTimeout time.Duration
	QueueSize      int
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout: 10 * time.Second,
		QueueSize:      256,
	}
}

// Update is sent to subscribers after every visible change.
type Update struct {
	View    liststore.Snapshot
	Session channel.Session
}

type Engine struct {
	svc   Service
	cfg   Config
	log   logrus.FieldLogger
	store *liststore.Store

	actions chan func()
	stopped chan struct{}
	started chan struct{}
	runCtx  context.Context
	once    sync.Once

	// owned by the loop
	seq         uint64
	pending     map[string]uint64
	journals    map[int][]events.Event
	nextJournal int

	inflight atomic.Int64

	mu      sync.Mutex
	session channel.Session

	subsMu  sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

func New(svc Service, cfg Config, log logrus.FieldLogger) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Engine{
		svc:     svc,
		cfg:     cfg,
		log:     log.WithField("component", "reconcile"),
		store:   liststore.New(),
		actions: make(chan func(), cfg.QueueSize),
		stopped: make(chan struct{}),
		started: make(chan struct{}),
		pending:  make(map[string]uint64),
		journals: make(map[int][]events.Event),
		session: channel.Session{State: channel.Closed},
		subs:    make(map[int]chan Update),
	}
}

// Run executes queued state transitions until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.once.Do(func() { close(e.started) })
	defer close(e.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.actions:
			fn()
		}
	}
}

// View returns the current list. Safe from any goroutine.
func (e *Engine) View() liststore.Snapshot {
	return e.store.View()
}

func (e *Engine) Session() channel.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Subscribe returns a channel that receives the latest Update after every
// change. A slow reader only sees the most recent one.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan Update, 1)
	e.subs[id] = ch
	return ch, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		delete(e.subs, id)
	}
}

// Deliver queues an authoritative event.
func (e *Engine) Deliver(ev events.Event) {
	e.enqueue(func() { e.applyEvent(ev) })
}

// HandleStatus records the channel session. Every transition into Open
// triggers a resync, since events may have been missed while closed.
func (e *Engine) HandleStatus(s channel.Session) {
	e.mu.Lock()
	prev := e.session
	e.session = s
	e.mu.Unlock()

	e.notify()

	if s.State == channel.Open && prev.State != channel.Open {
		go func() {
			select {
			case <-e.started:
			case <-e.stopped:
				return
			}
			if err := e.Resync(e.runCtx); err != nil {
				e.log.WithError(err).Warn("reconcile: resync")
			}
		}()
	}
}

// Resync replaces the local list with the service's.
func (e *Engine) Resync(ctx context.Context) error {
	err := e.replaceList(ctx, func(ctx context.Context) (entries []model.Entry, err error) {
		err = e.call(ctx, func(ctx context.Context) error {
			entries, err = e.svc.ListEntries(ctx)
			return err
		})
		return entries, err
	})
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	return nil
}

// replaceList applies the list returned by fetch as a full replace. Events
// applied while fetch is in flight may be newer than the fetched list, so
// they are replayed on top of it. Every event carries absolute values, so a
// replay of one already reflected in the list changes nothing.
func (e *Engine) replaceList(ctx context.Context, fetch func(context.Context) ([]model.Entry, error)) error {
	var id int
	if err := e.exec(ctx, func() {
		id = e.nextJournal
		e.nextJournal++
		e.journals[id] = nil
	}); err != nil {
		return err
	}

	entries, err := fetch(ctx)

	// The journal is closed even when ctx is done; exec only gives up once
	// the loop has stopped.
	xerr := e.exec(context.Background(), func() {
		missed := e.journals[id]
		delete(e.journals, id)
		if err != nil {
			return
		}
		e.applyEvent(events.PlaylistReordered{Entries: entries})
		for _, ev := range missed {
			e.applyEvent(ev)
		}
	})
	if err != nil {
		return err
	}
	return xerr
}

// Insert queues track at display index and waits for the service.
func (e *Engine) Insert(ctx context.Context, track model.Track, index int, addedBy string) (*model.Entry, error) {
	entry, err := e.insert(ctx, track, index, addedBy)
	if errors.Is(err, errNeedsRebase) {
		if rerr := e.rebalance(ctx); rerr != nil {
			return nil, rerr
		}
		entry, err = e.insert(ctx, track, index, addedBy)
		if errors.Is(err, errNeedsRebase) {
			return nil, ErrExhausted
		}
	}
	return entry, err
}

func (e *Engine) insert(ctx context.Context, track model.Track, index int, addedBy string) (*model.Entry, error) {
	placeholder := PlaceholderPrefix + uuid.NewString()
	var (
		seq uint64
		pos float64
		err error
	)
	if xerr := e.exec(ctx, func() {
		view := e.store.View()
		prev, next := position.Bounds(index, view.Positions(""))
		if position.Exhausted(prev, next) {
			err = errNeedsRebase
			return
		}
		pos = position.Allocate(prev, next)
		seq, err = e.begin(liststore.Mutation{
			Kind: liststore.KindInsert,
			Entry: model.Entry{
				ID:       placeholder,
				TrackID:  track.ID,
				Track:    track,
				Position: pos,
				AddedBy:  addedBy,
				AddedAt:  time.Now().UTC(),
			},
		})
	}); xerr != nil {
		return nil, xerr
	}
	if err != nil {
		return nil, err
	}

	var entry *model.Entry
	err = e.call(ctx, func(ctx context.Context) error {
		var cerr error
		entry, cerr = e.svc.InsertEntry(ctx, track.ID, addedBy, &pos)
		return cerr
	})
	e.finish(seq, placeholder, liststore.KindInsert, entry, err)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Move places id at display index among the other entries.
func (e *Engine) Move(ctx context.Context, id string, index int) error {
	err := e.move(ctx, id, index)
	if errors.Is(err, errNeedsRebase) {
		if rerr := e.rebalance(ctx); rerr != nil {
			return rerr
		}
		err = e.move(ctx, id, index)
		if errors.Is(err, errNeedsRebase) {
			return ErrExhausted
		}
	}
	return err
}

func (e *Engine) move(ctx context.Context, id string, index int) error {
	var (
		seq uint64
		pos float64
		err error
	)
	if xerr := e.exec(ctx, func() {
		view := e.store.View()
		if view.Index(id) < 0 {
			err = fmt.Errorf("%w: %s", client.ErrNotFound, id)
			return
		}
		prev, next := position.Bounds(index, view.Positions(id))
		if position.Exhausted(prev, next) {
			err = errNeedsRebase
			return
		}
		pos = position.Allocate(prev, next)
		seq, err = e.begin(liststore.Mutation{Kind: liststore.KindMove, ItemID: id, Position: pos})
	}); xerr != nil {
		return xerr
	}
	if err != nil {
		return err
	}

	var entry *model.Entry
	err = e.call(ctx, func(ctx context.Context) error {
		var cerr error
		entry, cerr = e.svc.UpdateEntry(ctx, id, client.EntryUpdate{Position: &pos})
		return cerr
	})
	e.finish(seq, id, liststore.KindMove, entry, err)
	return err
}

// Vote applies dir locally and sends it. The service's absolute count
// replaces the local one on confirmation.
func (e *Engine) Vote(ctx context.Context, id string, dir model.Direction) error {
	seq, err := e.beginOnLoop(ctx, liststore.Mutation{Kind: liststore.KindVote, ItemID: id, Delta: dir.Delta()})
	if err != nil {
		return err
	}
	var entry *model.Entry
	err = e.call(ctx, func(ctx context.Context) error {
		var cerr error
		entry, cerr = e.svc.Vote(ctx, id, dir)
		return cerr
	})
	e.finish(seq, id, liststore.KindVote, entry, err)
	return err
}

// Remove deletes id. An entry the service no longer has counts as removed.
func (e *Engine) Remove(ctx context.Context, id string) error {
	seq, err := e.beginOnLoop(ctx, liststore.Mutation{Kind: liststore.KindRemove, ItemID: id})
	if err != nil {
		return err
	}
	err = e.call(ctx, func(ctx context.Context) error {
		return e.svc.RemoveEntry(ctx, id)
	})
	if errors.Is(err, client.ErrNotFound) {
		err = nil
	}
	e.finish(seq, id, liststore.KindRemove, nil, err)
	return err
}

// Activate marks id as the playing entry.
func (e *Engine) Activate(ctx context.Context, id string) error {
	seq, err := e.beginOnLoop(ctx, liststore.Mutation{Kind: liststore.KindActivate, ItemID: id})
	if err != nil {
		return err
	}
	playing := true
	var entry *model.Entry
	err = e.call(ctx, func(ctx context.Context) error {
		var cerr error
		entry, cerr = e.svc.UpdateEntry(ctx, id, client.EntryUpdate{IsPlaying: &playing})
		return cerr
	})
	e.finish(seq, id, liststore.KindActivate, entry, err)
	return err
}

// Skip activates the entry after the playing one, or the first entry when
// nothing is playing.
func (e *Engine) Skip(ctx context.Context) error {
	entries := e.store.View().Entries()
	next := -1
	if len(entries) > 0 {
		next = 0
	}
	for i, en := range entries {
		if en.IsPlaying {
			next = i + 1
			break
		}
	}
	if next < 0 || next >= len(entries) {
		return ErrEndOfList
	}
	return e.Activate(ctx, entries[next].ID)
}

// Pending reports how many mutations await the service. Safe from any
// goroutine, including before Run.
func (e *Engine) Pending() int {
	return int(e.inflight.Load())
}

func (e *Engine) beginOnLoop(ctx context.Context, m liststore.Mutation) (uint64, error) {
	var (
		seq uint64
		err error
	)
	if xerr := e.exec(ctx, func() { seq, err = e.begin(m) }); xerr != nil {
		return 0, xerr
	}
	return seq, err
}

// begin applies m optimistically. Runs on the loop.
func (e *Engine) begin(m liststore.Mutation) (uint64, error) {
	key := m.ItemID
	if m.Kind == liststore.KindInsert {
		key = m.Entry.ID
	}
	if _, busy := e.pending[key]; busy {
		return 0, fmt.Errorf("%w: %s", ErrInFlight, key)
	}

	e.seq++
	m.Seq = e.seq
	if _, err := e.store.ApplyOptimistic(m); err != nil {
		switch {
		case errors.Is(err, liststore.ErrDuplicate):
			return 0, fmt.Errorf("%w: %s", client.ErrDuplicateItem, m.Entry.TrackID)
		case errors.Is(err, liststore.ErrNotFound):
			return 0, fmt.Errorf("%w: %s", client.ErrNotFound, key)
		}
		return 0, err
	}
	e.pending[key] = m.Seq
	e.inflight.Add(1)
	e.notify()
	return m.Seq, nil
}

// finish confirms or rolls back seq once the service has answered.
func (e *Engine) finish(seq uint64, key string, kind liststore.Kind, result *model.Entry, err error) {
	_ = e.exec(context.Background(), func() {
		if _, ok := e.pending[key]; ok {
			delete(e.pending, key)
			e.inflight.Add(-1)
		}
		changed := false
		if err == nil {
			changed = e.store.Confirm(seq, result)
		} else {
			changed = e.store.Rollback(seq)
			metrics.Rollbacks.WithLabelValues(kind.String()).Inc()
			e.log.WithError(err).WithFields(logrus.Fields{
				"kind":  kind.String(),
				"entry": key,
			}).Info("reconcile: mutation rejected")
		}
		if changed {
			e.notify()
		}
	})
}

func (e *Engine) rebalance(ctx context.Context) error {
	err := e.replaceList(ctx, func(ctx context.Context) (entries []model.Entry, err error) {
		err = e.call(ctx, func(ctx context.Context) error {
			entries, err = e.svc.Rebalance(ctx)
			return err
		})
		return entries, err
	})
	if err != nil {
		return fmt.Errorf("rebalance: %w", err)
	}
	return nil
}

// applyEvent folds ev into the store. Runs on the loop.
func (e *Engine) applyEvent(ev events.Event) {
	switch ev.(type) {
	case events.Heartbeat:
		return
	case events.TrackAdded, events.TrackRemoved, events.TrackMoved,
		events.TrackVoted, events.TrackPlaying, events.PlaylistReordered:
	default:
		e.log.Errorf("reconcile: unhandled event %T", ev)
		return
	}

	for id, missed := range e.journals {
		e.journals[id] = append(missed, ev)
	}
	metrics.EventsApplied.WithLabelValues(string(ev.Type())).Inc()
	if e.store.ApplyAuthoritative(ev) {
		e.notify()
	}
}

// call runs fn with the request timeout applied.
func (e *Engine) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	return fn(ctx)
}

// exec runs fn on the loop and waits for it. Once queued, fn always runs
// unless the engine stops.
func (e *Engine) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case e.actions <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	}
}

func (e *Engine) enqueue(fn func()) {
	select {
	case e.actions <- fn:
	case <-e.stopped:
	}
}

func (e *Engine) notify() {
	u := Update{View: e.store.View(), Session: e.Session()}

	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}
