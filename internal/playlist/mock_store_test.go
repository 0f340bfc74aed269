package playlist

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Masbahul-bari/audio-player/internal/events"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListTracks(ctx context.Context) ([]model.Track, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Track), args.Error(1)
}

func (m *MockStore) ListEntries(ctx context.Context) ([]model.Entry, error) {
	args := m.Called(ctx)
	return entriesResult(args)
}

func (m *MockStore) InsertEntry(ctx context.Context, trackID, addedBy string, pos *float64) (*model.Entry, error) {
	args := m.Called(ctx, trackID, addedBy, pos)
	return entryResult(args)
}

func (m *MockStore) UpdatePosition(ctx context.Context, id string, pos float64) (*model.Entry, error) {
	args := m.Called(ctx, id, pos)
	return entryResult(args)
}

func (m *MockStore) SetPlaying(ctx context.Context, id string, playing bool) (*model.Entry, error) {
	args := m.Called(ctx, id, playing)
	return entryResult(args)
}

func (m *MockStore) RemoveEntry(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Vote(ctx context.Context, id string, delta int) (*model.Entry, error) {
	args := m.Called(ctx, id, delta)
	return entryResult(args)
}

func (m *MockStore) Reorder(ctx context.Context, id string, targetIndex int) ([]model.Entry, error) {
	args := m.Called(ctx, id, targetIndex)
	return entriesResult(args)
}

func (m *MockStore) Rebalance(ctx context.Context) ([]model.Entry, error) {
	args := m.Called(ctx)
	return entriesResult(args)
}

func entryResult(args mock.Arguments) (*model.Entry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Entry), args.Error(1)
}

func entriesResult(args mock.Arguments) ([]model.Entry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Entry), args.Error(1)
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(ctx context.Context, ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturePublisher) published() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.events...)
}
