package reconcile

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Masbahul-bari/audio-player/internal/client"
	"github.com/Masbahul-bari/audio-player/internal/model"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListEntries(ctx context.Context) ([]model.Entry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Entry), args.Error(1)
}

func (m *MockService) InsertEntry(ctx context.Context, trackID, addedBy string, position *float64) (*model.Entry, error) {
	args := m.Called(ctx, trackID, addedBy, position)
	return entryResult(args)
}

func (m *MockService) UpdateEntry(ctx context.Context, id string, upd client.EntryUpdate) (*model.Entry, error) {
	args := m.Called(ctx, id, upd)
	return entryResult(args)
}

func (m *MockService) RemoveEntry(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) Vote(ctx context.Context, id string, dir model.Direction) (*model.Entry, error) {
	args := m.Called(ctx, id, dir)
	return entryResult(args)
}

func (m *MockService) Rebalance(ctx context.Context) ([]model.Entry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Entry), args.Error(1)
}

func entryResult(args mock.Arguments) (*model.Entry, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Entry), args.Error(1)
}
