package mocks

import (
	"context"
	"time"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/pkg/history"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*Service)(nil)

type Service struct {
	mock.Mock
}

func (m *Service) Run(ctx context.Context, numRounds int, timeout time.Duration) (history.Snapshot, error) {
	args := m.Called(ctx, numRounds, timeout)

	return args.Get(0).(history.Snapshot), args.Error(1)
}

func (m *Service) Status(ctx context.Context) (coordinator.Status, error) {
	args := m.Called(ctx)

	return args.Get(0).(coordinator.Status), args.Error(1)
}

func (m *Service) History(ctx context.Context) (history.Snapshot, error) {
	args := m.Called(ctx)

	return args.Get(0).(history.Snapshot), args.Error(1)
}

func (m *Service) ListClients(ctx context.Context, offset, limit uint64) (coordinator.ClientPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.ClientPage), args.Error(1)
}

func (m *Service) RemoveClient(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}
