package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"seest/internal/domain/notification/model"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationRepository is a mock of NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	if n.ID == "" {
		n.ID = "n-1"
	}
	return args.Error(0)
}

func (m *MockNotificationRepository) CreateBatch(ctx context.Context, ns []*model.Notification) error {
	args := m.Called(ctx, ns)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	args := m.Called(ctx, recipientID, limit)
	return args.Get(0).([]model.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

type recordingPusher struct {
	mu       sync.Mutex
	accounts []string
}

func (p *recordingPusher) PushToAccount(accountID, title, body string, ext map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts = append(p.accounts, accountID)
	return nil
}

func (p *recordingPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.accounts)
}

func TestNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("Self notification is skipped", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)

		err := svc.Notify(ctx, model.Draft{RecipientID: "a", ActorID: "a", Type: model.TypeLike})
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Invalid type rejected", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)

		err := svc.Notify(ctx, model.Draft{RecipientID: "a", ActorID: "b", Type: "poke"})
		assert.ErrorIs(t, err, ErrInvalidNotification)
	})

	t.Run("Persists, publishes and pushes", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		repo.On("Create", ctx, mock.AnythingOfType("*model.Notification")).Return(nil)

		hub := realtime.NewHub(4)
		sctx, cancel := context.WithCancel(ctx)
		defer cancel()
		changes, err := hub.Subscribe(sctx, realtime.Filter{
			Tables: []string{Table},
			AnyOf:  map[string]string{"recipient_id": "b"},
		})
		require.NoError(t, err)

		pool := worker.NewWorkerPool(1, 4, 0)
		pool.Start()
		defer pool.Stop()
		pusher := &recordingPusher{}

		svc := NewNotificationService(repo, hub, pusher, pool)
		err = svc.Notify(ctx, model.Draft{RecipientID: "b", ActorID: "a", Type: model.TypeFollow, Text: "a followed you"})
		require.NoError(t, err)

		select {
		case c := <-changes:
			assert.Equal(t, realtime.Insert, c.Type)
		case <-time.After(time.Second):
			t.Fatal("no change published")
		}
		assert.Eventually(t, func() bool { return pusher.count() == 1 }, time.Second, 5*time.Millisecond)
		repo.AssertExpectations(t)
	})

	t.Run("Repository error is returned", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))
		svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)

		err := svc.Notify(ctx, model.Draft{RecipientID: "b", ActorID: "a", Type: model.TypeLike})
		assert.ErrorContains(t, err, "db down")
	})
}

func TestNotifyMany(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	repo.On("CreateBatch", ctx, mock.MatchedBy(func(ns []*model.Notification) bool {
		if len(ns) != 2 {
			return false
		}
		return ns[0].RecipientID == "b" && ns[1].RecipientID == "c" && ns[0].Type == model.TypeAsk
	})).Return(nil)

	svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)
	err := svc.NotifyMany(ctx, []string{"b", "a", "c", "b"}, model.Draft{ActorID: "a", Type: model.TypeAsk, Text: "New anonymous question"})

	assert.NoError(t, err)
	repo.AssertExpectations(t)

	t.Run("Only the actor means nothing to send", func(t *testing.T) {
		repo := new(MockNotificationRepository)
		svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)
		assert.NoError(t, svc.NotifyMany(ctx, []string{"a"}, model.Draft{ActorID: "a", Type: model.TypeAsk}))
		repo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
	})
}

func TestUnread(t *testing.T) {
	ctx := context.Background()
	repo := new(MockNotificationRepository)
	repo.On("CountUnread", ctx, "b").Return(int64(2), nil)
	repo.On("MarkAllRead", ctx, "b").Return(int64(2), nil)

	svc := NewNotificationService(repo, realtime.Discard{}, nil, nil)

	has, err := svc.HasUnread(ctx, "b")
	require.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, svc.MarkAllRead(ctx, "b"))
	repo.AssertExpectations(t)
}
