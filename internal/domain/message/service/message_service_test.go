package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"seest/internal/domain/message/model"
	"seest/internal/pkg/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageRepository) Between(ctx context.Context, userID, peerID string) ([]model.Message, error) {
	args := m.Called(ctx, userID, peerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (p *recordingPublisher) Publish(_ context.Context, c realtime.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func strPtr(s string) *string { return &s }

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *MockMessageRepository, pub realtime.Publisher) *messageService {
	return &messageService{repo: repo, feed: pub, now: func() time.Time { return testNow }}
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Text or image required", func(t *testing.T) {
		repo := new(MockMessageRepository)
		svc := newTestService(repo, realtime.Discard{})

		_, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "b", Text: strPtr("   ")})
		assert.ErrorIs(t, err, ErrEmptyMessage)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("Cannot message yourself", func(t *testing.T) {
		repo := new(MockMessageRepository)
		svc := newTestService(repo, realtime.Discard{})

		_, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "a", Text: strPtr("hi")})
		assert.ErrorIs(t, err, ErrSelfMessage)
	})

	t.Run("Unknown receiver", func(t *testing.T) {
		repo := new(MockMessageRepository)
		repo.On("UserExists", ctx, "ghost").Return(false, nil)
		svc := newTestService(repo, realtime.Discard{})

		_, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "ghost", Text: strPtr("hi")})
		assert.ErrorIs(t, err, ErrReceiverNotFound)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("Image only message is stored and published", func(t *testing.T) {
		repo := new(MockMessageRepository)
		repo.On("UserExists", ctx, "b").Return(true, nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*model.Message")).Return(nil)
		pub := &recordingPublisher{}
		svc := newTestService(repo, pub)

		msg, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "b", ImageURL: strPtr("https://img/x.png")})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Nil(t, msg.Text)
		assert.Equal(t, testNow, msg.CreatedAt)

		require.Len(t, pub.changes, 1)
		c := pub.changes[0]
		assert.Equal(t, Table, c.Table)
		assert.Equal(t, realtime.Insert, c.Type)

		var row map[string]interface{}
		require.NoError(t, json.Unmarshal(c.Record, &row))
		assert.Equal(t, "a", row["sender_id"])
		assert.Equal(t, "b", row["receiver_id"])
		assert.True(t, realtime.Filter{AnyOf: map[string]string{"receiver_id": "b"}}.Accept(c))
	})

	t.Run("Text is trimmed", func(t *testing.T) {
		repo := new(MockMessageRepository)
		repo.On("UserExists", ctx, "b").Return(true, nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*model.Message")).Return(nil)
		svc := newTestService(repo, realtime.Discard{})

		msg, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "b", Text: strPtr("  hello  ")})
		require.NoError(t, err)
		require.NotNil(t, msg.Text)
		assert.Equal(t, "hello", *msg.Text)
	})

	t.Run("Insert failure is returned", func(t *testing.T) {
		repo := new(MockMessageRepository)
		repo.On("UserExists", ctx, "b").Return(true, nil)
		repo.On("Insert", ctx, mock.Anything).Return(errors.New("boom"))
		pub := &recordingPublisher{}
		svc := newTestService(repo, pub)

		_, err := svc.Send(ctx, "a", model.SendInput{ReceiverID: "b", Text: strPtr("hi")})
		assert.Error(t, err)
		assert.Empty(t, pub.changes)
	})
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	at := func(min int) time.Time { return testNow.Add(time.Duration(min) * time.Minute) }
	msgs := []model.Message{
		{ID: "1", SenderID: "a", ReceiverID: "b", CreatedAt: at(1)},
		{ID: "2", SenderID: "c", ReceiverID: "a", CreatedAt: at(2)},
		{ID: "3", SenderID: "b", ReceiverID: "a", CreatedAt: at(3)},
	}
	repo := new(MockMessageRepository)
	repo.On("ListForUser", ctx, "a").Return(msgs, nil)
	svc := newTestService(repo, realtime.Discard{})

	convs, err := svc.Conversations(ctx, "a")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "b", convs[0].PeerID)
	assert.Equal(t, []string{"1", "3"}, []string{convs[0].Messages[0].ID, convs[0].Messages[1].ID})
	assert.Equal(t, "c", convs[1].PeerID)
	assert.Equal(t, at(3), convs[0].LastAt)
}
