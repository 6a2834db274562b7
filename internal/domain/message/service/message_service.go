package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"seest/internal/domain/message/model"
	"seest/internal/domain/message/repository"
	"seest/internal/pkg/realtime"
	"seest/pkg/logger"
	"seest/pkg/metrics"
	"seest/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const Table = "messages"

var (
	ErrEmptyMessage     = errors.New("message needs text or an image")
	ErrSelfMessage      = errors.New("you cannot message yourself")
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrInvalidMessage   = errors.New("invalid message")
)

var textValidator = validator.NewStringValidator("text", 0, 1000, false)

type MessageService interface {
	Send(ctx context.Context, actorID string, in model.SendInput) (*model.Message, error)
	// ListForUser 用户发出或收到的全部私信，按时间升序
	ListForUser(ctx context.Context, userID string) ([]model.Message, error)
	Conversations(ctx context.Context, userID string) ([]model.Conversation, error)
	Conversation(ctx context.Context, userID, peerID string) ([]model.Message, error)
}

type messageService struct {
	repo repository.MessageRepository
	feed realtime.Publisher
	now  func() time.Time
}

func NewMessageService(repo repository.MessageRepository, feed realtime.Publisher) MessageService {
	return &messageService{repo: repo, feed: feed, now: time.Now}
}

func normalize(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *messageService) Send(ctx context.Context, actorID string, in model.SendInput) (*model.Message, error) {
	text, image := normalize(in.Text), normalize(in.ImageURL)
	if text == nil && image == nil {
		return nil, ErrEmptyMessage
	}
	if text != nil {
		if err := textValidator.Validate(*text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}
	if in.ReceiverID == actorID {
		return nil, ErrSelfMessage
	}
	exists, err := s.repo.UserExists(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrReceiverNotFound
	}

	m := &model.Message{
		ID:         uuid.New().String(),
		SenderID:   actorID,
		ReceiverID: in.ReceiverID,
		Text:       text,
		ImageURL:   image,
		CreatedAt:  s.now().UTC(),
	}
	err = s.repo.Insert(ctx, m)
	metrics.GetGlobalCollector().RecordMutation("message", "send", err)
	if err != nil {
		return nil, err
	}

	if err := realtime.PublishModel(ctx, s.feed, Table, realtime.Insert, m.ID, m); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", Table), zap.Error(err))
	}
	return m, nil
}

func (s *messageService) ListForUser(ctx context.Context, userID string) ([]model.Message, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *messageService) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	msgs, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return model.GroupConversations(userID, msgs), nil
}

func (s *messageService) Conversation(ctx context.Context, userID, peerID string) ([]model.Message, error) {
	return s.repo.Between(ctx, userID, peerID)
}
