package service

import (
	"context"
	"errors"
	"fmt"

	"seest/internal/domain/notification/model"
	"seest/internal/domain/notification/repository"
	"seest/internal/pkg/push"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/worker"
	"seest/pkg/logger"
	"seest/pkg/metrics"

	"go.uber.org/zap"
)

const Table = "notifications"

var ErrInvalidNotification = errors.New("notification needs a recipient, an actor and a valid type")

type NotificationService interface {
	// Notify 发送通知，给自己的通知直接忽略
	Notify(ctx context.Context, d model.Draft) error
	// NotifyMany 同一内容发给多个接收者
	NotifyMany(ctx context.Context, recipients []string, d model.Draft) error
	List(ctx context.Context, recipientID string, limit int) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) error
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	HasUnread(ctx context.Context, recipientID string) (bool, error)
}

type notificationService struct {
	repo   repository.NotificationRepository
	feed   realtime.Publisher
	pusher push.Pusher        // 可为空
	pool   *worker.WorkerPool // 推送异步执行，可为空
}

func NewNotificationService(repo repository.NotificationRepository, feed realtime.Publisher, pusher push.Pusher, pool *worker.WorkerPool) NotificationService {
	return &notificationService{repo: repo, feed: feed, pusher: pusher, pool: pool}
}

func validDraft(d model.Draft) bool {
	if d.RecipientID == "" || d.ActorID == "" {
		return false
	}
	switch d.Type {
	case model.TypeLike, model.TypeComment, model.TypeFollow, model.TypeAsk:
		return true
	}
	return false
}

func (s *notificationService) Notify(ctx context.Context, d model.Draft) error {
	if d.RecipientID == d.ActorID {
		return nil
	}
	if !validDraft(d) {
		return ErrInvalidNotification
	}

	n := &model.Notification{
		RecipientID: d.RecipientID,
		ActorID:     d.ActorID,
		Type:        d.Type,
		Text:        d.Text,
		EntityID:    d.EntityID,
	}
	err := s.repo.Create(ctx, n)
	metrics.GetGlobalCollector().RecordMutation("notification", "create", err)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.publish(ctx, n)
	s.push(n)
	return nil
}

func (s *notificationService) NotifyMany(ctx context.Context, recipients []string, d model.Draft) error {
	seen := make(map[string]bool, len(recipients))
	batch := make([]*model.Notification, 0, len(recipients))
	for _, r := range recipients {
		if r == d.ActorID || seen[r] {
			continue
		}
		seen[r] = true
		draft := d
		draft.RecipientID = r
		if !validDraft(draft) {
			return ErrInvalidNotification
		}
		batch = append(batch, &model.Notification{
			RecipientID: r,
			ActorID:     d.ActorID,
			Type:        d.Type,
			Text:        d.Text,
			EntityID:    d.EntityID,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	err := s.repo.CreateBatch(ctx, batch)
	metrics.GetGlobalCollector().RecordMutation("notification", "create_batch", err)
	if err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}
	for _, n := range batch {
		s.publish(ctx, n)
		s.push(n)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, recipientID string, limit int) ([]model.Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, limit)
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipientID string) error {
	affected, err := s.repo.MarkAllRead(ctx, recipientID)
	metrics.GetGlobalCollector().RecordMutation("notification", "mark_read", err)
	if err != nil {
		return err
	}
	if affected > 0 {
		// 批量更新只发一条变更，订阅方按接收者过滤后整体刷新
		if err := realtime.PublishRecord(ctx, s.feed, Table, realtime.Update, "", map[string]string{"recipient_id": recipientID}); err != nil {
			logger.Log.Warn("Publish change failed", zap.String("table", Table), zap.Error(err))
		}
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

func (s *notificationService) HasUnread(ctx context.Context, recipientID string) (bool, error) {
	n, err := s.UnreadCount(ctx, recipientID)
	return n > 0, err
}

func (s *notificationService) publish(ctx context.Context, n *model.Notification) {
	if err := realtime.PublishModel(ctx, s.feed, Table, realtime.Insert, n.ID, n); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", Table), zap.Error(err))
	}
}

func (s *notificationService) push(n *model.Notification) {
	if s.pusher == nil || s.pool == nil {
		return
	}
	ext := map[string]string{"type": string(n.Type), "entityId": n.EntityID}
	s.pool.Submit(worker.Task{
		Name: "push",
		Run: func(ctx context.Context) error {
			return s.pusher.PushToAccount(n.RecipientID, "Seest", n.Text, ext)
		},
	})
}
