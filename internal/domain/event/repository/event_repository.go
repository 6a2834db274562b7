package repository

import (
	"context"
	"time"

	"seest/internal/domain/event/model"
	baseModel "seest/pkg/model"

	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	ListLive(ctx context.Context) ([]model.Event, error)
	// Save 按版本号写回成员列表、置顶与状态
	Save(ctx context.Context, e *model.Event, expectedVersion int64) error
	// SaveWithComment 写回直播间并新增评论，同一事务
	SaveWithComment(ctx context.Context, e *model.Event, expectedVersion int64, c *model.Comment) error
	// SaveWithoutComment 写回直播间并删除评论，同一事务
	SaveWithoutComment(ctx context.Context, e *model.Event, expectedVersion int64, commentID string) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, e *model.Event) error {
	return r.db.WithContext(ctx).Omit("Comments").Create(e).Error
}

func (r *eventRepository) withComments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at asc")
	})
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := r.withComments(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepository) ListLive(ctx context.Context) ([]model.Event, error) {
	var list []model.Event
	err := r.withComments(ctx).Where("status = ?", model.StatusLive).Order("created_at desc").Find(&list).Error
	return list, err
}

func (r *eventRepository) Save(ctx context.Context, e *model.Event, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return save(tx, e, expectedVersion)
	})
}

func (r *eventRepository) SaveWithComment(ctx context.Context, e *model.Event, expectedVersion int64, c *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := save(tx, e, expectedVersion); err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}

func (r *eventRepository) SaveWithoutComment(ctx context.Context, e *model.Event, expectedVersion int64, commentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := save(tx, e, expectedVersion); err != nil {
			return err
		}
		res := tx.Where("id = ? AND event_id = ?", commentID, e.ID).Delete(&model.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func save(tx *gorm.DB, e *model.Event, expectedVersion int64) error {
	res := tx.Model(&model.Event{}).
		Where("id = ? AND version = ?", e.ID, expectedVersion).
		Updates(map[string]interface{}{
			"speakers":          e.Speakers,
			"listeners":         e.Listeners,
			"moderators":        e.Moderators,
			"muted_speakers":    e.MutedSpeakers,
			"pinned_comment_id": e.PinnedCommentID,
			"status":            e.Status,
			"version":           baseModel.NextVersion(),
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return baseModel.ErrVersionConflict
	}
	e.Version = expectedVersion + 1
	return nil
}
