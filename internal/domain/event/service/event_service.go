package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"seest/internal/domain/event/model"
	"seest/internal/domain/event/repository"
	"seest/internal/pkg/realtime"
	"seest/pkg/logger"
	"seest/pkg/metrics"
	baseModel "seest/pkg/model"
	"seest/pkg/validator"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TableEvents   = "events"
	TableComments = "event_comments"

	// maxAttempts 版本冲突时的最大尝试次数
	maxAttempts = 3
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrEventEnded      = errors.New("event has ended")
	ErrNotAllowed      = errors.New("you are not allowed to do this in this event")
	ErrCommentNotFound = errors.New("comment not found")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrInvalidTarget   = errors.New("target user is not a valid participant")
)

var (
	titleValidator       = validator.NewStringValidator("title", 1, 50, true)
	descriptionValidator = validator.NewStringValidator("description", 0, 200, false)
	commentValidator     = validator.NewStringValidator("text", 1, 500, true)
)

type EventService interface {
	Create(ctx context.Context, actorID string, in model.CreateInput) (*model.Event, error)
	Get(ctx context.Context, id string) (*model.Event, error)
	ListLive(ctx context.Context) ([]model.Event, error)

	Join(ctx context.Context, actorID, id string) (*model.Event, error)
	Leave(ctx context.Context, actorID, id string) (*model.Event, error)
	Comment(ctx context.Context, actorID, id, text string) (*model.Comment, error)
	DeleteComment(ctx context.Context, actorID, id, commentID string) (*model.Event, error)
	// Pin 置顶评论，置顶已置顶的评论即取消
	Pin(ctx context.Context, actorID, id, commentID string) (*model.Event, error)
	Unpin(ctx context.Context, actorID, id string) (*model.Event, error)
	ToggleModerator(ctx context.Context, actorID, id, targetID string) (*model.Event, error)
	ToggleMute(ctx context.Context, actorID, id, targetID string) (*model.Event, error)
	End(ctx context.Context, actorID, id string) (*model.Event, error)
}

type eventService struct {
	repo repository.EventRepository
	feed realtime.Publisher
}

func NewEventService(repo repository.EventRepository, feed realtime.Publisher) EventService {
	return &eventService{repo: repo, feed: feed}
}

func (s *eventService) Create(ctx context.Context, actorID string, in model.CreateInput) (*model.Event, error) {
	title := strings.TrimSpace(in.Title)
	if err := titleValidator.Validate(title); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	description := strings.TrimSpace(in.Description)
	if err := descriptionValidator.Validate(description); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if in.Type != model.TypeStandUp && in.Type != model.TypePodcast {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, in.Type)
	}

	// 创建者总是第一位嘉宾；只有播客邀请嘉宾，去重
	speakers := pq.StringArray{actorID}
	invited := 0
	for _, id := range in.Speakers {
		if in.Type != model.TypePodcast {
			break
		}
		if id == "" || model.Has(speakers, id) {
			continue
		}
		speakers = append(speakers, id)
		invited++
	}
	if in.Type == model.TypePodcast && (invited < model.MinPodcastSpeakers || invited > model.MaxPodcastSpeakers) {
		return nil, fmt.Errorf("%w: a podcast needs %d to %d invited speakers", ErrInvalidEvent, model.MinPodcastSpeakers, model.MaxPodcastSpeakers)
	}

	e := &model.Event{
		CreatorID:     actorID,
		Title:         title,
		Description:   description,
		Type:          in.Type,
		Speakers:      speakers,
		Listeners:     pq.StringArray{},
		Moderators:    pq.StringArray{},
		MutedSpeakers: pq.StringArray{},
		Status:        model.StatusLive,
		CoverImage:    in.CoverImage,
		Comments:      []model.Comment{},
	}
	e.Version = 1
	err := s.repo.Create(ctx, e)
	metrics.GetGlobalCollector().RecordMutation("event", "create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TableEvents, realtime.Insert, e.ID, e)
	return e, nil
}

func (s *eventService) Get(ctx context.Context, id string) (*model.Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func (s *eventService) ListLive(ctx context.Context) ([]model.Event, error) {
	return s.repo.ListLive(ctx)
}

// persistFunc 写回修改后的直播间
type persistFunc func(ctx context.Context, e *model.Event, version int64) error

// mutate 读取、校验权限、修改、按版本写回；版本冲突时重新读取重试
func (s *eventService) mutate(ctx context.Context, actorID, id string, action model.Action, change func(e *model.Event) error, persist persistFunc) (*model.Event, error) {
	if persist == nil {
		persist = s.repo.Save
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		e, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, notFound(err)
		}
		if e.Status != model.StatusLive {
			return nil, ErrEventEnded
		}
		if !model.Allowed(action, model.RoleOf(e, actorID)) {
			return nil, ErrNotAllowed
		}
		if err := change(e); err != nil {
			return nil, err
		}

		err = persist(ctx, e, e.Version)
		if errors.Is(err, baseModel.ErrVersionConflict) {
			lastErr = err
			logger.Log.Debug("Event version conflict, retrying",
				zap.String("event", id), zap.String("action", string(action)), zap.Int("attempt", attempt+1))
			continue
		}
		metrics.GetGlobalCollector().RecordMutation("event", string(action), err)
		if err != nil {
			return nil, notFound(err)
		}
		s.publish(ctx, TableEvents, realtime.Update, e.ID, e)
		return e, nil
	}
	metrics.GetGlobalCollector().RecordMutation("event", string(action), lastErr)
	return nil, lastErr
}

func (s *eventService) Join(ctx context.Context, actorID, id string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionJoin, func(e *model.Event) error {
		if !model.Has(e.Listeners, actorID) {
			e.Listeners = append(e.Listeners, actorID)
		}
		return nil
	}, nil)
}

func (s *eventService) Leave(ctx context.Context, actorID, id string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionLeave, func(e *model.Event) error {
		e.Listeners = model.Remove(e.Listeners, actorID)
		if !model.Has(e.Speakers, actorID) {
			e.Moderators = model.Remove(e.Moderators, actorID)
		}
		return nil
	}, nil)
}

func (s *eventService) Comment(ctx context.Context, actorID, id, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if err := commentValidator.Validate(text); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var comment *model.Comment
	_, err := s.mutate(ctx, actorID, id, model.ActionComment, func(e *model.Event) error {
		comment = &model.Comment{EventID: e.ID, UserID: actorID, Text: text}
		return nil
	}, func(ctx context.Context, e *model.Event, version int64) error {
		if err := s.repo.SaveWithComment(ctx, e, version, comment); err != nil {
			return err
		}
		e.Comments = append(e.Comments, *comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TableComments, realtime.Insert, comment.ID, comment)
	return comment, nil
}

func (s *eventService) DeleteComment(ctx context.Context, actorID, id, commentID string) (*model.Event, error) {
	var removed model.Comment
	e, err := s.mutate(ctx, actorID, id, model.ActionDeleteComment, func(e *model.Event) error {
		c, ok := e.FindComment(commentID)
		if !ok {
			return ErrCommentNotFound
		}
		removed = *c
		if e.PinnedCommentID != nil && *e.PinnedCommentID == commentID {
			e.PinnedCommentID = nil
		}
		return nil
	}, func(ctx context.Context, e *model.Event, version int64) error {
		if err := s.repo.SaveWithoutComment(ctx, e, version, commentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCommentNotFound
			}
			return err
		}
		kept := e.Comments[:0]
		for _, c := range e.Comments {
			if c.ID != commentID {
				kept = append(kept, c)
			}
		}
		e.Comments = kept
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TableComments, realtime.Delete, removed.ID, &removed)
	return e, nil
}

func (s *eventService) Pin(ctx context.Context, actorID, id, commentID string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionPin, func(e *model.Event) error {
		if _, ok := e.FindComment(commentID); !ok {
			return ErrCommentNotFound
		}
		if e.PinnedCommentID != nil && *e.PinnedCommentID == commentID {
			e.PinnedCommentID = nil
			return nil
		}
		pinned := commentID
		e.PinnedCommentID = &pinned
		return nil
	}, nil)
}

func (s *eventService) Unpin(ctx context.Context, actorID, id string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionPin, func(e *model.Event) error {
		e.PinnedCommentID = nil
		return nil
	}, nil)
}

func (s *eventService) ToggleModerator(ctx context.Context, actorID, id, targetID string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionToggleModerator, func(e *model.Event) error {
		if targetID == e.CreatorID || !(model.Has(e.Speakers, targetID) || model.Has(e.Listeners, targetID)) {
			return ErrInvalidTarget
		}
		e.Moderators = model.Toggle(e.Moderators, targetID)
		return nil
	}, nil)
}

func (s *eventService) ToggleMute(ctx context.Context, actorID, id, targetID string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionToggleMute, func(e *model.Event) error {
		if !model.Has(e.Speakers, targetID) {
			return ErrInvalidTarget
		}
		e.MutedSpeakers = model.Toggle(e.MutedSpeakers, targetID)
		return nil
	}, nil)
}

// End 结束直播间，所有听众随之离开
func (s *eventService) End(ctx context.Context, actorID, id string) (*model.Event, error) {
	return s.mutate(ctx, actorID, id, model.ActionEnd, func(e *model.Event) error {
		e.Status = model.StatusEnded
		e.Listeners = pq.StringArray{}
		return nil
	}, nil)
}

func (s *eventService) publish(ctx context.Context, table string, typ realtime.ChangeType, id string, value interface{}) {
	if err := realtime.PublishModel(ctx, s.feed, table, typ, id, value); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", table), zap.Error(err))
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEventNotFound
	}
	return err
}
