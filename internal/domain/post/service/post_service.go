package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	notificationModel "seest/internal/domain/notification/model"
	"seest/internal/domain/post/model"
	"seest/internal/domain/post/repository"
	userModel "seest/internal/domain/user/model"
	"seest/internal/pkg/config"
	"seest/internal/pkg/feed"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/worker"
	"seest/pkg/logger"
	"seest/pkg/metrics"
	baseModel "seest/pkg/model"
	"seest/pkg/validator"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TablePosts     = "posts"
	TableReactions = "post_reactions"
	TableComments  = "post_comments"
	TableReplies   = "post_replies"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotAuthor       = errors.New("only the author can change this post")
	ErrInvalidPost     = errors.New("invalid post")
	ErrInvalidReaction = errors.New("unsupported reaction")
	ErrWrongPostType   = errors.New("operation not supported for this post type")
)

var commentValidator = validator.NewStringValidator("text", 1, 500, true)

// Notifier 通知发送
type Notifier interface {
	Notify(ctx context.Context, d notificationModel.Draft) error
	NotifyMany(ctx context.Context, recipients []string, d notificationModel.Draft) error
}

// SocialGraph 关注关系与收藏查询
type SocialGraph interface {
	MutualsOf(ctx context.Context, userID string) ([]string, error)
	SavedPostIDs(ctx context.Context, userID string) ([]string, error)
}

type PostService interface {
	Create(ctx context.Context, actorID string, in model.CreateInput) (*model.PostView, error)
	Get(ctx context.Context, viewerID, id string) (*model.PostView, error)
	// ListActive 保留期内的动态加上 viewer 收藏的动态
	ListActive(ctx context.Context, viewerID string) ([]model.PostView, error)
	Update(ctx context.Context, actorID, id string, in model.UpdateInput) (*model.PostView, error)
	Delete(ctx context.Context, actorID, id string) error
	// React 切换表情，返回当前表情，已取消时为空
	React(ctx context.Context, actorID, id, emoji string) (string, error)
	Comment(ctx context.Context, actorID, id, text string) (*model.CommentView, error)
	Reply(ctx context.Context, actorID, id, text string) (*model.CommentView, error)
}

type postService struct {
	repo     repository.PostRepository
	social   SocialGraph
	notifier Notifier
	feed     realtime.Publisher
	pool     *worker.WorkerPool // 可为空，为空时同步扇出
	cfg      config.FeedConfig
	now      func() time.Time
}

func NewPostService(repo repository.PostRepository, social SocialGraph, notifier Notifier, publisher realtime.Publisher, pool *worker.WorkerPool, cfg config.FeedConfig) PostService {
	if cfg.Retention <= 0 {
		cfg.Retention = feed.RetentionWindow
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 100
	}
	return &postService{
		repo:     repo,
		social:   social,
		notifier: notifier,
		feed:     publisher,
		pool:     pool,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ValidateContent 校验正文、状态与媒体组合
func ValidateContent(text, activity string, media []model.Media, background *string) error {
	if utf8.RuneCountInString(text) > model.MaxTextLength {
		return fmt.Errorf("%w: text must be at most %d characters", ErrInvalidPost, model.MaxTextLength)
	}
	if !userModel.IsActivity(activity) {
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidPost, activity)
	}

	images, videos := 0, 0
	for _, m := range media {
		if m.URL == "" {
			return fmt.Errorf("%w: media url is empty", ErrInvalidPost)
		}
		switch m.Type {
		case model.MediaImage:
			images++
		case model.MediaVideo:
			videos++
		default:
			return fmt.Errorf("%w: unknown media type %q", ErrInvalidPost, m.Type)
		}
	}
	if videos > 0 && (videos > 1 || images > 0) {
		return fmt.Errorf("%w: a post can carry a single video and nothing else", ErrInvalidPost)
	}
	if images > model.MaxImages {
		return fmt.Errorf("%w: at most %d images", ErrInvalidPost, model.MaxImages)
	}

	hasBackground := background != nil && *background != ""
	if hasBackground && len(media) > 0 {
		return fmt.Errorf("%w: background colour and media are mutually exclusive", ErrInvalidPost)
	}
	if strings.TrimSpace(text) == "" && len(media) == 0 && !hasBackground {
		return fmt.Errorf("%w: post is empty", ErrInvalidPost)
	}
	return nil
}

// ToView 转换为 viewer 视角的视图，提问动态一律匿名
func ToView(p *model.Post, viewerID string, now time.Time, window time.Duration) model.PostView {
	media, err := p.MediaList()
	if err != nil {
		logger.Log.Warn("Decode post media failed", zap.String("post", p.ID), zap.Error(err))
		media = []model.Media{}
	}

	author := model.Authored(p.UserID)
	if p.PostType == model.TypeAsk {
		author = model.Anonymous()
	}

	v := model.PostView{
		ID:              p.ID,
		Author:          author,
		Activity:        p.Activity,
		Text:            p.Text,
		Media:           media,
		BackgroundColor: p.BackgroundColor,
		CreatedAt:       p.CreatedAt,
		Reactions:       make(map[string]string, len(p.Reactions)),
		PostType:        p.PostType,
		Comments:        make([]model.CommentView, 0, len(p.Comments)),
		Replies:         make([]model.CommentView, 0, len(p.Replies)),
		AspectRatio:     p.AspectRatio,
		OwnedByViewer:   viewerID != "" && p.UserID == viewerID,
		ExpiresInHours:  feed.ExpiresInHours(p.CreatedAt, now, window),
		Version:         p.Version,
	}
	for _, r := range p.Reactions {
		v.Reactions[r.UserID] = r.Emoji
	}
	for _, c := range p.Comments {
		v.Comments = append(v.Comments, model.CommentView{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	for _, r := range p.Replies {
		v.Replies = append(v.Replies, model.CommentView{ID: r.ID, UserID: r.UserID, Text: r.Text, CreatedAt: r.CreatedAt})
	}
	return v
}

func (s *postService) view(p *model.Post, viewerID string) *model.PostView {
	v := ToView(p, viewerID, s.now(), s.cfg.Retention)
	return &v
}

func (s *postService) Create(ctx context.Context, actorID string, in model.CreateInput) (*model.PostView, error) {
	if in.PostType == "" {
		in.PostType = model.TypeStatus
	}
	if in.PostType != model.TypeStatus && in.PostType != model.TypeAsk {
		return nil, fmt.Errorf("%w: unknown post type %q", ErrInvalidPost, in.PostType)
	}
	in.Text = strings.TrimSpace(in.Text)
	if err := ValidateContent(in.Text, in.Activity, in.Media, in.BackgroundColor); err != nil {
		return nil, err
	}
	if in.BackgroundColor != nil && *in.BackgroundColor == "" {
		in.BackgroundColor = nil
	}

	post := &model.Post{
		UserID:          actorID,
		Activity:        in.Activity,
		Text:            in.Text,
		Media:           model.EncodeMedia(in.Media),
		BackgroundColor: in.BackgroundColor,
		PostType:        in.PostType,
		AspectRatio:     in.AspectRatio,
	}
	err := s.repo.Create(ctx, post)
	metrics.GetGlobalCollector().RecordMutation("post", "create", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TablePosts, realtime.Insert, post.ID, post)

	if post.PostType == model.TypeAsk {
		s.fanOutAsk(ctx, actorID, post.ID)
	}
	return s.view(post, actorID), nil
}

// fanOutAsk 通知所有互关好友；失败不影响已发布的动态
func (s *postService) fanOutAsk(ctx context.Context, actorID, postID string) {
	task := worker.Task{
		Name: "ask_fanout",
		Run: func(ctx context.Context) error {
			mutuals, err := s.social.MutualsOf(ctx, actorID)
			if err != nil {
				return err
			}
			if len(mutuals) == 0 {
				return nil
			}
			return s.notifier.NotifyMany(ctx, mutuals, notificationModel.Draft{
				ActorID:  actorID,
				Type:     notificationModel.TypeAsk,
				Text:     "asked an anonymous question in your circle.",
				EntityID: postID,
			})
		},
	}

	if s.pool != nil {
		s.pool.Submit(task)
		return
	}
	if err := task.Run(ctx); err != nil {
		logger.Log.Warn("Ask fan-out failed", zap.String("post", postID), zap.Error(err))
	}
}

func (s *postService) Get(ctx context.Context, viewerID, id string) (*model.PostView, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return s.view(post, viewerID), nil
}

func (s *postService) ListActive(ctx context.Context, viewerID string) ([]model.PostView, error) {
	bookmarks, err := s.social.SavedPostIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	posts, err := s.repo.ListActive(ctx, now.Add(-s.cfg.Retention), bookmarks, s.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}

	views := make([]model.PostView, 0, len(posts))
	for i := range posts {
		views = append(views, ToView(&posts[i], viewerID, now, s.cfg.Retention))
	}
	return views, nil
}

func (s *postService) loadOwned(ctx context.Context, actorID, id string) (*model.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if post.UserID != actorID {
		return nil, ErrNotAuthor
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, actorID, id string, in model.UpdateInput) (*model.PostView, error) {
	post, err := s.loadOwned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if post.PostType != model.TypeStatus {
		return nil, ErrWrongPostType
	}
	media, err := post.MediaList()
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(in.Text)
	if err := ValidateContent(text, in.Activity, media, post.BackgroundColor); err != nil {
		return nil, err
	}

	err = s.repo.UpdateFields(ctx, id, in.Version, map[string]interface{}{
		"text":     text,
		"activity": in.Activity,
	})
	metrics.GetGlobalCollector().RecordMutation("post", "update", err)
	if err != nil {
		if errors.Is(err, baseModel.ErrVersionConflict) {
			return nil, err
		}
		return nil, notFound(err)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	s.publish(ctx, TablePosts, realtime.Update, updated.ID, updated)
	return s.view(updated, actorID), nil
}

func (s *postService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.loadOwned(ctx, actorID, id); err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, id)
	metrics.GetGlobalCollector().RecordMutation("post", "delete", err)
	if err != nil {
		return notFound(err)
	}
	s.publish(ctx, TablePosts, realtime.Delete, deleted.ID, deleted)
	return nil
}

func (s *postService) React(ctx context.Context, actorID, id, emoji string) (string, error) {
	if !model.IsReaction(emoji) {
		return "", ErrInvalidReaction
	}
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", notFound(err)
	}

	existing, err := s.repo.FindReaction(ctx, id, actorID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	// 同一表情再次点击即取消
	if existing != nil && existing.Emoji == emoji {
		err := s.repo.DeleteReaction(ctx, existing)
		metrics.GetGlobalCollector().RecordMutation("post", "unreact", err)
		if err != nil {
			return emoji, err
		}
		s.publish(ctx, TableReactions, realtime.Delete, existing.ID, existing)
		return "", nil
	}

	reaction := &model.Reaction{PostID: id, UserID: actorID, Emoji: emoji}
	typ := realtime.Insert
	if existing != nil {
		reaction.ID = existing.ID
		typ = realtime.Update
	}
	err = s.repo.UpsertReaction(ctx, reaction)
	metrics.GetGlobalCollector().RecordMutation("post", "react", err)
	if err != nil {
		return "", err
	}
	s.publish(ctx, TableReactions, typ, reaction.ID, reaction)

	if existing == nil {
		s.notify(ctx, notificationModel.Draft{
			RecipientID: post.UserID,
			ActorID:     actorID,
			Type:        notificationModel.TypeLike,
			Text:        "liked your story.",
			EntityID:    id,
		})
	}
	return emoji, nil
}

func (s *postService) Comment(ctx context.Context, actorID, id, text string) (*model.CommentView, error) {
	post, err := s.loadForResponse(ctx, id, text, model.TypeStatus)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{PostID: id, UserID: actorID, Text: strings.TrimSpace(text)}
	err = s.repo.CreateComment(ctx, c)
	metrics.GetGlobalCollector().RecordMutation("post", "comment", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TableComments, realtime.Insert, c.ID, c)
	s.notify(ctx, notificationModel.Draft{
		RecipientID: post.UserID,
		ActorID:     actorID,
		Type:        notificationModel.TypeComment,
		Text:        "commented on your story.",
		EntityID:    id,
	})
	return &model.CommentView{ID: c.ID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}, nil
}

func (s *postService) Reply(ctx context.Context, actorID, id, text string) (*model.CommentView, error) {
	post, err := s.loadForResponse(ctx, id, text, model.TypeAsk)
	if err != nil {
		return nil, err
	}

	r := &model.Reply{PostID: id, UserID: actorID, Text: strings.TrimSpace(text)}
	err = s.repo.CreateReply(ctx, r)
	metrics.GetGlobalCollector().RecordMutation("post", "reply", err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, TableReplies, realtime.Insert, r.ID, r)
	s.notify(ctx, notificationModel.Draft{
		RecipientID: post.UserID,
		ActorID:     actorID,
		Type:        notificationModel.TypeComment,
		Text:        "replied to your anonymous question.",
		EntityID:    id,
	})
	return &model.CommentView{ID: r.ID, UserID: r.UserID, Text: r.Text, CreatedAt: r.CreatedAt}, nil
}

func (s *postService) loadForResponse(ctx context.Context, id, text string, want model.PostType) (*model.Post, error) {
	if err := commentValidator.Validate(strings.TrimSpace(text)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPost, err)
	}
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if post.PostType != want {
		return nil, ErrWrongPostType
	}
	return post, nil
}

func (s *postService) notify(ctx context.Context, d notificationModel.Draft) {
	if err := s.notifier.Notify(ctx, d); err != nil {
		logger.Log.Warn("Post notification failed", zap.String("type", string(d.Type)), zap.Error(err))
	}
}

func (s *postService) publish(ctx context.Context, table string, typ realtime.ChangeType, id string, value interface{}) {
	if err := realtime.PublishModel(ctx, s.feed, table, typ, id, value); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", table), zap.Error(err))
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPostNotFound
	}
	return err
}
