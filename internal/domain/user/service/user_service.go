package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	notificationModel "seest/internal/domain/notification/model"
	postModel "seest/internal/domain/post/model"
	"seest/internal/domain/user/model"
	"seest/internal/domain/user/repository"
	"seest/internal/pkg/realtime"
	"seest/pkg/database"
	"seest/pkg/logger"
	"seest/pkg/metrics"
	baseModel "seest/pkg/model"
	"seest/pkg/validator"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TableProfiles   = "profiles"
	TableFollows    = "follows"
	TableSavedPosts = "saved_posts"

	// UsernameCooldown 两次修改用户名的最短间隔
	UsernameCooldown = 7 * 24 * time.Hour
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCannotFollowSelf  = errors.New("you cannot follow yourself")
	ErrNotProfileOwner   = errors.New("you can only edit your own profile")
	ErrNotPostAuthor     = errors.New("you can only save your own posts")
	ErrAskNotSavable     = errors.New("anonymous questions cannot be saved")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrUsernameTaken     = errors.New("Username already taken. Please choose another.")
	ErrUsernameCooldown  = errors.New("username was changed recently")
	ErrInvalidVisibility = errors.New("visibility must be public or private")
)

var usernameValidator = validator.NewStringValidator("username", 3, 30, true).
	WithPattern(`^[a-z0-9_.]+$`, "Username can only contain lowercase letters, numbers, underscores and dots")

var (
	bioValidator  = validator.NewStringValidator("bio", 0, 160, false)
	nameValidator = validator.NewStringValidator("name", 1, 100, true)
)

// Notifier 通知发送
type Notifier interface {
	Notify(ctx context.Context, d notificationModel.Draft) error
}

// PostAuthorLookup 查询动态作者及类型
type PostAuthorLookup interface {
	AuthorOf(ctx context.Context, postID string) (string, postModel.PostType, error)
}

type UserService interface {
	// ListDirectory 所有用户的扁平化视图，私密收藏只对本人可见
	ListDirectory(ctx context.Context, viewerID string) ([]model.UserView, error)
	GetProfile(ctx context.Context, id string) (*model.UserView, error)
	GetByHandle(ctx context.Context, handle string) (*model.UserView, error)
	Follow(ctx context.Context, actorID, targetID string) error
	Unfollow(ctx context.Context, actorID, targetID string) error
	Mutuals(ctx context.Context, userID string) ([]string, error)
	UpdateProfile(ctx context.Context, actorID, targetID string, in model.ProfileUpdate) (*model.UserView, error)
	ToggleSaved(ctx context.Context, actorID, postID string) (bool, error)
	UpdateVisibility(ctx context.Context, actorID string, v model.Visibility) error
	Touch(ctx context.Context, actorID string) error
}

type userService struct {
	repo     repository.UserRepository
	posts    PostAuthorLookup
	notifier Notifier
	feed     realtime.Publisher
	now      func() time.Time
}

func NewUserService(repo repository.UserRepository, posts PostAuthorLookup, notifier Notifier, feed realtime.Publisher) UserService {
	return &userService{
		repo:     repo,
		posts:    posts,
		notifier: notifier,
		feed:     feed,
		now:      time.Now,
	}
}

// ToView 将资料转换为视图
func ToView(p *model.Profile) model.UserView {
	var v model.UserView
	_ = copier.Copy(&v, p)
	v.Username = p.Handle()
	v.Followers = []string{}
	v.Following = []string{}
	v.FavoritePostIDs = []string{}
	return v
}

func (s *userService) ListDirectory(ctx context.Context, viewerID string) ([]model.UserView, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	follows, err := s.repo.ListFollows(ctx)
	if err != nil {
		return nil, err
	}
	saved, err := s.repo.ListSaved(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.UserView, len(profiles))
	index := make(map[string]*model.UserView, len(profiles))
	for i := range profiles {
		views[i] = ToView(&profiles[i])
		index[views[i].ID] = &views[i]
	}

	for _, f := range follows {
		if v, ok := index[f.FollowerID]; ok {
			v.Following = append(v.Following, f.FollowingID)
		}
		if v, ok := index[f.FollowingID]; ok {
			v.Followers = append(v.Followers, f.FollowerID)
		}
	}
	for _, sp := range saved {
		v, ok := index[sp.UserID]
		if !ok {
			continue
		}
		if v.SavedVisibility == model.VisibilityPrivate && v.ID != viewerID {
			continue
		}
		v.FavoritePostIDs = append(v.FavoritePostIDs, sp.PostID)
	}
	return views, nil
}

func (s *userService) GetProfile(ctx context.Context, id string) (*model.UserView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	v := ToView(p)
	return &v, nil
}

func (s *userService) GetByHandle(ctx context.Context, handle string) (*model.UserView, error) {
	p, err := s.repo.GetByUsername(ctx, strings.ToLower(handle))
	if err != nil {
		return nil, notFound(err)
	}
	v := ToView(p)
	return &v, nil
}

func (s *userService) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return ErrCannotFollowSelf
	}
	actor, err := s.repo.GetByID(ctx, actorID)
	if err != nil {
		return notFound(err)
	}
	if _, err := s.repo.GetByID(ctx, targetID); err != nil {
		return notFound(err)
	}

	f, err := s.repo.Follow(ctx, actorID, targetID)
	metrics.GetGlobalCollector().RecordMutation("user", "follow", err)
	if err != nil {
		return err
	}
	if f == nil {
		// 已关注
		return nil
	}
	s.publish(ctx, TableFollows, realtime.Insert, f.ID, f)

	// 通知失败不影响关注结果
	if err := s.notifier.Notify(ctx, notificationModel.Draft{
		RecipientID: targetID,
		ActorID:     actorID,
		Type:        notificationModel.TypeFollow,
		Text:        actor.Name + " started following you",
		EntityID:    actorID,
	}); err != nil {
		logger.Log.Warn("Follow notification failed", zap.String("actor", actorID), zap.Error(err))
	}
	return nil
}

func (s *userService) Unfollow(ctx context.Context, actorID, targetID string) error {
	f, err := s.repo.Unfollow(ctx, actorID, targetID)
	metrics.GetGlobalCollector().RecordMutation("user", "unfollow", err)
	if err != nil {
		return err
	}
	if f != nil {
		s.publish(ctx, TableFollows, realtime.Delete, f.ID, f)
	}
	return nil
}

func (s *userService) Mutuals(ctx context.Context, userID string) ([]string, error) {
	return s.repo.MutualsOf(ctx, userID)
}

// UpdateProfile 修改资料
func (s *userService) UpdateProfile(ctx context.Context, actorID, targetID string, in model.ProfileUpdate) (*model.UserView, error) {
	// 1. 权限检查
	if actorID != targetID {
		return nil, ErrNotProfileOwner
	}

	// 2. 读取当前资料
	current, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFound(err)
	}

	now := s.now()
	currentUsername := ""
	if current.Username != nil {
		currentUsername = *current.Username
	}

	// 3. 字段校验
	if err := ValidateUpdate(in, currentUsername, current.LastUsernameChange, now); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"last_seen": now}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Bio != nil {
		fields["bio"] = *in.Bio
	}
	if in.Activity != nil {
		fields["activity"] = *in.Activity
	}
	if in.Avatar != nil {
		fields["avatar"] = *in.Avatar
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username != currentUsername {
			if other, err := s.repo.GetByUsername(ctx, username); err == nil && other.ID != targetID {
				return nil, ErrUsernameTaken
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			fields["username"] = username
			fields["last_username_change"] = now
		}
	}

	// 4. 带版本号写入
	err = s.repo.UpdateFields(ctx, targetID, in.Version, fields)
	metrics.GetGlobalCollector().RecordMutation("user", "update_profile", err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		if errors.Is(err, baseModel.ErrVersionConflict) {
			return nil, err
		}
		return nil, notFound(err)
	}

	updated, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFound(err)
	}
	s.publish(ctx, TableProfiles, realtime.Update, updated.ID, updated)

	v := ToView(updated)
	return &v, nil
}

// ValidateUpdate 不访问存储的资料校验，客户端提交前也会调用
func ValidateUpdate(in model.ProfileUpdate, currentUsername string, lastChange *time.Time, now time.Time) error {
	if in.Name != nil {
		if err := nameValidator.Validate(strings.TrimSpace(*in.Name)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
	}
	if in.Bio != nil {
		if err := bioValidator.Validate(*in.Bio); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
	}
	if in.Activity != nil && *in.Activity != "" && !model.IsActivity(*in.Activity) {
		return fmt.Errorf("%w: unknown activity %q", ErrInvalidProfile, *in.Activity)
	}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := usernameValidator.Validate(username); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
		if username != currentUsername {
			return checkCooldown(lastChange, now)
		}
	}
	return nil
}

func checkCooldown(last *time.Time, now time.Time) error {
	if last == nil {
		return nil
	}
	elapsed := now.Sub(*last)
	if elapsed >= UsernameCooldown {
		return nil
	}
	days := int(math.Ceil((UsernameCooldown - elapsed).Hours() / 24))
	return fmt.Errorf("%w: you can change your username again in %d day(s)", ErrUsernameCooldown, days)
}

// ToggleSaved 收藏/取消收藏自己的动态，返回收藏后的状态
func (s *userService) ToggleSaved(ctx context.Context, actorID, postID string) (bool, error) {
	author, postType, err := s.posts.AuthorOf(ctx, postID)
	if err != nil {
		return false, err
	}
	if author != actorID {
		return false, ErrNotPostAuthor
	}
	// 公开的收藏列表会暴露提问者
	if postType == postModel.TypeAsk {
		return false, ErrAskNotSavable
	}

	existing, err := s.repo.FindSaved(ctx, actorID, postID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if existing != nil {
		err := s.repo.Unsave(ctx, existing)
		metrics.GetGlobalCollector().RecordMutation("user", "unsave", err)
		if err != nil {
			return true, err
		}
		s.publish(ctx, TableSavedPosts, realtime.Delete, existing.ID, existing)
		return false, nil
	}

	saved := &model.SavedPost{UserID: actorID, PostID: postID}
	err = s.repo.Save(ctx, saved)
	metrics.GetGlobalCollector().RecordMutation("user", "save", err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return true, nil
		}
		return false, err
	}
	s.publish(ctx, TableSavedPosts, realtime.Insert, saved.ID, saved)
	return true, nil
}

func (s *userService) UpdateVisibility(ctx context.Context, actorID string, v model.Visibility) error {
	if v != model.VisibilityPublic && v != model.VisibilityPrivate {
		return ErrInvalidVisibility
	}
	err := s.repo.UpdateFields(ctx, actorID, 0, map[string]interface{}{"saved_visibility": v})
	metrics.GetGlobalCollector().RecordMutation("user", "visibility", err)
	if err != nil {
		return notFound(err)
	}
	s.publishProfile(ctx, actorID)
	return nil
}

func (s *userService) Touch(ctx context.Context, actorID string) error {
	return s.repo.Touch(ctx, actorID, s.now())
}

func (s *userService) publishProfile(ctx context.Context, id string) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return
	}
	s.publish(ctx, TableProfiles, realtime.Update, p.ID, p)
}

func (s *userService) publish(ctx context.Context, table string, typ realtime.ChangeType, id string, value interface{}) {
	if err := realtime.PublishModel(ctx, s.feed, table, typ, id, value); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", table), zap.Error(err))
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
