package repository

import (
	"context"
	"time"

	"seest/internal/domain/user/model"
	baseModel "seest/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository 接口定义
type UserRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByUsername(ctx context.Context, username string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	List(ctx context.Context) ([]model.Profile, error)
	// UpdateFields 带版本校验更新，expectedVersion 为 0 时不校验
	UpdateFields(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error
	Touch(ctx context.Context, id string, at time.Time) error

	Follow(ctx context.Context, followerID, followingID string) (*model.Follow, error)
	Unfollow(ctx context.Context, followerID, followingID string) (*model.Follow, error)
	ListFollows(ctx context.Context) ([]model.Follow, error)
	MutualsOf(ctx context.Context, userID string) ([]string, error)

	ListSaved(ctx context.Context) ([]model.SavedPost, error)
	FindSaved(ctx context.Context, userID, postID string) (*model.SavedPost, error)
	Save(ctx context.Context, saved *model.SavedPost) error
	Unsave(ctx context.Context, saved *model.SavedPost) error
	SavedPostIDs(ctx context.Context, userID string) ([]string, error)
}

// userRepository 实现
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建新的仓库实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create 创建用户资料
func (r *userRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByUsername 根据用户名获取用户
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.Profile, error) {
	var list []model.Profile
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, err
}

func (r *userRepository) UpdateFields(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error {
	fields["version"] = baseModel.NextVersion()
	fields["updated_at"] = time.Now()

	q := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id)
	if expectedVersion > 0 {
		q = q.Where("version = ?", expectedVersion)
	}
	res := q.Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if expectedVersion > 0 {
			return baseModel.ErrVersionConflict
		}
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).
		UpdateColumn("last_seen", at).Error
}

// Follow 幂等关注，已关注时返回 nil
func (r *userRepository) Follow(ctx context.Context, followerID, followingID string) (*model.Follow, error) {
	f := &model.Follow{FollowerID: followerID, FollowingID: followingID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(f)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return f, nil
}

// Unfollow 取消关注，未关注时返回 nil
func (r *userRepository) Unfollow(ctx context.Context, followerID, followingID string) (*model.Follow, error) {
	var deleted []model.Follow
	res := r.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&deleted)
	if res.Error != nil {
		return nil, res.Error
	}
	if len(deleted) == 0 {
		return nil, nil
	}
	return &deleted[0], nil
}

func (r *userRepository) ListFollows(ctx context.Context) ([]model.Follow, error) {
	var list []model.Follow
	err := r.db.WithContext(ctx).Find(&list).Error
	return list, err
}

// MutualsOf 互相关注的用户
func (r *userRepository) MutualsOf(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table("follows AS a").
		Joins("JOIN follows AS b ON b.follower_id = a.following_id AND b.following_id = a.follower_id").
		Where("a.follower_id = ?", userID).
		Pluck("a.following_id", &ids).Error
	return ids, err
}

func (r *userRepository) ListSaved(ctx context.Context) ([]model.SavedPost, error) {
	var list []model.SavedPost
	err := r.db.WithContext(ctx).Find(&list).Error
	return list, err
}

func (r *userRepository) FindSaved(ctx context.Context, userID, postID string) (*model.SavedPost, error) {
	var s model.SavedPost
	if err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *userRepository) Save(ctx context.Context, saved *model.SavedPost) error {
	return r.db.WithContext(ctx).Create(saved).Error
}

func (r *userRepository) Unsave(ctx context.Context, saved *model.SavedPost) error {
	return r.db.WithContext(ctx).Delete(saved).Error
}

func (r *userRepository) SavedPostIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.SavedPost{}).Where("user_id = ?", userID).Pluck("post_id", &ids).Error
	return ids, err
}
