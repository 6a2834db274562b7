package repository

import (
	"context"
	"time"

	"seest/internal/domain/post/model"
	baseModel "seest/pkg/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// AuthorOf 动态作者及类型
	AuthorOf(ctx context.Context, postID string) (string, model.PostType, error)
	// ListActive since 之后发布的动态以及 bookmarks 中的动态，按发布时间倒序
	ListActive(ctx context.Context, since time.Time, bookmarks []string, limit int) ([]model.Post, error)
	UpdateFields(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error
	// Delete 删除动态及其回应、评论、回答，返回被删除的动态
	Delete(ctx context.Context, id string) (*model.Post, error)

	FindReaction(ctx context.Context, postID, userID string) (*model.Reaction, error)
	UpsertReaction(ctx context.Context, r *model.Reaction) error
	DeleteReaction(ctx context.Context, r *model.Reaction) error

	CreateComment(ctx context.Context, c *model.Comment) error
	CreateReply(ctx context.Context, r *model.Reply) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// --- Post ---

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Reactions").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") })
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var post model.Post
	if err := r.withChildren(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) AuthorOf(ctx context.Context, postID string) (string, model.PostType, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Select("user_id", "post_type").Where("id = ?", postID).First(&post).Error
	if err != nil {
		return "", "", err
	}
	return post.UserID, post.PostType, nil
}

func (r *postRepository) ListActive(ctx context.Context, since time.Time, bookmarks []string, limit int) ([]model.Post, error) {
	var posts []model.Post
	err := r.withChildren(ctx).Where("created_at > ?", since).
		Order("created_at desc").Limit(limit).Find(&posts).Error
	if err != nil || len(bookmarks) == 0 {
		return posts, err
	}

	// 收藏的过期动态单独查询，避免被条数限制截掉
	saved, err := r.listBookmarked(ctx, since, bookmarks)
	if err != nil {
		return nil, err
	}
	return append(posts, saved...), nil
}

// listBookmarked 指定 id 中早于 since 的动态，不受条数限制
func (r *postRepository) listBookmarked(ctx context.Context, since time.Time, ids []string) ([]model.Post, error) {
	var posts []model.Post
	err := r.withChildren(ctx).Where("id IN ? AND created_at <= ?", ids, since).
		Order("created_at desc").Find(&posts).Error
	return posts, err
}

func (r *postRepository) UpdateFields(ctx context.Context, id string, expectedVersion int64, fields map[string]interface{}) error {
	fields["version"] = baseModel.NextVersion()
	fields["updated_at"] = time.Now()

	q := r.db.WithContext(ctx).Model(&model.Post{}).Where("id = ?", id)
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

func (r *postRepository) Delete(ctx context.Context, id string) (*model.Post, error) {
	var deleted []model.Post
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []interface{}{&model.Reaction{}, &model.Comment{}, &model.Reply{}} {
			if err := tx.Where("post_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		res := tx.Clauses(clause.Returning{}).Where("id = ?", id).Delete(&deleted)
		if res.Error != nil {
			return res.Error
		}
		if len(deleted) == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted[0], nil
}

// --- Reaction ---

func (r *postRepository) FindReaction(ctx context.Context, postID, userID string) (*model.Reaction, error) {
	var reaction model.Reaction
	if err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).First(&reaction).Error; err != nil {
		return nil, err
	}
	return &reaction, nil
}

// UpsertReaction 每人每条动态一行，已存在时替换表情
func (r *postRepository) UpsertReaction(ctx context.Context, reaction *model.Reaction) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"emoji", "updated_at"}),
	}).Create(reaction).Error
}

func (r *postRepository) DeleteReaction(ctx context.Context, reaction *model.Reaction) error {
	return r.db.WithContext(ctx).Delete(reaction).Error
}

// --- Comment / Reply ---

func (r *postRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *postRepository) CreateReply(ctx context.Context, reply *model.Reply) error {
	return r.db.WithContext(ctx).Create(reply).Error
}
