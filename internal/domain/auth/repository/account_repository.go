package repository

import (
	"context"

	"seest/internal/domain/auth/model"
	userModel "seest/internal/domain/user/model"

	"gorm.io/gorm"
)

type AccountRepository interface {
	// Create 在同一事务中创建账号与资料
	Create(ctx context.Context, account *model.Account, profile *userModel.Profile) error
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	GetByID(ctx context.Context, id string) (*model.Account, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	// Delete 删除账号及其全部数据
	Delete(ctx context.Context, id string) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account, profile *userModel.Profile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return err
		}
		profile.ID = account.ID
		return tx.Create(profile).Error
	})
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&model.Account{}).Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// 删除顺序：先子表后主表
var deleteStatements = []string{
	`DELETE FROM post_reactions WHERE user_id = @id OR post_id IN (SELECT id FROM posts WHERE user_id = @id)`,
	`DELETE FROM post_comments WHERE user_id = @id OR post_id IN (SELECT id FROM posts WHERE user_id = @id)`,
	`DELETE FROM post_replies WHERE user_id = @id OR post_id IN (SELECT id FROM posts WHERE user_id = @id)`,
	`DELETE FROM saved_posts WHERE user_id = @id OR post_id IN (SELECT id FROM posts WHERE user_id = @id)`,
	`DELETE FROM posts WHERE user_id = @id`,
	`DELETE FROM follows WHERE follower_id = @id OR following_id = @id`,
	`DELETE FROM messages WHERE sender_id = @id OR receiver_id = @id`,
	`DELETE FROM notifications WHERE recipient_id = @id OR actor_id = @id`,
	`DELETE FROM profiles WHERE id = @id`,
}

func (r *accountRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		args := map[string]interface{}{"id": id}
		for _, stmt := range deleteStatements {
			if err := tx.Exec(stmt, args).Error; err != nil {
				return err
			}
		}
		res := tx.Exec(`DELETE FROM accounts WHERE id = @id`, args)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
