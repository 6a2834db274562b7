package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel 基础模型，使用 UUID 作为主键
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate 钩子：生成 UUID
func (b *BaseModel) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return
}

// Versioned 乐观锁版本号，每次写入 +1。
// 并发编辑通过 WHERE version = ? 检测，而不是被后一次刷新静默覆盖。
type Versioned struct {
	Version int64 `gorm:"not null;default:1" json:"version"`
}

// NextVersion 返回更新时使用的版本表达式
func NextVersion() interface{} {
	return gorm.Expr("version + 1")
}

// ErrVersionConflict 记录已被他人修改
var ErrVersionConflict = errors.New("record was modified concurrently, reload and try again")
