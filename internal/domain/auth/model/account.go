package model

import (
	"sync"
	"time"

	baseModel "seest/pkg/model"
)

// Account 登录凭据，ID 与 profiles.id 相同
type Account struct {
	baseModel.BaseModel
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(72);not null" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

// Session 登录会话
type Session struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignUpInput 注册
type SignUpInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Avatar   string `json:"avatar"`
}

// SignInInput 登录
type SignInInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ResetInput struct {
	Email string `json:"email" binding:"required"`
}

type ConfirmResetInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordInput struct {
	Password string `json:"password" binding:"required"`
}

// Event 会话状态变化
type Event string

const (
	SignedIn    Event = "SIGNED_IN"
	SignedOut   Event = "SIGNED_OUT"
	UserUpdated Event = "USER_UPDATED"
	UserDeleted Event = "USER_DELETED"
)

// StateChange 会话状态变化通知，登出与删除时 Session 只保留 UserID
type StateChange struct {
	Event   Event   `json:"event"`
	Session Session `json:"session"`
}

// Listeners 会话状态监听器集合，可并发使用
type Listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(StateChange)
}

// Add 注册监听器，返回取消函数
func (l *Listeners) Add(fn func(StateChange)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(StateChange))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// Emit 依次通知所有监听器，监听器内可以取消自己
func (l *Listeners) Emit(c StateChange) {
	l.mu.Lock()
	fns := make([]func(StateChange), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
