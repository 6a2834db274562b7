package client

import (
	"context"
	"errors"
	"sync"

	authModel "seest/internal/domain/auth/model"
	"seest/pkg/logger"

	"go.uber.org/zap"
)

var ErrNoSession = errors.New("not signed in")

// AuthBackend 会话相关的服务端接口
type AuthBackend interface {
	SignUp(ctx context.Context, in authModel.SignUpInput) (*authModel.Session, error)
	SignIn(ctx context.Context, email, password string) (*authModel.Session, error)
	SignOut(ctx context.Context) error
	Session(ctx context.Context) (*authModel.Session, error)
	ResetPassword(ctx context.Context, email string) error
}

// Auth 客户端持有的当前会话，登录状态变化时通知监听器
type Auth struct {
	mu      sync.RWMutex
	backend AuthBackend
	session *authModel.Session

	listeners authModel.Listeners
}

func NewAuth() *Auth {
	return &Auth{}
}

// Bind 设置服务端接口，API 需要从 Auth 读取 Token，因此两者分开构造
func (a *Auth) Bind(backend AuthBackend) {
	a.mu.Lock()
	a.backend = backend
	a.mu.Unlock()
}

func (a *Auth) api() AuthBackend {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.backend
}

// Token 当前会话的 Token，未登录时为空
func (a *Auth) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.Token
}

// Current 当前会话的副本
func (a *Auth) Current() (authModel.Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return authModel.Session{}, false
	}
	return *a.session, true
}

func (a *Auth) set(s *authModel.Session, event authModel.Event) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	change := authModel.StateChange{Event: event}
	if s != nil {
		change.Session = *s
	}
	a.listeners.Emit(change)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*authModel.Session, error) {
	s, err := a.api().SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.set(s, authModel.SignedIn)
	return s, nil
}

func (a *Auth) SignUp(ctx context.Context, in authModel.SignUpInput) (*authModel.Session, error) {
	s, err := a.api().SignUp(ctx, in)
	if err != nil {
		return nil, err
	}
	a.set(s, authModel.SignedIn)
	return s, nil
}

func (a *Auth) ResetPassword(ctx context.Context, email string) error {
	return a.api().ResetPassword(ctx, email)
}

// SignOut 服务端失败时本地会话同样清除
func (a *Auth) SignOut(ctx context.Context) error {
	if _, ok := a.Current(); !ok {
		return nil
	}
	err := a.api().SignOut(ctx)
	if err != nil {
		logger.Log.Warn("Remote sign out failed", zap.Error(err))
	}
	a.set(nil, authModel.SignedOut)
	return err
}

// Restore 用保存的 Token 恢复会话，Token 失效时清除
func (a *Auth) Restore(ctx context.Context, token string) (*authModel.Session, error) {
	a.mu.Lock()
	a.session = &authModel.Session{Token: token}
	a.mu.Unlock()

	s, err := a.api().Session(ctx)
	if err != nil {
		a.mu.Lock()
		a.session = nil
		a.mu.Unlock()
		return nil, err
	}
	if s.Token == "" {
		s.Token = token
	}
	a.set(s, authModel.SignedIn)
	return s, nil
}

// Expire 账号已删除或会话被撤销时调用
func (a *Auth) Expire(event authModel.Event) {
	if _, ok := a.Current(); !ok {
		return
	}
	a.set(nil, event)
}

// OnAuthStateChange 注册会话状态监听，返回取消函数
func (a *Auth) OnAuthStateChange(fn func(authModel.StateChange)) func() {
	return a.listeners.Add(fn)
}
