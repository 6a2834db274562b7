package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"seest/internal/domain/auth/model"
	"seest/internal/domain/auth/repository"
	userModel "seest/internal/domain/user/model"
	userService "seest/internal/domain/user/service"
	"seest/internal/pkg/otp"
	"seest/internal/pkg/realtime"
	"seest/pkg/cache"
	"seest/pkg/database"
	"seest/pkg/logger"
	"seest/pkg/metrics"
	"seest/pkg/utils"
	"seest/pkg/validator"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ProfilesTable = "profiles"

	resetPurpose  = "reset"
	resetTTL      = 15 * time.Minute
	resetCooldown = time.Minute
)

var (
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidResetToken  = errors.New("reset link is invalid or has expired")
	ErrSessionInvalid     = errors.New("session is invalid or has expired")
	ErrAccountNotFound    = errors.New("account not found")
)

const minPasswordLength = 6

// Mailer 发送重置密码邮件
type Mailer interface {
	SendReset(ctx context.Context, email, token string) error
}

// LogMailer 只把重置令牌写入日志，开发环境使用
type LogMailer struct{}

func (LogMailer) SendReset(_ context.Context, email, token string) error {
	logger.Log.Info("Password reset requested", zap.String("email", email), zap.String("token", token))
	return nil
}

type AuthService interface {
	SignUp(ctx context.Context, in model.SignUpInput) (*model.Session, error)
	SignIn(ctx context.Context, in model.SignInInput) (*model.Session, error)
	SignOut(ctx context.Context, token string) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	// Verify 供认证中间件使用
	Verify(ctx context.Context, token string) (*utils.Claims, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, token, password string) error
	ChangePassword(ctx context.Context, userID, password string) error
	DeleteAccount(ctx context.Context, userID, token string) error
	// OnAuthStateChange 注册会话状态监听，返回取消函数
	OnAuthStateChange(fn func(model.StateChange)) func()
}

type authService struct {
	repo      repository.AccountRepository
	tokens    *utils.TokenIssuer
	store     otp.TokenStore
	mailer    Mailer
	feed      realtime.Publisher
	cache     cache.CacheService
	listeners model.Listeners
	now       func() time.Time
}

func NewAuthService(repo repository.AccountRepository, tokens *utils.TokenIssuer, store otp.TokenStore, mailer Mailer, feed realtime.Publisher, c cache.CacheService) AuthService {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &authService{
		repo:   repo,
		tokens: tokens,
		store:  store,
		mailer: mailer,
		feed:   feed,
		cache:  c,
		now:    time.Now,
	}
}

func hashPassword(password string) (string, error) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// DefaultAvatar 名字首字母大写
func DefaultAvatar(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

func (s *authService) SignUp(ctx context.Context, in model.SignUpInput) (*model.Session, error) {
	email := validator.NormalizeEmail(in.Email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	avatar := strings.TrimSpace(in.Avatar)
	if avatar == "" {
		avatar = DefaultAvatar(name)
	}
	now := s.now()
	account := &model.Account{Email: email, PasswordHash: hash}
	profile := &userModel.Profile{
		Email:           email,
		Name:            name,
		Avatar:          avatar,
		Activity:        "Relaxing",
		LastSeen:        now,
		SavedVisibility: userModel.VisibilityPublic,
	}
	profile.Version = 1

	err = s.repo.Create(ctx, account, profile)
	metrics.GetGlobalCollector().RecordMutation("auth", "sign_up", err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	if err := realtime.PublishModel(ctx, s.feed, ProfilesTable, realtime.Insert, profile.ID, profile); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", ProfilesTable), zap.Error(err))
	}
	return s.issue(account)
}

func (s *authService) issue(account *model.Account) (*model.Session, error) {
	token, claims, err := s.tokens.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		UserID:    account.ID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	s.listeners.Emit(model.StateChange{Event: model.SignedIn, Session: *session})
	return session, nil
}

func (s *authService) SignIn(ctx context.Context, in model.SignInInput) (*model.Session, error) {
	account, err := s.repo.GetByEmail(ctx, validator.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(account)
}

func (s *authService) Verify(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrSessionInvalid
	}
	revoked, err := s.store.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}

func (s *authService) GetSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *authService) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		// 已失效的会话视为已登出
		return nil
	}
	if err := s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now())); err != nil {
		return err
	}
	s.listeners.Emit(model.StateChange{Event: model.SignedOut, Session: model.Session{UserID: claims.UserID, Email: claims.Email}})
	return nil
}

// ResetPassword 未注册的邮箱同样返回成功，不暴露账号是否存在
func (s *authService) ResetPassword(ctx context.Context, email string) error {
	email = validator.NormalizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return ErrInvalidEmail
	}
	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := s.store.Issue(ctx, resetPurpose, account.ID, resetTTL, resetCooldown)
	if err != nil {
		return err
	}
	return s.mailer.SendReset(ctx, account.Email, token)
}

func (s *authService) ConfirmReset(ctx context.Context, token, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	userID, err := s.store.Consume(ctx, resetPurpose, token)
	if err != nil {
		if errors.Is(err, otp.ErrTokenInvalid) {
			return ErrInvalidResetToken
		}
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	err = s.repo.UpdatePassword(ctx, userID, hash)
	metrics.GetGlobalCollector().RecordMutation("auth", "change_password", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	account, err := s.repo.GetByID(ctx, userID)
	if err == nil {
		s.listeners.Emit(model.StateChange{Event: model.UserUpdated, Session: model.Session{UserID: userID, Email: account.Email}})
	}
	return nil
}

func (s *authService) DeleteAccount(ctx context.Context, userID, token string) error {
	err := s.repo.Delete(ctx, userID)
	metrics.GetGlobalCollector().RecordMutation("auth", "delete_account", err)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, userService.ProfileCacheKeyPrefix+userID); err != nil {
			logger.Log.Warn("Cache invalidate failed", zap.String("user", userID), zap.Error(err))
		}
		if err := s.cache.InvalidatePattern(ctx, userService.HandleCacheKeyPrefix+"*"); err != nil {
			logger.Log.Warn("Cache invalidate failed", zap.String("pattern", userService.HandleCacheKeyPrefix), zap.Error(err))
		}
	}
	if err := realtime.PublishRecord(ctx, s.feed, ProfilesTable, realtime.Delete, userID, map[string]string{"id": userID}); err != nil {
		logger.Log.Warn("Publish change failed", zap.String("table", ProfilesTable), zap.Error(err))
	}

	s.listeners.Emit(model.StateChange{Event: model.UserDeleted, Session: model.Session{UserID: userID}})
	return s.SignOut(ctx, token)
}

func (s *authService) OnAuthStateChange(fn func(model.StateChange)) func() {
	return s.listeners.Add(fn)
}
