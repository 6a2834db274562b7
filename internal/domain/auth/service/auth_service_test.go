package service

import (
	"context"
	"testing"
	"time"

	"seest/internal/domain/auth/model"
	userModel "seest/internal/domain/user/model"
	userService "seest/internal/domain/user/service"
	"seest/internal/pkg/otp"
	"seest/internal/pkg/realtime"
	"seest/pkg/cache"
	"seest/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *model.Account, profile *userModel.Profile) error {
	args := m.Called(ctx, account, profile)
	if args.Error(0) == nil {
		account.ID = "user-1"
		profile.ID = account.ID
	}
	return args.Error(0)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	args := m.Called(ctx, id, hash)
	return args.Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type captureMailer struct {
	email, token string
}

func (m *captureMailer) SendReset(_ context.Context, email, token string) error {
	m.email, m.token = email, token
	return nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestService(repo *MockAccountRepository, mailer Mailer) *authService {
	svc := NewAuthService(repo, utils.NewTokenIssuer(testSecret, time.Hour), otp.NewTokenStore(cache.NewMemoryCache()), mailer, realtime.Discard{}, nil)
	return svc.(*authService)
}

func accountWithPassword(t *testing.T, id, email, password string) *model.Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	a := &model.Account{Email: email, PasswordHash: string(hash)}
	a.ID = id
	return a
}

func TestDefaultAvatar(t *testing.T) {
	assert.Equal(t, "A", DefaultAvatar("alice"))
	assert.Equal(t, "É", DefaultAvatar(" élodie"))
	assert.Equal(t, "?", DefaultAvatar(""))
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates account and profile", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", ctx, mock.Anything, mock.MatchedBy(func(p *userModel.Profile) bool {
			return p.Avatar == "A" && p.Name == "alice" && p.Activity == "Relaxing"
		})).Return(nil)
		svc := newTestService(repo, nil)

		var events []model.Event
		svc.OnAuthStateChange(func(c model.StateChange) { events = append(events, c.Event) })

		session, err := svc.SignUp(ctx, model.SignUpInput{Email: " Alice@Example.com ", Password: "secret1", Name: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "user-1", session.UserID)
		assert.NotEmpty(t, session.Token)
		assert.Equal(t, []model.Event{model.SignedIn}, events)
		repo.AssertExpectations(t)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(&model.Account{Email: "alice@example.com"}, nil)
		svc := newTestService(repo, nil)

		_, err := svc.SignUp(ctx, model.SignUpInput{Email: "alice@example.com", Password: "secret1", Name: "alice"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("Unique violation on insert", func(t *testing.T) {
		repo := new(MockAccountRepository)
		repo.On("GetByEmail", ctx, "alice@example.com").Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", ctx, mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)
		svc := newTestService(repo, nil)

		_, err := svc.SignUp(ctx, model.SignUpInput{Email: "alice@example.com", Password: "secret1", Name: "alice"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("Short password", func(t *testing.T) {
		svc := newTestService(new(MockAccountRepository), nil)
		_, err := svc.SignUp(ctx, model.SignUpInput{Email: "alice@example.com", Password: "12345", Name: "alice"})
		assert.ErrorIs(t, err, ErrWeakPassword)
	})
}

func TestSignInAndOut(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("GetByEmail", ctx, "alice@example.com").Return(accountWithPassword(t, "user-1", "alice@example.com", "secret1"), nil)
	repo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, gorm.ErrRecordNotFound)
	svc := newTestService(repo, nil)

	_, err := svc.SignIn(ctx, model.SignInInput{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.SignIn(ctx, model.SignInInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := svc.SignIn(ctx, model.SignInInput{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)

	var events []model.Event
	unsubscribe := svc.OnAuthStateChange(func(c model.StateChange) { events = append(events, c.Event) })
	require.NoError(t, svc.SignOut(ctx, session.Token))
	unsubscribe()

	_, err = svc.Verify(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)
	assert.Equal(t, []model.Event{model.SignedOut}, events)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("GetByEmail", ctx, "alice@example.com").Return(accountWithPassword(t, "user-1", "alice@example.com", "secret1"), nil)
	repo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, gorm.ErrRecordNotFound)
	repo.On("UpdatePassword", ctx, "user-1", mock.AnythingOfType("string")).Return(nil)
	mailer := &captureMailer{}
	svc := newTestService(repo, mailer)

	t.Run("Unknown email succeeds silently", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "nobody@example.com"))
		assert.Empty(t, mailer.token)
	})

	t.Run("Token is single use", func(t *testing.T) {
		require.NoError(t, svc.ResetPassword(ctx, "alice@example.com"))
		require.NotEmpty(t, mailer.token)

		require.NoError(t, svc.ConfirmReset(ctx, mailer.token, "newpass"))
		assert.ErrorIs(t, svc.ConfirmReset(ctx, mailer.token, "newpass"), ErrInvalidResetToken)
	})

	t.Run("Repeated requests are throttled", func(t *testing.T) {
		err := svc.ResetPassword(ctx, "alice@example.com")
		assert.ErrorIs(t, err, otp.ErrTooFrequent)
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("GetByEmail", ctx, "alice@example.com").Return(accountWithPassword(t, "user-1", "alice@example.com", "secret1"), nil)
	repo.On("Delete", ctx, "user-1").Return(nil)
	repo.On("Delete", ctx, "ghost").Return(gorm.ErrRecordNotFound)
	svc := newTestService(repo, nil)

	session, err := svc.SignIn(ctx, model.SignInInput{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)

	var events []model.Event
	svc.OnAuthStateChange(func(c model.StateChange) { events = append(events, c.Event) })

	require.NoError(t, svc.DeleteAccount(ctx, "user-1", session.Token))
	assert.Equal(t, []model.Event{model.UserDeleted, model.SignedOut}, events)
	_, err = svc.Verify(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, "ghost", ""), ErrAccountNotFound)
}

func TestDeleteAccountClearsProfileCache(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("Delete", ctx, "user-1").Return(nil)
	svc := newTestService(repo, nil)
	c := cache.NewMemoryCache()
	svc.cache = c

	view := userModel.UserView{ID: "user-1", Username: "alice"}
	require.NoError(t, c.Set(ctx, userService.ProfileCacheKeyPrefix+"user-1", view, time.Minute))
	require.NoError(t, c.Set(ctx, userService.HandleCacheKeyPrefix+"alice", view, time.Minute))

	require.NoError(t, svc.DeleteAccount(ctx, "user-1", ""))

	var got userModel.UserView
	assert.ErrorIs(t, c.Get(ctx, userService.ProfileCacheKeyPrefix+"user-1", &got), cache.ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, userService.HandleCacheKeyPrefix+"alice", &got), cache.ErrCacheMiss)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("UpdatePassword", ctx, "user-1", mock.AnythingOfType("string")).Return(nil)
	repo.On("GetByID", ctx, "user-1").Return(&model.Account{Email: "alice@example.com"}, nil)
	svc := newTestService(repo, nil)

	assert.ErrorIs(t, svc.ChangePassword(ctx, "user-1", "short"), ErrWeakPassword)

	var got []model.StateChange
	svc.OnAuthStateChange(func(c model.StateChange) { got = append(got, c) })
	require.NoError(t, svc.ChangePassword(ctx, "user-1", "longenough"))
	require.Len(t, got, 1)
	assert.Equal(t, model.UserUpdated, got[0].Event)
	assert.Equal(t, "alice@example.com", got[0].Session.Email)
}
