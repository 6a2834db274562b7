package client

import (
	"context"
	"errors"
	"sync"
	"time"

	authModel "seest/internal/domain/auth/model"
	authService "seest/internal/domain/auth/service"
	eventModel "seest/internal/domain/event/model"
	messageModel "seest/internal/domain/message/model"
	notificationModel "seest/internal/domain/notification/model"
	postModel "seest/internal/domain/post/model"
	userModel "seest/internal/domain/user/model"
	"seest/internal/pkg/datasource"
	"seest/internal/pkg/feed"
	"seest/internal/pkg/realtime"
	"seest/pkg/logger"

	"go.uber.org/zap"
)

// Backend App 使用的服务端接口，由 *API 实现
type Backend interface {
	ListPosts(ctx context.Context) ([]postModel.PostView, error)
	CreatePost(ctx context.Context, in postModel.CreateInput) (*postModel.PostView, error)
	UpdatePost(ctx context.Context, id string, in postModel.UpdateInput) (*postModel.PostView, error)
	DeletePost(ctx context.Context, id string) error
	React(ctx context.Context, id, emoji string) (string, error)
	CommentPost(ctx context.Context, id, text string) error
	ReplyPost(ctx context.Context, id, text string) error

	ListUsers(ctx context.Context) ([]userModel.UserView, error)
	UpdateProfile(ctx context.Context, id string, in userModel.ProfileUpdate) (*userModel.UserView, error)
	Follow(ctx context.Context, id string) error
	Unfollow(ctx context.Context, id string) error
	ToggleSaved(ctx context.Context, postID string) (bool, error)
	UpdateVisibility(ctx context.Context, v userModel.Visibility) error
	Touch(ctx context.Context) error

	ListEvents(ctx context.Context) ([]eventModel.Event, error)
	CreateEvent(ctx context.Context, in eventModel.CreateInput) (*eventModel.Event, error)
	EventAction(ctx context.Context, id string, action eventModel.Action) error
	CommentEvent(ctx context.Context, id, text string) error
	DeleteEventComment(ctx context.Context, id, commentID string) error
	PinComment(ctx context.Context, id, commentID string) error
	UnpinComment(ctx context.Context, id string) error
	ToggleModerator(ctx context.Context, id, userID string) error
	ToggleMute(ctx context.Context, id, userID string) error

	ListMessages(ctx context.Context) ([]messageModel.Message, error)
	SendMessage(ctx context.Context, in messageModel.SendInput) (*messageModel.Message, error)

	ListNotifications(ctx context.Context) ([]notificationModel.Notification, error)
	MarkAllRead(ctx context.Context) error

	ChangePassword(ctx context.Context, password string) error
	DeleteAccount(ctx context.Context) error
}

// Options App 配置
type Options struct {
	Retention      time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Now            func() time.Time
}

// App 一次登录会话内的应用上下文，持有五个远端镜像集合。
// 会话登出后自动关闭，重新登录需创建新的 App。
type App struct {
	auth    *Auth
	session authModel.Session
	api     Backend
	opts    Options

	Posts         *datasource.Collection[postModel.PostView]
	Users         *datasource.Collection[userModel.UserView]
	Events        *datasource.Collection[eventModel.Event]
	Messages      *datasource.Collection[messageModel.Message]
	Notifications *datasource.Collection[notificationModel.Notification]

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	stopAuth  func()
}

// NewApp 会话确定后才能创建
func NewApp(auth *Auth, api Backend, src realtime.Source, opts Options) (*App, error) {
	session, ok := auth.Current()
	if !ok {
		return nil, ErrNoSession
	}
	if opts.Retention <= 0 {
		opts.Retention = feed.RetentionWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &App{
		auth:    auth,
		session: session,
		api:     api,
		opts:    opts,
		done:    make(chan struct{}),
	}

	a.Posts = datasource.New(datasource.Options[postModel.PostView]{
		Name:           "posts",
		Source:         src,
		Filter:         realtime.Filter{Tables: []string{"posts", "post_reactions", "post_comments", "post_replies"}},
		Fetch:          api.ListPosts,
		Key:            func(p postModel.PostView) string { return p.ID },
		Strategy:       datasource.Refetch,
		Less:           func(x, y postModel.PostView) bool { return x.CreatedAt.After(y.CreatedAt) },
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
	})

	a.Users = datasource.New(datasource.Options[userModel.UserView]{
		Name:           "users",
		Source:         src,
		Filter:         realtime.Filter{Tables: []string{"profiles", "follows", "saved_posts"}},
		Fetch:          a.fetchUsers,
		Key:            func(u userModel.UserView) string { return u.ID },
		Strategy:       datasource.Refetch,
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
	})

	a.Events = datasource.New(datasource.Options[eventModel.Event]{
		Name:           "events",
		Source:         src,
		Filter:         realtime.Filter{Tables: []string{"events", "event_comments"}},
		Fetch:          api.ListEvents,
		Key:            func(e eventModel.Event) string { return e.ID },
		Strategy:       datasource.Refetch,
		Less:           func(x, y eventModel.Event) bool { return x.CreatedAt.After(y.CreatedAt) },
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
	})

	a.Messages = datasource.New(datasource.Options[messageModel.Message]{
		Name:   "messages",
		Source: src,
		Filter: realtime.Filter{
			Tables: []string{"messages"},
			Types:  []realtime.ChangeType{realtime.Insert},
			AnyOf:  map[string]string{"sender_id": session.UserID, "receiver_id": session.UserID},
		},
		Fetch:          api.ListMessages,
		Key:            func(m messageModel.Message) string { return m.ID },
		Strategy:       datasource.Patch,
		Decode:         decodeMessage,
		Less:           func(x, y messageModel.Message) bool { return x.CreatedAt.Before(y.CreatedAt) },
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
	})

	a.Notifications = datasource.New(datasource.Options[notificationModel.Notification]{
		Name:   "notifications",
		Source: src,
		Filter: realtime.Filter{
			Tables: []string{"notifications"},
			AnyOf:  map[string]string{"recipient_id": session.UserID},
		},
		Fetch:          api.ListNotifications,
		Key:            func(n notificationModel.Notification) string { return n.ID },
		Strategy:       datasource.Refetch,
		Less:           func(x, y notificationModel.Notification) bool { return x.CreatedAt.After(y.CreatedAt) },
		BackoffInitial: opts.BackoffInitial,
		BackoffMax:     opts.BackoffMax,
	})

	return a, nil
}

// messageRow 变更中的行数据使用数据库列名
type messageRow struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       *string   `json:"text"`
	ImageURL   *string   `json:"image_url"`
	CreatedAt  time.Time `json:"created_at"`
}

func decodeMessage(c realtime.Change) (messageModel.Message, error) {
	var row messageRow
	if err := c.Decode(&row); err != nil {
		return messageModel.Message{}, err
	}
	if row.ID == "" {
		return messageModel.Message{}, errors.New("message row has no id")
	}
	return messageModel.Message{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		Text:       row.Text,
		ImageURL:   row.ImageURL,
		CreatedAt:  row.CreatedAt,
	}, nil
}

// fetchUsers 会话用户没有资料时（注册流程失败）临时补一份
func (a *App) fetchUsers(ctx context.Context) ([]userModel.UserView, error) {
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == a.session.UserID {
			return users, nil
		}
	}
	logger.Log.Warn("Session user has no profile, using a placeholder", zap.String("user_id", a.session.UserID))
	return append(users, placeholderProfile(a.session, a.opts.Now())), nil
}

func placeholderProfile(s authModel.Session, now time.Time) userModel.UserView {
	name := userModel.EmailLocalPart(s.Email)
	if name == "" {
		name = "You"
	}
	return userModel.UserView{
		ID:              s.UserID,
		Email:           s.Email,
		Name:            name,
		Username:        name,
		Avatar:          authService.DefaultAvatar(s.Email),
		Activity:        "Relaxing",
		LastSeen:        now,
		SavedVisibility: userModel.VisibilityPublic,
		Followers:       []string{},
		Following:       []string{},
		FavoritePostIDs: []string{},
	}
}

// Start 启动所有集合的同步，登出时自动关闭
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.stopAuth = a.auth.OnAuthStateChange(func(c authModel.StateChange) {
		if c.Event == authModel.SignedOut || c.Event == authModel.UserDeleted {
			go a.Close()
		}
	})

	runners := []func(context.Context) error{
		a.Posts.Run, a.Users.Run, a.Events.Run, a.Messages.Run, a.Notifications.Run,
	}
	for _, run := range runners {
		a.wg.Add(1)
		go func(run func(context.Context) error) {
			defer a.wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.Warn("Collection stopped", zap.Error(err))
			}
		}(run)
	}

	go func() {
		<-ctx.Done()
		a.Close()
	}()
}

// WaitReady 等待所有集合完成首次拉取
func (a *App) WaitReady(ctx context.Context) error {
	for _, ready := range []<-chan struct{}{
		a.Posts.Ready(), a.Users.Ready(), a.Events.Ready(), a.Messages.Ready(), a.Notifications.Ready(),
	} {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return ErrNoSession
		}
	}
	return nil
}

// Close 停止同步并等待所有集合退出，可重复调用
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.stopAuth != nil {
			a.stopAuth()
		}
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()
		close(a.done)
	})
}

// Done App 关闭后返回的通道关闭
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Session App 绑定的会话
func (a *App) Session() authModel.Session {
	return a.session
}
