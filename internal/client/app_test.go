package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authModel "seest/internal/domain/auth/model"
	eventModel "seest/internal/domain/event/model"
	eventService "seest/internal/domain/event/service"
	messageModel "seest/internal/domain/message/model"
	notificationModel "seest/internal/domain/notification/model"
	postModel "seest/internal/domain/post/model"
	postService "seest/internal/domain/post/service"
	userModel "seest/internal/domain/user/model"
	userService "seest/internal/domain/user/service"
	"seest/internal/pkg/realtime"
	baseModel "seest/pkg/model"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend 内存中的服务端
type fakeBackend struct {
	mu            sync.Mutex
	posts         []postModel.PostView
	users         []userModel.UserView
	events        []eventModel.Event
	messages      []messageModel.Message
	notifications []notificationModel.Notification
	calls         []string
	failWith      error
}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	return b.failWith
}

func (b *fakeBackend) called() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) ListPosts(ctx context.Context) ([]postModel.PostView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]postModel.PostView(nil), b.posts...), nil
}

func (b *fakeBackend) CreatePost(ctx context.Context, in postModel.CreateInput) (*postModel.PostView, error) {
	if err := b.record("CreatePost"); err != nil {
		return nil, err
	}
	p := postModel.PostView{ID: "new", Text: in.Text, Activity: in.Activity, PostType: in.PostType, CreatedAt: testNow}
	b.mu.Lock()
	b.posts = append(b.posts, p)
	b.mu.Unlock()
	return &p, nil
}

func (b *fakeBackend) UpdatePost(ctx context.Context, id string, in postModel.UpdateInput) (*postModel.PostView, error) {
	return nil, b.record("UpdatePost")
}

func (b *fakeBackend) DeletePost(ctx context.Context, id string) error {
	return b.record("DeletePost")
}

func (b *fakeBackend) React(ctx context.Context, id, emoji string) (string, error) {
	return emoji, b.record("React")
}

func (b *fakeBackend) CommentPost(ctx context.Context, id, text string) error {
	return b.record("CommentPost")
}

func (b *fakeBackend) ReplyPost(ctx context.Context, id, text string) error {
	return b.record("ReplyPost")
}

func (b *fakeBackend) ListUsers(ctx context.Context) ([]userModel.UserView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]userModel.UserView(nil), b.users...), nil
}

func (b *fakeBackend) UpdateProfile(ctx context.Context, id string, in userModel.ProfileUpdate) (*userModel.UserView, error) {
	return nil, b.record("UpdateProfile")
}

func (b *fakeBackend) Follow(ctx context.Context, id string) error {
	return b.record("Follow")
}

func (b *fakeBackend) Unfollow(ctx context.Context, id string) error {
	return b.record("Unfollow")
}

func (b *fakeBackend) ToggleSaved(ctx context.Context, postID string) (bool, error) {
	return true, b.record("ToggleSaved")
}

func (b *fakeBackend) UpdateVisibility(ctx context.Context, v userModel.Visibility) error {
	return b.record("UpdateVisibility")
}

func (b *fakeBackend) Touch(ctx context.Context) error {
	return b.record("Touch")
}

func (b *fakeBackend) ListEvents(ctx context.Context) ([]eventModel.Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventModel.Event(nil), b.events...), nil
}

func (b *fakeBackend) CreateEvent(ctx context.Context, in eventModel.CreateInput) (*eventModel.Event, error) {
	if err := b.record("CreateEvent"); err != nil {
		return nil, err
	}
	e := &eventModel.Event{Title: in.Title, Type: in.Type, Status: eventModel.StatusLive}
	e.ID = "ev-new"
	return e, nil
}

func (b *fakeBackend) EventAction(ctx context.Context, id string, action eventModel.Action) error {
	return b.record("EventAction:" + string(action))
}

func (b *fakeBackend) CommentEvent(ctx context.Context, id, text string) error {
	return b.record("CommentEvent")
}

func (b *fakeBackend) DeleteEventComment(ctx context.Context, id, commentID string) error {
	return b.record("DeleteEventComment")
}

func (b *fakeBackend) PinComment(ctx context.Context, id, commentID string) error {
	return b.record("PinComment")
}

func (b *fakeBackend) UnpinComment(ctx context.Context, id string) error {
	return b.record("UnpinComment")
}

func (b *fakeBackend) ToggleModerator(ctx context.Context, id, userID string) error {
	return b.record("ToggleModerator")
}

func (b *fakeBackend) ToggleMute(ctx context.Context, id, userID string) error {
	return b.record("ToggleMute")
}

func (b *fakeBackend) ListMessages(ctx context.Context) ([]messageModel.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]messageModel.Message(nil), b.messages...), nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, in messageModel.SendInput) (*messageModel.Message, error) {
	if err := b.record("SendMessage"); err != nil {
		return nil, err
	}
	return &messageModel.Message{ID: "m-sent", SenderID: "me", ReceiverID: in.ReceiverID, Text: in.Text, CreatedAt: testNow}, nil
}

func (b *fakeBackend) ListNotifications(ctx context.Context) ([]notificationModel.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]notificationModel.Notification(nil), b.notifications...), nil
}

func (b *fakeBackend) MarkAllRead(ctx context.Context) error {
	return b.record("MarkAllRead")
}

func (b *fakeBackend) ChangePassword(ctx context.Context, password string) error {
	return b.record("ChangePassword")
}

func (b *fakeBackend) DeleteAccount(ctx context.Context) error {
	return b.record("DeleteAccount")
}

// fakeAuthBackend 登录总是成功
type fakeAuthBackend struct {
	signOutErr error
}

func (f *fakeAuthBackend) SignUp(ctx context.Context, in authModel.SignUpInput) (*authModel.Session, error) {
	return &authModel.Session{UserID: "me", Email: in.Email, Token: "tok"}, nil
}

func (f *fakeAuthBackend) SignIn(ctx context.Context, email, password string) (*authModel.Session, error) {
	return &authModel.Session{UserID: "me", Email: email, Token: "tok"}, nil
}

func (f *fakeAuthBackend) SignOut(ctx context.Context) error { return f.signOutErr }

func (f *fakeAuthBackend) Session(ctx context.Context) (*authModel.Session, error) {
	return &authModel.Session{UserID: "me", Email: "me@example.com", Token: "tok"}, nil
}

func (f *fakeAuthBackend) ResetPassword(ctx context.Context, email string) error { return nil }

func newSignedInAuth(t *testing.T) *Auth {
	t.Helper()
	auth := NewAuth()
	auth.Bind(&fakeAuthBackend{})
	_, err := auth.SignIn(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	return auth
}

func seededBackend() *fakeBackend {
	return &fakeBackend{
		users: []userModel.UserView{
			{ID: "me", Name: "Me", Username: "me", Followers: []string{"amy"}, Following: []string{"amy", "bob"}},
			{ID: "amy", Name: "Amy", Username: "amy", Followers: []string{"me"}, Following: []string{"me"}},
			{ID: "bob", Name: "Bob", Username: "Bob_B", Followers: []string{"me"}},
		},
		posts: []postModel.PostView{
			{ID: "p1", Author: postModel.Authored("amy"), Activity: "Working", PostType: postModel.TypeStatus, CreatedAt: testNow.Add(-time.Hour)},
			{ID: "p2", Author: postModel.Authored("bob"), Activity: "Working", PostType: postModel.TypeStatus, CreatedAt: testNow.Add(-time.Hour)},
			{ID: "p3", Author: postModel.Authored("me"), Activity: "Eating", PostType: postModel.TypeStatus, CreatedAt: testNow.Add(-2 * time.Hour), OwnedByViewer: true},
			{ID: "p4", Author: postModel.Anonymous(), PostType: postModel.TypeAsk, CreatedAt: testNow.Add(-30 * time.Minute)},
			{ID: "old", Author: postModel.Authored("amy"), Activity: "Working", PostType: postModel.TypeStatus, CreatedAt: testNow.Add(-25 * time.Hour)},
		},
		events: []eventModel.Event{
			{
				BaseModel: baseModel.BaseModel{ID: "ev1", CreatedAt: testNow},
				CreatorID: "amy",
				Type:      eventModel.TypeStandUp,
				Status:    eventModel.StatusLive,
				Listeners: pq.StringArray{"me"},
				Speakers:  pq.StringArray{},
				Comments: []eventModel.Comment{
					{BaseModel: baseModel.BaseModel{ID: "c1"}, EventID: "ev1", UserID: "me", Text: "hi"},
				},
			},
		},
		messages: []messageModel.Message{
			{ID: "m1", SenderID: "amy", ReceiverID: "me", Text: strPtr("hey"), CreatedAt: testNow.Add(-time.Minute)},
		},
		notifications: []notificationModel.Notification{
			{BaseModel: baseModel.BaseModel{ID: "n1", CreatedAt: testNow}, RecipientID: "me", ActorID: "amy", Type: notificationModel.TypeFollow},
			{BaseModel: baseModel.BaseModel{ID: "n2", CreatedAt: testNow.Add(-time.Minute)}, RecipientID: "me", ActorID: "bob", Type: notificationModel.TypeLike, Read: true},
		},
	}
}

func strPtr(s string) *string { return &s }

func startApp(t *testing.T, backend *fakeBackend, hub *realtime.Hub) (*App, *Auth) {
	t.Helper()
	auth := newSignedInAuth(t)
	app, err := NewApp(auth, backend, hub, Options{
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
		Now:            func() time.Time { return testNow },
	})
	require.NoError(t, err)
	app.Start(context.Background())
	t.Cleanup(app.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.WaitReady(ctx))
	return app, auth
}

func TestNewAppRequiresSession(t *testing.T) {
	_, err := NewApp(NewAuth(), &fakeBackend{}, realtime.NewHub(0), Options{})
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestAppLoadsSnapshots(t *testing.T) {
	app, _ := startApp(t, seededBackend(), realtime.NewHub(0))

	assert.Len(t, app.Posts.Items(), 5)
	assert.Equal(t, "p4", app.Posts.Items()[0].ID, "newest first")
	assert.Len(t, app.Events.Items(), 1)
	assert.Equal(t, 1, app.UnreadCount())

	me, ok := app.Me()
	require.True(t, ok)
	assert.Equal(t, "Me", me.Name)
}

func TestPlaceholderProfile(t *testing.T) {
	backend := seededBackend()
	backend.users = backend.users[1:]
	app, _ := startApp(t, backend, realtime.NewHub(0))

	me, ok := app.Me()
	require.True(t, ok)
	assert.Equal(t, "me", me.Name)
	assert.Equal(t, "M", me.Avatar)
	assert.Equal(t, "Relaxing", me.Activity)
	assert.Equal(t, userModel.VisibilityPublic, me.SavedVisibility)
	assert.Empty(t, me.Followers)
}

func TestMessagesPatchFromStream(t *testing.T) {
	hub := realtime.NewHub(0)
	app, _ := startApp(t, seededBackend(), hub)

	incoming := messageRow{ID: "m2", SenderID: "bob", ReceiverID: "me", Text: strPtr("yo"), CreatedAt: testNow}
	require.NoError(t, realtime.PublishRecord(context.Background(), hub, "messages", realtime.Insert, "m2", incoming))

	// 与自己无关的私信不会出现
	other := messageRow{ID: "m3", SenderID: "bob", ReceiverID: "amy", CreatedAt: testNow}
	require.NoError(t, realtime.PublishRecord(context.Background(), hub, "messages", realtime.Insert, "m3", other))

	require.Eventually(t, func() bool {
		_, ok := app.Messages.Find("m2")
		return ok
	}, time.Second, 10*time.Millisecond)
	_, found := app.Messages.Find("m3")
	assert.False(t, found)

	convs := app.Conversations()
	require.Len(t, convs, 2)
	assert.Len(t, app.Conversation("bob"), 1)
}

func TestRefetchOnPostChange(t *testing.T) {
	hub := realtime.NewHub(0)
	backend := seededBackend()
	app, _ := startApp(t, backend, hub)

	backend.mu.Lock()
	backend.posts = append(backend.posts, postModel.PostView{ID: "p5", Author: postModel.Authored("amy"), PostType: postModel.TypeStatus, CreatedAt: testNow})
	backend.mu.Unlock()
	require.NoError(t, realtime.PublishRecord(context.Background(), hub, "post_reactions", realtime.Insert, "r1", nil))

	require.Eventually(t, func() bool {
		_, ok := app.Posts.Find("p5")
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestSignOutClosesApp(t *testing.T) {
	app, auth := startApp(t, seededBackend(), realtime.NewHub(0))

	require.NoError(t, auth.SignOut(context.Background()))
	select {
	case <-app.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("app did not close after sign out")
	}
}

func TestEventGuard(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))
	ctx := context.Background()

	// 听众只能评论和离开
	assert.ErrorIs(t, app.PinComment(ctx, "ev1", "c1"), eventService.ErrNotAllowed)
	assert.ErrorIs(t, app.ToggleMute(ctx, "ev1", "amy"), eventService.ErrNotAllowed)
	assert.ErrorIs(t, app.EndEvent(ctx, "ev1"), eventService.ErrNotAllowed)
	assert.ErrorIs(t, app.CommentEvent(ctx, "ev1", "  "), ErrEmptyText)
	require.NoError(t, app.CommentEvent(ctx, "ev1", "hello"))
	require.NoError(t, app.LeaveEvent(ctx, "ev1"))

	ended := backend.events[0]
	ended.Status = eventModel.StatusEnded
	app.Events.Upsert(ended)
	assert.ErrorIs(t, app.CommentEvent(ctx, "ev1", "late"), eventService.ErrEventEnded)

	assert.Equal(t, []string{"CommentEvent", "EventAction:leave"}, backend.called())
}

func TestPostMutations(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))
	ctx := context.Background()

	_, err := app.AddPost(ctx, postModel.CreateInput{Activity: "Nope"})
	assert.Error(t, err)

	p, err := app.AddPost(ctx, postModel.CreateInput{Activity: "Working", Text: "busy"})
	require.NoError(t, err)
	assert.Equal(t, postModel.TypeStatus, p.PostType)
	_, ok := app.Posts.Find("new")
	assert.True(t, ok, "refetched after create")

	_, err = app.React(ctx, "p1", "🙃")
	assert.Error(t, err)

	assert.ErrorIs(t, app.CommentPost(ctx, "p4", "hi"), postService.ErrWrongPostType)
	assert.ErrorIs(t, app.ReplyAsk(ctx, "p1", "hi"), postService.ErrWrongPostType)
	require.NoError(t, app.ReplyAsk(ctx, "p4", "answer"))

	assert.Error(t, app.UpdatePost(ctx, "p1", "x", "Working"), "not the author")
	assert.ErrorIs(t, app.UpdatePost(ctx, "missing", "x", "Working"), ErrUnknownPost)

	require.NoError(t, app.DeletePost(ctx, "p3"))
	_, ok = app.Posts.Find("p3")
	assert.False(t, ok)
}

func TestFollowSelf(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))

	assert.ErrorIs(t, app.Follow(context.Background(), "me"), ErrSelfTarget)
	require.NoError(t, app.Follow(context.Background(), "bob"))
	assert.Equal(t, []string{"Follow"}, backend.called())
}

func TestUpdateProfileCooldown(t *testing.T) {
	backend := seededBackend()
	changed := testNow.Add(-24 * time.Hour)
	backend.users[0].LastUsernameChange = &changed
	app, _ := startApp(t, backend, realtime.NewHub(0))

	msg, err := app.UpdateProfile(context.Background(), userModel.ProfileUpdate{Username: strPtr("renamed")})
	require.Error(t, err)
	assert.NotEmpty(t, msg)
	assert.Empty(t, backend.called())

	backend.failWith = &APIError{Status: 409, Code: 10006, Message: "Username already taken. Please choose another."}
	msg, err = app.UpdateProfile(context.Background(), userModel.ProfileUpdate{Name: strPtr("New Name")})
	require.Error(t, err)
	assert.Equal(t, "Username already taken. Please choose another.", msg)
}

func TestSendMessage(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))
	ctx := context.Background()

	_, err := app.SendMessage(ctx, "amy", strPtr("   "), nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = app.SendMessage(ctx, "me", strPtr("hi"), nil)
	assert.ErrorIs(t, err, ErrSelfTarget)

	m, err := app.SendMessage(ctx, "amy", strPtr("hi"), nil)
	require.NoError(t, err)
	_, ok := app.Messages.Find(m.ID)
	assert.True(t, ok)
	assert.Len(t, app.Conversation("amy"), 2)
}

func TestMarkAllRead(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))

	require.Equal(t, 1, app.UnreadCount())
	require.NoError(t, app.MarkAllRead(context.Background()))
	assert.Equal(t, 0, app.UnreadCount())

	backend.failWith = errors.New("offline")
	assert.Error(t, app.MarkAllRead(context.Background()))
}

func TestDeleteAccountSignsOut(t *testing.T) {
	backend := seededBackend()
	app, auth := startApp(t, backend, realtime.NewHub(0))

	var events []authModel.Event
	auth.OnAuthStateChange(func(c authModel.StateChange) { events = append(events, c.Event) })

	msg, err := app.DeleteAccount(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, []authModel.Event{authModel.UserDeleted}, events)
	_, ok := auth.Current()
	assert.False(t, ok)

	select {
	case <-app.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("app did not close after account deletion")
	}
}

func TestCreateEventValidation(t *testing.T) {
	backend := seededBackend()
	app, _ := startApp(t, backend, realtime.NewHub(0))
	ctx := context.Background()

	_, err := app.CreateEvent(ctx, eventModel.CreateInput{Title: " ", Type: eventModel.TypeStandUp})
	assert.ErrorIs(t, err, eventService.ErrInvalidEvent)

	// 自己和重复的嘉宾不计入
	_, err = app.CreateEvent(ctx, eventModel.CreateInput{Title: "Pod", Type: eventModel.TypePodcast, Speakers: []string{"me", "amy", "amy"}})
	assert.ErrorIs(t, err, eventService.ErrInvalidEvent)
	assert.Empty(t, backend.called())

	e, err := app.CreateEvent(ctx, eventModel.CreateInput{Title: "Pod", Type: eventModel.TypePodcast, Speakers: []string{"amy", "bob"}})
	require.NoError(t, err)
	_, ok := app.Events.Find(e.ID)
	assert.True(t, ok)
}

func TestOwnAskPostCannotBeEditedOrSaved(t *testing.T) {
	backend := seededBackend()
	backend.posts = append(backend.posts, postModel.PostView{ID: "mine", Author: postModel.Anonymous(), PostType: postModel.TypeAsk, CreatedAt: testNow, OwnedByViewer: true})
	app, _ := startApp(t, backend, realtime.NewHub(0))
	ctx := context.Background()

	assert.ErrorIs(t, app.UpdatePost(ctx, "mine", "edited", "Working"), postService.ErrWrongPostType)
	_, err := app.ToggleSaved(ctx, "mine")
	assert.ErrorIs(t, err, userService.ErrAskNotSavable)
	assert.Empty(t, backend.called())
}
