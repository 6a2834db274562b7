package client

import (
	"context"
	"errors"
	"fmt"
	"strings"

	authModel "seest/internal/domain/auth/model"
	eventModel "seest/internal/domain/event/model"
	eventService "seest/internal/domain/event/service"
	messageModel "seest/internal/domain/message/model"
	postModel "seest/internal/domain/post/model"
	postService "seest/internal/domain/post/service"
	userModel "seest/internal/domain/user/model"
	userService "seest/internal/domain/user/service"
	"seest/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrEmptyText      = errors.New("text is required")
	ErrSelfTarget     = errors.New("you cannot do that to yourself")
	ErrUnknownPost    = errors.New("post is not loaded")
	ErrInvalidMessage = errors.New("message needs text or an image")
)

// refetch 写入成功后主动刷新，失败只记录日志
func (a *App) refetch(ctx context.Context, fns ...func(context.Context) error) {
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			logger.Log.Debug("Refetch after mutation failed", zap.Error(err))
		}
	}
}

func (a *App) AddPost(ctx context.Context, in postModel.CreateInput) (*postModel.PostView, error) {
	if in.PostType == "" {
		in.PostType = postModel.TypeStatus
	}
	if err := postService.ValidateContent(in.Text, in.Activity, in.Media, in.BackgroundColor); err != nil {
		return nil, err
	}
	p, err := a.api.CreatePost(ctx, in)
	if err != nil {
		return nil, err
	}
	a.refetch(ctx, a.Posts.Refetch)
	return p, nil
}

// UpdatePost 使用本地镜像中的版本号，期间被他人修改时返回版本冲突
func (a *App) UpdatePost(ctx context.Context, id, text, activity string) error {
	current, ok := a.Posts.Find(id)
	if !ok {
		return ErrUnknownPost
	}
	if !current.OwnedByViewer {
		return postService.ErrNotAuthor
	}
	if current.PostType != postModel.TypeStatus {
		return postService.ErrWrongPostType
	}
	if err := postService.ValidateContent(text, activity, current.Media, current.BackgroundColor); err != nil {
		return err
	}
	if _, err := a.api.UpdatePost(ctx, id, postModel.UpdateInput{Text: text, Activity: activity, Version: current.Version}); err != nil {
		return err
	}
	a.refetch(ctx, a.Posts.Refetch)
	return nil
}

func (a *App) DeletePost(ctx context.Context, id string) error {
	if err := a.api.DeletePost(ctx, id); err != nil {
		return err
	}
	a.Posts.Remove(id)
	return nil
}

// React 同一表情再次点击取消，返回最终的表情
func (a *App) React(ctx context.Context, postID, emoji string) (string, error) {
	if !postModel.IsReaction(emoji) {
		return "", postService.ErrInvalidReaction
	}
	state, err := a.api.React(ctx, postID, emoji)
	if err != nil {
		return "", err
	}
	a.refetch(ctx, a.Posts.Refetch)
	return state, nil
}

func (a *App) CommentPost(ctx context.Context, postID, text string) error {
	return a.respond(ctx, postID, text, postModel.TypeStatus, a.api.CommentPost)
}

// ReplyAsk 回复匿名提问
func (a *App) ReplyAsk(ctx context.Context, postID, text string) error {
	return a.respond(ctx, postID, text, postModel.TypeAsk, a.api.ReplyPost)
}

func (a *App) respond(ctx context.Context, postID, text string, want postModel.PostType, call func(ctx context.Context, id, text string) error) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if p, ok := a.Posts.Find(postID); ok && p.PostType != want {
		return postService.ErrWrongPostType
	}
	if err := call(ctx, postID, text); err != nil {
		return err
	}
	a.refetch(ctx, a.Posts.Refetch)
	return nil
}

func (a *App) Follow(ctx context.Context, targetID string) error {
	if targetID == a.session.UserID {
		return ErrSelfTarget
	}
	if err := a.api.Follow(ctx, targetID); err != nil {
		return err
	}
	a.refetch(ctx, a.Users.Refetch)
	return nil
}

func (a *App) Unfollow(ctx context.Context, targetID string) error {
	if targetID == a.session.UserID {
		return ErrSelfTarget
	}
	if err := a.api.Unfollow(ctx, targetID); err != nil {
		return err
	}
	a.refetch(ctx, a.Users.Refetch)
	return nil
}

// UpdateProfile 失败时返回可直接展示的错误信息
func (a *App) UpdateProfile(ctx context.Context, in userModel.ProfileUpdate) (string, error) {
	me, ok := a.Me()
	if !ok {
		return "Profile is not loaded yet.", ErrNoSession
	}
	if err := userService.ValidateUpdate(in, me.Username, me.LastUsernameChange, a.opts.Now()); err != nil {
		return humanize(err), err
	}
	if in.Version == 0 {
		in.Version = me.Version
	}
	if _, err := a.api.UpdateProfile(ctx, me.ID, in); err != nil {
		return humanize(err), err
	}
	a.refetch(ctx, a.Users.Refetch)
	return "", nil
}

func humanize(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func (a *App) ToggleSaved(ctx context.Context, postID string) (bool, error) {
	if p, ok := a.Posts.Find(postID); ok {
		if !p.OwnedByViewer {
			return false, userService.ErrNotPostAuthor
		}
		if p.PostType == postModel.TypeAsk {
			return false, userService.ErrAskNotSavable
		}
	}
	saved, err := a.api.ToggleSaved(ctx, postID)
	if err != nil {
		return false, err
	}
	a.refetch(ctx, a.Users.Refetch, a.Posts.Refetch)
	return saved, nil
}

func (a *App) UpdateVisibility(ctx context.Context, v userModel.Visibility) error {
	if v != userModel.VisibilityPublic && v != userModel.VisibilityPrivate {
		return userService.ErrInvalidVisibility
	}
	if err := a.api.UpdateVisibility(ctx, v); err != nil {
		return err
	}
	a.refetch(ctx, a.Users.Refetch)
	return nil
}

func (a *App) Touch(ctx context.Context) error {
	return a.api.Touch(ctx)
}

func (a *App) CreateEvent(ctx context.Context, in eventModel.CreateInput) (*eventModel.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", eventService.ErrInvalidEvent)
	}
	if in.Type == eventModel.TypePodcast {
		invited := 0
		seen := map[string]bool{a.session.UserID: true}
		for _, id := range in.Speakers {
			if id != "" && !seen[id] {
				seen[id] = true
				invited++
			}
		}
		if invited < eventModel.MinPodcastSpeakers || invited > eventModel.MaxPodcastSpeakers {
			return nil, fmt.Errorf("%w: a podcast needs %d to %d invited speakers", eventService.ErrInvalidEvent, eventModel.MinPodcastSpeakers, eventModel.MaxPodcastSpeakers)
		}
	}
	e, err := a.api.CreateEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	a.Events.Upsert(*e)
	return e, nil
}

// checkEvent 本地镜像中有该直播间时先按权限表校验
func (a *App) checkEvent(id string, action eventModel.Action) error {
	e, ok := a.Events.Find(id)
	if !ok {
		return nil
	}
	if e.Status != eventModel.StatusLive {
		return eventService.ErrEventEnded
	}
	if !eventModel.Allowed(action, eventModel.RoleOf(&e, a.session.UserID)) {
		return eventService.ErrNotAllowed
	}
	return nil
}

func (a *App) eventAction(ctx context.Context, id string, action eventModel.Action) error {
	if err := a.checkEvent(id, action); err != nil {
		return err
	}
	return a.api.EventAction(ctx, id, action)
}

func (a *App) JoinEvent(ctx context.Context, id string) error {
	return a.eventAction(ctx, id, eventModel.ActionJoin)
}

func (a *App) LeaveEvent(ctx context.Context, id string) error {
	return a.eventAction(ctx, id, eventModel.ActionLeave)
}

func (a *App) EndEvent(ctx context.Context, id string) error {
	return a.eventAction(ctx, id, eventModel.ActionEnd)
}

func (a *App) CommentEvent(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if err := a.checkEvent(id, eventModel.ActionComment); err != nil {
		return err
	}
	return a.api.CommentEvent(ctx, id, text)
}

func (a *App) DeleteEventComment(ctx context.Context, id, commentID string) error {
	if err := a.checkEvent(id, eventModel.ActionDeleteComment); err != nil {
		return err
	}
	return a.api.DeleteEventComment(ctx, id, commentID)
}

func (a *App) PinComment(ctx context.Context, id, commentID string) error {
	if err := a.checkEvent(id, eventModel.ActionPin); err != nil {
		return err
	}
	if e, ok := a.Events.Find(id); ok {
		if _, found := e.FindComment(commentID); !found {
			return eventService.ErrCommentNotFound
		}
	}
	return a.api.PinComment(ctx, id, commentID)
}

func (a *App) UnpinComment(ctx context.Context, id string) error {
	if err := a.checkEvent(id, eventModel.ActionPin); err != nil {
		return err
	}
	return a.api.UnpinComment(ctx, id)
}

func (a *App) ToggleModerator(ctx context.Context, id, userID string) error {
	if err := a.checkEvent(id, eventModel.ActionToggleModerator); err != nil {
		return err
	}
	return a.api.ToggleModerator(ctx, id, userID)
}

func (a *App) ToggleMute(ctx context.Context, id, userID string) error {
	if err := a.checkEvent(id, eventModel.ActionToggleMute); err != nil {
		return err
	}
	return a.api.ToggleMute(ctx, id, userID)
}

// SendMessage 成功后立即放入本地集合，随后到达的 INSERT 变更按 ID 合并
func (a *App) SendMessage(ctx context.Context, receiverID string, text, imageURL *string) (*messageModel.Message, error) {
	hasText := text != nil && strings.TrimSpace(*text) != ""
	hasImage := imageURL != nil && *imageURL != ""
	if !hasText && !hasImage {
		return nil, ErrInvalidMessage
	}
	if receiverID == a.session.UserID {
		return nil, ErrSelfTarget
	}
	m, err := a.api.SendMessage(ctx, messageModel.SendInput{ReceiverID: receiverID, Text: text, ImageURL: imageURL})
	if err != nil {
		return nil, err
	}
	a.Messages.Upsert(*m)
	return m, nil
}

func (a *App) MarkAllRead(ctx context.Context) error {
	if err := a.api.MarkAllRead(ctx); err != nil {
		return err
	}
	for _, n := range a.Notifications.Items() {
		if !n.Read {
			n.Read = true
			a.Notifications.Upsert(n)
		}
	}
	return nil
}

func (a *App) ChangePassword(ctx context.Context, password string) error {
	if len([]rune(password)) < 6 {
		return errors.New("password must be at least 6 characters")
	}
	return a.api.ChangePassword(ctx, password)
}

// DeleteAccount 成功后会话失效，App 随之关闭；失败时返回可展示的错误信息
func (a *App) DeleteAccount(ctx context.Context) (string, error) {
	if err := a.api.DeleteAccount(ctx); err != nil {
		return "Could not delete your account: " + humanize(err), err
	}
	a.auth.Expire(authModel.UserDeleted)
	return "", nil
}
