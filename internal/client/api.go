package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	authModel "seest/internal/domain/auth/model"
	eventModel "seest/internal/domain/event/model"
	messageModel "seest/internal/domain/message/model"
	notificationModel "seest/internal/domain/notification/model"
	postModel "seest/internal/domain/post/model"
	userModel "seest/internal/domain/user/model"
	"seest/pkg/response"
)

const dialTimeout = 10 * time.Second
const reqTimeout = 30 * time.Second

// APIError 服务端返回的错误
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d, code %d)", e.Message, e.Status, e.Code)
}

// API 通过 HTTP 调用服务端
type API struct {
	host   string
	client *http.Client
}

type authenticatedTransport struct {
	underlyingTransport http.RoundTripper
	token               func() string
}

func (t *authenticatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != nil {
		if tok := t.token(); tok != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return t.underlyingTransport.RoundTrip(req)
}

var netDialer = &net.Dialer{
	Timeout: dialTimeout,
}

// NewAPI host 形如 http://localhost:8080，token 每次请求时取最新值
func NewAPI(host string, token func() string) *API {
	return &API{
		host: strings.TrimRight(host, "/"),
		client: &http.Client{
			Transport: &authenticatedTransport{
				underlyingTransport: &http.Transport{DialContext: netDialer.DialContext},
				token:               token,
			},
			Timeout: reqTimeout,
		},
	}
}

// StreamURL 实时推送流地址
func (a *API) StreamURL() string {
	u := a.host + "/realtime"
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func (a *API) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reqBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshalling request: %w", err)
		}
		reader = bytes.NewReader(reqBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.host+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{Status: resp.StatusCode, Code: response.CodeError, Message: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("error decoding response: %w", err)
	}
	if resp.StatusCode >= 400 || envelope.Code != response.CodeSuccess {
		return &APIError{Status: resp.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}

	if out == nil || len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (a *API) SignUp(ctx context.Context, in authModel.SignUpInput) (*authModel.Session, error) {
	var s authModel.Session
	if err := a.do(ctx, http.MethodPost, "/auth/signup", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *API) SignIn(ctx context.Context, email, password string) (*authModel.Session, error) {
	var s authModel.Session
	if err := a.do(ctx, http.MethodPost, "/auth/signin", authModel.SignInInput{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *API) SignOut(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/auth/signout", nil, nil)
}

func (a *API) Session(ctx context.Context) (*authModel.Session, error) {
	var s authModel.Session
	if err := a.do(ctx, http.MethodGet, "/auth/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (a *API) ResetPassword(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/auth/reset", authModel.ResetInput{Email: email}, nil)
}

func (a *API) ChangePassword(ctx context.Context, password string) error {
	return a.do(ctx, http.MethodPut, "/auth/password", authModel.ChangePasswordInput{Password: password}, nil)
}

func (a *API) DeleteAccount(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/auth/account", nil, nil)
}

func (a *API) ListPosts(ctx context.Context) ([]postModel.PostView, error) {
	var posts []postModel.PostView
	err := a.do(ctx, http.MethodGet, "/posts", nil, &posts)
	return posts, err
}

func (a *API) CreatePost(ctx context.Context, in postModel.CreateInput) (*postModel.PostView, error) {
	var p postModel.PostView
	if err := a.do(ctx, http.MethodPost, "/posts", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) UpdatePost(ctx context.Context, id string, in postModel.UpdateInput) (*postModel.PostView, error) {
	var p postModel.PostView
	if err := a.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (a *API) DeletePost(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

func (a *API) React(ctx context.Context, id, emoji string) (string, error) {
	var state struct {
		Emoji string `json:"emoji"`
	}
	err := a.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/reactions", map[string]string{"emoji": emoji}, &state)
	return state.Emoji, err
}

func (a *API) CommentPost(ctx context.Context, id, text string) error {
	return a.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/comments", map[string]string{"text": text}, nil)
}

func (a *API) ReplyPost(ctx context.Context, id, text string) error {
	return a.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(id)+"/replies", map[string]string{"text": text}, nil)
}

func (a *API) ListUsers(ctx context.Context) ([]userModel.UserView, error) {
	var users []userModel.UserView
	err := a.do(ctx, http.MethodGet, "/users", nil, &users)
	return users, err
}

func (a *API) UpdateProfile(ctx context.Context, id string, in userModel.ProfileUpdate) (*userModel.UserView, error) {
	var u userModel.UserView
	if err := a.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (a *API) Follow(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/follow", nil, nil)
}

func (a *API) Unfollow(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id)+"/follow", nil, nil)
}

func (a *API) ToggleSaved(ctx context.Context, postID string) (bool, error) {
	var state struct {
		Saved bool `json:"saved"`
	}
	err := a.do(ctx, http.MethodPost, "/me/saved/"+url.PathEscape(postID), nil, &state)
	return state.Saved, err
}

func (a *API) UpdateVisibility(ctx context.Context, v userModel.Visibility) error {
	return a.do(ctx, http.MethodPut, "/me/visibility", map[string]userModel.Visibility{"visibility": v}, nil)
}

func (a *API) Touch(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/me/touch", nil, nil)
}

func (a *API) ListEvents(ctx context.Context) ([]eventModel.Event, error) {
	var events []eventModel.Event
	err := a.do(ctx, http.MethodGet, "/events", nil, &events)
	return events, err
}

func (a *API) CreateEvent(ctx context.Context, in eventModel.CreateInput) (*eventModel.Event, error) {
	var e eventModel.Event
	if err := a.do(ctx, http.MethodPost, "/events", in, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// EventAction join、leave、end 这类无参数的直播间操作
func (a *API) EventAction(ctx context.Context, id string, action eventModel.Action) error {
	switch action {
	case eventModel.ActionJoin, eventModel.ActionLeave, eventModel.ActionEnd:
	default:
		return fmt.Errorf("unsupported event action %q", action)
	}
	return a.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/"+string(action), nil, nil)
}

func (a *API) CommentEvent(ctx context.Context, id, text string) error {
	return a.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/comments", map[string]string{"text": text}, nil)
}

func (a *API) DeleteEventComment(ctx context.Context, id, commentID string) error {
	return a.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id)+"/comments/"+url.PathEscape(commentID), nil, nil)
}

func (a *API) PinComment(ctx context.Context, id, commentID string) error {
	return a.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/pin/"+url.PathEscape(commentID), nil, nil)
}

func (a *API) UnpinComment(ctx context.Context, id string) error {
	return a.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(id)+"/pin", nil, nil)
}

func (a *API) ToggleModerator(ctx context.Context, id, userID string) error {
	return a.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/moderators", map[string]string{"userId": userID}, nil)
}

func (a *API) ToggleMute(ctx context.Context, id, userID string) error {
	return a.do(ctx, http.MethodPost, "/events/"+url.PathEscape(id)+"/muted", map[string]string{"userId": userID}, nil)
}

func (a *API) ListMessages(ctx context.Context) ([]messageModel.Message, error) {
	var msgs []messageModel.Message
	err := a.do(ctx, http.MethodGet, "/messages", nil, &msgs)
	return msgs, err
}

func (a *API) SendMessage(ctx context.Context, in messageModel.SendInput) (*messageModel.Message, error) {
	var m messageModel.Message
	if err := a.do(ctx, http.MethodPost, "/messages", in, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *API) ListNotifications(ctx context.Context) ([]notificationModel.Notification, error) {
	var list []notificationModel.Notification
	err := a.do(ctx, http.MethodGet, "/notifications", nil, &list)
	return list, err
}

func (a *API) MarkAllRead(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/notifications/read", nil, nil)
}
