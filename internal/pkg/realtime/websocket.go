package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"seest/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame 推送流上的消息，第一帧为 subscribed 确认
type Frame struct {
	Event  string  `json:"event"` // subscribed, change
	Change *Change `json:"change,omitempty"`
}

const (
	FrameSubscribed = "subscribed"
	FrameChange     = "change"
)

// Guard 按连接用户过滤或裁剪变更，返回 false 表示不投递
type Guard func(userID string, c Change) (Change, bool)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeStream 升级连接并推送变更：客户端首帧发送 Filter，服务端订阅成功后回 subscribed，
// 之后逐条推送 change 帧，直到任一方断开。
// AnyOf 在 guard 处理之后再匹配，不能用被隐藏的字段探测行数据。
func ServeStream(w http.ResponseWriter, r *http.Request, src Source, userID string, guard Guard) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	var f Filter
	if err := conn.ReadJSON(&f); err != nil {
		logger.Log.Debug("Stream closed before filter", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	stream, err := src.Subscribe(ctx, Filter{Tables: f.Tables, Types: f.Types})
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
			time.Now().Add(writeWait))
		return
	}

	// 读协程只负责处理 pong 与检测断开
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := writeFrame(conn, Frame{Event: FrameSubscribed}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-stream:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resubscribe"),
					time.Now().Add(writeWait))
				return
			}
			if guard != nil {
				var allowed bool
				if c, allowed = guard(userID, c); !allowed {
					continue
				}
			}
			if !f.Accept(c) {
				continue
			}
			if err := writeFrame(conn, Frame{Event: FrameChange, Change: &c}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}

// WSSource 通过服务端推送流订阅变更的客户端实现
type WSSource struct {
	endpoint string
	token    func() string
	dialer   *websocket.Dialer
}

// NewWSSource endpoint 形如 ws://host:8080/realtime，token 每次连接时取最新值
func NewWSSource(endpoint string, token func() string) *WSSource {
	return &WSSource{
		endpoint: endpoint,
		token:    token,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Subscribe 建立连接、发送过滤条件并等待 subscribed 确认
func (s *WSSource) Subscribe(ctx context.Context, f Filter) (<-chan Change, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if s.token != nil {
		if t := s.token(); t != "" {
			header.Set("Authorization", "Bearer "+t)
		}
	}

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime stream: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial realtime stream: %w", err)
	}

	if err := conn.WriteJSON(f); err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, fmt.Errorf("await subscription: %w", err)
	}
	if ack.Event != FrameSubscribed {
		conn.Close()
		return nil, fmt.Errorf("unexpected frame %q", ack.Event)
	}

	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	out := make(chan Change, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go func() {
		defer close(out)
		defer close(done)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			var fr Frame
			if err := conn.ReadJSON(&fr); err != nil {
				if ctx.Err() == nil {
					logger.Log.Debug("Realtime stream dropped", zap.Error(err))
				}
				return
			}
			if fr.Event != FrameChange || fr.Change == nil {
				continue
			}
			select {
			case out <- *fr.Change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
