package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"seest/pkg/logger"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PGListener 监听 Postgres NOTIFY 频道（由表触发器写入），将变更转发到 Hub。
// 连接断开期间的变更无法补发，重连成功后会 Reset Hub，订阅方据此补拉。
type PGListener struct {
	dsn     string
	channel string
	hub     *Hub
	backoff *Backoff
	log     *zap.Logger
}

// NewPGListener 创建监听器
func NewPGListener(dsn, channel string, hub *Hub, backoff *Backoff) *PGListener {
	return &PGListener{
		dsn:     dsn,
		channel: channel,
		hub:     hub,
		backoff: backoff,
		log:     logger.Named("pg-listener"),
	}
}

// Run 阻塞运行直到 ctx 结束
func (l *PGListener) Run(ctx context.Context) error {
	first := true
	for {
		err := l.listen(ctx, first)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		first = false

		wait := l.backoff.Next()
		l.log.Warn("Listener disconnected, reconnecting",
			zap.String("channel", l.channel),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *PGListener) listen(ctx context.Context, first bool) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.backoff.Reset()
	l.log.Info("Listening for changes", zap.String("channel", l.channel))

	if !first {
		l.hub.Reset()
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := decodeNotification([]byte(n.Payload))
		if err != nil {
			l.log.Warn("Dropping malformed notification", zap.Error(err))
			continue
		}
		if err := l.hub.Publish(ctx, c); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			l.log.Warn("Publish failed", zap.Error(err))
		}
	}
}

// 触发器载荷：{"table","type","id","record"}，record 过大时为 null
func decodeNotification(payload []byte) (Change, error) {
	var raw struct {
		Table  string          `json:"table"`
		Type   ChangeType      `json:"type"`
		ID     string          `json:"id"`
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Change{}, err
	}
	if raw.Table == "" || raw.Type == "" {
		return Change{}, errors.New("notification missing table or type")
	}
	c := Change{Table: raw.Table, Type: raw.Type, ID: raw.ID, At: time.Now()}
	if len(raw.Record) > 0 && string(raw.Record) != "null" {
		c.Record = raw.Record
	}
	return c, nil
}
