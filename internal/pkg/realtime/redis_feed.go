package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"seest/pkg/logger"
	"seest/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed 基于 Redis Pub/Sub 的变更总线，每张表一个频道：<prefix>:<table>
type RedisFeed struct {
	client *redis.Client
	prefix string
}

// NewRedisFeed 创建 Redis 变更总线
func NewRedisFeed(client *redis.Client, prefix string) *RedisFeed {
	return &RedisFeed{client: client, prefix: prefix}
}

func (r *RedisFeed) channel(table string) string {
	return r.prefix + ":" + table
}

// Publish 发布变更
func (r *RedisFeed) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(c.Table), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	metrics.GetGlobalCollector().RecordChangePublished(c.Table, string(c.Type))
	return nil
}

// Subscribe 订阅过滤条件涉及的表，确认订阅成功后才返回
func (r *RedisFeed) Subscribe(ctx context.Context, f Filter) (<-chan Change, error) {
	var ps *redis.PubSub
	if len(f.Tables) == 0 {
		ps = r.client.PSubscribe(ctx, r.prefix+":*")
	} else {
		channels := make([]string, len(f.Tables))
		for i, t := range f.Tables {
			channels[i] = r.channel(t)
		}
		ps = r.client.Subscribe(ctx, channels...)
	}

	// 等待订阅确认，保证之后的快照拉取不会漏掉变更
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Change, 16)
	metrics.GetGlobalCollector().AddSubscriptions(1)

	go func() {
		defer func() {
			_ = ps.Close()
			close(out)
			metrics.GetGlobalCollector().AddSubscriptions(-1)
		}()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					logger.Log.Warn("Dropping malformed change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if !f.Accept(c) {
					continue
				}
				select {
				case out <- c:
					metrics.GetGlobalCollector().RecordChangeDelivered(c.Table)
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
