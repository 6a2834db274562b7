package realtime

import (
	"context"
	"time"
)

// Backoff 指数退避策略
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64

	current time.Duration
}

// NewBackoff 创建退避策略，factor 固定为 2
func NewBackoff(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max < initial {
		max = initial
	}
	return &Backoff{Initial: initial, Max: max, Factor: 2}
}

// Next 返回下一次等待时长
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Initial
		return b.current
	}
	next := time.Duration(float64(b.current) * b.Factor)
	if next > b.Max || next <= 0 {
		next = b.Max
	}
	b.current = next
	return b.current
}

// Reset 连接成功后重置
func (b *Backoff) Reset() {
	b.current = 0
}

// Sleep 等待 d 或 ctx 结束
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
