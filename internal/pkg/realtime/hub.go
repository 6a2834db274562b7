package realtime

import (
	"context"
	"sync"

	"seest/pkg/logger"
	"seest/pkg/metrics"

	"go.uber.org/zap"
)

type subscription struct {
	filter Filter
	ch     chan Change
}

// Hub 进程内变更分发。每个订阅有独立的有界缓冲区，
// 缓冲区写满的订阅会被断开，由订阅方重新订阅并补拉。
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	buffer int
	closed bool
}

// NewHub 创建 Hub
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
	}
}

// Publish 向所有匹配的订阅投递变更，不阻塞
func (h *Hub) Publish(ctx context.Context, c Change) error {
	m := metrics.GetGlobalCollector()
	m.RecordChangePublished(c.Table, string(c.Type))

	var overflowed []uint64

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrClosed
	}
	for id, sub := range h.subs {
		if !sub.filter.Accept(c) {
			continue
		}
		select {
		case sub.ch <- c:
			m.RecordChangeDelivered(c.Table)
		default:
			m.RecordChangeDropped(c.Table)
			overflowed = append(overflowed, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range overflowed {
		logger.Log.Warn("Subscriber too slow, disconnecting",
			zap.Uint64("subscription", id),
			zap.String("table", c.Table),
		)
		h.remove(id)
	}
	return nil
}

// Subscribe 注册订阅，ctx 结束时自动注销
func (h *Hub) Subscribe(ctx context.Context, f Filter) (<-chan Change, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.nextID++
	id := h.nextID
	sub := &subscription{filter: f, ch: make(chan Change, h.buffer)}
	h.subs[id] = sub
	h.mu.Unlock()

	metrics.GetGlobalCollector().AddSubscriptions(1)

	go func() {
		<-ctx.Done()
		h.remove(id)
	}()

	return sub.ch, nil
}

// Reset 断开所有订阅但保持 Hub 可用，上游重连后调用，提示订阅方补拉
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
		metrics.GetGlobalCollector().AddSubscriptions(-1)
	}
}

// Close 关闭 Hub 及所有订阅
func (h *Hub) Close() {
	h.Reset()
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Len 当前订阅数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		close(sub.ch)
		delete(h.subs, id)
		metrics.GetGlobalCollector().AddSubscriptions(-1)
	}
}
