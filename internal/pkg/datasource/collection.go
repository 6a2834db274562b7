package datasource

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"seest/internal/pkg/realtime"
	"seest/pkg/logger"
	"seest/pkg/metrics"

	"go.uber.org/zap"
)

// Strategy 收到变更后的同步方式
type Strategy int

const (
	// Refetch 任何变更都重新拉取完整快照
	Refetch Strategy = iota
	// Patch 按变更直接修改本地集合，无法解码时退回 Refetch
	Patch
)

// Options 集合配置
type Options[T any] struct {
	Name     string
	Source   realtime.Source
	Filter   realtime.Filter
	Fetch    func(ctx context.Context) ([]T, error)
	Key      func(T) string
	Strategy Strategy
	// Decode Patch 模式下将变更解码为元素
	Decode func(realtime.Change) (T, error)
	// Less 不为空时集合按此排序
	Less func(a, b T) bool
	// BackoffInitial/BackoffMax 重新订阅的退避参数
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Collection 远端数据在本地的镜像：先订阅、再拉快照、再应用变更，
// 断线后退避重订阅并补拉。拉取失败保留旧快照。
type Collection[T any] struct {
	opts Options[T]
	log  *zap.Logger

	mu    sync.RWMutex
	items []T

	obsMu     sync.Mutex
	observers map[int]func([]T)
	nextObs   int

	ready     chan struct{}
	readyOnce sync.Once
}

// New 创建集合
func New[T any](opts Options[T]) *Collection[T] {
	return &Collection[T]{
		opts:      opts,
		log:       logger.Named("datasource").With(zap.String("collection", opts.Name)),
		observers: make(map[int]func([]T)),
		ready:     make(chan struct{}),
	}
}

// Run 阻塞运行直到 ctx 结束
func (c *Collection[T]) Run(ctx context.Context) error {
	backoff := realtime.NewBackoff(c.opts.BackoffInitial, c.opts.BackoffMax)

	for {
		stream, err := c.opts.Source.Subscribe(ctx, c.opts.Filter)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := backoff.Next()
			c.log.Warn("Subscribe failed, retrying", zap.Duration("wait", wait), zap.Error(err))
			if err := realtime.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		backoff.Reset()

		// 订阅建立后再拉快照，期间的变更会在通道中排队
		_ = c.Refetch(ctx)
		c.readyOnce.Do(func() { close(c.ready) })

		c.consume(ctx, stream)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := backoff.Next()
		c.log.Info("Change stream dropped, resubscribing", zap.Duration("wait", wait))
		if err := realtime.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Collection[T]) consume(ctx context.Context, stream <-chan realtime.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-stream:
			if !ok {
				return
			}
			if c.opts.Strategy == Patch && c.apply(ch) {
				continue
			}
			// 合并突发变更，只拉取一次
			open := drain(stream)
			_ = c.Refetch(ctx)
			if !open {
				return
			}
		}
	}
}

// drain 丢弃通道中已排队的变更，通道已关闭时返回 false
func drain(stream <-chan realtime.Change) bool {
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

// apply 按变更修改本地集合，无法处理时返回 false
func (c *Collection[T]) apply(ch realtime.Change) bool {
	switch ch.Type {
	case realtime.Delete:
		if ch.ID == "" {
			return false
		}
		c.Remove(ch.ID)
		return true
	case realtime.Insert, realtime.Update:
		if c.opts.Decode == nil || len(ch.Record) == 0 {
			return false
		}
		item, err := c.opts.Decode(ch)
		if err != nil {
			c.log.Warn("Decode change failed", zap.String("id", ch.ID), zap.Error(err))
			return false
		}
		c.Upsert(item)
		return true
	}
	return false
}

// Refetch 拉取完整快照替换本地集合
func (c *Collection[T]) Refetch(ctx context.Context) error {
	items, err := c.opts.Fetch(ctx)
	metrics.GetGlobalCollector().RecordRefetch(c.opts.Name, err == nil)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Error("Fetch failed, keeping previous snapshot", zap.Error(err))
		}
		return err
	}

	c.sort(items)
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	c.notify()
	return nil
}

// Ready 首次拉取完成（无论成败）后关闭
func (c *Collection[T]) Ready() <-chan struct{} {
	return c.ready
}

// Items 返回当前快照的副本
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Find 按 key 查找
func (c *Collection[T]) Find(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if c.opts.Key(it) == key {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Upsert 本地插入或替换元素
func (c *Collection[T]) Upsert(item T) {
	key := c.opts.Key(item)

	c.mu.Lock()
	replaced := false
	for i, it := range c.items {
		if c.opts.Key(it) == key {
			c.items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		c.items = append(c.items, item)
	}
	c.sort(c.items)
	c.mu.Unlock()

	c.notify()
}

// Remove 本地删除元素
func (c *Collection[T]) Remove(key string) {
	c.mu.Lock()
	removed := false
	for i, it := range c.items {
		if c.opts.Key(it) == key {
			c.items = append(c.items[:i], c.items[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()

	if removed {
		c.notify()
	}
}

// OnChange 注册变更回调，返回取消函数
func (c *Collection[T]) OnChange(fn func([]T)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

func (c *Collection[T]) notify() {
	snapshot := c.Items()

	c.obsMu.Lock()
	fns := make([]func([]T), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

func (c *Collection[T]) sort(items []T) {
	if c.opts.Less == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		return c.opts.Less(items[i], items[j])
	})
}
