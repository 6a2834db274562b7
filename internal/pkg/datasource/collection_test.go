package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"seest/internal/pkg/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

// fakeRemote 模拟远端存储：快照 + Hub
type fakeRemote struct {
	mu      sync.Mutex
	rows    []item
	fetches int32
	fail    atomic.Bool
}

func (r *fakeRemote) set(rows ...item) {
	r.mu.Lock()
	r.rows = rows
	r.mu.Unlock()
}

func (r *fakeRemote) fetch(ctx context.Context) ([]item, error) {
	atomic.AddInt32(&r.fetches, 1)
	if r.fail.Load() {
		return nil, errors.New("remote unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]item, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func decodeItem(c realtime.Change) (item, error) {
	var it item
	err := json.Unmarshal(c.Record, &it)
	return it, err
}

func newCollection(remote *fakeRemote, src realtime.Source, strategy Strategy) *Collection[item] {
	return New(Options[item]{
		Name:           "items",
		Source:         src,
		Filter:         realtime.Filter{Tables: []string{"items"}},
		Fetch:          remote.fetch,
		Key:            func(i item) string { return i.ID },
		Strategy:       strategy,
		Decode:         decodeItem,
		Less:           func(a, b item) bool { return a.Seq < b.Seq },
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
	})
}

func publish(t *testing.T, hub *realtime.Hub, typ realtime.ChangeType, it item) {
	t.Helper()
	require.NoError(t, realtime.PublishRecord(context.Background(), hub, "items", typ, it.ID, it))
}

func start(t *testing.T, c *Collection[item]) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = c.Run(ctx) }()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("collection never became ready")
	}
	return cancel
}

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestCollectionRefetchStrategy(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(item{ID: "a", Seq: 1})
	hub := realtime.NewHub(8)
	c := newCollection(remote, hub, Refetch)
	cancel := start(t, c)
	defer cancel()

	assert.Equal(t, []string{"a"}, ids(c.Items()))

	remote.set(item{ID: "a", Seq: 1}, item{ID: "b", Seq: 2})
	publish(t, hub, realtime.Insert, item{ID: "b", Seq: 2})

	assert.Eventually(t, func() bool { return len(c.Items()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, ids(c.Items()))
}

func TestCollectionPatchStrategy(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(item{ID: "a", Seq: 2})
	hub := realtime.NewHub(8)
	c := newCollection(remote, hub, Patch)
	cancel := start(t, c)
	defer cancel()

	before := atomic.LoadInt32(&remote.fetches)

	publish(t, hub, realtime.Insert, item{ID: "b", Seq: 1})
	assert.Eventually(t, func() bool { return len(c.Items()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b", "a"}, ids(c.Items()))

	publish(t, hub, realtime.Update, item{ID: "a", Seq: 2, Text: "edited"})
	assert.Eventually(t, func() bool {
		it, ok := c.Find("a")
		return ok && it.Text == "edited"
	}, time.Second, 5*time.Millisecond)

	publish(t, hub, realtime.Delete, item{ID: "b"})
	assert.Eventually(t, func() bool { return len(c.Items()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, before, atomic.LoadInt32(&remote.fetches), "patch strategy must not refetch")

	t.Run("change without record falls back to refetch", func(t *testing.T) {
		remote.set(item{ID: "a", Seq: 2}, item{ID: "z", Seq: 9})
		require.NoError(t, hub.Publish(context.Background(), realtime.Change{Table: "items", Type: realtime.Insert, ID: "z"}))
		assert.Eventually(t, func() bool {
			_, ok := c.Find("z")
			return ok
		}, time.Second, 5*time.Millisecond)
	})
}

func TestCollectionResubscribesAndRefetchesAfterDrop(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(item{ID: "a", Seq: 1})
	hub := realtime.NewHub(8)
	c := newCollection(remote, hub, Patch)
	cancel := start(t, c)
	defer cancel()

	// 断线期间远端发生变化，变更事件丢失
	remote.set(item{ID: "a", Seq: 1}, item{ID: "missed", Seq: 2})
	hub.Reset()

	assert.Eventually(t, func() bool {
		_, ok := c.Find("missed")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCollectionFetchFailureKeepsSnapshot(t *testing.T) {
	remote := &fakeRemote{}
	remote.set(item{ID: "a", Seq: 1})
	hub := realtime.NewHub(8)
	c := newCollection(remote, hub, Refetch)
	cancel := start(t, c)
	defer cancel()

	remote.fail.Store(true)
	err := c.Refetch(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, ids(c.Items()))
}

func TestCollectionLocalMutationsNotifyObservers(t *testing.T) {
	c := newCollection(&fakeRemote{}, realtime.NewHub(1), Refetch)

	var calls int32
	var last []item
	var mu sync.Mutex
	stop := c.OnChange(func(items []item) {
		atomic.AddInt32(&calls, 1)
		mu.Lock()
		last = items
		mu.Unlock()
	})

	c.Upsert(item{ID: "b", Seq: 2})
	c.Upsert(item{ID: "a", Seq: 1})
	c.Upsert(item{ID: "a", Seq: 1, Text: "x"})
	c.Remove("missing")

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	mu.Lock()
	assert.Equal(t, []string{"a", "b"}, ids(last))
	mu.Unlock()

	stop()
	c.Remove("a")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []string{"b"}, ids(c.Items()))
}
