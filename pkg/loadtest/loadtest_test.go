package loadtest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rec := &Recorder{}
	for i := 10; i >= 1; i-- {
		rec.Observe(time.Duration(i)*time.Millisecond, nil)
	}
	rec.Observe(0, errors.New("boom"))

	res := rec.Summarize("sample", 2, time.Second)
	assert.Equal(t, int64(11), res.Total)
	assert.Equal(t, int64(1), res.Failed)
	assert.InDelta(t, 11.0, res.QPS, 0.001)
	assert.Equal(t, time.Millisecond, res.Min)
	assert.Equal(t, 10*time.Millisecond, res.Max)
	assert.Equal(t, 6*time.Millisecond, res.P50)
	assert.Equal(t, 10*time.Millisecond, res.P99)
	assert.Equal(t, 5500*time.Microsecond, res.Avg)
}

func TestSummarizeEmpty(t *testing.T) {
	res := (&Recorder{}).Summarize("empty", 1, 0)
	assert.Zero(t, res.Total)
	assert.Zero(t, res.QPS)
	assert.Zero(t, res.P95)
}

func TestRun(t *testing.T) {
	var calls int64
	res := Run(context.Background(), "tick", 4, 50*time.Millisecond, func(ctx context.Context) error {
		n := atomic.AddInt64(&calls, 1)
		time.Sleep(time.Millisecond)
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})

	assert.Equal(t, 4, res.Concurrency)
	assert.Positive(t, res.Total)
	assert.LessOrEqual(t, res.Total, atomic.LoadInt64(&calls))
	assert.Positive(t, res.Failed)
}
