package loadtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RequestFunc 一次请求
type RequestFunc func(ctx context.Context) error

// Recorder 并发安全的耗时采样
type Recorder struct {
	mu      sync.Mutex
	samples []time.Duration
	failed  int64
}

// Observe 记录一次结果
func (r *Recorder) Observe(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failed++
		return
	}
	r.samples = append(r.samples, d)
}

// Summarize 汇总采样，elapsed 用于计算 QPS
func (r *Recorder) Summarize(name string, concurrency int, elapsed time.Duration) *Result {
	r.mu.Lock()
	sorted := make([]time.Duration, len(r.samples))
	copy(sorted, r.samples)
	failed := r.failed
	r.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	res := &Result{
		Name:        name,
		Concurrency: concurrency,
		Duration:    elapsed,
		Success:     int64(len(sorted)),
		Failed:      failed,
	}
	res.Total = res.Success + res.Failed
	if elapsed > 0 {
		res.QPS = float64(res.Total) / elapsed.Seconds()
	}
	if res.Total > 0 {
		res.ErrorRate = float64(res.Failed) / float64(res.Total)
	}
	if len(sorted) > 0 {
		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		res.Avg = sum / time.Duration(len(sorted))
		res.Min = sorted[0]
		res.Max = sorted[len(sorted)-1]
		res.P50 = percentile(sorted, 0.5)
		res.P95 = percentile(sorted, 0.95)
		res.P99 = percentile(sorted, 0.99)
	}
	return res
}

// percentile sorted 需已升序
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Run concurrency 个协程循环执行 req，直到 duration 结束或 ctx 取消
func Run(ctx context.Context, name string, concurrency int, duration time.Duration, req RequestFunc) *Result {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	rec := &Recorder{}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				t := time.Now()
				err := req(ctx)
				// 截止时刻被打断的请求不计入
				if ctx.Err() != nil {
					return
				}
				rec.Observe(time.Since(t), err)
			}
		}()
	}
	wg.Wait()

	return rec.Summarize(name, concurrency, time.Since(start))
}

// Result 测试结果
type Result struct {
	Name        string        `json:"name"`
	Concurrency int           `json:"concurrency"`
	Duration    time.Duration `json:"duration"`
	Total       int64         `json:"total"`
	Success     int64         `json:"success"`
	Failed      int64         `json:"failed"`
	QPS         float64       `json:"qps"`
	ErrorRate   float64       `json:"error_rate"`
	Avg         time.Duration `json:"avg"`
	Min         time.Duration `json:"min"`
	Max         time.Duration `json:"max"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
}

// Print 打印测试结果
func (r *Result) Print() {
	fmt.Printf("📊 %s\n", r.Name)
	fmt.Printf("================================\n")
	fmt.Printf("并发数: %d\n", r.Concurrency)
	fmt.Printf("耗时: %v\n", r.Duration)
	fmt.Printf("总数: %d (成功 %d, 失败 %d)\n", r.Total, r.Success, r.Failed)
	fmt.Printf("QPS: %.2f\n", r.QPS)
	fmt.Printf("错误率: %.2f%%\n", r.ErrorRate*100)
	fmt.Printf("平均: %v  最小: %v  最大: %v\n", r.Avg, r.Min, r.Max)
	fmt.Printf("P50: %v  P95: %v  P99: %v\n", r.P50, r.P95, r.P99)
	fmt.Printf("================================\n")
}
