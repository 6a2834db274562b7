package worker

import (
	"context"
	"sync"
	"time"

	"seest/pkg/logger"
	"seest/pkg/metrics"

	"go.uber.org/zap"
)

// Task 后台任务，失败后按重试次数线性延迟重试
type Task struct {
	Name  string
	Run   func(ctx context.Context) error
	Retry int // 已重试次数
}

type WorkerPool struct {
	TaskQueue  chan Task
	RetryQueue chan Task // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	RetryDelay time.Duration // 第 n 次重试等待 n*RetryDelay

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *zap.Logger
}

func NewWorkerPool(workerNum, bufferSize, maxRetry int) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize <= 1 {
		bufferSize = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		TaskQueue:  make(chan Task, bufferSize),
		RetryQueue: make(chan Task, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   maxRetry,
		RetryDelay: time.Second,
		ctx:        ctx,
		cancel:     cancel,
		log:        logger.Named("worker"),
	}
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	p.log.Info("Worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止所有协程，队列中未执行的任务记入死信日志
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()

	for {
		select {
		case task := <-p.TaskQueue:
			p.logFailedTask(task, context.Canceled)
		case task := <-p.RetryQueue:
			p.logFailedTask(task, context.Canceled)
		default:
			return
		}
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.TaskQueue:
			p.process(id, task)
		}
	}
}

func (p *WorkerPool) process(id int, task Task) {
	err := task.Run(p.ctx)
	if err == nil {
		metrics.GetGlobalCollector().RecordTask(task.Name, "success")
		return
	}

	p.log.Warn("Task failed",
		zap.Int("worker", id),
		zap.String("task", task.Name),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry < p.MaxRetry {
		task.Retry++
		select {
		case p.RetryQueue <- task:
			metrics.GetGlobalCollector().RecordTask(task.Name, "retry")
		default:
			p.log.Warn("Retry queue full", zap.String("task", task.Name))
			p.logFailedTask(task, err)
		}
		return
	}
	p.logFailedTask(task, err)
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			timer := time.NewTimer(time.Duration(task.Retry) * p.RetryDelay)
			select {
			case <-p.ctx.Done():
				timer.Stop()
				p.logFailedTask(task, context.Canceled)
				return
			case <-timer.C:
			}

			select {
			case p.TaskQueue <- task:
			default:
				p.log.Warn("Main queue full, retry dropped", zap.String("task", task.Name))
				p.logFailedTask(task, nil)
			}
		}
	}
}

func (p *WorkerPool) logFailedTask(task Task, err error) {
	metrics.GetGlobalCollector().RecordTask(task.Name, "failed")
	p.log.Error("[DeadLetter] Task failed permanently",
		zap.String("task", task.Name),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
}

// Submit 提交任务，队列满时直接记入死信并返回 false
func (p *WorkerPool) Submit(task Task) bool {
	if p.ctx.Err() != nil {
		p.logFailedTask(task, context.Canceled)
		return false
	}
	select {
	case p.TaskQueue <- task:
		return true
	default:
		p.log.Warn("Worker pool queue full", zap.String("task", task.Name))
		p.logFailedTask(task, nil)
		return false
	}
}
