// Package pool 提供固定大小的后台任务池，
// 承接归档落盘、标记已读这类不该让请求等待的杂活。
package pool

import (
	"context"
	"sync"
)

// WorkerPool 固定数量的工作协程消费一个有界队列。
type WorkerPool struct {
	workers int
	queue   chan func()
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewWorkerPool 创建任务池，Start 之前不接任务。
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		queue:   make(chan func(), queueSize),
		done:    make(chan struct{}),
	}
}

// Start 启动工作协程。ctx 取消时协程直接退出，不排空队列。
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
}

// Submit 提交一个任务，队列满时阻塞。
// 池已停止时丢弃任务并返回 false。
func (p *WorkerPool) Submit(task func()) bool {
	select {
	case <-p.done:
		return false
	case p.queue <- task:
		return true
	}
}

// Stop 停止接收新任务，排空已入队的任务后返回。
func (p *WorkerPool) Stop() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func (p *WorkerPool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			for {
				select {
				case task := <-p.queue:
					runTask(task)
				default:
					return
				}
			}
		case task := <-p.queue:
			runTask(task)
		}
	}
}

// runTask 单个任务 panic 不拖垮工作协程。
func runTask(task func()) {
	defer func() {
		_ = recover()
	}()
	task()
}
