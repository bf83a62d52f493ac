// Package worker выполняет фоновые задачи, результат которых не влияет на ответ клиенту.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task фоновая задача; ошибка только логируется
type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

type Options struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// Dispatcher ограниченная очередь и пул горутин.
// Submit никогда не блокирует: при переполнении задача отбрасывается.
type Dispatcher struct {
	queue   chan job
	opts    Options
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewDispatcher(opts Options, logger *zap.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		queue:  make(chan job, opts.QueueSize),
		opts:   opts,
		logger: logger,
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}

	return d
}

// Submit ставит задачу в очередь. Возвращает false, если задача отброшена.
func (d *Dispatcher) Submit(name string, task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("Task rejected, dispatcher is closed", zap.String("task", name))
		return false
	}

	select {
	case d.queue <- job{name: name, task: task}:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("Task dropped, queue is full",
			zap.String("task", name),
			zap.Int("queue_size", d.opts.QueueSize),
		)
		return false
	}
}

// Dropped количество отброшенных задач
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Shutdown прекращает прием задач и дожидается выполнения очереди
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for j := range d.queue {
		d.execute(j)
	}
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.opts.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Task panicked",
				zap.String("task", j.name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := j.task(ctx); err != nil {
		d.logger.Error("Task failed",
			zap.String("task", j.name),
			zap.Error(err),
		)
	}
}
