package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNotRunning is returned when submitting to a stopped queue.
var ErrNotRunning = errors.New("queue is not running")

// Task is one unit of background maintenance. Tasks sharing a non-empty Key
// are coalesced while one is waiting.
type Task struct {
	Kind    string
	Key     string
	Payload string
	Attempt int
}

// Handler runs a task.
type Handler func(ctx context.Context, task Task) error

// Config tunes the worker pool.
type Config struct {
	Workers    int
	Buffer     int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue runs maintenance tasks on a small goroutine pool with delayed retries.
type Queue struct {
	name    string
	handler Handler
	cfg     Config
	logger  *zap.Logger

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	waiting map[string]struct{}
}

// New builds a queue dispatching to handler.
func New(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		tasks:   make(chan Task, cfg.Buffer),
		waiting: make(map[string]struct{}),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for in-flight tasks.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Submit enqueues a task without blocking. A task whose Key is already waiting is dropped.
func (q *Queue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return ErrNotRunning
	}
	if task.Key != "" {
		if _, dup := q.waiting[task.Key]; dup {
			return nil
		}
	}
	select {
	case q.tasks <- task:
		if task.Key != "" {
			q.waiting[task.Key] = struct{}{}
		}
		return nil
	default:
		return fmt.Errorf("queue %s is full", q.name)
	}
}

// Every submits task on each tick until ctx ends.
func (q *Queue) Every(ctx context.Context, interval time.Duration, task Task) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.Submit(task); err != nil && !errors.Is(err, ErrNotRunning) {
					q.logger.Warn("periodic task dropped", zap.String("kind", task.Kind), zap.Error(err))
				}
			}
		}
	}()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.mu.Lock()
			delete(q.waiting, task.Key)
			q.mu.Unlock()
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue) retry(task Task, err error) {
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task failed", zap.String("kind", task.Kind), zap.String("key", task.Key), zap.Int("attempts", task.Attempt), zap.Error(err))
		return
	}
	q.logger.Warn("task failed, retrying", zap.String("kind", task.Kind), zap.Int("attempt", task.Attempt), zap.Error(err))
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(q.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Submit(task); err != nil {
				q.logger.Warn("failed to requeue task", zap.String("kind", task.Kind), zap.Error(err))
			}
		}
	}()
}
