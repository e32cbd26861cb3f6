package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/pkg/logger"
)

const (
	TaskTypeReconcile = "ledger:reconcile"
)

// ReconcileTask asks the worker to reconcile the ledger.
type ReconcileTask struct {
	RecountCounters bool      `json:"recount_counters"`
	Reason          string    `json:"reason"` // cron, manual
	RequestedBy     string    `json:"requested_by,omitempty"`
	RequestedAt     time.Time `json:"requested_at"`
}

// TaskProcessor runs a reconcile task.
type TaskProcessor func(context.Context, *ReconcileTask) error

// TaskQueue defines the interface for background task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *ReconcileTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when Redis is enabled and
// reachable, and the in-process queue otherwise.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err != nil {
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncQueue()
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a reconcile task. Duplicate requests within a minute collapse
// into the one already queued.
func (q *AsyncQueue) Enqueue(task *ReconcileTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeReconcile, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Unique(time.Minute),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Infof("[AsyncQueue] Reconcile already queued, skipping duplicate")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue without Redis by running tasks in a goroutine.
type SyncQueue struct {
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *ReconcileTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task will be dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("reason", task.Reason).Msg("[SyncQueue] Task processing failed")
		}
	}()

	return nil
}

// Wait blocks until every enqueued task has finished.
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for running tasks so the store can be closed after it.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
