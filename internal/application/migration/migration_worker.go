package migration

import (
	"context"
	"sync"
	"time"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type jobRunner interface {
	Accept(ctx context.Context, job domain.Job) error
	Run(ctx context.Context, job domain.Job) domain.Status
}

type MigrationWorkerConfig struct {
	Workers   int
	QueueSize int
	// AcceptTimeout bounds the initial status write made for each job.
	AcceptTimeout time.Duration
}

// MigrationWorker runs accepted jobs on a fixed pool of goroutines fed by a
// bounded queue.
type MigrationWorker struct {
	runner jobRunner
	cfg    MigrationWorkerConfig
	queue  chan domain.Job

	once      sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	reserved  int
}

func NewMigrationWorker(runner jobRunner, cfg MigrationWorkerConfig) *MigrationWorker {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = 10 * time.Second
	}

	return &MigrationWorker{
		runner: runner,
		cfg:    cfg,
		queue:  make(chan domain.Job, cfg.QueueSize),
	}
}

func (w *MigrationWorker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.cfg.Workers; i++ {
			w.wg.Add(1)
			go w.workerLoop(ctx)
		}
	})
}

// Enqueue accepts job and queues it. Nothing is recorded for the job when the
// queue has no free slot. The slot is reserved before Accept runs, so a slow
// status write holds only its own slot.
func (w *MigrationWorker) Enqueue(ctx context.Context, job domain.Job) error {
	if err := w.reserve(); err != nil {
		return err
	}
	defer w.pending.Done()

	acceptCtx, cancel := context.WithTimeout(ctx, w.cfg.AcceptTimeout)
	defer cancel()
	err := w.runner.Accept(acceptCtx, job)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.reserved--
	if err != nil {
		return err
	}
	// The queue is closed only after every reservation is released, and
	// reservations never exceed free capacity, so this send cannot block.
	w.queue <- job
	return nil
}

func (w *MigrationWorker) reserve() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWorkerStopped
	}
	if len(w.queue)+w.reserved >= cap(w.queue) {
		return ErrQueueFull
	}
	w.reserved++
	w.pending.Add(1)
	return nil
}

// Shutdown stops intake and waits for queued and running jobs until ctx ends.
func (w *MigrationWorker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.pending.Wait()
		w.closeOnce.Do(func() { close(w.queue) })
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *MigrationWorker) QueueDepth() int {
	return len(w.queue)
}

func (w *MigrationWorker) workerLoop(ctx context.Context) {
	defer w.wg.Done()

	for job := range w.queue {
		status := w.runner.Run(ctx, job)
		logger.Infof("migration job %s finished with status %s", job.ID, status)
	}
}
