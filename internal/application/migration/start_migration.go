package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type StartMigrationInput struct {
	FileUUID string
	S3Link   string
}

type StartMigrationOutput struct {
	FileUUID string `json:"file_uuid"`
	Status   string `json:"status"`
}

type StartMigration interface {
	Execute(ctx context.Context, in StartMigrationInput) (StartMigrationOutput, error)
}

type jobLocker interface {
	TryLock(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, jobID, token string) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job domain.Job) error
}

type startMigration struct {
	locks   jobLocker
	queue   jobEnqueuer
	lockTTL time.Duration
}

func NewStartMigration(locks jobLocker, queue jobEnqueuer, lockTTL time.Duration) StartMigration {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Hour
	}
	return &startMigration{locks: locks, queue: queue, lockTTL: lockTTL}
}

func (uc *startMigration) Execute(ctx context.Context, in StartMigrationInput) (StartMigrationOutput, error) {
	job, err := domain.NewJob(in.FileUUID, in.S3Link)
	if err != nil {
		return StartMigrationOutput{}, err
	}

	job.LockToken = uuid.NewString()
	acquired, err := uc.locks.TryLock(ctx, job.ID, job.LockToken, uc.lockTTL)
	if err != nil {
		return StartMigrationOutput{}, fmt.Errorf("%w: %v", ErrStartMigration, err)
	}
	if !acquired {
		return StartMigrationOutput{}, ErrJobInProgress
	}

	if err := uc.queue.Enqueue(ctx, job); err != nil {
		if unlockErr := uc.locks.Unlock(context.WithoutCancel(ctx), job.ID, job.LockToken); unlockErr != nil {
			logger.Warningf("job %s: release lock after rejected intake: %v", job.ID, unlockErr)
		}
		if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrWorkerStopped) {
			return StartMigrationOutput{}, err
		}
		return StartMigrationOutput{}, fmt.Errorf("%w: %v", ErrStartMigration, err)
	}

	logger.Infof("job %s: accepted", job.ID)
	return StartMigrationOutput{FileUUID: job.ID, Status: "Accepted"}, nil
}
