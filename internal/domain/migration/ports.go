package migration

import (
	"context"
	"io"
	"time"
)

// StatusStore persists encoded status records keyed by job id.
type StatusStore interface {
	Save(ctx context.Context, jobID string, payload []byte) error
	Load(ctx context.Context, jobID string) ([]byte, error)
	// TryLock reports false when another run already holds the job id.
	TryLock(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error)
	// Unlock releases the lock only while it is still held under token.
	Unlock(ctx context.Context, jobID, token string) error
}

type ObjectStore interface {
	Download(ctx context.Context, loc ObjectLocation, dst io.Writer) error
	Upload(ctx context.Context, loc ObjectLocation, body []byte) error
	PutMarker(ctx context.Context, loc ObjectLocation) error
}

type Translator interface {
	TranslateView(ctx context.Context, content []byte) (string, error)
	TranslateSchema(ctx context.Context, content []byte) (string, error)
	TranslateFunction(ctx context.Context, content []byte) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, jobID, resultLocation string) error
}
