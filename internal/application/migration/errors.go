package migration

import "errors"

var (
	ErrJobInProgress  = errors.New("migration already in progress for this file_uuid")
	ErrQueueFull      = errors.New("migration queue is full")
	ErrWorkerStopped  = errors.New("migration worker is stopped")
	ErrStartMigration = errors.New("failed to start migration")

	ErrStatusNotFound  = errors.New("status not found")
	ErrStatusEmpty     = errors.New("status record has no status")
	ErrStatusCorrupted = errors.New("status record is corrupted")
	ErrGetStatus       = errors.New("failed to get migration status")

	ErrUnrecognizedExtension = errors.New("unrecognized extension")
	ErrDuplicateOutputName   = errors.New("duplicate output name")
)
