package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

type GetMigrationStatusInput struct {
	FileUUID string
}

type GetMigrationStatusOutput struct {
	Status     string `json:"status"`
	Percentage string `json:"percentage"`
	Reason     string `json:"reason,omitempty"`
}

type GetMigrationStatus interface {
	Execute(ctx context.Context, in GetMigrationStatusInput) (GetMigrationStatusOutput, error)
}

type statusLoader interface {
	Load(ctx context.Context, jobID string) ([]byte, error)
}

type getMigrationStatus struct {
	store statusLoader
}

func NewGetMigrationStatus(store statusLoader) GetMigrationStatus {
	return &getMigrationStatus{store: store}
}

func (uc *getMigrationStatus) Execute(ctx context.Context, in GetMigrationStatusInput) (GetMigrationStatusOutput, error) {
	id := strings.TrimSpace(in.FileUUID)
	if !domain.ValidJobID(id) {
		return GetMigrationStatusOutput{}, domain.ErrInvalidJobID
	}

	raw, err := uc.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrStatusNotFound) {
			return GetMigrationStatusOutput{}, ErrStatusNotFound
		}
		return GetMigrationStatusOutput{}, fmt.Errorf("%w: %v", ErrGetStatus, err)
	}

	record, err := domain.ParseStatusRecord(raw)
	if err != nil {
		if errors.Is(err, domain.ErrStatusEmpty) {
			return GetMigrationStatusOutput{}, ErrStatusEmpty
		}
		return GetMigrationStatusOutput{}, fmt.Errorf("%w: %v", ErrStatusCorrupted, err)
	}

	return GetMigrationStatusOutput{
		Status:     string(record.Status),
		Percentage: record.Percentage,
		Reason:     string(record.Reason),
	}, nil
}
