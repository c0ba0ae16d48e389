package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
	"github.com/mohammadpnp/hana-migration/internal/infrastructure/db/models"
)

// StatusRepository is the SQL status store. The *gorm.DB must be opened with
// TranslateError so duplicate lock rows surface as gorm.ErrDuplicatedKey.
type StatusRepository struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewStatusRepository(db *gorm.DB, ttl time.Duration) *StatusRepository {
	return &StatusRepository{db: db, ttl: ttl, now: time.Now}
}

// Migrate creates the status and lock tables.
func (r *StatusRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&models.MigrationStatus{}, &models.MigrationLock{}); err != nil {
		return fmt.Errorf("migrate status tables: %w", err)
	}
	return nil
}

func (r *StatusRepository) Save(ctx context.Context, jobID string, payload []byte) error {
	now := r.now().UTC()
	row := models.MigrationStatus{
		JobID:     jobID,
		Payload:   string(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r.ttl > 0 {
		expires := now.Add(r.ttl)
		row.ExpiresAt = &expires
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "expires_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save status %s: %w", jobID, err)
	}
	return nil
}

func (r *StatusRepository) Load(ctx context.Context, jobID string) ([]byte, error) {
	var row models.MigrationStatus

	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Where("expires_at IS NULL OR expires_at > ?", r.now().UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStatusNotFound
		}
		return nil, fmt.Errorf("load status %s: %w", jobID, err)
	}

	return []byte(row.Payload), nil
}

func (r *StatusRepository) TryLock(ctx context.Context, jobID, token string, ttl time.Duration) (bool, error) {
	now := r.now().UTC()
	db := r.db.WithContext(ctx)

	if err := db.Where("job_id = ? AND expires_at <= ?", jobID, now).Delete(&models.MigrationLock{}).Error; err != nil {
		return false, fmt.Errorf("clear expired lock %s: %w", jobID, err)
	}

	lock := models.MigrationLock{
		JobID:     jobID,
		Owner:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := db.Create(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", jobID, err)
	}
	return true, nil
}

// Unlock is a no-op when the lock expired and was taken by another run.
func (r *StatusRepository) Unlock(ctx context.Context, jobID, token string) error {
	if err := r.db.WithContext(ctx).Where("job_id = ? AND owner = ?", jobID, token).Delete(&models.MigrationLock{}).Error; err != nil {
		return fmt.Errorf("release lock %s: %w", jobID, err)
	}
	return nil
}

// DeleteExpired removes status rows and locks whose expiry has passed.
func (r *StatusRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := r.now().UTC()
	db := r.db.WithContext(ctx)

	res := db.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&models.MigrationStatus{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired statuses: %w", res.Error)
	}
	if err := db.Where("expires_at <= ?", now).Delete(&models.MigrationLock{}).Error; err != nil {
		return res.RowsAffected, fmt.Errorf("delete expired locks: %w", err)
	}
	return res.RowsAffected, nil
}

func (r *StatusRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *StatusRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
