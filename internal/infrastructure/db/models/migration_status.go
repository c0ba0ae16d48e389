package models

import "time"

// MigrationStatus holds the encoded status record of one job.
type MigrationStatus struct {
	JobID     string     `gorm:"type:text;primaryKey"`
	Payload   string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MigrationStatus) TableName() string {
	return "migration_statuses"
}

// MigrationLock marks a job id as in flight until ExpiresAt.
type MigrationLock struct {
	JobID     string    `gorm:"type:text;primaryKey"`
	Owner     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}

func (MigrationLock) TableName() string {
	return "migration_locks"
}
