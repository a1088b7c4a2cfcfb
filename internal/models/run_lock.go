package models

import (
	"time"
)

// RunLock is a short-lived advisory lease giving one browser tab exclusive
// write access to a run's execution records. One row per run; expiry is the
// only deadlock-recovery mechanism.
type RunLock struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RunID     string    `gorm:"uniqueIndex;size:255;not null" json:"testRunId"`
	LockID    string    `gorm:"size:255;not null" json:"lockId"`
	TabID     string    `gorm:"size:255;not null" json:"tabId"`
	LockedBy  string    `gorm:"size:255" json:"lockedBy"`
	Reason    string    `gorm:"size:255" json:"reason"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `gorm:"index" json:"expiresAt"`
}

// TableName sets the table name for RunLock.
func (RunLock) TableName() string {
	return "test_run_locks"
}

// Expired reports whether the lease has lapsed as of now.
func (l *RunLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// AppMetadata is a small key/value table holding durable counters, one row
// per entity kind (e.g. testRunCounter).
type AppMetadata struct {
	ID      uint   `gorm:"primaryKey" json:"-"`
	Key     string `gorm:"uniqueIndex;size:255;not null" json:"key"`
	Current int    `gorm:"default:0" json:"current"`
}

// TableName sets the table name for AppMetadata.
func (AppMetadata) TableName() string {
	return "app_metadata"
}
