package models

import "time"

// JobLock marks one run of a scheduled job as claimed. Instances sharing a
// database race to insert the same (name, run_key) row; only the winner runs.
type JobLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex:idx_job_run;size:100;not null" json:"name"`
	RunKey    string    `gorm:"uniqueIndex:idx_job_run;size:100;not null" json:"run_key"`
	Owner     string    `gorm:"size:100" json:"owner"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (JobLock) TableName() string { return "job_locks" }
