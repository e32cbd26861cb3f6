package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ioscatalog/ios/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobLocker claims scheduled runs so that several server instances sharing
// one database do not all enqueue the same job.
type JobLocker struct {
	db    *gorm.DB
	owner string
	now   func() time.Time
}

func NewJobLocker(db *gorm.DB) *JobLocker {
	host, _ := os.Hostname()
	return &JobLocker{
		db:    db,
		owner: fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:   time.Now,
	}
}

// TryAcquire reports whether this instance claimed the run identified by
// name and runKey.
func (l *JobLocker) TryAcquire(ctx context.Context, name, runKey string, ttl time.Duration) (bool, error) {
	now := l.now()
	lock := models.JobLock{
		Name:      name,
		RunKey:    runKey,
		Owner:     l.owner,
		LockedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	res := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, storeError("acquire job lock", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// PurgeExpired drops claims whose ttl has passed.
func (l *JobLocker) PurgeExpired(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).Where("expires_at < ?", l.now()).Delete(&models.JobLock{})
	if res.Error != nil {
		return 0, storeError("purge job locks", res.Error)
	}
	return res.RowsAffected, nil
}
