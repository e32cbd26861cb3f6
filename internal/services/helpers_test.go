package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ioscatalog/ios/backend/internal/config"
	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, false)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 4, 16, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func createProject(t *testing.T, svc *ProjectService, title, version string) *models.Project {
	t.Helper()
	p, err := svc.Create(context.Background(), &CreateProjectRequest{
		EntityRef: "component:default/" + title,
		Title:     title,
		Version:   version,
	})
	require.NoError(t, err)
	return p
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []EngagementEvent
}

func (p *recordingPublisher) Publish(e EngagementEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Events() []EngagementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]EngagementEvent(nil), p.events...)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func uintPtr(i uint) *uint { return &i }
