package services

import (
	"context"
	"time"

	"github.com/ioscatalog/ios/backend/internal/models"
	"gorm.io/gorm"
)

const (
	EventView   = "view"
	EventRate   = "rate"
	EventUnrate = "unrate"
)

// Engagement is the outcome of a view or rating toggle.
type Engagement struct {
	ProjectID uint `json:"project_id"`
	Views     int  `json:"project_views"`
	Rating    int  `json:"project_rating"`
	Counted   bool `json:"counted"`         // view: this call incremented views
	Rated     bool `json:"rated,omitempty"` // rate: the user now rates the project
}

// EngagementService turns a page view or a rating click into the paired
// ledger and counter update. Each pair commits in one transaction, and the
// ledger's unique index decides whether the counter moves, so concurrent
// requests from one user are counted once.
type EngagementService struct {
	db        *gorm.DB
	publisher EventPublisher
}

func NewEngagementService(db *gorm.DB, publisher EventPublisher) *EngagementService {
	return &EngagementService{db: db, publisher: publisher}
}

// OnProjectViewed counts the user's first view of a project. Later views
// leave the counter alone.
func (s *EngagementService) OnProjectViewed(ctx context.Context, userRef string, projectID uint) (*Engagement, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return nil, err
	}

	result := &Engagement{ProjectID: projectID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		if err := ensureUser(tx, ref, ""); err != nil {
			return err
		}
		added, err := addEntry(tx, ref, projectID, models.KindViewed)
		if err != nil {
			return err
		}
		if added {
			if err := bump(tx, projectID, "project_views", 1); err != nil {
				return err
			}
		}
		result.Counted = added
		return readCounters(tx, result)
	})
	if err != nil {
		return nil, err
	}

	if result.Counted {
		s.publish(ref, EventView, result)
	}
	return result, nil
}

// OnRatingToggled flips the user's like on a project: a rated project loses
// the user's rating, an unrated one gains it.
func (s *EngagementService) OnRatingToggled(ctx context.Context, userRef string, projectID uint) (*Engagement, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return nil, err
	}

	result := &Engagement{ProjectID: projectID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		removed, err := removeEntry(tx, ref, projectID, models.KindRated)
		if err != nil {
			return err
		}
		if removed {
			if err := bump(tx, projectID, "project_rating", -1); err != nil {
				return err
			}
			return readCounters(tx, result)
		}

		if err := ensureUser(tx, ref, ""); err != nil {
			return err
		}
		added, err := addEntry(tx, ref, projectID, models.KindRated)
		if err != nil {
			return err
		}
		if added {
			if err := bump(tx, projectID, "project_rating", 1); err != nil {
				return err
			}
		}
		result.Rated = true
		return readCounters(tx, result)
	})
	if err != nil {
		return nil, err
	}

	kind := EventUnrate
	if result.Rated {
		kind = EventRate
	}
	s.publish(ref, kind, result)
	return result, nil
}

// bump moves a counter by delta in place. Decrements stop at zero.
func bump(tx *gorm.DB, projectID uint, column string, delta int) error {
	query := tx.Model(&models.Project{}).Where("project_id = ?", projectID)
	if delta < 0 {
		query = query.Where(column+" >= ?", -delta)
	}
	if err := query.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error; err != nil {
		return storeError("update "+column, err)
	}
	return nil
}

func readCounters(tx *gorm.DB, e *Engagement) error {
	var project models.Project
	if err := tx.Select("project_id", "project_views", "project_rating").
		First(&project, "project_id = ?", e.ProjectID).Error; err != nil {
		return storeError("read counters", err)
	}
	e.Views = project.Views
	e.Rating = project.Rating
	return nil
}

func (s *EngagementService) publish(ref, kind string, e *Engagement) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(EngagementEvent{
		ProjectID: e.ProjectID,
		UserRef:   ref,
		Kind:      kind,
		Views:     e.Views,
		Rating:    e.Rating,
		At:        time.Now(),
	})
}
