package services

import (
	"context"

	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"gorm.io/gorm"
)

// ReconcileResult reports what a reconciliation pass changed.
type ReconcileResult struct {
	OrphanEntries   int64 `json:"orphan_entries"`
	OrphanComments  int64 `json:"orphan_comments"`
	OrphanReplies   int64 `json:"orphan_replies"`
	ProjectsUpdated int   `json:"projects_updated"`
}

// ReconcileService repairs drift between projects, comments and the ledger.
// It removes rows that point at deleted projects or comments and, when
// asked, recomputes each project's views and rating from its ledger rows.
type ReconcileService struct {
	db *gorm.DB
}

func NewReconcileService(db *gorm.DB) *ReconcileService {
	return &ReconcileService{db: db}
}

type counterRow struct {
	ProjectID uint
	Kind      models.LedgerKind
	Total     int
}

func (s *ReconcileService) Run(ctx context.Context, recount bool) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projectIDs := tx.Model(&models.Project{}).Select("project_id")

		res := tx.Where("project_id NOT IN (?)", projectIDs).Delete(&models.LedgerEntry{})
		if res.Error != nil {
			return storeError("remove orphan ledger entries", res.Error)
		}
		result.OrphanEntries = res.RowsAffected

		res = tx.Where("project_id_ref NOT IN (?)", projectIDs).Delete(&models.Comment{})
		if res.Error != nil {
			return storeError("remove orphan comments", res.Error)
		}
		result.OrphanComments = res.RowsAffected

		// Subquery reads from the table being deleted from; MySQL requires
		// the extra derived table.
		commentIDs := tx.Table("(?) AS c", tx.Model(&models.Comment{}).Select("comment_id")).Select("c.comment_id")
		res = tx.Where("comment_id_ref IS NOT NULL AND comment_id_ref NOT IN (?)", commentIDs).Delete(&models.Comment{})
		if res.Error != nil {
			return storeError("remove orphan replies", res.Error)
		}
		result.OrphanReplies = res.RowsAffected

		if !recount {
			return nil
		}

		var rows []counterRow
		if err := tx.Model(&models.LedgerEntry{}).
			Select("project_id, kind, COUNT(*) AS total").
			Where("kind IN ?", []models.LedgerKind{models.KindViewed, models.KindRated}).
			Group("project_id, kind").
			Scan(&rows).Error; err != nil {
			return storeError("count ledger entries", err)
		}

		views := make(map[uint]int)
		ratings := make(map[uint]int)
		for _, r := range rows {
			if r.Kind == models.KindViewed {
				views[r.ProjectID] = r.Total
			} else {
				ratings[r.ProjectID] = r.Total
			}
		}

		var projects []models.Project
		if err := tx.Select("project_id", "project_views", "project_rating").Find(&projects).Error; err != nil {
			return storeError("load project counters", err)
		}
		for _, p := range projects {
			wantViews, wantRating := views[p.ID], ratings[p.ID]
			if p.Views == wantViews && p.Rating == wantRating {
				continue
			}
			if err := tx.Model(&models.Project{}).Where("project_id = ?", p.ID).
				UpdateColumns(map[string]interface{}{
					"project_views":  wantViews,
					"project_rating": wantRating,
				}).Error; err != nil {
				return storeError("update project counters", err)
			}
			result.ProjectsUpdated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Int64("orphan_entries", result.OrphanEntries).
		Int64("orphan_comments", result.OrphanComments).
		Int64("orphan_replies", result.OrphanReplies).
		Int("projects_updated", result.ProjectsUpdated).
		Bool("recount", recount).
		Msg("[Reconcile] pass complete")
	return result, nil
}

// ProcessTask runs a queued reconcile task.
func (s *ReconcileService) ProcessTask(ctx context.Context, task *ReconcileTask) error {
	_, err := s.Run(ctx, task.RecountCounters)
	return err
}
