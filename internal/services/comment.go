package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/ioscatalog/ios/backend/pkg/response"
	"gorm.io/gorm"
)

// VersionCurrent asks GetTopLevel to filter by the project's live version.
const VersionCurrent = "current"

type CommentService struct {
	db       *gorm.DB
	projects *ProjectService
	now      func() time.Time
}

func NewCommentService(db *gorm.DB, projects *ProjectService) *CommentService {
	return &CommentService{db: db, projects: projects, now: time.Now}
}

type AddCommentRequest struct {
	ProjectID uint   `json:"-"`
	ParentID  *uint  `json:"comment_id_ref"`
	UserRef   string `json:"user_id_ref"`
	Text      string `json:"comment_text" binding:"required"`
}

// AddComment stores a comment stamped with the project's current version.
// A reply's parent must be a top-level comment of the same project.
func (s *CommentService) AddComment(ctx context.Context, req *AddCommentRequest) (*models.Comment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, response.NewBadRequest("comment_text is required")
	}
	userRef := utils.NormalizeUserRef(req.UserRef)
	if userRef == "" {
		return nil, response.NewBadRequest("user_id_ref is required")
	}

	comment := models.Comment{
		ProjectID: req.ProjectID,
		ParentID:  req.ParentID,
		UserRef:   userRef,
		Text:      text,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Select("project_id", "project_version").
			First(&project, "project_id = ?", req.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("project", req.ProjectID)
			}
			return storeError("get project version", err)
		}

		if req.ParentID != nil {
			var parent models.Comment
			if err := tx.First(&parent, "comment_id = ?", *req.ParentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return response.NewBadRequest("parent comment does not exist")
				}
				return storeError("get parent comment", err)
			}
			if parent.ProjectID != req.ProjectID {
				return response.NewBadRequest("parent comment belongs to another project")
			}
			if parent.IsReply() {
				return response.NewBadRequest("replies cannot be nested")
			}
		}

		comment.Version = project.CurrentVersion()
		comment.Date = s.now()
		if err := tx.Create(&comment).Error; err != nil {
			return storeError("add comment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetTopLevel returns the project's top-level comments, newest first. A
// non-empty version keeps only comments tagged with it; VersionCurrent
// resolves to the project's live version.
func (s *CommentService) GetTopLevel(ctx context.Context, projectID uint, version string) ([]models.Comment, error) {
	version = strings.TrimSpace(version)
	if version == VersionCurrent {
		v, err := s.projects.GetVersion(ctx, projectID)
		if err != nil {
			return nil, err
		}
		version = v
	}

	query := s.db.WithContext(ctx).
		Where("project_id_ref = ? AND comment_id_ref IS NULL", projectID)
	if version != "" {
		query = query.Where("comment_version = ?", version)
	}

	comments := []models.Comment{}
	if err := query.Order("comment_date DESC, comment_id DESC").Find(&comments).Error; err != nil {
		return nil, storeError("list comments", err)
	}
	return comments, nil
}

// GetReplies returns the replies to a comment in the order they were posted.
func (s *CommentService) GetReplies(ctx context.Context, parentID uint) ([]models.Comment, error) {
	replies := []models.Comment{}
	err := s.db.WithContext(ctx).
		Where("comment_id_ref = ?", parentID).
		Order("comment_date ASC, comment_id ASC").
		Find(&replies).Error
	if err != nil {
		return nil, storeError("list replies", err)
	}
	return replies, nil
}

// DeleteComment removes a comment of the given project and any replies to it.
func (s *CommentService) DeleteComment(ctx context.Context, projectID, commentID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("comment_id = ? AND project_id_ref = ?", commentID, projectID).
			Delete(&models.Comment{})
		if result.Error != nil {
			return storeError("delete comment", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound("comment", commentID)
		}
		if err := tx.Where("comment_id_ref = ?", commentID).Delete(&models.Comment{}).Error; err != nil {
			return storeError("delete replies", err)
		}
		return nil
	})
}
