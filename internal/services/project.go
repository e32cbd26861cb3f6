package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db, now: time.Now}
}

type ProjectListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Title    string `form:"title"`
	Status   string `form:"status"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	EntityRef       string `json:"entity_ref" binding:"required"`
	Title           string `json:"project_title" binding:"required"`
	Description     string `json:"project_description"`
	ManagerUsername string `json:"project_manager_username"`
	ManagerRef      string `json:"project_manager_ref"`
	TeamOwnerName   string `json:"project_team_owner_name"`
	TeamOwnerRef    string `json:"project_team_owner_ref"`
	LifeCycleStatus string `json:"project_life_cycle_status"`
	Version         string `json:"project_version"`
	RepositoryLink  string `json:"project_repository_link"`
	DocsRef         string `json:"project_docs_ref"`
}

// ProjectPatch carries a partial update. A nil field is left alone; a
// non-nil field is written even when it holds "" or 0.
type ProjectPatch struct {
	EntityRef       *string `json:"entity_ref"`
	Title           *string `json:"project_title"`
	Description     *string `json:"project_description"`
	ManagerUsername *string `json:"project_manager_username"`
	ManagerRef      *string `json:"project_manager_ref"`
	TeamOwnerName   *string `json:"project_team_owner_name"`
	TeamOwnerRef    *string `json:"project_team_owner_ref"`
	LifeCycleStatus *string `json:"project_life_cycle_status"`
	Rating          *int    `json:"project_rating"`
	Views           *int    `json:"project_views"`
	Version         *string `json:"project_version"`
	RepositoryLink  *string `json:"project_repository_link"`
	DocsRef         *string `json:"project_docs_ref"`
}

func (p *ProjectPatch) columns() (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	setStr := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, response.NewBadRequest("project_title cannot be empty")
	}
	if p.EntityRef != nil && strings.TrimSpace(*p.EntityRef) == "" {
		return nil, response.NewBadRequest("entity_ref cannot be empty")
	}
	if (p.Rating != nil && *p.Rating < 0) || (p.Views != nil && *p.Views < 0) {
		return nil, response.NewBadRequest("rating and views cannot be negative")
	}

	setStr("entity_ref", p.EntityRef)
	setStr("project_title", p.Title)
	setStr("project_description", p.Description)
	setStr("project_manager_username", p.ManagerUsername)
	setStr("project_manager_ref", p.ManagerRef)
	setStr("project_team_owner_name", p.TeamOwnerName)
	setStr("project_team_owner_ref", p.TeamOwnerRef)
	setStr("project_life_cycle_status", p.LifeCycleStatus)
	setStr("project_version", p.Version)
	setStr("project_repository_link", p.RepositoryLink)
	setStr("project_docs_ref", p.DocsRef)
	if p.Rating != nil {
		updates["project_rating"] = *p.Rating
	}
	if p.Views != nil {
		updates["project_views"] = *p.Views
	}
	return updates, nil
}

// List returns paginated projects
func (s *ProjectService) List(ctx context.Context, req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 10
	}

	var projects []models.Project
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Project{})

	if req.Title != "" {
		query = query.Where("project_title LIKE ?", "%"+req.Title+"%")
	}
	if req.Status != "" {
		query = query.Where("project_life_cycle_status = ?", req.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, storeError("count projects", err)
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("project_update_date DESC, project_id DESC").Find(&projects).Error; err != nil {
		return nil, storeError("list projects", err)
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// GetAll returns every project ordered by id.
func (s *ProjectService) GetAll(ctx context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	if err := s.db.WithContext(ctx).Order("project_id").Find(&projects).Error; err != nil {
		return nil, storeError("list projects", err)
	}
	return projects, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "project_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("project", id)
		}
		return nil, storeError("get project", err)
	}
	return &project, nil
}

func (s *ProjectService) GetByEntityRef(ctx context.Context, ref string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "entity_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("project with entity ref", ref)
		}
		return nil, storeError("get project", err)
	}
	return &project, nil
}

// GetVersion returns the project's version, or models.DefaultVersion when
// it was registered without one.
func (s *ProjectService) GetVersion(ctx context.Context, id uint) (string, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Select("project_id", "project_version").
		First(&project, "project_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", notFound("project", id)
		}
		return "", storeError("get project version", err)
	}
	return project.CurrentVersion(), nil
}

func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest) (*models.Project, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.EntityRef = strings.TrimSpace(req.EntityRef)
	if req.Title == "" || req.EntityRef == "" {
		return nil, response.NewBadRequest("project_title and entity_ref are required")
	}

	now := s.now()
	project := models.Project{
		EntityRef:       req.EntityRef,
		Title:           req.Title,
		Description:     req.Description,
		ManagerUsername: req.ManagerUsername,
		ManagerRef:      req.ManagerRef,
		TeamOwnerName:   req.TeamOwnerName,
		TeamOwnerRef:    req.TeamOwnerRef,
		LifeCycleStatus: req.LifeCycleStatus,
		Version:         req.Version,
		RepositoryLink:  req.RepositoryLink,
		DocsRef:         req.DocsRef,
		StartDate:       now,
		UpdateDate:      now,
	}

	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, storeError("create project", err)
	}
	return &project, nil
}

// Update applies the fields present in patch and refreshes the update date.
func (s *ProjectService) Update(ctx context.Context, id uint, patch *ProjectPatch) (*models.Project, error) {
	updates, err := patch.columns()
	if err != nil {
		return nil, err
	}

	project, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updateDate := s.now()
	if updateDate.Before(project.StartDate) {
		updateDate = project.StartDate
	}
	updates["project_update_date"] = updateDate

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, storeError("update project", err)
	}
	return s.GetByID(ctx, id)
}

// UpdateViews overwrites the view counter. Engagement flows go through
// EngagementService instead.
func (s *ProjectService) UpdateViews(ctx context.Context, id uint, views int) (*models.Project, error) {
	return s.setCounter(ctx, id, "project_views", views)
}

// UpdateRating overwrites the rating counter.
func (s *ProjectService) UpdateRating(ctx context.Context, id uint, rating int) (*models.Project, error) {
	return s.setCounter(ctx, id, "project_rating", rating)
}

func (s *ProjectService) setCounter(ctx context.Context, id uint, column string, value int) (*models.Project, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("project_id = ?", id).
		UpdateColumn(column, value)
	if result.Error != nil {
		return nil, storeError("update "+column, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound("project", id)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a project together with its comments and ledger entries.
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id_ref = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return storeError("delete project comments", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.LedgerEntry{}).Error; err != nil {
			return storeError("delete project ledger entries", err)
		}
		result := tx.Where("project_id = ?", id).Delete(&models.Project{})
		if result.Error != nil {
			return storeError("delete project", result.Error)
		}
		if result.RowsAffected == 0 {
			return notFound("project", id)
		}
		return nil
	})
}

// requireProject fails with NotFound unless the project exists.
func requireProject(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Project{}).Where("project_id = ?", id).Count(&count).Error; err != nil {
		return storeError("lookup project", err)
	}
	if count == 0 {
		return notFound("project", id)
	}
	return nil
}
