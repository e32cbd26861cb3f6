package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projects}
}

// List returns every project, or a page of them when any of page, page_size,
// title or status is given.
// GET /api/ios/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req == (services.ProjectListRequest{}) {
		projects, err := h.projectService.GetAll(c.Request.Context())
		if err != nil {
			fail(c, "list projects", err)
			return
		}
		response.Success(c, projects)
		return
	}

	resp, err := h.projectService.List(c.Request.Context(), &req)
	if err != nil {
		fail(c, "list projects", err)
		return
	}
	response.Success(c, resp)
}

// GetByID
// GET /api/ios/projects/id/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, "get project", err)
		return
	}
	response.Success(c, project)
}

// GetByEntityRef serves both GET /api/ios/projects/:id, for refs without a
// slash, and GET /api/ios/projects/ref/*entity_ref.
func (h *ProjectHandler) GetByEntityRef(c *gin.Context) {
	ref := c.Param("id")
	if ref == "" {
		ref = wildcardParam(c, "entity_ref")
	}
	if ref == "" {
		response.BadRequest(c, "entity ref is required")
		return
	}

	project, err := h.projectService.GetByEntityRef(c.Request.Context(), ref)
	if err != nil {
		fail(c, "get project by entity ref", err)
		return
	}
	response.Success(c, project)
}

// GetVersion
// GET /api/ios/projects/id/:id/version
func (h *ProjectHandler) GetVersion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	version, err := h.projectService.GetVersion(c.Request.Context(), id)
	if err != nil {
		fail(c, "get project version", err)
		return
	}
	response.Success(c, gin.H{"project_id": id, "project_version": version})
}

// Create
// POST /api/ios/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, "create project", err)
		return
	}
	response.Created(c, project)
}

// Update applies a partial update; absent fields are left alone.
// PUT /api/ios/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var patch services.ProjectPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Request.Context(), id, &patch)
	if err != nil {
		fail(c, "update project", err)
		return
	}
	response.Success(c, project)
}

// UpdateViews
// PUT /api/ios/projects/views/:project_id/:views
func (h *ProjectHandler) UpdateViews(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	views, ok := parseCount(c, "views")
	if !ok {
		return
	}

	project, err := h.projectService.UpdateViews(c.Request.Context(), id, views)
	if err != nil {
		fail(c, "update project views", err)
		return
	}
	response.Success(c, project)
}

// UpdateRating
// PUT /api/ios/projects/rating/:project_id/:rating
func (h *ProjectHandler) UpdateRating(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	rating, ok := parseCount(c, "rating")
	if !ok {
		return
	}

	project, err := h.projectService.UpdateRating(c.Request.Context(), id, rating)
	if err != nil {
		fail(c, "update project rating", err)
		return
	}
	response.Success(c, project)
}

// Delete removes the project with its comments and ledger entries.
// DELETE /api/ios/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), id); err != nil {
		fail(c, "delete project", err)
		return
	}
	response.Success(c, gin.H{"message": "project deleted successfully"})
}
