package handlers

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

// LedgerHandler serves the /ios_members endpoints: project membership and the
// per-user viewed and rated sets.
type LedgerHandler struct {
	ledger *services.LedgerService
}

func NewLedgerHandler(ledger *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

type AddMemberRequest struct {
	ProjectID uint   `json:"project_id" binding:"required"`
	UserRef   string `json:"user_entity_ref"`
	Avatar    string `json:"user_avatar"`
}

type SetMemberProjectsRequest struct {
	ProjectIDs []uint `json:"projects_ids"`
}

// UserRefRequest is the body of the ledger calls that name a user. A blank
// ref falls back to the caller.
type UserRefRequest struct {
	UserRef string `json:"user_entity_ref"`
}

type AddViewRequest struct {
	UserRef   string `json:"user_entity_ref"`
	ProjectID uint   `json:"project_id" binding:"required"`
}

// AddMember
// POST /api/ios/ios_members
func (h *LedgerHandler) AddMember(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	added, err := h.ledger.AddMember(c.Request.Context(), req.ProjectID, callerOr(c, req.UserRef), req.Avatar)
	if err != nil {
		fail(c, "add member", err)
		return
	}
	response.Success(c, gin.H{"project_id": req.ProjectID, "added": added})
}

// SetMemberProjects overwrites the user's member set.
// PUT /api/ios/ios_members/:user_id
func (h *LedgerHandler) SetMemberProjects(c *gin.Context) {
	var req SetMemberProjectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ids, err := h.ledger.SetMemberProjects(c.Request.Context(), c.Param("user_id"), req.ProjectIDs)
	if err != nil {
		fail(c, "set member projects", err)
		return
	}
	response.Success(c, gin.H{"projects_ids": ids})
}

// GetMembers
// GET /api/ios/ios_members/:project_id
func (h *LedgerHandler) GetMembers(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}

	members, err := h.ledger.GetMembersOfProject(c.Request.Context(), id)
	if err != nil {
		fail(c, "list project members", err)
		return
	}
	response.Success(c, members)
}

// RemoveMember
// DELETE /api/ios/ios_members/:project_id/:user_id
func (h *LedgerHandler) RemoveMember(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}

	removed, err := h.ledger.RemoveMember(c.Request.Context(), id, c.Param("user_id"))
	if err != nil {
		fail(c, "remove member", err)
		return
	}
	response.Success(c, gin.H{"project_id": id, "removed": removed})
}

// GetUser returns the user with the projects they belong to, viewed and rated.
// GET /api/ios/ios_members/user[/*user_ref]
func (h *LedgerHandler) GetUser(c *gin.Context) {
	user, err := h.ledger.GetUser(c.Request.Context(), callerOr(c, wildcardParam(c, "user_ref")))
	if err != nil {
		fail(c, "get user", err)
		return
	}
	response.Success(c, user)
}

// AddView records a view in the user's viewed set. The project's counter is
// not touched; POST /projects/:id/view does both.
// PUT /api/ios/ios_members/add_view
func (h *LedgerHandler) AddView(c *gin.Context) {
	var req AddViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	added, err := h.ledger.RecordView(c.Request.Context(), callerOr(c, req.UserRef), req.ProjectID)
	if err != nil {
		fail(c, "record view", err)
		return
	}
	response.Success(c, gin.H{"project_id": req.ProjectID, "added": added})
}

// GetViewed
// POST /api/ios/ios_members/views
func (h *LedgerHandler) GetViewed(c *gin.Context) {
	h.listSet(c, "list viewed projects", h.ledger.GetViewed)
}

// AddRate
// PUT /api/ios/ios_members/add_rate/:project_id
func (h *LedgerHandler) AddRate(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req UserRefRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	added, err := h.ledger.RecordRating(c.Request.Context(), callerOr(c, req.UserRef), id)
	if err != nil {
		fail(c, "record rating", err)
		return
	}
	response.Success(c, gin.H{"project_id": id, "added": added})
}

// GetRated
// POST /api/ios/ios_members/rates
func (h *LedgerHandler) GetRated(c *gin.Context) {
	h.listSet(c, "list rated projects", h.ledger.GetRated)
}

// RemoveRate
// DELETE /api/ios/ios_members/rates_del/:project_id
func (h *LedgerHandler) RemoveRate(c *gin.Context) {
	id, ok := parseID(c, "project_id")
	if !ok {
		return
	}
	var req UserRefRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	removed, err := h.ledger.RemoveRating(c.Request.Context(), callerOr(c, req.UserRef), id)
	if err != nil {
		fail(c, "remove rating", err)
		return
	}
	response.Success(c, gin.H{"project_id": id, "removed": removed})
}

func (h *LedgerHandler) listSet(c *gin.Context, op string, get func(ctx context.Context, ref string) ([]uint, error)) {
	var req UserRefRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ids, err := get(c.Request.Context(), callerOr(c, req.UserRef))
	if err != nil {
		fail(c, op, err)
		return
	}
	response.Success(c, ids)
}

// bindOptionalJSON binds the body when there is one. A chunked request with
// nothing in it counts as no body.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 || c.Request.Body == nil {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}
