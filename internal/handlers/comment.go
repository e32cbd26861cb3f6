package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/ioscatalog/ios/backend/internal/services"
	"github.com/ioscatalog/ios/backend/pkg/response"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Add posts a comment, or a reply when comment_id_ref is set. The author
// defaults to the caller.
// POST /api/ios/projects/:id/comments
func (h *CommentHandler) Add(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.ProjectID = projectID
	req.UserRef = callerOr(c, req.UserRef)

	comment, err := h.comments.AddComment(c.Request.Context(), &req)
	if err != nil {
		fail(c, "add comment", err)
		return
	}
	response.Created(c, comment)
}

// List returns top-level comments, newest first. ?version=current keeps only
// comments on the project's live version.
// GET /api/ios/projects/:id/comments
func (h *CommentHandler) List(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	comments, err := h.comments.GetTopLevel(c.Request.Context(), projectID, c.Query("version"))
	if err != nil {
		fail(c, "list comments", err)
		return
	}
	response.Success(c, comments)
}

// Replies
// GET /api/ios/projects/replies/:comment_id_ref
func (h *CommentHandler) Replies(c *gin.Context) {
	parentID, ok := parseID(c, "comment_id_ref")
	if !ok {
		return
	}

	replies, err := h.comments.GetReplies(c.Request.Context(), parentID)
	if err != nil {
		fail(c, "list replies", err)
		return
	}
	response.Success(c, replies)
}

// Delete removes a comment and its replies.
// DELETE /api/ios/projects/:id/comments/:comment_id
func (h *CommentHandler) Delete(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	commentID, ok := parseID(c, "comment_id")
	if !ok {
		return
	}

	if err := h.comments.DeleteComment(c.Request.Context(), projectID, commentID); err != nil {
		fail(c, "delete comment", err)
		return
	}
	response.Success(c, gin.H{"message": "comment deleted successfully"})
}
