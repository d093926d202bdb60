package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// commentRequest accepts the comment text as either "text" or "comment".
type commentRequest struct {
	Text    string `json:"text"`
	Comment string `json:"comment"`
}

func (r commentRequest) body() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Comment
}

// CreateComment handles POST /api/articles/:id/comments
// @Summary Comment on an article
// @Description Appends a top-level comment to the article's thread
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Article ID"
// @Param request body commentRequest true "Comment text"
// @Success 200 {object} models.Envelope{data=models.Comment}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /articles/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	userID, _ := currentUserID(c)
	comment, err := s.commentSvc().CreateTopLevelComment(c.UserContext(), service.CreateCommentInput{
		UserID:    userID,
		ArticleID: articleID,
		Text:      req.body(),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Comment added", comment)
}

// CreateReply handles POST /api/articles/:id/comments/:commentId/replies
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path int true "Article ID"
// @Param commentId path int true "Parent comment ID"
// @Param request body commentRequest true "Reply text"
// @Success 200 {object} models.Envelope{data=models.Comment}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /articles/{id}/comments/{commentId}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	parentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	userID, _ := currentUserID(c)
	reply, err := s.commentSvc().CreateReply(c.UserContext(), service.CreateReplyInput{
		UserID:    userID,
		ArticleID: articleID,
		ParentID:  parentID,
		Text:      req.body(),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Reply added", reply)
}

// LikeComment handles POST /api/comments/:commentId/like
// @Summary Like a comment
// @Description Adds one like; repeated likes all count
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Success 200 {object} models.Envelope{data=models.Comment}
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	comment, err := s.commentSvc().LikeComment(c.UserContext(), commentID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Comment liked", comment)
}

// GetComments handles GET /api/articles/:id/comments
// @Summary List top-level comments
// @Description One page in posting order, each with its direct replies attached
// @Tags comments
// @Produce json
// @Param id path int true "Article ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Success 200 {object} models.Envelope{data=[]models.Comment}
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /articles/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.commentSvc().ListTopLevelComments(c.UserContext(), articleID, pageFromQuery(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Comments fetched", comments)
}

// GetReplies handles GET /api/comments/:commentId/replies
// @Summary List replies
// @Description One page of a comment's direct replies, each with its own direct replies attached
// @Tags comments
// @Produce json
// @Param commentId path int true "Comment ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Success 200 {object} models.Envelope{data=[]models.Comment}
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /comments/{commentId}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	replies, err := s.commentSvc().ListReplies(c.UserContext(), commentID, pageFromQuery(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Replies fetched", replies)
}
