package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createArticleRequest struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Attachments []uint `json:"attachments"`
}

// CreateArticle handles POST /api/articles/add
// @Summary Create article
// @Description Publish an article, optionally linking previously uploaded attachments in order
// @Tags articles
// @Accept json
// @Produce json
// @Param request body createArticleRequest true "Article"
// @Success 201 {object} models.Envelope{data=models.Article}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /articles/add [post]
func (s *Server) CreateArticle(c *fiber.Ctx) error {
	var req createArticleRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	userID, _ := currentUserID(c)
	article, err := s.articleSvc().CreateArticle(c.UserContext(), service.CreateArticleInput{
		UserID:        userID,
		Title:         req.Title,
		Content:       req.Content,
		AttachmentIDs: req.Attachments,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "Article created", article)
}

// GetArticles handles GET /api/articles
// @Summary List articles
// @Description Newest first
// @Tags articles
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size (max 100)" default(10)
// @Success 200 {object} models.Envelope{data=[]models.Article}
// @Router /articles [get]
func (s *Server) GetArticles(c *fiber.Ctx) error {
	articles, err := s.articleSvc().ListArticles(c.UserContext(), pageFromQuery(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Articles fetched", articles)
}

// GetArticle handles GET /api/articles/:id
// @Summary Get article
// @Description Returns the article and counts one view. totalViews excludes this view.
// @Tags articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} models.Envelope{data=models.Article}
// @Failure 404 {object} models.Envelope
// @Router /articles/{id} [get]
func (s *Server) GetArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	article, err := s.articleSvc().ViewArticle(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Article fetched", article)
}

// LikeArticle handles POST /api/articles/:id/like
// @Summary Like article
// @Description Each user likes an article at most once; repeating is not an error
// @Tags articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} models.Envelope{data=object{liked=bool}}
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /articles/{id}/like [post]
func (s *Server) LikeArticle(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID, _ := currentUserID(c)
	liked, err := s.articleSvc().LikeArticle(c.UserContext(), id, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	message := "Article liked"
	if !liked {
		message = "Article already liked"
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, message, fiber.Map{"liked": liked})
}
