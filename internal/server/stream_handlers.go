package server

import (
	"encoding/json"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// CommentStreamUpgrade validates GET /api/ws/articles/:id/comments before the
// websocket handshake, so bad requests still get a JSON error.
// @Summary Live comment stream
// @Description Upgrades to a websocket that receives comment.created and comment.replied events for one article
// @Tags comments
// @Param id path int true "Article ID"
// @Param token query string false "JWT access token, when no Authorization header is sent"
// @Success 101
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /ws/articles/{id}/comments [get]
func (s *Server) CommentStreamUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("WebSocket upgrade required"))
	}
	articleID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	exists, err := s.articleRepo.Exists(c.UserContext(), articleID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if !exists {
		return models.RespondWithAppError(c, models.NewNotFoundError("Article", articleID))
	}

	c.Locals("articleID", articleID)
	return c.Next()
}

// CommentStreamHandler registers the socket with the comment hub and pumps
// events to it until either side closes.
func (s *Server) CommentStreamHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		articleID, _ := conn.Locals("articleID").(uint)

		client, err := s.hub.Register(articleID, conn)
		if err != nil {
			middleware.Logger.Warn("comment stream rejected", "article_id", articleID, "error", err.Error())
			payload, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
