package server

import (
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// GetCurrentUser handles GET /api/users/current
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 401 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /users/current [get]
func (s *Server) GetCurrentUser(c *fiber.Ctx) error {
	userID, _ := currentUserID(c)
	user, err := s.userSvc().GetUser(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Current user", user)
}

// UpdateProfile handles POST /api/users/profile
// @Summary Update profile
// @Description Change name, email or avatar. At least one of name or email is required.
// @Tags users
// @Accept json
// @Produce json
// @Param request body updateProfileRequest true "Profile fields"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Security BearerAuth
// @Router /users/profile [post]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	userID, _ := currentUserID(c)
	user, err := s.userSvc().UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID: userID,
		Name:   req.Name,
		Email:  req.Email,
		Avatar: req.Avatar,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Profile updated", user)
}
