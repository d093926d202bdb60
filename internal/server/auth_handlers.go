package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTTL = 7 * 24 * time.Hour

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the data payload of a successful login.
type LoginResponse struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Token  string `json:"token"`
}

// Register handles POST /api/users/register
// @Summary Register
// @Description Create an account with the default avatar
// @Tags users
// @Accept json
// @Produce json
// @Param request body registerRequest true "Registration"
// @Success 201 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Router /users/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userSvc().Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return models.RespondWithSuccess(c, fiber.StatusCreated, "User registered", user)
}

// Login handles POST /api/users/login
// @Summary Login
// @Description Check credentials and issue a JWT valid for seven days
// @Tags users
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} models.Envelope{data=LoginResponse}
// @Failure 400 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Router /users/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userSvc().Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}

	return models.RespondWithSuccess(c, fiber.StatusOK, "Login successful", LoginResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Avatar: user.Avatar,
		Token:  token,
	})
}

// Logout handles POST /api/users/logout
// @Summary Logout
// @Description Revoke the presented token until it would have expired
// @Tags users
// @Produce json
// @Success 200 {object} models.Envelope
// @Failure 401 {object} models.Envelope
// @Security BearerAuth
// @Router /users/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	exp, _ := c.Locals("tokenExp").(time.Time)

	err := s.blacklist.Revoke(c.UserContext(), jti, time.Until(exp))
	switch {
	case errors.Is(err, cache.ErrNoStore):
		middleware.Logger.WarnContext(c.UserContext(), "logout without token store; token stays valid until expiry")
	case err != nil:
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	return models.RespondWithSuccess(c, fiber.StatusOK, "Logged out", nil)
}

func (s *Server) jwtIssuer() string {
	if s.config != nil && s.config.JWTIssuer != "" {
		return s.config.JWTIssuer
	}
	return "inkwell-api"
}

func (s *Server) jwtAudience() string {
	if s.config != nil && s.config.JWTAudience != "" {
		return s.config.JWTAudience
	}
	return "inkwell-app"
}

// generateToken signs an HS256 token for user.
func (s *Server) generateToken(user *models.User) (string, error) {
	if s.config == nil || s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(user.ID), 10),
		"email": user.Email,
		"iss":   s.jwtIssuer(),
		"aud":   s.jwtAudience(),
		"exp":   now.Add(tokenTTL).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"jti":   generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI creates the token ID that logout revokes.
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
