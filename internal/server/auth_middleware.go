package server

import (
	"strconv"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AuthRequired rejects requests without a valid, unrevoked bearer token and
// exposes the caller's ID as the "userID" local and in the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("No token"))
		}

		scheme, tokenString, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" || tokenString == "" {
			return invalidToken(c)
		}
		return s.authenticate(c, tokenString)
	}
}

// StreamAuthRequired is AuthRequired for websocket routes. Browsers cannot
// set headers on the handshake, so the token may also come from the "token"
// query parameter.
func (s *Server) StreamAuthRequired() fiber.Handler {
	bearer := s.AuthRequired()
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "" {
			return bearer(c)
		}
		tokenString := c.Query("token")
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("No token"))
		}
		return s.authenticate(c, tokenString)
	}
}

// authenticate validates tokenString and stores the caller on c.
func (s *Server) authenticate(c *fiber.Ctx, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(s.jwtIssuer()),
		jwt.WithAudience(s.jwtAudience()),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return invalidToken(c)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return invalidToken(c)
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return invalidToken(c)
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return invalidToken(c)
	}

	jti, _ := claims["jti"].(string)
	if jti != "" {
		revoked, err := s.blacklist.IsRevoked(c.UserContext(), jti)
		if err != nil {
			// A Redis outage must not lock every user out.
			middleware.Logger.WarnContext(c.UserContext(), "token blacklist lookup failed", "error", err.Error())
		} else if revoked {
			return invalidToken(c)
		}
	}

	c.Locals("userID", uint(userID))
	c.Locals("jti", jti)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.Locals("tokenExp", exp.Time)
	}
	c.SetUserContext(middleware.WithUserID(c.UserContext(), uint(userID)))

	return c.Next()
}

func invalidToken(c *fiber.Ctx) error {
	return models.RespondWithError(c, fiber.StatusUnauthorized,
		models.NewUnauthorizedError("Token is not valid"))
}
