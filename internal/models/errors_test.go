package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorIncludesCause(t *testing.T) {
	err := NewInternalError(errors.New("disk full"))
	assert.Equal(t, "Internal server error: disk full", err.Error())
	assert.Equal(t, "Comment with ID 7 not found", NewNotFoundError("Comment", 7).Error())
}

func TestAsAppError_Unwraps(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewConflictError("Email already registered"))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeConflict, appErr.Code)
	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeConflict))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("Article", 1), fiber.StatusNotFound},
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewConflictError("dup"), fiber.StatusBadRequest},
		{NewUnauthorizedError("no"), fiber.StatusUnauthorized},
		{NewInternalError(errors.New("x")), fiber.StatusInternalServerError},
		{errors.New("unknown"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func respond(t *testing.T, h fiber.Handler) Envelope {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, env.Code, resp.StatusCode)
	return env
}

func TestRespondWithAppError_HidesCause(t *testing.T) {
	env := respond(t, func(c *fiber.Ctx) error {
		return RespondWithAppError(c, NewInternalError(errors.New("pq: connection refused")))
	})
	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, CodeStore, env.ErrorCode)
	assert.Equal(t, "Internal server error", env.Message)
}

func TestRespondWithError_PlainErrors(t *testing.T) {
	env := respond(t, func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadRequest, errors.New("Invalid request body"))
	})
	assert.Equal(t, CodeInvalidInput, env.ErrorCode)
	assert.Equal(t, "Invalid request body", env.Message)

	env = respond(t, func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, errors.New("secret detail"))
	})
	assert.Equal(t, "Internal server error", env.Message)
}

func TestRespondWithSuccess(t *testing.T) {
	env := respond(t, func(c *fiber.Ctx) error {
		return RespondWithSuccess(c, fiber.StatusCreated, "Created", fiber.Map{"id": 1})
	})
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, fiber.StatusCreated, env.Code)
	assert.Empty(t, env.ErrorCode)
	assert.Equal(t, map[string]interface{}{"id": float64(1)}, env.Data)
}
