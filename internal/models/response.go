package models

import "github.com/gofiber/fiber/v2"

// Envelope is the body of every API response.
type Envelope struct {
	Status    string      `json:"status"`
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	ErrorCode string      `json:"errorCode,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorEnvelope builds the body of a failed response.
func ErrorEnvelope(status int, errorCode, message string) Envelope {
	return Envelope{Status: StatusError, Code: status, Message: message, ErrorCode: errorCode}
}

// SuccessEnvelope builds the body of a successful response.
func SuccessEnvelope(status int, message string, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Code: status, Message: message, Data: data}
}

// StatusFor maps err's AppError code to an HTTP status. Errors that carry no
// code are treated as internal failures.
func StatusFor(err error) int {
	appErr, ok := AsAppError(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeInvalidInput, CodeConflict:
		return fiber.StatusBadRequest
	case CodeAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// codeForStatus picks an errorCode for errors that are not AppErrors.
func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusUnauthorized:
		return CodeAuth
	case fiber.StatusBadRequest:
		return CodeInvalidInput
	default:
		return CodeStore
	}
}

// RespondWithError writes err as an error envelope. Wrapped causes are never
// exposed to the client.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	if appErr, ok := AsAppError(err); ok {
		return c.Status(status).JSON(ErrorEnvelope(status, appErr.Code, appErr.Message))
	}
	message := "Internal server error"
	if status < fiber.StatusInternalServerError && err != nil {
		message = err.Error()
	}
	return c.Status(status).JSON(ErrorEnvelope(status, codeForStatus(status), message))
}

// RespondWithAppError is RespondWithError with the status derived from err.
func RespondWithAppError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, StatusFor(err), err)
}

// RespondWithSuccess writes a success envelope.
func RespondWithSuccess(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(SuccessEnvelope(status, message, data))
}
