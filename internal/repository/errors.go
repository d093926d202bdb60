// Package repository implements the data access layer for the application.
package repository

import (
	"errors"
	"strings"

	"inkwell/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err was raised by a unique index, on
// either postgres or sqlite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translate maps gorm errors to application errors for resource/id.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}
