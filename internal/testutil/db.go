// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewSQLiteDB returns a migrated, private in-memory database for t.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with the given name and a derived email.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()
	u := &models.User{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "$2a$10$abcdefghijklmnopqrstuuJ0K4bqQpQmQkQK0z1Z7bqkbvW6u5K2",
		Avatar:   "http://localhost:5000/uploads/def_avatar.jpg",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateArticle inserts an article authored by author.
func CreateArticle(t testing.TB, db *gorm.DB, author *models.User, title string) *models.Article {
	t.Helper()
	a := &models.Article{
		Title:   title,
		Content: "Body of " + title,
		Author:  author.Snapshot(),
	}
	require.NoError(t, db.Create(a).Error)
	return a
}
