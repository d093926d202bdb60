package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newIntegrationServer wires the real repositories and services over a
// private sqlite database, optionally with a miniredis instance.
func newIntegrationServer(t *testing.T, withRedis bool) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}

	cfg := testConfig()
	cfg.UploadDir = t.TempDir()
	cfg.MaxUploadMB = 1

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	t.Cleanup(srv.articleService.WaitForViews)
	return srv, srv.NewApp(), db
}

func registerAndLogin(t *testing.T, app *fiber.App, name string) (uint, string) {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"

	status, env := doJSON(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": name, "email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	var login LoginResponse
	decodeData(t, env, &login)
	require.NotEmpty(t, login.Token)
	return login.UserID, login.Token
}

func createArticle(t *testing.T, app *fiber.App, token, title string) uint {
	t.Helper()
	status, env := doJSON(t, app, http.MethodPost, "/api/articles/add",
		map[string]string{"title": title, "content": "Some *markdown*"}, bearer(token)...)
	require.Equal(t, http.StatusCreated, status, env.Message)

	var a models.Article
	decodeData(t, env, &a)
	return a.ID
}

func TestIntegration_RegisterAndLogin(t *testing.T) {
	_, app, _ := newIntegrationServer(t, false)

	userID, token := registerAndLogin(t, app, "Ada")

	status, env := doJSON(t, app, http.MethodGet, "/api/users/current", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, status)
	var me models.User
	decodeData(t, env, &me)
	assert.Equal(t, userID, me.ID)
	assert.Equal(t, "http://localhost:5000/uploads/def_avatar.jpg", me.Avatar)
	assert.NotContains(t, fmt.Sprint(env.Data), "password")

	status, env = doJSON(t, app, http.MethodPost, "/api/users/register", map[string]string{
		"name": "Ada Again", "email": "ada@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeConflict, env.ErrorCode)

	status, env = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email": "ada@example.com", "password": "wrong-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, _ = doJSON(t, app, http.MethodPost, "/api/users/login", map[string]string{
		"email": "nobody@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = doJSON(t, app, http.MethodPost, "/api/users/profile",
		map[string]string{"name": "Ada L."}, bearer(token)...)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &me)
	assert.Equal(t, "Ada L.", me.Name)

	status, _ = doJSON(t, app, http.MethodPost, "/api/users/profile",
		map[string]string{"avatar": "x.png"}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIntegration_CommentThread(t *testing.T) {
	_, app, _ := newIntegrationServer(t, true)
	_, adaToken := registerAndLogin(t, app, "Ada")
	_, graceToken := registerAndLogin(t, app, "Grace")
	articleID := createArticle(t, app, adaToken, "Trees")

	base := fmt.Sprintf("/api/articles/%d/comments", articleID)

	status, env := doJSON(t, app, http.MethodPost, base, map[string]string{"text": "Hello"}, bearer(adaToken)...)
	require.Equal(t, http.StatusOK, status, env.Message)
	var hello models.Comment
	decodeData(t, env, &hello)
	assert.True(t, hello.IsLeaf)
	assert.Equal(t, "Ada", hello.Author.Name)

	status, env = doJSON(t, app, http.MethodPost, fmt.Sprintf("%s/%d/replies", base, hello.ID),
		map[string]string{"comment": "Hi"}, bearer(graceToken)...)
	require.Equal(t, http.StatusOK, status, env.Message)
	var hi models.Comment
	decodeData(t, env, &hi)
	assert.Equal(t, articleID, hi.ArticleID)

	status, env = doJSON(t, app, http.MethodPost, base, map[string]string{"text": "Second"}, bearer(graceToken)...)
	require.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, app, http.MethodGet, base, nil, bearer(adaToken)...)
	require.Equal(t, http.StatusOK, status)
	var top []models.Comment
	decodeData(t, env, &top)
	require.Len(t, top, 2)
	assert.Equal(t, "Hello", top[0].Text)
	assert.False(t, top[0].IsLeaf)
	require.Len(t, top[0].Replies, 1)
	assert.Equal(t, "Hi", top[0].Replies[0].Text)
	assert.Equal(t, "Grace", top[0].Replies[0].Author.Name)
	assert.Equal(t, "Second", top[1].Text)
	assert.Empty(t, top[1].Replies)

	status, env = doJSON(t, app, http.MethodGet, base+"?page=2&limit=1", nil, bearer(adaToken)...)
	require.Equal(t, http.StatusOK, status)
	decodeData(t, env, &top)
	require.Len(t, top, 1)
	assert.Equal(t, "Second", top[0].Text)

	status, env = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/comments/%d/replies", hello.ID), nil, bearer(adaToken)...)
	require.Equal(t, http.StatusOK, status)
	var replies []models.Comment
	decodeData(t, env, &replies)
	require.Len(t, replies, 1)
	assert.Equal(t, hi.ID, replies[0].ID)

	for i := 1; i <= 2; i++ {
		status, env = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/comments/%d/like", hi.ID), nil, bearer(adaToken)...)
		require.Equal(t, http.StatusOK, status)
		var liked models.Comment
		decodeData(t, env, &liked)
		assert.Equal(t, int64(i), liked.Likes)
	}

	// The reply route checks the parent belongs to the article in the path.
	other := createArticle(t, app, adaToken, "Other")
	status, _ = doJSON(t, app, http.MethodPost, fmt.Sprintf("/api/articles/%d/comments/%d/replies", other, hello.ID),
		map[string]string{"text": "misplaced"}, bearer(adaToken)...)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/articles/9999/comments", nil, bearer(adaToken)...)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = doJSON(t, app, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "No token", env.Message)
}

func TestIntegration_ArticleViewsAndLikes(t *testing.T) {
	srv, app, db := newIntegrationServer(t, true)
	_, token := registerAndLogin(t, app, "Ada")
	articleID := createArticle(t, app, token, "Counting")
	path := fmt.Sprintf("/api/articles/%d", articleID)

	for i := 0; i < 2; i++ {
		status, env := doJSON(t, app, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, status)
		var a models.Article
		decodeData(t, env, &a)
		assert.Contains(t, a.ContentHTML, "<em>markdown</em>")
		srv.articleService.WaitForViews()
	}

	var stored models.Article
	require.NoError(t, db.First(&stored, articleID).Error)
	assert.Equal(t, int64(2), stored.TotalViews)

	status, env := doJSON(t, app, http.MethodPost, path+"/like", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Article liked", env.Message)

	status, env = doJSON(t, app, http.MethodPost, path+"/like", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Article already liked", env.Message)

	var likes int64
	require.NoError(t, db.Model(&models.ArticleLike{}).Where("article_id = ?", articleID).Count(&likes).Error)
	assert.Equal(t, int64(1), likes)

	status, env = doJSON(t, app, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	var a models.Article
	decodeData(t, env, &a)
	assert.Equal(t, int64(1), a.LikeCount)
	require.Len(t, a.Likes, 1)
	assert.Equal(t, "Ada", a.Likes[0].Name)

	status, env = doJSON(t, app, http.MethodGet, "/api/articles", nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.Article
	decodeData(t, env, &list)
	require.Len(t, list, 1)

	status, _ = doJSON(t, app, http.MethodGet, "/api/articles/9999", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doJSON(t, app, http.MethodPost, "/api/articles/9999/like", nil, bearer(token)...)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIntegration_LogoutRevokesToken(t *testing.T) {
	_, app, _ := newIntegrationServer(t, true)
	_, token := registerAndLogin(t, app, "Ada")

	status, _ := doJSON(t, app, http.MethodPost, "/api/users/logout", nil, bearer(token)...)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, app, http.MethodGet, "/api/users/current", nil, bearer(token)...)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token is not valid", env.Message)
}

func TestIntegration_LogoutWithoutRedisStillSucceeds(t *testing.T) {
	_, app, _ := newIntegrationServer(t, false)
	_, token := registerAndLogin(t, app, "Ada")

	status, _ := doJSON(t, app, http.MethodPost, "/api/users/logout", nil, bearer(token)...)
	assert.Equal(t, http.StatusOK, status)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, token string, files map[string][]byte, contentType string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, name))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func TestIntegration_UploadAndAttach(t *testing.T) {
	srv, app, _ := newIntegrationServer(t, false)
	_, token := registerAndLogin(t, app, "Ada")

	resp, err := app.Test(uploadRequest(t, token, map[string][]byte{"dot.png": pngBytes(t)}, "image/png"), -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	var atts []models.Attachment
	decodeData(t, env, &atts)
	require.Len(t, atts, 1)
	assert.Equal(t, "image/png", atts[0].MimeType)
	assert.True(t, strings.HasPrefix(atts[0].Filename, "files-"))
	assert.NotEmpty(t, atts[0].PreviewPath)

	// Served back through the static route.
	rel := strings.TrimPrefix(atts[0].Path, srv.config.PublicBaseURL)
	_, statErr := os.Stat(filepath.Join(srv.config.UploadDir, strings.TrimPrefix(rel, "/uploads/")))
	require.NoError(t, statErr)
	static, err := app.Test(httptest.NewRequest(http.MethodGet, rel, nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, static.StatusCode)
	_ = static.Body.Close()

	status, env := doJSON(t, app, http.MethodPost, "/api/articles/add", map[string]interface{}{
		"title": "With picture", "content": "see below", "attachments": []uint{atts[0].ID},
	}, bearer(token)...)
	require.Equal(t, http.StatusCreated, status, env.Message)
	var a models.Article
	decodeData(t, env, &a)
	require.Len(t, a.Attachments, 1)
	assert.Equal(t, atts[0].ID, a.Attachments[0].ID)

	status, _ = doJSON(t, app, http.MethodPost, "/api/articles/add", map[string]interface{}{
		"title": "Dangling", "content": "x", "attachments": []uint{4242},
	}, bearer(token)...)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestIntegration_UploadRejectsDisallowedType(t *testing.T) {
	_, app, _ := newIntegrationServer(t, false)
	_, token := registerAndLogin(t, app, "Ada")

	resp, err := app.Test(uploadRequest(t, token, map[string][]byte{"run.sh": []byte("#!/bin/sh\n")}, "text/x-sh"), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_Health(t *testing.T) {
	_, app, _ := newIntegrationServer(t, true)
	status, _ := doJSON(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	_, noRedis, _ := newIntegrationServer(t, false)
	resp, err = noRedis.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}
