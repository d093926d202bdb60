package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockUserRepository is a mock of the UserRepository interface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockArticleRepository is a mock of the ArticleRepository interface
type MockArticleRepository struct {
	mock.Mock
}

func (m *MockArticleRepository) Create(ctx context.Context, article *models.Article, attachmentIDs []uint) error {
	args := m.Called(ctx, article, attachmentIDs)
	return args.Error(0)
}

func (m *MockArticleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Article), args.Error(1)
}

func (m *MockArticleRepository) Exists(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockArticleRepository) List(ctx context.Context, limit, offset int) ([]*models.Article, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Article), args.Error(1)
}

func (m *MockArticleRepository) IncrementView(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockArticleRepository) AddLike(ctx context.Context, like *models.ArticleLike) (bool, error) {
	args := m.Called(ctx, like)
	return args.Bool(0), args.Error(1)
}

func (m *MockArticleRepository) AppendCommentRef(ctx context.Context, tx *gorm.DB, articleID, commentID uint) error {
	args := m.Called(ctx, tx, articleID, commentID)
	return args.Error(0)
}

// MockCommentRepository is a mock of the CommentRepository interface
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) CreateTopLevel(ctx context.Context, articleID uint, comment *models.Comment) error {
	args := m.Called(ctx, articleID, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) CreateReply(ctx context.Context, parentID uint, comment *models.Comment) error {
	args := m.Called(ctx, parentID, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) IncrementLikes(ctx context.Context, id uint) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListTopLevel(ctx context.Context, articleID uint, limit, offset int) ([]models.Comment, error) {
	args := m.Called(ctx, articleID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]models.Comment, error) {
	args := m.Called(ctx, parentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) RepliesOf(ctx context.Context, parentIDs []uint) (map[uint][]models.Comment, error) {
	args := m.Called(ctx, parentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint][]models.Comment), args.Error(1)
}

// asUser makes every request on app look authenticated as userID.
func asUser(app *fiber.App, userID uint) {
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
}

// doJSON sends body as JSON and decodes the response envelope.
func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers ...string) (int, models.Envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var env models.Envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

// decodeData re-marshals the envelope's data into dst.
func decodeData(t *testing.T, env models.Envelope, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func bearer(token string) []string {
	return []string{fiber.HeaderAuthorization, "Bearer " + token}
}
