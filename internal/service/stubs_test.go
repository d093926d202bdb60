package service

import (
	"context"
	"sync"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.Comment, error)
	createTopLevelFn func(context.Context, uint, *models.Comment) error
	createReplyFn    func(context.Context, uint, *models.Comment) error
	incrementLikesFn func(context.Context, uint) (*models.Comment, error)
	listTopLevelFn   func(context.Context, uint, int, int) ([]models.Comment, error)
	listRepliesFn    func(context.Context, uint, int, int) ([]models.Comment, error)
	repliesOfFn      func(context.Context, []uint) (map[uint][]models.Comment, error)
}

func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) CreateTopLevel(ctx context.Context, articleID uint, c *models.Comment) error {
	return s.createTopLevelFn(ctx, articleID, c)
}
func (s *commentRepoStub) CreateReply(ctx context.Context, parentID uint, c *models.Comment) error {
	return s.createReplyFn(ctx, parentID, c)
}
func (s *commentRepoStub) IncrementLikes(ctx context.Context, id uint) (*models.Comment, error) {
	return s.incrementLikesFn(ctx, id)
}
func (s *commentRepoStub) ListTopLevel(ctx context.Context, articleID uint, limit, offset int) ([]models.Comment, error) {
	return s.listTopLevelFn(ctx, articleID, limit, offset)
}
func (s *commentRepoStub) ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]models.Comment, error) {
	return s.listRepliesFn(ctx, parentID, limit, offset)
}
func (s *commentRepoStub) RepliesOf(ctx context.Context, ids []uint) (map[uint][]models.Comment, error) {
	return s.repliesOfFn(ctx, ids)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, ArticleID: 1, IsLeaf: true}, nil
		},
		createTopLevelFn: func(_ context.Context, articleID uint, c *models.Comment) error {
			c.ID, c.ArticleID, c.IsLeaf = 100, articleID, true
			c.Replies = []models.Comment{}
			return nil
		},
		createReplyFn: func(_ context.Context, _ uint, c *models.Comment) error {
			c.ID, c.ArticleID, c.IsLeaf = 200, 1, true
			c.Replies = []models.Comment{}
			return nil
		},
		incrementLikesFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, Likes: 1}, nil
		},
		listTopLevelFn: func(context.Context, uint, int, int) ([]models.Comment, error) { return nil, nil },
		listRepliesFn:  func(context.Context, uint, int, int) ([]models.Comment, error) { return nil, nil },
		repliesOfFn: func(context.Context, []uint) (map[uint][]models.Comment, error) {
			return map[uint][]models.Comment{}, nil
		},
	}
}

// articleRepoStub is a stub for repository.ArticleRepository.
type articleRepoStub struct {
	createFn           func(context.Context, *models.Article, []uint) error
	getByIDFn          func(context.Context, uint) (*models.Article, error)
	existsFn           func(context.Context, uint) (bool, error)
	listFn             func(context.Context, int, int) ([]*models.Article, error)
	incrementViewFn    func(context.Context, uint) error
	addLikeFn          func(context.Context, *models.ArticleLike) (bool, error)
	appendCommentRefFn func(context.Context, *gorm.DB, uint, uint) error
}

func (s *articleRepoStub) Create(ctx context.Context, a *models.Article, ids []uint) error {
	return s.createFn(ctx, a, ids)
}
func (s *articleRepoStub) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	return s.getByIDFn(ctx, id)
}
func (s *articleRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *articleRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Article, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *articleRepoStub) IncrementView(ctx context.Context, id uint) error {
	return s.incrementViewFn(ctx, id)
}
func (s *articleRepoStub) AddLike(ctx context.Context, like *models.ArticleLike) (bool, error) {
	return s.addLikeFn(ctx, like)
}
func (s *articleRepoStub) AppendCommentRef(ctx context.Context, tx *gorm.DB, articleID, commentID uint) error {
	return s.appendCommentRefFn(ctx, tx, articleID, commentID)
}

func noopArticleRepo() *articleRepoStub {
	return &articleRepoStub{
		createFn: func(_ context.Context, a *models.Article, _ []uint) error {
			a.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Article, error) {
			return &models.Article{ID: id, Title: "t", Content: "c"}, nil
		},
		existsFn:           func(context.Context, uint) (bool, error) { return true, nil },
		listFn:             func(context.Context, int, int) ([]*models.Article, error) { return nil, nil },
		incrementViewFn:    func(context.Context, uint) error { return nil },
		addLikeFn:          func(context.Context, *models.ArticleLike) (bool, error) { return true, nil },
		appendCommentRefFn: func(context.Context, *gorm.DB, uint, uint) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	createFn     func(context.Context, *models.User) error
	getByIDFn    func(context.Context, uint) (*models.User, error)
	getByEmailFn func(context.Context, string) (*models.User, error)
	updateFn     func(context.Context, *models.User) error
}

func (s *userRepoStub) Create(ctx context.Context, u *models.User) error { return s.createFn(ctx, u) }
func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error { return s.updateFn(ctx, u) }

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		createFn: func(_ context.Context, u *models.User) error {
			u.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "Ada", Email: "ada@example.com", Avatar: "a.png"}, nil
		},
		getByEmailFn: func(_ context.Context, email string) (*models.User, error) {
			return nil, models.NewNotFoundError("User", email)
		},
		updateFn: func(context.Context, *models.User) error { return nil },
	}
}

// publisherStub records published events.
type publisherStub struct {
	mu     sync.Mutex
	events []notifications.CommentEvent
	err    error
}

func (p *publisherStub) PublishComment(_ context.Context, ev notifications.CommentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *publisherStub) published() []notifications.CommentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notifications.CommentEvent(nil), p.events...)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected *models.AppError, got %T", err)
	require.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeInvalidInput)
}
