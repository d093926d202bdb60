package service

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"inkwell/internal/content"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	MaxTitleLength = 200
	// viewTimeout bounds a detached view increment.
	viewTimeout = 5 * time.Second
)

type ArticleService struct {
	articleRepo repository.ArticleRepository
	userRepo    repository.UserRepository
	renderer    *content.Renderer
	views       sync.WaitGroup
}

type CreateArticleInput struct {
	UserID        uint
	Title         string
	Content       string
	AttachmentIDs []uint
}

// NewArticleService wires the article use cases; renderer may be nil, in
// which case contentHtml is left empty.
func NewArticleService(
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	renderer *content.Renderer,
) *ArticleService {
	return &ArticleService{
		articleRepo: articleRepo,
		userRepo:    userRepo,
		renderer:    renderer,
	}
}

func (s *ArticleService) CreateArticle(ctx context.Context, in CreateArticleInput) (article *models.Article, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "CreateArticle")
	defer func() { span.Finish(err) }()

	title := content.SanitizeText(in.Title)
	if title == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, models.NewValidationError("Title too long (max 200 characters)")
	}
	if in.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	article = &models.Article{
		Title:   title,
		Content: in.Content,
		Author:  author.Snapshot(),
	}
	if err := s.articleRepo.Create(ctx, article, dedupeIDs(in.AttachmentIDs)); err != nil {
		return nil, err
	}
	s.render(article)
	return article, nil
}

// GetArticle returns the article without counting a view.
func (s *ArticleService) GetArticle(ctx context.Context, id uint) (*models.Article, error) {
	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fillArticleSlices(article)
	s.render(article)
	return article, nil
}

// ViewArticle returns the article and counts a view in the background. The
// returned totalViews is the value read before the increment.
func (s *ArticleService) ViewArticle(ctx context.Context, id uint) (*models.Article, error) {
	article, err := s.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	s.views.Add(1)
	go func() {
		defer s.views.Done()
		vctx, cancel := context.WithTimeout(detached, viewTimeout)
		defer cancel()
		if err := s.RecordView(vctx, id); err != nil {
			middleware.Logger.WarnContext(vctx, "view increment failed", "article_id", id, "error", err)
		}
	}()
	return article, nil
}

// RecordView adds exactly one to the article's view counter.
func (s *ArticleService) RecordView(ctx context.Context, id uint) error {
	if err := s.articleRepo.IncrementView(ctx, id); err != nil {
		return err
	}
	observability.ArticleViews.Inc()
	return nil
}

// WaitForViews blocks until background view increments have finished.
func (s *ArticleService) WaitForViews() {
	s.views.Wait()
}

// ListArticles returns one page of articles, newest first. Likes and
// attachments are only loaded on the single-article read.
func (s *ArticleService) ListArticles(ctx context.Context, page Page) ([]*models.Article, error) {
	articles, err := s.articleRepo.List(ctx, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	for _, a := range articles {
		fillArticleSlices(a)
	}
	return articles, nil
}

// LikeArticle records the user's like. liked is false when the user had
// already liked the article; that is not an error.
func (s *ArticleService) LikeArticle(ctx context.Context, articleID, userID uint) (liked bool, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ArticleService", "LikeArticle",
		attribute.Int64("article.id", int64(articleID)))
	defer func() { span.Finish(err) }()

	ok, err := s.articleRepo.Exists(ctx, articleID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, models.NewNotFoundError("Article", articleID)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	snap := user.Snapshot()
	liked, err = s.articleRepo.AddLike(ctx, &models.ArticleLike{
		ArticleID: articleID,
		UserID:    snap.UserID,
		Name:      snap.Name,
		Avatar:    snap.Avatar,
	})
	if err != nil {
		observability.LikesRecorded.WithLabelValues("article", "error").Inc()
		return false, err
	}
	outcome := "liked"
	if !liked {
		outcome = "duplicate"
	}
	observability.LikesRecorded.WithLabelValues("article", outcome).Inc()
	span.AddAttributes(attribute.Bool("like.inserted", liked))
	return liked, nil
}

func (s *ArticleService) render(a *models.Article) {
	if s.renderer == nil {
		return
	}
	a.ContentHTML = s.renderer.Render(content.ArticleKey(a.ID, a.UpdatedAt.UnixNano()), a.Content)
}

func fillArticleSlices(a *models.Article) {
	if a.Likes == nil {
		a.Likes = []models.ArticleLike{}
	}
	if a.Attachments == nil {
		a.Attachments = []models.Attachment{}
	}
}

func dedupeIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
