// Package service holds the application's use cases: validation, author
// resolution and event publication around the repositories.
package service

import (
	"context"
	"unicode/utf8"

	"inkwell/internal/content"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// MaxCommentLength is the longest comment text accepted, in runes.
const MaxCommentLength = 2000

// CommentPublisher delivers committed comment events to live subscribers.
type CommentPublisher interface {
	PublishComment(ctx context.Context, ev notifications.CommentEvent) error
}

type CommentService struct {
	commentRepo repository.CommentRepository
	articleRepo repository.ArticleRepository
	userRepo    repository.UserRepository
	publisher   CommentPublisher
}

type CreateCommentInput struct {
	UserID    uint
	ArticleID uint
	Text      string
}

// CreateReplyInput describes a reply. A non-zero ArticleID also requires
// the parent to belong to that article.
type CreateReplyInput struct {
	UserID    uint
	ArticleID uint
	ParentID  uint
	Text      string
}

// NewCommentService wires the comment use cases; publisher may be nil.
func NewCommentService(
	commentRepo repository.CommentRepository,
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	publisher CommentPublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		articleRepo: articleRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

func (s *CommentService) CreateTopLevelComment(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "CreateTopLevelComment",
		attribute.Int64("article.id", int64(in.ArticleID)))
	defer func() { span.Finish(err) }()

	text, err := normalizeCommentText(in.Text)
	if err != nil {
		return nil, err
	}
	if err := s.requireArticle(ctx, in.ArticleID); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	comment = &models.Comment{Author: author.Snapshot(), Text: text}
	if err := s.commentRepo.CreateTopLevel(ctx, in.ArticleID, comment); err != nil {
		return nil, err
	}
	observability.CommentsCreated.WithLabelValues("top_level").Inc()

	s.publish(ctx, notifications.CommentEvent{
		Type:      notifications.EventCommentCreated,
		ArticleID: in.ArticleID,
		Comment:   *comment,
	})
	return comment, nil
}

func (s *CommentService) CreateReply(ctx context.Context, in CreateReplyInput) (reply *models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "CreateReply",
		attribute.Int64("comment.parent_id", int64(in.ParentID)))
	defer func() { span.Finish(err) }()

	text, err := normalizeCommentText(in.Text)
	if err != nil {
		return nil, err
	}

	parent, err := s.commentRepo.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, err
	}
	if in.ArticleID != 0 && parent.ArticleID != in.ArticleID {
		return nil, models.NewNotFoundError("Comment", in.ParentID)
	}

	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	reply = &models.Comment{Author: author.Snapshot(), Text: text}
	if err := s.commentRepo.CreateReply(ctx, in.ParentID, reply); err != nil {
		return nil, err
	}
	observability.CommentsCreated.WithLabelValues("reply").Inc()

	parentID := in.ParentID
	s.publish(ctx, notifications.CommentEvent{
		Type:      notifications.EventCommentReplied,
		ArticleID: reply.ArticleID,
		ParentID:  &parentID,
		Comment:   *reply,
	})
	return reply, nil
}

// LikeComment adds one like and returns the comment with its direct replies
// attached, the same shape the list operations return. Likes are a plain
// counter, not a per-user set.
func (s *CommentService) LikeComment(ctx context.Context, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.IncrementLikes(ctx, commentID)
	if err != nil {
		observability.LikesRecorded.WithLabelValues("comment", "error").Inc()
		return nil, err
	}
	observability.LikesRecorded.WithLabelValues("comment", "liked").Inc()

	expanded, err := s.expand(ctx, []models.Comment{*comment})
	if err != nil {
		return nil, err
	}
	return &expanded[0], nil
}

// ListTopLevelComments returns one page of the article's comments, each with
// its direct replies attached.
func (s *CommentService) ListTopLevelComments(ctx context.Context, articleID uint, page Page) (comments []models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "ListTopLevelComments",
		attribute.Int64("article.id", int64(articleID)))
	defer func() { span.Finish(err) }()

	if err := s.requireArticle(ctx, articleID); err != nil {
		return nil, err
	}
	comments, err = s.commentRepo.ListTopLevel(ctx, articleID, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, comments)
}

// ListReplies returns one page of a comment's direct replies, each with its
// own direct replies attached.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint, page Page) (replies []models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "ListReplies",
		attribute.Int64("comment.id", int64(commentID)))
	defer func() { span.Finish(err) }()

	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	replies, err = s.commentRepo.ListReplies(ctx, commentID, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	return s.expand(ctx, replies)
}

// expand attaches one level of children to each comment. The nested level is
// not paginated.
func (s *CommentService) expand(ctx context.Context, comments []models.Comment) ([]models.Comment, error) {
	if len(comments) == 0 {
		return []models.Comment{}, nil
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		if !c.IsLeaf {
			ids = append(ids, c.ID)
		}
	}
	children, err := s.commentRepo.RepliesOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		kids := children[comments[i].ID]
		if kids == nil {
			kids = []models.Comment{}
		}
		comments[i].Replies = kids
	}
	return comments, nil
}

func (s *CommentService) requireArticle(ctx context.Context, articleID uint) error {
	ok, err := s.articleRepo.Exists(ctx, articleID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Article", articleID)
	}
	return nil
}

func (s *CommentService) publish(ctx context.Context, ev notifications.CommentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishComment(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "comment event not published",
			"type", ev.Type, "article_id", ev.ArticleID, "error", err)
	}
}

func normalizeCommentText(raw string) (string, error) {
	text := content.SanitizeText(raw)
	if text == "" {
		return "", models.NewValidationError("Comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return "", models.NewValidationError("Comment too long (max 2000 characters)")
	}
	return text, nil
}
