package repository

import (
	"context"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CommentRepository persists comment nodes and the ordered edges that link
// them to articles and parent comments.
type CommentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	CreateTopLevel(ctx context.Context, articleID uint, comment *models.Comment) error
	CreateReply(ctx context.Context, parentID uint, comment *models.Comment) error
	IncrementLikes(ctx context.Context, id uint) (*models.Comment, error)
	ListTopLevel(ctx context.Context, articleID uint, limit, offset int) ([]models.Comment, error)
	ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]models.Comment, error)
	RepliesOf(ctx context.Context, parentIDs []uint) (map[uint][]models.Comment, error)
}

type commentRepository struct {
	db       *gorm.DB
	rdb      *redis.Client
	articles ArticleRepository
}

// NewCommentRepository returns a CommentRepository; rdb is only used to drop
// cached articles whose counters change and may be nil.
func NewCommentRepository(db *gorm.DB, rdb *redis.Client) CommentRepository {
	return &commentRepository{db: db, rdb: rdb, articles: NewArticleRepository(db, rdb, 0)}
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translate(err, "Comment", id)
	}
	return &comment, nil
}

// CreateTopLevel inserts comment and appends it to the article's comment list
// in one transaction, so a failure never leaves an unreachable comment behind.
func (r *commentRepository) CreateTopLevel(ctx context.Context, articleID uint, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()

	comment.ArticleID = articleID
	comment.IsLeaf = true
	comment.Likes = 0
	comment.ReplyCount = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Article{}).Where("id = ?", articleID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return models.NewNotFoundError("Article", articleID)
		}
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return r.articles.AppendCommentRef(ctx, tx, articleID, comment.ID)
	})
	if err != nil {
		return translate(err, "Article", articleID)
	}
	cache.Invalidate(ctx, r.rdb, cache.ArticleKey(articleID))
	comment.Replies = []models.Comment{}
	return nil
}

// CreateReply inserts comment under parentID. The child row, its edge and the
// parent's leaf flag change commit together.
func (r *commentRepository) CreateReply(ctx context.Context, parentID uint, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()

	comment.IsLeaf = true
	comment.Likes = 0
	comment.ReplyCount = 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent models.Comment
		if err := tx.Select("id", "article_id").First(&parent, parentID).Error; err != nil {
			return err
		}
		comment.ArticleID = parent.ArticleID

		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.CommentReply{ParentID: parentID, ChildID: comment.ID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Comment{}).
			Where("id = ?", parentID).
			UpdateColumns(map[string]interface{}{
				"is_leaf":     false,
				"reply_count": gorm.Expr("reply_count + ?", 1),
			}).Error
	})
	if err != nil {
		return translate(err, "Comment", parentID)
	}
	comment.Replies = []models.Comment{}
	return nil
}

// IncrementLikes adds one like and returns the updated comment.
func (r *commentRepository) IncrementLikes(ctx context.Context, id uint) (*models.Comment, error) {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return r.GetByID(ctx, id)
}

// ListTopLevel returns one page of the article's top-level comments in append order.
func (r *commentRepository) ListTopLevel(ctx context.Context, articleID uint, limit, offset int) ([]models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()

	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Select("comments.*").
		Joins("JOIN article_comments ON article_comments.comment_id = comments.id").
		Where("article_comments.article_id = ?", articleID).
		Order("article_comments.id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// ListReplies returns one page of parentID's direct replies in append order.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()

	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Select("comments.*").
		Joins("JOIN comment_replies ON comment_replies.child_id = comments.id").
		Where("comment_replies.parent_id = ?", parentID).
		Order("comment_replies.id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// RepliesOf loads every direct reply of each parent, keyed by parent ID and in
// append order. It issues two queries regardless of how many parents are given.
func (r *commentRepository) RepliesOf(ctx context.Context, parentIDs []uint) (map[uint][]models.Comment, error) {
	out := make(map[uint][]models.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}

	var edges []models.CommentReply
	if err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("id ASC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(edges) == 0 {
		return out, nil
	}

	childIDs := make([]uint, 0, len(edges))
	for _, e := range edges {
		childIDs = append(childIDs, e.ChildID)
	}
	var children []models.Comment
	if err := r.db.WithContext(ctx).Where("id IN ?", childIDs).Find(&children).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	byID := make(map[uint]models.Comment, len(children))
	for _, c := range children {
		byID[c.ID] = c
	}

	for _, e := range edges {
		child, ok := byID[e.ChildID]
		if !ok {
			continue
		}
		child.Replies = []models.Comment{}
		out[e.ParentID] = append(out[e.ParentID], child)
	}
	return out, nil
}
