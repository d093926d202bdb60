package repository

import (
	"context"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository defines persistence operations for articles, their likes
// and their ordered top-level comment references.
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article, attachmentIDs []uint) error
	GetByID(ctx context.Context, id uint) (*models.Article, error)
	Exists(ctx context.Context, id uint) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*models.Article, error)
	IncrementView(ctx context.Context, id uint) error
	AddLike(ctx context.Context, like *models.ArticleLike) (bool, error)
	AppendCommentRef(ctx context.Context, tx *gorm.DB, articleID, commentID uint) error
}

type articleRepository struct {
	db  *gorm.DB
	rdb *redis.Client
	ttl time.Duration
}

// NewArticleRepository returns an ArticleRepository caching single-article
// reads for ttl; rdb may be nil.
func NewArticleRepository(db *gorm.DB, rdb *redis.Client, ttl time.Duration) ArticleRepository {
	return &articleRepository{db: db, rdb: rdb, ttl: ttl}
}

// Create inserts the article and links attachmentIDs in the given order.
func (r *articleRepository) Create(ctx context.Context, article *models.Article, attachmentIDs []uint) error {
	defer observability.TrackQuery("insert", "articles")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(attachmentIDs) > 0 {
			var found int64
			if err := tx.Model(&models.Attachment{}).Where("id IN ?", attachmentIDs).Count(&found).Error; err != nil {
				return err
			}
			if int(found) != len(attachmentIDs) {
				return models.NewValidationError("One or more attachments do not exist")
			}
		}

		if err := tx.Create(article).Error; err != nil {
			return err
		}

		if len(attachmentIDs) == 0 {
			return nil
		}
		links := make([]models.ArticleAttachment, 0, len(attachmentIDs))
		for i, id := range attachmentIDs {
			links = append(links, models.ArticleAttachment{ArticleID: article.ID, AttachmentID: id, Position: i})
		}
		return tx.Create(&links).Error
	})
	if err != nil {
		return translate(err, "Article", article.ID)
	}

	atts, err := r.attachmentsFor(ctx, article.ID)
	if err != nil {
		return translate(err, "Article", article.ID)
	}
	article.Attachments = atts
	article.Likes = []models.ArticleLike{}
	return nil
}

// GetByID reads through the article cache. Views are not invalidating writes,
// so a cached copy gets the live total_views laid over it.
func (r *articleRepository) GetByID(ctx context.Context, id uint) (*models.Article, error) {
	var article models.Article
	fetched := false
	err := cache.Aside(ctx, r.rdb, cache.ArticleKey(id), &article, r.ttl, func() error {
		fetched = true
		if err := r.db.WithContext(ctx).
			Preload("Likes", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			First(&article, id).Error; err != nil {
			return err
		}
		atts, err := r.attachmentsFor(ctx, id)
		if err != nil {
			return err
		}
		article.Attachments = atts
		return nil
	})
	if err != nil {
		return nil, translate(err, "Article", id)
	}
	if !fetched {
		var views []int64
		if err := r.db.WithContext(ctx).Model(&models.Article{}).
			Where("id = ?", id).
			Pluck("total_views", &views).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		if len(views) == 0 {
			return nil, models.NewNotFoundError("Article", id)
		}
		article.TotalViews = views[0]
	}
	return &article, nil
}

func (r *articleRepository) attachmentsFor(ctx context.Context, articleID uint) ([]models.Attachment, error) {
	atts := []models.Attachment{}
	err := r.db.WithContext(ctx).
		Joins("JOIN article_attachments ON article_attachments.attachment_id = attachments.id").
		Where("article_attachments.article_id = ?", articleID).
		Order("article_attachments.position ASC").
		Find(&atts).Error
	return atts, err
}

func (r *articleRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Article{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

// List returns articles newest first.
func (r *articleRepository) List(ctx context.Context, limit, offset int) ([]*models.Article, error) {
	defer observability.TrackQuery("select", "articles")()

	var articles []*models.Article
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&articles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

// IncrementView bumps total_views in place. The cached copy is kept; GetByID
// refreshes its view count on every hit.
func (r *articleRepository) IncrementView(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("total_views", gorm.Expr("total_views + ?", 1))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Article", id)
	}
	return nil
}

// AddLike inserts like unless the user already liked the article. It reports
// whether a new like was recorded.
func (r *articleRepository) AddLike(ctx context.Context, like *models.ArticleLike) (bool, error) {
	defer observability.TrackQuery("insert", "article_likes")()

	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true
		return tx.Model(&models.Article{}).
			Where("id = ?", like.ArticleID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	if inserted {
		cache.Invalidate(ctx, r.rdb, cache.ArticleKey(like.ArticleID))
	}
	return inserted, nil
}

// AppendCommentRef links an existing comment as the article's newest top-level
// comment. A non-nil tx makes the edge part of the caller's transaction, and
// the caller drops the cached article after commit. With a nil tx the edge
// commits on its own.
func (r *articleRepository) AppendCommentRef(ctx context.Context, tx *gorm.DB, articleID, commentID uint) error {
	if tx != nil {
		return appendCommentRef(tx.WithContext(ctx), articleID, commentID)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendCommentRef(tx, articleID, commentID)
	})
	if err != nil {
		return translate(err, "Article", articleID)
	}
	cache.Invalidate(ctx, r.rdb, cache.ArticleKey(articleID))
	return nil
}

// appendCommentRef inserts the ordering edge and bumps the article's comment
// counter. The edge insert is the append; no list is read back and rewritten.
func appendCommentRef(tx *gorm.DB, articleID, commentID uint) error {
	res := tx.Model(&models.Article{}).
		Where("id = ?", articleID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return tx.Create(&models.ArticleComment{ArticleID: articleID, CommentID: commentID}).Error
}
