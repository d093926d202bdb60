// Package seed fills a database with demo users, articles and comment
// threads. It is meant for development and tests only.
package seed

import (
	"context"
	"fmt"
	"math/rand"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "password123"

// Options controls how much data Run creates.
type Options struct {
	Users              int
	Articles           int
	CommentsPerArticle int
	// MaxReplies bounds the replies generated under each comment.
	MaxReplies int
	// MaxDepth bounds how deep reply chains go; 1 means replies to
	// top-level comments only.
	MaxDepth   int
	Clean      bool
	SkipBcrypt bool
	// Seed makes the generated content reproducible when non-zero.
	Seed int64
}

// Summary counts what Run created.
type Summary struct {
	Users    int
	Articles int
	Comments int
	Likes    int
}

// Seeder writes through the repositories so the comment links, counters and
// like uniqueness hold exactly as they do for API traffic.
type Seeder struct {
	db       *gorm.DB
	users    repository.UserRepository
	articles repository.ArticleRepository
	comments repository.CommentRepository
	faker    *gofakeit.Faker
	rnd      *rand.Rand
	opts     Options
}

// NewSeeder binds a seeder to db. Caching is skipped.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}
	src := opts.Seed
	if src == 0 {
		src = rand.Int63()
	}
	return &Seeder{
		db:       db,
		users:    repository.NewUserRepository(db, nil),
		articles: repository.NewArticleRepository(db, nil, 0),
		comments: repository.NewCommentRepository(db, nil),
		faker:    gofakeit.New(src),
		rnd:      rand.New(rand.NewSource(src)),
		opts:     opts,
	}
}

// ClearAll removes every row the application owns, children first.
func (s *Seeder) ClearAll() error {
	tables := []interface{}{
		&models.CommentReply{},
		&models.ArticleComment{},
		&models.Comment{},
		&models.ArticleAttachment{},
		&models.ArticleLike{},
		&models.Article{},
		&models.Attachment{},
		&models.User{},
	}
	for _, t := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	middleware.Logger.Info("seed: database cleared")
	return nil
}

// Run creates users, then articles by random authors, then comment threads
// and likes on every article.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	if s.opts.Clean {
		if err := s.ClearAll(); err != nil {
			return sum, err
		}
	}

	users, err := s.SeedUsers(ctx, s.opts.Users)
	if err != nil {
		return sum, err
	}
	sum.Users = len(users)
	if len(users) == 0 {
		return sum, nil
	}

	for i := 0; i < s.opts.Articles; i++ {
		author := users[s.rnd.Intn(len(users))]
		article, err := s.CreateArticle(ctx, author)
		if err != nil {
			return sum, err
		}
		sum.Articles++

		n, err := s.SeedThread(ctx, article.ID, users, s.opts.CommentsPerArticle)
		if err != nil {
			return sum, err
		}
		sum.Comments += n

		likes, err := s.SeedLikes(ctx, article.ID, users)
		if err != nil {
			return sum, err
		}
		sum.Likes += likes
	}

	middleware.Logger.Info("seed: done",
		"users", sum.Users, "articles", sum.Articles, "comments", sum.Comments, "likes", sum.Likes)
	return sum, nil
}

// SeedUsers creates n users sharing DemoPassword.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]*models.User, error) {
	password := DemoPassword
	if !s.opts.SkipBcrypt {
		hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		password = string(hash)
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		u := s.BuildUser()
		u.Password = password
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// SeedThread adds n top-level comments to the article, each with a random
// reply subtree. It returns the number of comments written.
func (s *Seeder) SeedThread(ctx context.Context, articleID uint, users []*models.User, n int) (int, error) {
	written := 0
	for i := 0; i < n; i++ {
		c := s.BuildComment(s.pick(users))
		if err := s.comments.CreateTopLevel(ctx, articleID, c); err != nil {
			return written, err
		}
		written++

		replies, err := s.seedReplies(ctx, c.ID, users, 1)
		if err != nil {
			return written, err
		}
		written += replies
	}
	return written, nil
}

func (s *Seeder) seedReplies(ctx context.Context, parentID uint, users []*models.User, depth int) (int, error) {
	if depth > s.opts.MaxDepth || s.opts.MaxReplies <= 0 {
		return 0, nil
	}
	written := 0
	for i, n := 0, s.rnd.Intn(s.opts.MaxReplies+1); i < n; i++ {
		reply := s.BuildComment(s.pick(users))
		if err := s.comments.CreateReply(ctx, parentID, reply); err != nil {
			return written, err
		}
		written++

		more, err := s.seedReplies(ctx, reply.ID, users, depth+1)
		if err != nil {
			return written, err
		}
		written += more
	}
	return written, nil
}

// SeedLikes has a random subset of users like the article.
func (s *Seeder) SeedLikes(ctx context.Context, articleID uint, users []*models.User) (int, error) {
	likes := 0
	for _, u := range users {
		if s.rnd.Intn(3) != 0 {
			continue
		}
		snap := u.Snapshot()
		ok, err := s.articles.AddLike(ctx, &models.ArticleLike{
			ArticleID: articleID,
			UserID:    snap.UserID,
			Name:      snap.Name,
			Avatar:    snap.Avatar,
		})
		if err != nil {
			return likes, err
		}
		if ok {
			likes++
		}
	}
	return likes, nil
}

func (s *Seeder) pick(users []*models.User) *models.User {
	return users[s.rnd.Intn(len(users))]
}
