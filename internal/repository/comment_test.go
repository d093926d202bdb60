package repository

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"testing"

	"inkwell/internal/models"
	"inkwell/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newComment(author *models.User, text string) *models.Comment {
	return &models.Comment{Author: author.Snapshot(), Text: text}
}

func TestCommentRepository_IncrementLikesStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET "likes"=likes + $1 WHERE id = $2`)).
		WithArgs(1, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "comments" WHERE "comments"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "article_id", "text", "is_leaf", "likes"}).
			AddRow(9, 1, "hello", true, 4))

	comment, err := repo.IncrementLikes(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(4), comment.Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_IncrementLikesMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "comments" SET "likes"=likes + $1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.IncrementLikes(context.Background(), 404)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_CreateTopLevel(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Ada")
	a := testutil.CreateArticle(t, db, u, "First")

	c := newComment(u, "hello")
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, c))

	assert.NotZero(t, c.ID)
	assert.Equal(t, a.ID, c.ArticleID)
	assert.True(t, c.IsLeaf)
	assert.Empty(t, c.Replies)

	var stored models.Article
	require.NoError(t, db.First(&stored, a.ID).Error)
	assert.Equal(t, int64(1), stored.CommentCount)

	var edges int64
	require.NoError(t, db.Model(&models.ArticleComment{}).Where("article_id = ? AND comment_id = ?", a.ID, c.ID).Count(&edges).Error)
	assert.Equal(t, int64(1), edges)
}

func TestCommentRepository_CreateTopLevelMissingArticleLeavesNoOrphan(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	u := testutil.CreateUser(t, db, "Ada")

	err := repo.CreateTopLevel(context.Background(), 999, newComment(u, "lost"))
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCommentRepository_CreateReplyFlipsParentLeaf(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, db, "Ada")
	u2 := testutil.CreateUser(t, db, "Grace")
	a := testutil.CreateArticle(t, db, u1, "First")

	parent := newComment(u1, "hello")
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, parent))

	reply := newComment(u2, "hi")
	require.NoError(t, repo.CreateReply(ctx, parent.ID, reply))
	assert.True(t, reply.IsLeaf)
	assert.Equal(t, a.ID, reply.ArticleID, "replies inherit the tree's article")

	stored, err := repo.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsLeaf)
	assert.Equal(t, int64(1), stored.ReplyCount)

	// A second reply keeps the parent a branch and appends after the first.
	second := newComment(u1, "again")
	require.NoError(t, repo.CreateReply(ctx, parent.ID, second))

	replies, err := repo.ListReplies(ctx, parent.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "hi", replies[0].Text)
	assert.Equal(t, "again", replies[1].Text)

	var article models.Article
	require.NoError(t, db.First(&article, a.ID).Error)
	assert.Equal(t, int64(1), article.CommentCount, "replies are not top-level comments")
}

func TestCommentRepository_CreateReplyMissingParent(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	u := testutil.CreateUser(t, db, "Ada")

	err := repo.CreateReply(context.Background(), 42, newComment(u, "orphan"))
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	var n int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCommentRepository_ListTopLevelPagesInAppendOrder(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Ada")
	a := testutil.CreateArticle(t, db, u, "First")
	other := testutil.CreateArticle(t, db, u, "Second")

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.CreateTopLevel(ctx, a.ID, newComment(u, fmt.Sprintf("c%d", i))))
		require.NoError(t, repo.CreateTopLevel(ctx, other.ID, newComment(u, fmt.Sprintf("other%d", i))))
	}

	var seen []string
	for offset := 0; offset < 6; offset += 2 {
		page, err := repo.ListTopLevel(ctx, a.ID, 2, offset)
		require.NoError(t, err)
		for _, c := range page {
			seen = append(seen, c.Text)
		}
	}
	assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4"}, seen)
}

func TestCommentRepository_RepliesOf(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Ada")
	a := testutil.CreateArticle(t, db, u, "First")

	p1 := newComment(u, "p1")
	p2 := newComment(u, "p2")
	leaf := newComment(u, "leaf")
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, p1))
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, p2))
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, leaf))
	require.NoError(t, repo.CreateReply(ctx, p2.ID, newComment(u, "p2-a")))
	require.NoError(t, repo.CreateReply(ctx, p1.ID, newComment(u, "p1-a")))
	require.NoError(t, repo.CreateReply(ctx, p2.ID, newComment(u, "p2-b")))

	got, err := repo.RepliesOf(ctx, []uint{p1.ID, p2.ID, leaf.ID})
	require.NoError(t, err)

	texts := func(cs []models.Comment) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.Text)
		}
		return out
	}
	assert.Equal(t, []string{"p1-a"}, texts(got[p1.ID]))
	assert.Equal(t, []string{"p2-a", "p2-b"}, texts(got[p2.ID]))
	assert.Empty(t, got[leaf.ID])

	empty, err := repo.RepliesOf(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCommentRepository_ConcurrentRepliesAndLikes(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db, nil)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "Ada")
	a := testutil.CreateArticle(t, db, u, "Busy")
	parent := newComment(u, "parent")
	require.NoError(t, repo.CreateTopLevel(ctx, a.ID, parent))

	const replies, likes = 8, 12
	var wg sync.WaitGroup
	for i := 0; i < replies; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.CreateReply(ctx, parent.ID, newComment(u, fmt.Sprintf("reply %d", i))))
		}(i)
	}
	for i := 0; i < likes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementLikes(ctx, parent.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var edges int64
	require.NoError(t, db.Model(&models.CommentReply{}).Where("parent_id = ?", parent.ID).Count(&edges).Error)
	assert.Equal(t, int64(replies), edges)

	stored, err := repo.GetByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsLeaf)
	assert.Equal(t, edges, stored.ReplyCount)
	assert.Equal(t, int64(likes), stored.Likes)

	listed, err := repo.ListReplies(ctx, parent.ID, 100, 0)
	require.NoError(t, err)
	assert.Len(t, listed, replies)
}
