package models

import "time"

// Comment is one node of an article's comment forest. Children are never
// embedded; they are referenced through CommentReply edges and loaded on demand.
type Comment struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	ArticleID  uint           `gorm:"not null;index" json:"articleId"`
	Author     AuthorSnapshot `gorm:"embedded;embeddedPrefix:author_" json:"author"`
	Text       string         `gorm:"type:text;not null" json:"text"`
	IsLeaf     bool           `gorm:"not null" json:"isLeaf"`
	Likes      int64          `gorm:"not null;default:0" json:"likes"`
	ReplyCount int64          `gorm:"not null;default:0" json:"replyCount"`
	CreatedAt  time.Time      `json:"createdAt"`

	// Replies holds whatever slice of children the caller loaded.
	Replies []Comment `gorm:"-" json:"replies"`
}

// ArticleComment is an ordered edge from an article to one of its top-level
// comments. Insertion order (the edge ID) is the display order.
type ArticleComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ArticleID uint      `gorm:"not null;index:idx_article_comments_article_id" json:"articleId"`
	CommentID uint      `gorm:"not null;uniqueIndex" json:"commentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentReply is an ordered edge from a parent comment to a reply. The unique
// child column keeps every comment owned by exactly one parent.
type CommentReply struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ParentID  uint      `gorm:"not null;index" json:"parentId"`
	ChildID   uint      `gorm:"not null;uniqueIndex" json:"childId"`
	CreatedAt time.Time `json:"createdAt"`
}
