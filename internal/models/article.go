package models

import "time"

// Article is a published post. Author is a snapshot taken at creation time.
type Article struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:200;not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Author       AuthorSnapshot `gorm:"embedded;embeddedPrefix:author_" json:"author"`
	TotalViews   int64          `gorm:"not null;default:0" json:"totalViews"`
	LikeCount    int64          `gorm:"not null;default:0" json:"likeCount"`
	CommentCount int64          `gorm:"not null;default:0" json:"commentCount"`
	CreatedAt    time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`

	Likes       []ArticleLike `gorm:"foreignKey:ArticleID" json:"likes"`
	Attachments []Attachment  `gorm:"-" json:"attachments"`
	ContentHTML string        `gorm:"-" json:"contentHtml,omitempty"`
}

// ArticleLike records one user's like. (ArticleID, UserID) is unique so a
// conditional insert is enough to deduplicate concurrent likers.
type ArticleLike struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ArticleID uint      `gorm:"not null;uniqueIndex:idx_article_user" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_article_user" json:"userId"`
	Name      string    `gorm:"size:100" json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArticleAttachment orders an article's attachments.
type ArticleAttachment struct {
	ArticleID    uint `gorm:"primaryKey"`
	AttachmentID uint `gorm:"primaryKey"`
	Position     int  `gorm:"not null"`
}
