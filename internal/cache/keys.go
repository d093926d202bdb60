package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	ArticleKeyPrefix   = "article:%d"
	BlacklistKeyPrefix = "jwt:blacklist:%s"
	CommentChannelFmt  = "article:%d:comments"

	// CommentChannelPattern matches every article's comment channel.
	CommentChannelPattern = "article:*:comments"
)

const (
	UserTTL = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func ArticleKey(articleID uint) string {
	return fmt.Sprintf(ArticleKeyPrefix, articleID)
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(BlacklistKeyPrefix, jti)
}

// CommentChannel is the pub/sub channel carrying an article's comment events.
func CommentChannel(articleID uint) string {
	return fmt.Sprintf(CommentChannelFmt, articleID)
}
