// Package content cleans user text and renders article markdown.
package content

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

var strict = bluemonday.StrictPolicy()

// SanitizeText strips every HTML tag from s and trims surrounding space.
// Entities produced by the policy are decoded so plain text stays plain.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// Renderer turns article markdown into sanitized HTML and keeps recent
// renders in an LRU keyed by article ID and revision.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	cache  *lru.Cache[string, string]
}

// NewRenderer returns a Renderer caching up to size documents.
func NewRenderer(size int) (*Renderer, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowImages()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)

	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(goldhtml.WithHardWraps(), goldhtml.WithXHTML()),
		),
		policy: policy,
		cache:  c,
	}, nil
}

// Render converts source to sanitized HTML. key identifies the document
// revision; an empty key bypasses the cache.
func (r *Renderer) Render(key, source string) string {
	if key != "" {
		if out, ok := r.cache.Get(key); ok {
			return out
		}
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		// Fall back to escaped text rather than failing the read.
		return html.EscapeString(source)
	}
	out := string(r.policy.SanitizeBytes(buf.Bytes()))

	if key != "" {
		r.cache.Add(key, out)
	}
	return out
}

// ArticleKey builds the cache key for an article revision.
func ArticleKey(id uint, revision int64) string {
	return fmt.Sprintf("article:%d:%d", id, revision)
}
