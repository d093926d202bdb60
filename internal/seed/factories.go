package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkwell/internal/models"
)

// BuildUser returns an unsaved user with a unique email.
func (s *Seeder) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := s.faker.FirstName(), s.faker.LastName()
	u := &models.User{
		Name: first + " " + last,
		Email: fmt.Sprintf("%s.%s.%d@%s",
			strings.ToLower(first), strings.ToLower(last), s.faker.Number(1000, 9999), s.faker.DomainName()),
		Avatar: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
	}
	for _, o := range overrides {
		o(u)
	}
	return u
}

// BuildArticle returns an unsaved markdown article by author, backdated up to
// 90 days.
func (s *Seeder) BuildArticle(author *models.User, overrides ...func(*models.Article)) *models.Article {
	var body strings.Builder
	body.WriteString("## " + s.faker.HipsterSentence(4) + "\n\n")
	for i, n := 0, s.faker.Number(2, 4); i < n; i++ {
		body.WriteString(s.faker.Paragraph(1, 4, 12, " "))
		body.WriteString("\n\n")
	}
	body.WriteString("- " + s.faker.BuzzWord() + "\n- " + s.faker.BuzzWord() + "\n")

	backdate := time.Duration(s.rnd.Intn(90*24)) * time.Hour
	a := &models.Article{
		Title:     strings.TrimSuffix(s.faker.Sentence(6), "."),
		Content:   body.String(),
		Author:    author.Snapshot(),
		CreatedAt: time.Now().Add(-backdate),
	}
	for _, o := range overrides {
		o(a)
	}
	return a
}

// CreateArticle builds and stores an article by author.
func (s *Seeder) CreateArticle(ctx context.Context, author *models.User, overrides ...func(*models.Article)) (*models.Article, error) {
	a := s.BuildArticle(author, overrides...)
	if err := s.articles.Create(ctx, a, nil); err != nil {
		return nil, fmt.Errorf("seed article %q: %w", a.Title, err)
	}
	return a, nil
}

// BuildComment returns an unsaved comment by author.
func (s *Seeder) BuildComment(author *models.User) *models.Comment {
	return &models.Comment{
		Author: author.Snapshot(),
		Text:   s.faker.Sentence(s.faker.Number(4, 20)),
	}
}
