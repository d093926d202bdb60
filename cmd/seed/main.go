// Command seed populates the database with demo data.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/seed"
)

func main() {
	users := flag.Int("users", 20, "Number of users to create")
	articles := flag.Int("articles", 50, "Number of articles to create")
	comments := flag.Int("comments", 5, "Top-level comments per article")
	replies := flag.Int("replies", 3, "Maximum replies per comment")
	depth := flag.Int("depth", 2, "Maximum reply depth")
	clean := flag.Bool("clean", true, "Clear the database before seeding")
	fast := flag.Bool("fast", false, "Store the demo password unhashed (login will not work)")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		Users:              *users,
		Articles:           *articles,
		CommentsPerArticle: *comments,
		MaxReplies:         *replies,
		MaxDepth:           *depth,
		Clean:              *clean,
		SkipBcrypt:         *fast,
		Seed:               *randSeed,
	})

	sum, err := s.Run(context.Background())
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d articles, %d comments, %d likes", sum.Users, sum.Articles, sum.Comments, sum.Likes)
	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
