// Command seed fills the database with demo users, posts and comments.
package main

import (
	"flag"
	"log"

	"blogicum/internal/config"
	"blogicum/internal/database"
	"blogicum/internal/seed"

	"github.com/fatih/color"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 10, "Number of users to create")
	numPosts := flag.Int("posts", 50, "Number of posts to create")
	numComments := flag.Int("comments", 150, "Number of comments to create")
	shouldClean := flag.Bool("clean", false, "Delete users, posts and comments before seeding")
	fast := flag.Bool("fast", false, "Hash passwords at minimum bcrypt cost")
	flag.Parse()

	color.New(color.FgHiGreen, color.Bold).Println("🌱 Blogicum seeder")
	color.HiBlack("==================")
	log.Printf("Target: %d users, %d posts, %d comments, clean=%v", *numUsers, *numPosts, *numComments, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	result, err := seed.NewSeeder(db).Run(seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		NumComments: *numComments,
		ShouldClean: *shouldClean,
		Factory:     seed.FactoryOptions{SkipBcrypt: *fast},
	})
	if err != nil {
		log.Fatal(color.RedString("❌ Seeding failed: %v", err))
	}

	color.Green("✨ Created %d users, %d posts and %d comments.", result.Users, result.Posts, result.Comments)
	color.Cyan("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
