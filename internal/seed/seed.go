package seed

import (
	"fmt"
	"log"

	"blogicum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInCategory is a category every installation starts with.
type BuiltInCategory struct {
	Title       string
	Slug        string
	Description string
}

// BuiltInCategories are created published by Categories.
var BuiltInCategories = []BuiltInCategory{
	{Title: "Travel", Slug: "travel", Description: "Trips, routes and places worth the detour."},
	{Title: "Food", Slug: "food", Description: "Recipes, restaurants and kitchen experiments."},
	{Title: "Books", Slug: "books", Description: "Reading notes and recommendations."},
	{Title: "Technology", Slug: "technology", Description: "Gadgets, software and how things work."},
	{Title: "Everyday life", Slug: "life", Description: "Small stories from ordinary days."},
}

// BuiltInLocations are created published by Locations.
var BuiltInLocations = []string{"Moscow", "Saint Petersburg", "Kazan", "Novosibirsk", "Sochi"}

// Categories creates the built-in categories. Existing rows keep their publication
// state; only title and description are refreshed.
func Categories(db *gorm.DB) error {
	for _, item := range BuiltInCategories {
		category := models.Category{
			Title:       item.Title,
			Slug:        item.Slug,
			Description: item.Description,
			IsPublished: true,
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description"}),
		}).Create(&category).Error
		if err != nil {
			return fmt.Errorf("seed category %s: %w", item.Slug, err)
		}
	}
	return nil
}

// Locations creates the built-in locations that do not exist yet.
func Locations(db *gorm.DB) error {
	for _, name := range BuiltInLocations {
		location := models.Location{Name: name, IsPublished: true}
		if err := db.Where("name = ?", name).FirstOrCreate(&location).Error; err != nil {
			return fmt.Errorf("seed location %s: %w", name, err)
		}
	}
	return nil
}

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	NumComments int
	ShouldClean bool
	Factory     FactoryOptions
}

// Result counts the rows a seeding run created.
type Result struct {
	Users    int
	Posts    int
	Comments int
}

// Seeder fills the database with demo content.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder binds a seeder to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll deletes comments, posts and users, children first.
// Categories and locations are kept.
func (s *Seeder) ClearAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Comment{}, &models.Post{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Run seeds the built-in categories and locations, then random users, posts and comments.
func (s *Seeder) Run(opts Options) (*Result, error) {
	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}
	if err := Categories(s.db); err != nil {
		return nil, err
	}
	if err := Locations(s.db); err != nil {
		return nil, err
	}

	var categories []models.Category
	if err := s.db.Where("is_published = ?", true).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	var locations []models.Location
	if err := s.db.Find(&locations).Error; err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}

	f := NewFactory(s.db, opts.Factory)
	result := &Result{}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	result.Users = len(users)
	log.Printf("✓ %d users created", result.Users)
	if len(users) == 0 {
		return result, nil
	}

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		var category *models.Category
		if len(categories) > 0 {
			c := pick(f, categories)
			category = &c
		}
		var location *models.Location
		// About half of the posts say where they were written.
		if len(locations) > 0 && f.faker.Bool() {
			l := pick(f, locations)
			location = &l
		}
		posts = append(posts, f.BuildPost(pick(f, users), category, location))
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	result.Posts = len(posts)
	log.Printf("✓ %d posts created", result.Posts)
	if len(posts) == 0 {
		return result, nil
	}

	comments := make([]*models.Comment, 0, opts.NumComments)
	for i := 0; i < opts.NumComments; i++ {
		comments = append(comments, f.BuildComment(pick(f, users), pick(f, posts)))
	}
	if err := f.CreateCommentsBatch(comments); err != nil {
		return nil, fmt.Errorf("create comments: %w", err)
	}
	result.Comments = len(comments)
	log.Printf("✓ %d comments created", result.Comments)

	return result, nil
}
