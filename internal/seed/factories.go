// Package seed provides helpers to create demo data for the blog database.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"blogicum/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every generated user.
const DefaultPassword = "blogicum-demo"

// FactoryOptions tune generated data.
type FactoryOptions struct {
	// Seed fixes the fake data generator; 0 picks a random seed.
	Seed int64
	// MaxDays bounds how far back publication dates are spread.
	MaxDays int
	// SkipBcrypt stores a cheap hash; bcrypt at default cost is slow for large seeds.
	SkipBcrypt bool
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	opts  FactoryOptions
	faker *gofakeit.Faker
	hash  string
	seq   int
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts FactoryOptions) *Factory {
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	return &Factory{db: db, opts: opts, faker: gofakeit.New(opts.Seed)}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// BuildUser constructs a user with a unique username without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	f.seq++
	username := strings.ToLower(f.faker.Username())
	if len(username) > 24 {
		username = username[:24]
	}
	username = fmt.Sprintf("%s_%d", username, f.seq)

	user := &models.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: f.faker.FirstName(),
		LastName:  f.faker.LastName(),
		Password:  hash,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser constructs and persists a sample user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post by author in category without persisting it.
// Roughly one post in ten is a draft and one in twenty is scheduled for the future.
func (f *Factory) BuildPost(author *models.User, category *models.Category, location *models.Location, overrides ...func(*models.Post)) *models.Post {
	now := time.Now().UTC()
	pubDate := f.faker.DateRange(now.AddDate(0, 0, -f.opts.MaxDays), now).UTC().Truncate(time.Minute)
	if f.faker.Number(1, 20) == 1 {
		pubDate = now.Add(time.Duration(f.faker.Number(1, 72)) * time.Hour).Truncate(time.Minute)
	}

	post := &models.Post{
		Title:       strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."),
		Text:        f.faker.Paragraph(f.faker.Number(1, 4), f.faker.Number(2, 6), 12, "\n\n"),
		PubDate:     pubDate,
		AuthorID:    author.ID,
		IsPublished: f.faker.Number(1, 10) != 1,
	}
	if category != nil {
		post.CategoryID = &category.ID
	}
	if location != nil {
		post.LocationID = &location.ID
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in batched inserts.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.Omit(clause.Associations).CreateInBatches(posts, 100).Error
}

// BuildComment constructs a comment by author on post without persisting it.
func (f *Factory) BuildComment(author *models.User, post *models.Post) *models.Comment {
	return &models.Comment{
		Text:     f.faker.Paragraph(1, f.faker.Number(1, 3), 10, " "),
		PostID:   post.ID,
		AuthorID: author.ID,
	}
}

// CreateCommentsBatch persists multiple comments in batched inserts.
func (f *Factory) CreateCommentsBatch(comments []*models.Comment) error {
	if len(comments) == 0 {
		return nil
	}
	return f.db.Omit(clause.Associations).CreateInBatches(comments, 200).Error
}

// pick returns a random element of items, or the zero value for an empty slice.
func pick[T any](f *Factory, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[f.faker.Number(0, len(items)-1)]
}
