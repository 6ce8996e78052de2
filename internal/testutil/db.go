// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"blogicum/internal/database"
	"blogicum/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Password is the plain-text password of every user created by Fixtures.
const Password = "correct-horse-battery"

// NewSQLiteDB opens a migrated in-memory SQLite database that lives for the test.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every pooled connection would get its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// Fixtures creates rows with sensible defaults for tests.
type Fixtures struct {
	t  testing.TB
	db *gorm.DB
}

// NewFixtures binds fixture helpers to db.
func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db}
}

// User creates a user whose password is Password.
func (f *Fixtures) User(username string) *models.User {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(f.t, err)

	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

// Category creates a category with the given publication state.
func (f *Fixtures) Category(slug string, published bool) *models.Category {
	f.t.Helper()
	c := &models.Category{
		Title:       "Category " + slug,
		Description: "About " + slug,
		Slug:        slug,
		IsPublished: published,
	}
	require.NoError(f.t, f.db.Create(c).Error)
	return c
}

// Location creates a location.
func (f *Fixtures) Location(name string, published bool) *models.Location {
	f.t.Helper()
	l := &models.Location{Name: name, IsPublished: published}
	require.NoError(f.t, f.db.Create(l).Error)
	return l
}

// PostOption customises a fixture post.
type PostOption func(*models.Post)

// Unpublished marks the post as a draft.
func Unpublished() PostOption {
	return func(p *models.Post) { p.IsPublished = false }
}

// PubDate overrides the publication date.
func PubDate(t time.Time) PostOption {
	return func(p *models.Post) { p.PubDate = t.UTC() }
}

// AtLocation attaches a location.
func AtLocation(l *models.Location) PostOption {
	return func(p *models.Post) { p.LocationID = &l.ID }
}

// Post creates a published post dated an hour ago.
func (f *Fixtures) Post(author *models.User, category *models.Category, title string, opts ...PostOption) *models.Post {
	f.t.Helper()
	p := &models.Post{
		Title:       title,
		Text:        "Text of " + title,
		PubDate:     time.Now().UTC().Add(-time.Hour),
		AuthorID:    author.ID,
		IsPublished: true,
	}
	if category != nil {
		p.CategoryID = &category.ID
	}
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(f.t, f.db.Omit("Author", "Category", "Location").Create(p).Error)
	return p
}

// Comment creates a comment by author on post.
func (f *Fixtures) Comment(author *models.User, post *models.Post, text string) *models.Comment {
	f.t.Helper()
	c := &models.Comment{Text: text, PostID: post.ID, AuthorID: author.ID}
	require.NoError(f.t, f.db.Omit("Author", "Post").Create(c).Error)
	return c
}

// PNG returns an encoded w x h PNG image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
