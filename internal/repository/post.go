package repository

import (
	"context"
	"time"

	"blogicum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostFilter narrows a post listing.
type PostFilter struct {
	AuthorID   uint
	CategoryID uint
	// PublishedOnly keeps posts that are published, belong to a published
	// category and have a pub date at or before Now.
	PublishedOnly bool
	Now           time.Time
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetVisibleByID(ctx context.Context, id uint, now time.Time) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context, filter PostFilter) (int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(r.db.WithContext(ctx).Model(&models.Post{})).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, wrapFindError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetVisibleByID(ctx context.Context, id uint, now time.Time) (*models.Post, error) {
	var post models.Post
	q := applyPostFilter(r.db.WithContext(ctx).Model(&models.Post{}), PostFilter{PublishedOnly: true, Now: now})
	err := r.withDetails(q).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, wrapFindError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	q := applyPostFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter)
	err := r.withDetails(q).
		Order("posts.pub_date DESC").
		Order("posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context, filter PostFilter) (int64, error) {
	var total int64
	if err := applyPostFilter(r.db.WithContext(ctx).Model(&models.Post{}), filter).Count(&total).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return total, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("title", "text", "pub_date", "category_id", "location_id", "image", "is_published", "updated_at").
		Updates(map[string]any{
			"title":        post.Title,
			"text":         post.Text,
			"pub_date":     post.PubDate,
			"category_id":  post.CategoryID,
			"location_id":  post.LocationID,
			"image":        post.Image,
			"is_published": post.IsPublished,
			"updated_at":   time.Now().UTC(),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the post together with its comments.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return wrapFindError(err, "Post", id)
	}
	return nil
}

// withDetails selects the comment count and preloads the related rows a listing shows.
func (r *postRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comment_count").
		Preload("Author").
		Preload("Category").
		Preload("Location")
}

func applyPostFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if f.PublishedOnly {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		db = db.Joins("JOIN categories ON categories.id = posts.category_id").
			Where("posts.is_published = ? AND categories.is_published = ? AND posts.pub_date <= ?",
				true, true, now.UTC())
	}
	if f.AuthorID != 0 {
		db = db.Where("posts.author_id = ?", f.AuthorID)
	}
	if f.CategoryID != 0 {
		db = db.Where("posts.category_id = ?", f.CategoryID)
	}
	return db
}
