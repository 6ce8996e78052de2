package repository

import (
	"context"

	"blogicum/internal/cache"
	"blogicum/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	GetPublishedBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	ListPublished(ctx context.Context) ([]models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	SetPublished(ctx context.Context, slug string, published bool) error
}

type categoryRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewCategoryRepository returns a CategoryRepository. rdb may be nil.
func NewCategoryRepository(db *gorm.DB, rdb *redis.Client) CategoryRepository {
	return &categoryRepository{db: db, rdb: rdb}
}

func (r *categoryRepository) GetPublishedBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := cache.Aside(ctx, r.rdb, "category", cache.CategoryKey(slug), &category, cache.CategoryTTL, func() error {
		err := r.db.WithContext(ctx).
			Where("slug = ? AND is_published = ?", slug, true).
			First(&category).Error
		if err != nil {
			return wrapFindError(err, "Category", slug)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, wrapFindError(err, "Category", slug)
	}
	return &category, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, wrapFindError(err, "Category", id)
	}
	return &category, nil
}

func (r *categoryRepository) ListPublished(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Where("is_published = ?", true).Order("title ASC").Find(&categories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.WithContext(ctx).Order("title ASC").Find(&categories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	err := r.db.WithContext(ctx).Create(category).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("A category with this slug already exists")
		}
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, r.rdb, cache.CategoryKey(category.Slug))
	return nil
}

func (r *categoryRepository) SetPublished(ctx context.Context, slug string, published bool) error {
	res := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("slug = ?", slug).
		Update("is_published", published)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Category", slug)
	}
	cache.Invalidate(ctx, r.rdb, cache.CategoryKey(slug))
	return nil
}
