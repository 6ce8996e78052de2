package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blogicum/internal/models"
	"blogicum/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository. Unset funcs return zero values.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	getVisibleByIDFn func(context.Context, uint, time.Time) (*models.Post, error)
	listFn           func(context.Context, repository.PostFilter, int, int) ([]*models.Post, error)
	countFn          func(context.Context, repository.PostFilter) (int64, error)
	updateFn         func(context.Context, *models.Post) error
	deleteFn         func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetVisibleByID(ctx context.Context, id uint, now time.Time) (*models.Post, error) {
	if s.getVisibleByIDFn == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return s.getVisibleByIDFn(ctx, id, now)
}
func (s *postRepoStub) List(ctx context.Context, f repository.PostFilter, limit, offset int) ([]*models.Post, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, f, limit, offset)
}
func (s *postRepoStub) Count(ctx context.Context, f repository.PostFilter) (int64, error) {
	if s.countFn == nil {
		return 0, nil
	}
	return s.countFn(ctx, f)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

// categoryRepoStub serves categories from a map keyed by ID.
type categoryRepoStub struct {
	byID map[uint]*models.Category
}

func (s *categoryRepoStub) GetPublishedBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range s.byID {
		if c.Slug == slug && c.IsPublished {
			return c, nil
		}
	}
	return nil, models.NewNotFoundError("Category", slug)
}
func (s *categoryRepoStub) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	for _, c := range s.byID {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, models.NewNotFoundError("Category", slug)
}
func (s *categoryRepoStub) GetByID(_ context.Context, id uint) (*models.Category, error) {
	if c, ok := s.byID[id]; ok {
		return c, nil
	}
	return nil, models.NewNotFoundError("Category", id)
}
func (s *categoryRepoStub) ListPublished(context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, c := range s.byID {
		if c.IsPublished {
			out = append(out, *c)
		}
	}
	return out, nil
}
func (s *categoryRepoStub) List(context.Context) ([]models.Category, error) {
	var out []models.Category
	for _, c := range s.byID {
		out = append(out, *c)
	}
	return out, nil
}
func (s *categoryRepoStub) Create(context.Context, *models.Category) error { return nil }
func (s *categoryRepoStub) SetPublished(context.Context, string, bool) error {
	return nil
}

// locationRepoStub serves locations from a map keyed by ID.
type locationRepoStub struct {
	byID map[uint]*models.Location
}

func (s *locationRepoStub) GetByID(_ context.Context, id uint) (*models.Location, error) {
	if l, ok := s.byID[id]; ok {
		return l, nil
	}
	return nil, models.NewNotFoundError("Location", id)
}
func (s *locationRepoStub) ListPublished(context.Context) ([]models.Location, error) {
	var out []models.Location
	for _, l := range s.byID {
		if l.IsPublished {
			out = append(out, *l)
		}
	}
	return out, nil
}
func (s *locationRepoStub) List(ctx context.Context) ([]models.Location, error) {
	return s.ListPublished(ctx)
}
func (s *locationRepoStub) Create(context.Context, *models.Location) error { return nil }
func (s *locationRepoStub) SetPublished(context.Context, uint, bool) error   { return nil }

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getForPostFn func(context.Context, uint, uint) (*models.Comment, error)
	updateFn     func(context.Context, *models.Comment) error
	deleteFn     func(context.Context, uint) error
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return nil, models.NewNotFoundError("Comment", id)
}
func (s *commentRepoStub) GetForPost(ctx context.Context, commentID, postID uint) (*models.Comment, error) {
	if s.getForPostFn == nil {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return s.getForPostFn(ctx, commentID, postID)
}
func (s *commentRepoStub) ListByPost(context.Context, uint) ([]*models.Comment, error) {
	return nil, nil
}
func (s *commentRepoStub) Update(ctx context.Context, c *models.Comment) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, c)
}
func (s *commentRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

// userRepoStub keeps users in memory.
type userRepoStub struct {
	users     []*models.User
	createErr error
	updated   *models.User
}

func (s *userRepoStub) GetByID(_ context.Context, id uint) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("User", id)
}
func (s *userRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			cp.Password = ""
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("User", username)
}
func (s *userRepoStub) GetCredentials(_ context.Context, username string) (*models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("User", username)
}
func (s *userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("User", email)
}
func (s *userRepoStub) Create(_ context.Context, u *models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	u.ID = uint(len(s.users) + 1)
	s.users = append(s.users, u)
	return nil
}
func (s *userRepoStub) Update(_ context.Context, u *models.User) error {
	s.updated = u
	return nil
}
func (s *userRepoStub) List(context.Context, int, int) ([]models.User, error) {
	return nil, nil
}

// MockImageSaver is a mock of the ImageSaver interface
type MockImageSaver struct {
	mock.Mock
}

func (m *MockImageSaver) Save(ctx context.Context, content []byte) (string, error) {
	args := m.Called(ctx, content)
	return args.String(0), args.Error(1)
}

func (m *MockImageSaver) Remove(publicPath string) error {
	args := m.Called(publicPath)
	return args.Error(0)
}

// assertAppError asserts that err is an AppError with the given code and returns it.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

var (
	_ repository.PostRepository     = (*postRepoStub)(nil)
	_ repository.CategoryRepository = (*categoryRepoStub)(nil)
	_ repository.LocationRepository = (*locationRepoStub)(nil)
	_ repository.CommentRepository  = (*commentRepoStub)(nil)
	_ repository.UserRepository     = (*userRepoStub)(nil)
)
