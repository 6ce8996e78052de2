package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blogicum/internal/models"
	"blogicum/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestPostService(posts *postRepoStub, images ImageSaver) *PostService {
	categories := &categoryRepoStub{byID: map[uint]*models.Category{
		1: {ID: 1, Slug: "travel", Title: "Travel", IsPublished: true},
		2: {ID: 2, Slug: "hidden", Title: "Hidden", IsPublished: false},
	}}
	locations := &locationRepoStub{byID: map[uint]*models.Location{
		1: {ID: 1, Name: "Moscow", IsPublished: true},
		2: {ID: 2, Name: "Atlantis", IsPublished: false},
	}}
	svc := NewPostService(posts, categories, locations, images, 10)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func ownedPost(id, authorID uint) *models.Post {
	categoryID := uint(1)
	return &models.Post{
		ID:          id,
		Title:       "Existing",
		Text:        "Body",
		AuthorID:    authorID,
		PubDate:     fixedNow.Add(-time.Hour),
		CategoryID:  &categoryID,
		Category:    &models.Category{ID: 1, IsPublished: true},
		IsPublished: true,
	}
}

func TestPostService_ListPublished_Pagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantNumber int
		wantOffset int
	}{
		{"missing page", "", 1, 0},
		{"non numeric page", "abc", 1, 0},
		{"third page", "3", 3, 20},
		{"past the end", "99", 3, 20},
		{"zero", "0", 3, 20},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var gotFilter repository.PostFilter
			var gotLimit, gotOffset int
			posts := &postRepoStub{
				countFn: func(_ context.Context, f repository.PostFilter) (int64, error) { return 25, nil },
				listFn: func(_ context.Context, f repository.PostFilter, limit, offset int) ([]*models.Post, error) {
					gotFilter, gotLimit, gotOffset = f, limit, offset
					return []*models.Post{{ID: 1}}, nil
				},
			}
			svc := newTestPostService(posts, nil)

			page, err := svc.ListPublished(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNumber, page.Number)
			assert.Equal(t, 3, page.NumPages)
			assert.Equal(t, int64(25), page.Total)
			assert.Equal(t, 10, gotLimit)
			assert.Equal(t, tt.wantOffset, gotOffset)
			assert.True(t, gotFilter.PublishedOnly)
			assert.Equal(t, fixedNow, gotFilter.Now)
		})
	}
}

func TestPostService_ListPublished_Empty(t *testing.T) {
	t.Parallel()
	posts := &postRepoStub{
		listFn: func(context.Context, repository.PostFilter, int, int) ([]*models.Post, error) {
			t.Fatal("List must not run for an empty listing")
			return nil, nil
		},
	}
	svc := newTestPostService(posts, nil)

	page, err := svc.ListPublished(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.NumPages)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasOtherPages())
}

func TestPostService_ListByCategory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("published category", func(t *testing.T) {
		t.Parallel()
		var gotFilter repository.PostFilter
		posts := &postRepoStub{
			countFn: func(_ context.Context, f repository.PostFilter) (int64, error) {
				gotFilter = f
				return 0, nil
			},
		}
		svc := newTestPostService(posts, nil)
		category, _, err := svc.ListByCategory(ctx, "travel", "")
		require.NoError(t, err)
		assert.Equal(t, "Travel", category.Title)
		assert.Equal(t, uint(1), gotFilter.CategoryID)
		assert.True(t, gotFilter.PublishedOnly)
	})

	t.Run("unpublished category is not found", func(t *testing.T) {
		t.Parallel()
		svc := newTestPostService(&postRepoStub{}, nil)
		_, _, err := svc.ListByCategory(ctx, "hidden", "")
		assertAppError(t, err, models.CodeNotFound)
	})
}

func TestPostService_ListByAuthor_VisibilityDependsOnViewer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotFilter repository.PostFilter
	posts := &postRepoStub{
		countFn: func(_ context.Context, f repository.PostFilter) (int64, error) {
			gotFilter = f
			return 0, nil
		},
	}
	svc := newTestPostService(posts, nil)

	alice := &models.User{ID: 7, Username: "alice"}

	_, err := svc.ListByAuthor(ctx, alice, 7, "")
	require.NoError(t, err)
	assert.Equal(t, uint(7), gotFilter.AuthorID)
	assert.False(t, gotFilter.PublishedOnly, "owner sees every post")

	_, err = svc.ListByAuthor(ctx, alice, 8, "")
	require.NoError(t, err)
	assert.True(t, gotFilter.PublishedOnly, "other viewers only see visible posts")
	assert.Equal(t, fixedNow, gotFilter.Now)
}

func TestPostService_GetForViewer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	draft := ownedPost(5, 7)
	draft.IsPublished = false
	posts := &postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) { return draft, nil },
	}
	svc := newTestPostService(posts, nil)

	got, err := svc.GetForViewer(ctx, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(5), got.ID)

	_, err = svc.GetForViewer(ctx, 5, 8)
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.GetForViewer(ctx, 5, 0)
	assertAppError(t, err, models.CodeNotFound)
}

func TestPostService_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		form       PostForm
		wantFields []string
	}{
		{"empty form", PostForm{}, []string{"title", "text", "category"}},
		{"blank title", PostForm{Title: "   ", Text: "t", Category: "1"}, []string{"title"}},
		{"unpublished category", PostForm{Title: "T", Text: "t", Category: "2"}, []string{"category"}},
		{"unknown category", PostForm{Title: "T", Text: "t", Category: "42"}, []string{"category"}},
		{"garbage category", PostForm{Title: "T", Text: "t", Category: "x"}, []string{"category"}},
		{"unpublished location", PostForm{Title: "T", Text: "t", Category: "1", Location: "2"}, []string{"location"}},
		{"bad pub date", PostForm{Title: "T", Text: "t", Category: "1", PubDate: "yesterday"}, []string{"pub_date"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			posts := &postRepoStub{
				createFn: func(context.Context, *models.Post) error {
					t.Fatal("invalid form must not be persisted")
					return nil
				},
			}
			svc := newTestPostService(posts, nil)
			_, err := svc.Create(ctx, CreatePostInput{UserID: 7, Form: tt.form})
			appErr := assertAppError(t, err, models.CodeValidation)
			for _, field := range tt.wantFields {
				assert.Contains(t, appErr.Fields, field)
			}
			assert.Len(t, appErr.Fields, len(tt.wantFields))
		})
	}
}

func TestPostService_Create_Valid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var created *models.Post
	posts := &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 11
			created = p
			return nil
		},
	}
	images := new(MockImageSaver)
	images.On("Save", mock.Anything, []byte("raw image")).Return("/media/posts/stub.webp", nil).Once()
	svc := newTestPostService(posts, images)

	post, err := svc.Create(ctx, CreatePostInput{
		UserID: 7,
		Form: PostForm{
			Title:       "  Trip  ",
			Text:        "We went",
			Category:    "1",
			Location:    "1",
			IsPublished: true,
		},
		Image: []byte("raw image"),
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, uint(11), post.ID)
	assert.Equal(t, "Trip", post.Title)
	assert.Equal(t, uint(7), post.AuthorID)
	assert.Equal(t, fixedNow, post.PubDate, "pub date defaults to now")
	assert.Equal(t, uint(1), *post.CategoryID)
	assert.Equal(t, uint(1), *post.LocationID)
	assert.True(t, post.IsPublished)
	assert.Equal(t, "/media/posts/stub.webp", post.Image)
	images.AssertExpectations(t)
}

func TestPostService_Create_ParsesPubDate(t *testing.T) {
	t.Parallel()
	svc := newTestPostService(&postRepoStub{}, nil)

	post, err := svc.Create(context.Background(), CreatePostInput{
		UserID: 7,
		Form:   PostForm{Title: "T", Text: "t", Category: "1", PubDate: "2030-01-02T03:04"},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 2, 3, 4, 0, 0, time.UTC), post.PubDate)
	assert.Nil(t, post.LocationID)
	assert.False(t, post.IsPublished)
}

func TestPostService_Create_ImageRejected(t *testing.T) {
	t.Parallel()
	images := new(MockImageSaver)
	images.On("Save", mock.Anything, mock.Anything).Return("", imageFieldError("bad"))
	svc := newTestPostService(&postRepoStub{}, images)

	_, err := svc.Create(context.Background(), CreatePostInput{
		UserID: 7,
		Form:   PostForm{Title: "T", Text: "t", Category: "1"},
		Image:  []byte("nope"),
	})
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, "bad", appErr.Fields["image"])
}

func TestPostService_Update_Ownership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("non author is rejected without mutation", func(t *testing.T) {
		t.Parallel()
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return ownedPost(3, 7), nil },
			updateFn: func(context.Context, *models.Post) error {
				t.Fatal("update must not run for a non-author")
				return nil
			},
		}
		svc := newTestPostService(posts, nil)
		_, err := svc.Update(ctx, UpdatePostInput{UserID: 8, PostID: 3, Form: PostForm{Title: "x", Text: "y", Category: "1"}})
		assertAppError(t, err, models.CodeUnauthorized)
	})

	t.Run("author updates and clears image", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		var updated *models.Post
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
			updateFn: func(_ context.Context, p *models.Post) error {
				updated = p
				return nil
			},
		}
		svc := newTestPostService(posts, nil)
		_, err := svc.Update(ctx, UpdatePostInput{
			UserID: 7,
			PostID: 3,
			Form:   PostForm{Title: "New", Text: "Body", Category: "1", IsPublished: true, ClearImage: true},
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "New", updated.Title)
		assert.Empty(t, updated.Image)
	})
}

func TestPostService_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var deleted []uint
	posts := &postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) { return ownedPost(3, 7), nil },
		deleteFn: func(_ context.Context, id uint) error {
			deleted = append(deleted, id)
			return nil
		},
	}
	svc := newTestPostService(posts, nil)

	err := svc.Delete(ctx, DeletePostInput{UserID: 8, PostID: 3})
	assertAppError(t, err, models.CodeUnauthorized)
	assert.Empty(t, deleted)

	require.NoError(t, svc.Delete(ctx, DeletePostInput{UserID: 7, PostID: 3}))
	assert.Equal(t, []uint{3}, deleted)
}

func TestPostService_FormChoices(t *testing.T) {
	t.Parallel()
	svc := newTestPostService(&postRepoStub{}, nil)

	choices, err := svc.FormChoices(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, choices.Categories, 1)
	assert.Equal(t, "travel", choices.Categories[0].Slug)
	require.Len(t, choices.Locations, 1)
	assert.Equal(t, "Moscow", choices.Locations[0].Name)
}

func TestPostService_FormChoices_KeepsCurrentUnpublished(t *testing.T) {
	t.Parallel()
	svc := newTestPostService(&postRepoStub{}, nil)

	post := ownedPost(3, 7)
	hiddenCategory, hiddenLocation := uint(2), uint(2)
	post.CategoryID = &hiddenCategory
	post.LocationID = &hiddenLocation

	choices, err := svc.FormChoices(context.Background(), post)
	require.NoError(t, err)
	slugs := make([]string, 0, len(choices.Categories))
	for _, c := range choices.Categories {
		slugs = append(slugs, c.Slug)
	}
	assert.ElementsMatch(t, []string{"travel", "hidden"}, slugs)
	names := make([]string, 0, len(choices.Locations))
	for _, l := range choices.Locations {
		names = append(names, l.Name)
	}
	assert.ElementsMatch(t, []string{"Moscow", "Atlantis"}, names)

	// A post already in a published category gets no extra entries.
	choices, err = svc.FormChoices(context.Background(), ownedPost(4, 7))
	require.NoError(t, err)
	assert.Len(t, choices.Categories, 1)
	assert.Len(t, choices.Locations, 1)
}

func TestPostService_Update_KeepsUnpublishedCurrentCategory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	stored := ownedPost(3, 7)
	hidden := uint(2)
	stored.CategoryID = &hidden
	var updated *models.Post
	posts := &postRepoStub{
		getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
		updateFn: func(_ context.Context, p *models.Post) error {
			updated = p
			return nil
		},
	}
	svc := newTestPostService(posts, nil)

	_, err := svc.Update(ctx, UpdatePostInput{
		UserID: 7,
		PostID: 3,
		Form:   PostForm{Title: "Still here", Text: "Body", Category: "2"},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, uint(2), *updated.CategoryID)

	// Another post cannot move into the hidden category.
	_, err = svc.Create(ctx, CreatePostInput{
		UserID: 7,
		Form:   PostForm{Title: "New", Text: "Body", Category: "2"},
	})
	appErr := assertAppError(t, err, models.CodeValidation)
	assert.Equal(t, choiceMessage, appErr.Fields["category"])
}

func TestPostService_RemovesStaleImages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create failure removes the new file", func(t *testing.T) {
		t.Parallel()
		images := new(MockImageSaver)
		images.On("Save", mock.Anything, mock.Anything).Return("/media/posts/new.webp", nil).Once()
		images.On("Remove", "/media/posts/new.webp").Return(nil).Once()
		posts := &postRepoStub{
			createFn: func(context.Context, *models.Post) error { return models.NewInternalError(errors.New("db down")) },
		}
		svc := newTestPostService(posts, images)

		_, err := svc.Create(ctx, CreatePostInput{
			UserID: 7,
			Form:   PostForm{Title: "T", Text: "t", Category: "1"},
			Image:  []byte("raw image"),
		})
		assertAppError(t, err, models.CodeInternal)
		images.AssertExpectations(t)
	})

	t.Run("replacing removes the old file", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		images := new(MockImageSaver)
		images.On("Save", mock.Anything, mock.Anything).Return("/media/posts/new.webp", nil).Once()
		images.On("Remove", "/media/posts/old.webp").Return(nil).Once()
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
		}
		svc := newTestPostService(posts, images)

		_, err := svc.Update(ctx, UpdatePostInput{
			UserID: 7,
			PostID: 3,
			Form:   PostForm{Title: "T", Text: "t", Category: "1"},
			Image:  []byte("raw image"),
		})
		require.NoError(t, err)
		images.AssertExpectations(t)
	})

	t.Run("clearing removes the old file", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		images := new(MockImageSaver)
		images.On("Remove", "/media/posts/old.webp").Return(nil).Once()
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
		}
		svc := newTestPostService(posts, images)

		_, err := svc.Update(ctx, UpdatePostInput{
			UserID: 7,
			PostID: 3,
			Form:   PostForm{Title: "T", Text: "t", Category: "1", ClearImage: true},
		})
		require.NoError(t, err)
		images.AssertExpectations(t)
	})

	t.Run("failed update keeps the old file", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		images := new(MockImageSaver)
		images.On("Save", mock.Anything, mock.Anything).Return("/media/posts/new.webp", nil).Once()
		images.On("Remove", "/media/posts/new.webp").Return(nil).Once()
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
			updateFn:  func(context.Context, *models.Post) error { return models.NewInternalError(errors.New("db down")) },
		}
		svc := newTestPostService(posts, images)

		_, err := svc.Update(ctx, UpdatePostInput{
			UserID: 7,
			PostID: 3,
			Form:   PostForm{Title: "T", Text: "t", Category: "1"},
			Image:  []byte("raw image"),
		})
		assertAppError(t, err, models.CodeInternal)
		images.AssertExpectations(t)
		images.AssertNotCalled(t, "Remove", "/media/posts/old.webp")
	})

	t.Run("delete removes the file", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		images := new(MockImageSaver)
		images.On("Remove", "/media/posts/old.webp").Return(nil).Once()
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
		}
		svc := newTestPostService(posts, images)

		require.NoError(t, svc.Delete(ctx, DeletePostInput{UserID: 7, PostID: 3}))
		images.AssertExpectations(t)
	})

	t.Run("non author delete keeps the file", func(t *testing.T) {
		t.Parallel()
		stored := ownedPost(3, 7)
		stored.Image = "/media/posts/old.webp"
		images := new(MockImageSaver)
		posts := &postRepoStub{
			getByIDFn: func(context.Context, uint) (*models.Post, error) { return stored, nil },
		}
		svc := newTestPostService(posts, images)

		assertAppError(t, svc.Delete(ctx, DeletePostInput{UserID: 8, PostID: 3}), models.CodeUnauthorized)
		images.AssertNotCalled(t, "Remove", mock.Anything)
	})
}

func TestFormFromPost(t *testing.T) {
	t.Parallel()
	p := ownedPost(1, 7)
	f := FormFromPost(p)
	assert.Equal(t, "1", f.Category)
	assert.Empty(t, f.Location)
	assert.Equal(t, "2026-03-14T11:00", f.PubDate)
	assert.True(t, f.IsPublished)
}
