package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"blogicum/internal/middleware"
	"blogicum/internal/models"
	"blogicum/internal/observability"
	"blogicum/internal/repository"
	"blogicum/internal/validation"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// PubDateLayouts are the accepted spellings of the pub_date form field, tried in order.
var PubDateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	locationRepo repository.LocationRepository
	images       ImageSaver
	pageSize     int
	now          func() time.Time
}

// PostForm is the submitted post form.
type PostForm struct {
	Title       string `form:"title" validate:"notblank,max=256"`
	Text        string `form:"text" validate:"notblank,max=50000"`
	PubDate     string `form:"pub_date"`
	Category    string `form:"category" validate:"required"`
	Location    string `form:"location"`
	IsPublished bool   `form:"is_published"`
	ClearImage  bool   `form:"image-clear"`
}

type CreatePostInput struct {
	UserID uint
	Form   PostForm
	// Image holds the uploaded file content, nil when no file was sent.
	Image []byte
}

type UpdatePostInput struct {
	UserID uint
	PostID uint
	Form   PostForm
	Image  []byte
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// PostFormChoices are the options of the category and location selects.
type PostFormChoices struct {
	Categories []models.Category
	Locations  []models.Location
}

func NewPostService(
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	locationRepo repository.LocationRepository,
	images ImageSaver,
	pageSize int,
) *PostService {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		locationRepo: locationRepo,
		images:       images,
		pageSize:     pageSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ListPublished returns a page of publicly visible posts.
func (s *PostService) ListPublished(ctx context.Context, page string) (_ *models.Page[*models.Post], err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.ListPublished")
	defer func() { observability.EndSpan(span, err) }()

	return s.paginate(ctx, repository.PostFilter{PublishedOnly: true, Now: s.now()}, page)
}

// ListByCategory returns the published category identified by slug and a page of its visible posts.
func (s *PostService) ListByCategory(ctx context.Context, slug, page string) (*models.Category, *models.Page[*models.Post], error) {
	ctx, span := observability.StartSpan(ctx, "PostService.ListByCategory", attribute.String("category.slug", slug))
	category, err := s.categoryRepo.GetPublishedBySlug(ctx, slug)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, nil, err
	}

	p, err := s.paginate(ctx, repository.PostFilter{
		CategoryID:    category.ID,
		PublishedOnly: true,
		Now:           s.now(),
	}, page)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, nil, err
	}
	return category, p, nil
}

// ListByAuthor returns a page of author's posts. The author sees every post they
// wrote; other viewers only see visible ones.
func (s *PostService) ListByAuthor(ctx context.Context, author *models.User, viewerID uint, page string) (*models.Page[*models.Post], error) {
	filter := repository.PostFilter{AuthorID: author.ID}
	if author.ID != viewerID {
		filter.PublishedOnly = true
		filter.Now = s.now()
	}
	return s.paginate(ctx, filter, page)
}

func (s *PostService) paginate(ctx context.Context, filter repository.PostFilter, raw string) (*models.Page[*models.Post], error) {
	total, err := s.postRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	number, numPages := models.ResolvePage(raw, total, s.pageSize)

	posts := []*models.Post{}
	if total > 0 {
		posts, err = s.postRepo.List(ctx, filter, s.pageSize, models.Offset(number, s.pageSize))
		if err != nil {
			return nil, err
		}
	}
	return &models.Page[*models.Post]{
		Items:    posts,
		Number:   number,
		NumPages: numPages,
		Total:    total,
		PerPage:  s.pageSize,
	}, nil
}

// GetForViewer returns the post when it is visible or viewerID wrote it.
func (s *PostService) GetForViewer(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if viewerID == 0 {
		return s.postRepo.GetVisibleByID(ctx, id, s.now())
	}
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthoredBy(viewerID) && !post.VisibleAt(s.now()) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// GetForEdit returns the post if userID may change it.
func (s *PostService) GetForEdit(ctx context.Context, id, userID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthoredBy(userID) {
		return nil, models.NewUnauthorizedError("You can only edit your own posts")
	}
	return post, nil
}

// FormChoices lists the published categories and locations a post may reference.
// When editing, the post's current category and location stay selectable even if
// they have been unpublished since.
func (s *PostService) FormChoices(ctx context.Context, current *models.Post) (*PostFormChoices, error) {
	categories, err := s.categoryRepo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := s.locationRepo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return &PostFormChoices{Categories: categories, Locations: locations}, nil
	}

	if id := lo.FromPtr(current.CategoryID); id != 0 &&
		!lo.ContainsBy(categories, func(c models.Category) bool { return c.ID == id }) {
		category, err := s.categoryRepo.GetByID(ctx, id)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if category != nil {
			categories = append(categories, *category)
		}
	}
	if id := lo.FromPtr(current.LocationID); id != 0 &&
		!lo.ContainsBy(locations, func(l models.Location) bool { return l.ID == id }) {
		location, err := s.locationRepo.GetByID(ctx, id)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if location != nil {
			locations = append(locations, *location)
		}
	}
	return &PostFormChoices{Categories: categories, Locations: locations}, nil
}

// FormFromPost prefills the edit form.
func FormFromPost(p *models.Post) PostForm {
	return PostForm{
		Title:       p.Title,
		Text:        p.Text,
		PubDate:     p.PubDate.UTC().Format(PubDateLayouts[0]),
		Category:    lo.Ternary(p.CategoryID != nil, strconv.FormatUint(uint64(lo.FromPtr(p.CategoryID)), 10), ""),
		Location:    lo.Ternary(p.LocationID != nil, strconv.FormatUint(uint64(lo.FromPtr(p.LocationID)), 10), ""),
		IsPublished: p.IsPublished,
	}
}

func (s *PostService) Create(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.Create")
	defer func() { observability.EndSpan(span, err) }()

	post := &models.Post{AuthorID: in.UserID}
	if err := s.applyForm(ctx, post, in.Form); err != nil {
		return nil, err
	}
	if len(in.Image) > 0 {
		if post.Image, err = s.saveImage(ctx, in.Image); err != nil {
			return nil, err
		}
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.removeImage(ctx, post.Image)
		return nil, err
	}
	return post, nil
}

func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.Update", attribute.Int("post.id", int(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.GetForEdit(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.applyForm(ctx, post, in.Form); err != nil {
		return nil, err
	}
	previous := post.Image
	switch {
	case len(in.Image) > 0:
		if post.Image, err = s.saveImage(ctx, in.Image); err != nil {
			return nil, err
		}
	case in.Form.ClearImage:
		post.Image = ""
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		if post.Image != previous {
			s.removeImage(ctx, post.Image)
		}
		return nil, err
	}
	if post.Image != previous {
		s.removeImage(ctx, previous)
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) Delete(ctx context.Context, in DeletePostInput) error {
	post, err := s.GetForEdit(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return err
	}
	s.removeImage(ctx, post.Image)
	return nil
}

func (s *PostService) saveImage(ctx context.Context, content []byte) (string, error) {
	if s.images == nil {
		return "", imageFieldError("Image uploads are disabled.")
	}
	return s.images.Save(ctx, content)
}

// removeImage deletes a stored image file. Failures are logged; the row change already happened.
func (s *PostService) removeImage(ctx context.Context, publicPath string) {
	if s.images == nil || publicPath == "" {
		return
	}
	if err := s.images.Remove(publicPath); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to remove post image",
			slog.String("path", publicPath),
			slog.String("error", err.Error()))
	}
}

// applyForm validates f and copies it onto post. All field errors are reported together.
func (s *PostService) applyForm(ctx context.Context, post *models.Post, f PostForm) error {
	f.Title = strings.TrimSpace(f.Title)
	fields := validation.Struct(f)
	if fields == nil {
		fields = map[string]string{}
	}

	pubDate := s.now()
	if raw := strings.TrimSpace(f.PubDate); raw != "" {
		parsed, ok := parsePubDate(raw)
		if !ok {
			fields["pub_date"] = "Enter a valid date/time."
		}
		pubDate = parsed
	}

	var categoryID *uint
	if _, bad := fields["category"]; !bad {
		category, err := s.resolveCategory(ctx, f.Category, lo.FromPtr(post.CategoryID))
		if err != nil {
			if !isValidation(err) {
				return err
			}
			fields["category"] = choiceMessage
		} else {
			categoryID = &category.ID
		}
	}

	var locationID *uint
	if raw := strings.TrimSpace(f.Location); raw != "" {
		location, err := s.resolveLocation(ctx, raw, lo.FromPtr(post.LocationID))
		if err != nil {
			if !isValidation(err) {
				return err
			}
			fields["location"] = choiceMessage
		} else {
			locationID = &location.ID
		}
	}

	if len(fields) > 0 {
		return models.NewFormError(fields)
	}

	post.Title = f.Title
	post.Text = f.Text
	post.PubDate = pubDate.UTC()
	post.CategoryID = categoryID
	post.LocationID = locationID
	post.IsPublished = f.IsPublished
	return nil
}

const choiceMessage = "Select a valid choice. That choice is not one of the available choices."

// resolveCategory accepts a published category, or currentID which the post already uses.
func (s *PostService) resolveCategory(ctx context.Context, raw string, currentID uint) (*models.Category, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, models.NewValidationError(choiceMessage)
	}
	category, err := s.categoryRepo.GetByID(ctx, uint(id))
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewValidationError(choiceMessage)
		}
		return nil, err
	}
	if !category.IsPublished && category.ID != currentID {
		return nil, models.NewValidationError(choiceMessage)
	}
	return category, nil
}

func (s *PostService) resolveLocation(ctx context.Context, raw string, currentID uint) (*models.Location, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, models.NewValidationError(choiceMessage)
	}
	location, err := s.locationRepo.GetByID(ctx, uint(id))
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewValidationError(choiceMessage)
		}
		return nil, err
	}
	if !location.IsPublished && location.ID != currentID {
		return nil, models.NewValidationError(choiceMessage)
	}
	return location, nil
}

func parsePubDate(raw string) (time.Time, bool) {
	for _, layout := range PubDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isValidation(err error) bool {
	appErr := models.AsAppError(err)
	return appErr.Code == models.CodeValidation
}
