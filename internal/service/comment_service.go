package service

import (
	"context"
	"time"

	"blogicum/internal/models"
	"blogicum/internal/repository"
	"blogicum/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	now         func() time.Time
}

// CommentForm is the submitted comment form.
type CommentForm struct {
	Text string `form:"text" validate:"notblank,max=10000"`
}

type CreateCommentInput struct {
	UserID uint
	PostID uint
	Form   CommentForm
}

type UpdateCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
	Form      CommentForm
}

type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListForPost returns the comments of a post, oldest first.
func (s *CommentService) ListForPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID)
}

// Create adds a comment to a post the commenter can see.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !post.IsAuthoredBy(in.UserID) && !post.VisibleAt(s.now()) {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	if fields := validation.Struct(in.Form); fields != nil {
		return nil, models.NewFormError(fields)
	}

	comment := &models.Comment{
		Text:     in.Form.Text,
		PostID:   post.ID,
		AuthorID: in.UserID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// GetForEdit returns the comment of postID if userID wrote it.
func (s *CommentService) GetForEdit(ctx context.Context, postID, commentID, userID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetForPost(ctx, commentID, postID)
	if err != nil {
		return nil, err
	}
	if !comment.IsAuthoredBy(userID) {
		return nil, models.NewUnauthorizedError("You can only edit your own comments")
	}
	return comment, nil
}

func (s *CommentService) Update(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.GetForEdit(ctx, in.PostID, in.CommentID, in.UserID)
	if err != nil {
		return nil, err
	}
	if fields := validation.Struct(in.Form); fields != nil {
		return nil, models.NewFormError(fields)
	}

	comment.Text = in.Form.Text
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, in DeleteCommentInput) error {
	if _, err := s.GetForEdit(ctx, in.PostID, in.CommentID, in.UserID); err != nil {
		return err
	}
	return s.commentRepo.Delete(ctx, in.CommentID)
}
