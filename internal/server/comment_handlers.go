package server

import (
	"blogicum/internal/models"
	"blogicum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AddComment handles POST /posts/:id/comment. It redirects to the post whether or not
// the comment was valid.
func (s *Server) AddComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form service.CommentForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	_, err = s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		UserID: currentUserID(c),
		PostID: postID,
		Form:   form,
	})
	if err != nil {
		if formErrors(err) == nil {
			return err
		}
		countForm("comment", false)
	} else {
		countForm("comment", true)
	}
	return redirect(c, postURL(postID))
}

// EditCommentForm handles GET /posts/:id/edit_comment/:commentId
func (s *Server) EditCommentForm(c *fiber.Ctx) error {
	postID, commentID, err := commentParams(c)
	if err != nil {
		return err
	}
	comment, err := s.commentService.GetForEdit(c.UserContext(), postID, commentID, currentUserID(c))
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(postID))
		}
		return err
	}
	return s.renderCommentPage(c, comment, service.CommentForm{Text: comment.Text}, nil, false)
}

// EditComment handles POST /posts/:id/edit_comment/:commentId
func (s *Server) EditComment(c *fiber.Ctx) error {
	postID, commentID, err := commentParams(c)
	if err != nil {
		return err
	}
	var form service.CommentForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	_, err = s.commentService.Update(c.UserContext(), service.UpdateCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: commentID,
		Form:      form,
	})
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(postID))
		}
		if errs := formErrors(err); errs != nil {
			countForm("comment", false)
			comment, getErr := s.commentService.GetForEdit(c.UserContext(), postID, commentID, currentUserID(c))
			if getErr != nil {
				return getErr
			}
			return s.renderCommentPage(c, comment, form, errs, false)
		}
		return err
	}

	countForm("comment", true)
	return redirect(c, postURL(postID))
}

// DeleteCommentConfirm handles GET /posts/:id/delete_comment/:commentId
func (s *Server) DeleteCommentConfirm(c *fiber.Ctx) error {
	postID, commentID, err := commentParams(c)
	if err != nil {
		return err
	}
	comment, err := s.commentService.GetForEdit(c.UserContext(), postID, commentID, currentUserID(c))
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(postID))
		}
		return err
	}
	return s.renderCommentPage(c, comment, service.CommentForm{Text: comment.Text}, nil, true)
}

// DeleteComment handles POST /posts/:id/delete_comment/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	postID, commentID, err := commentParams(c)
	if err != nil {
		return err
	}
	err = s.commentService.Delete(c.UserContext(), service.DeleteCommentInput{
		UserID:    currentUserID(c),
		PostID:    postID,
		CommentID: commentID,
	})
	if err != nil && !isUnauthorized(err) {
		return err
	}
	return redirect(c, postURL(postID))
}

func commentParams(c *fiber.Ctx) (postID, commentID uint, err error) {
	if postID, err = parseID(c, "id"); err != nil {
		return 0, 0, err
	}
	if commentID, err = parseID(c, "commentId"); err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}

func (s *Server) renderCommentPage(c *fiber.Ctx, comment *models.Comment, form service.CommentForm, errs map[string]string, deleting bool) error {
	title := "Edit comment"
	if deleting {
		title = "Delete comment"
	}
	return s.render(c, "blog/comment", fiber.Map{
		"Title":    title,
		"Comment":  comment,
		"Form":     form,
		"Errors":   errs,
		"Deleting": deleting,
	})
}
