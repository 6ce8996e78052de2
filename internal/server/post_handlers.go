package server

import (
	"time"

	"blogicum/internal/featureflags"
	"blogicum/internal/models"
	"blogicum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Index handles GET /
func (s *Server) Index(c *fiber.Ctx) error {
	page, err := s.postService.ListPublished(c.UserContext(), c.Query("page"))
	if err != nil {
		return err
	}
	return s.render(c, "blog/index", fiber.Map{
		"Title": "Recent posts",
		"Page":  page,
	})
}

// CategoryPosts handles GET /category/:slug
func (s *Server) CategoryPosts(c *fiber.Ctx) error {
	category, page, err := s.postService.ListByCategory(c.UserContext(), c.Params("slug"), c.Query("page"))
	if err != nil {
		return err
	}
	return s.render(c, "blog/category", fiber.Map{
		"Title":    category.Title,
		"Category": category,
		"Page":     page,
	})
}

// PostDetail handles GET /posts/:id
func (s *Server) PostDetail(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	return s.renderDetail(c, id, service.CommentForm{}, nil)
}

// renderDetail draws the post page with its comments and the comment form.
func (s *Server) renderDetail(c *fiber.Ctx, id uint, form service.CommentForm, errs map[string]string) error {
	ctx := c.UserContext()
	post, err := s.postService.GetForViewer(ctx, id, currentUserID(c))
	if err != nil {
		return err
	}
	comments, err := s.commentService.ListForPost(ctx, post.ID)
	if err != nil {
		return err
	}
	return s.render(c, "blog/detail", fiber.Map{
		"Title":    post.Title,
		"Post":     post,
		"IsAuthor": post.IsAuthoredBy(currentUserID(c)),
		"Comments": comments,
		"Form":     form,
		"Errors":   errs,
	})
}

// CreatePostForm handles GET /posts/create
func (s *Server) CreatePostForm(c *fiber.Ctx) error {
	return s.renderPostForm(c, "/posts/create", nil, service.PostForm{
		PubDate:     time.Now().UTC().Format(service.PubDateLayouts[0]),
		IsPublished: true,
	}, nil)
}

// CreatePost handles POST /posts/create
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var form service.PostForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}
	image, err := s.postImage(c)
	if err != nil {
		return err
	}

	user := currentUser(c)
	_, err = s.postService.Create(c.UserContext(), service.CreatePostInput{
		UserID: user.ID,
		Form:   form,
		Image:  image,
	})
	if err != nil {
		if errs := formErrors(err); errs != nil {
			countForm("post", false)
			return s.renderPostForm(c, "/posts/create", nil, form, errs)
		}
		return err
	}

	countForm("post", true)
	return redirect(c, profileURL(user.Username))
}

// EditPostForm handles GET /posts/:id/edit
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := s.postService.GetForEdit(c.UserContext(), id, currentUserID(c))
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(id))
		}
		return err
	}
	return s.renderPostForm(c, postURL(id)+"/edit", post, service.FormFromPost(post), nil)
}

// EditPost handles POST /posts/:id/edit
func (s *Server) EditPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var form service.PostForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}
	image, err := s.postImage(c)
	if err != nil {
		return err
	}

	post, err := s.postService.Update(c.UserContext(), service.UpdatePostInput{
		UserID: currentUserID(c),
		PostID: id,
		Form:   form,
		Image:  image,
	})
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(id))
		}
		if errs := formErrors(err); errs != nil {
			countForm("post", false)
			current, getErr := s.postService.GetForEdit(c.UserContext(), id, currentUserID(c))
			if getErr != nil {
				return getErr
			}
			return s.renderPostForm(c, postURL(id)+"/edit", current, form, errs)
		}
		return err
	}

	countForm("post", true)
	return redirect(c, postURL(post.ID))
}

// DeletePostConfirm handles GET /posts/:id/delete
func (s *Server) DeletePostConfirm(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	post, err := s.postService.GetForEdit(c.UserContext(), id, currentUserID(c))
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(id))
		}
		return err
	}
	return s.render(c, "blog/delete", fiber.Map{
		"Title": "Delete post",
		"Post":  post,
	})
}

// DeletePost handles POST /posts/:id/delete
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	err = s.postService.Delete(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	})
	if err != nil {
		if isUnauthorized(err) {
			return redirect(c, postURL(id))
		}
		return err
	}
	return redirect(c, profileURL(currentUser(c).Username))
}

func (s *Server) renderPostForm(c *fiber.Ctx, action string, post *models.Post, form service.PostForm, errs map[string]string) error {
	choices, err := s.postService.FormChoices(c.UserContext(), post)
	if err != nil {
		return err
	}
	title := "New post"
	if post != nil {
		title = "Edit post"
	}
	return s.render(c, "blog/create", fiber.Map{
		"Title":   title,
		"Action":  action,
		"Post":    post,
		"Form":    form,
		"Errors":  errs,
		"Choices": choices,
	})
}

// postImage reads the uploaded post image when uploads are enabled for the current user.
func (s *Server) postImage(c *fiber.Ctx) ([]byte, error) {
	if !s.featureFlags.EnabledOr(featureflags.ImageUploads, currentUserID(c), true) {
		return nil, nil
	}
	return readUpload(c, "image")
}
