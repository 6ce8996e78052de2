package server

import (
	"blogicum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Profile handles GET /profile/:username
func (s *Server) Profile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), c.Params("username"))
	if err != nil {
		return err
	}
	page, err := s.postService.ListByAuthor(c.UserContext(), profile, currentUserID(c), c.Query("page"))
	if err != nil {
		return err
	}
	return s.render(c, "blog/profile", fiber.Map{
		"Title":   profile.Username,
		"Profile": profile,
		"IsOwner": profile.ID == currentUserID(c),
		"Page":    page,
	})
}

// EditProfileForm handles GET /edit_profile
func (s *Server) EditProfileForm(c *fiber.Ctx) error {
	return s.renderProfileForm(c, service.ProfileFormFor(currentUser(c)), nil)
}

// EditProfile handles POST /edit_profile
func (s *Server) EditProfile(c *fiber.Ctx) error {
	var form service.ProfileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID: currentUserID(c),
		Form:   form,
	})
	if err != nil {
		if errs := formErrors(err); errs != nil {
			countForm("profile", false)
			return s.renderProfileForm(c, form, errs)
		}
		return err
	}

	countForm("profile", true)
	return redirect(c, profileURL(user.Username))
}

func (s *Server) renderProfileForm(c *fiber.Ctx, form service.ProfileForm, errs map[string]string) error {
	return s.render(c, "blog/user", fiber.Map{
		"Title":  "Edit profile",
		"Form":   form,
		"Errors": errs,
	})
}
