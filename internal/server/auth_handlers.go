package server

import (
	"blogicum/internal/featureflags"
	"blogicum/internal/middleware"
	"blogicum/internal/models"
	"blogicum/internal/service"

	"github.com/gofiber/fiber/v2"
)

// RegistrationForm handles GET /auth/registration
func (s *Server) RegistrationForm(c *fiber.Ctx) error {
	if !s.registrationOpen(c) {
		return fiber.ErrNotFound
	}
	return s.renderRegistration(c, service.RegistrationForm{}, nil)
}

// Register handles POST /auth/registration
func (s *Server) Register(c *fiber.Ctx) error {
	if !s.registrationOpen(c) {
		return fiber.ErrNotFound
	}
	var form service.RegistrationForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	user, err := s.userService.Register(c.UserContext(), form)
	if err != nil {
		if errs := formErrors(err); errs != nil {
			countForm("registration", false)
			form.Password1, form.Password2 = "", ""
			return s.renderRegistration(c, form, errs)
		}
		return err
	}

	countForm("registration", true)
	middleware.Logger.InfoContext(c.UserContext(), "user registered", "user_id", user.ID, "username", user.Username)
	return redirect(c, "/auth/login")
}

// LoginForm handles GET /auth/login
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.renderLogin(c, service.LoginForm{}, nil)
}

// Login handles POST /auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var form service.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form submission")
	}

	user, err := s.userService.Authenticate(c.UserContext(), form)
	if err != nil {
		if errs := formErrors(err); errs != nil {
			countForm("login", false)
			form.Password = ""
			return s.renderLogin(c, form, errs)
		}
		return err
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	s.setSessionCookie(c, token)

	countForm("login", true)
	return redirect(c, safeNext(c.FormValue("next", c.Query("next")), "/"))
}

// Logout handles POST /auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims, ok := c.Locals("session").(*sessionClaims); ok {
		if err := s.revoke(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to revoke session", "error", err)
		}
	}
	s.clearSessionCookie(c)
	return redirect(c, "/")
}

func (s *Server) registrationOpen(c *fiber.Ctx) bool {
	return s.featureFlags.EnabledOr(featureflags.Registration, currentUserID(c), true)
}

func (s *Server) renderRegistration(c *fiber.Ctx, form service.RegistrationForm, errs map[string]string) error {
	return s.render(c, "auth/registration", fiber.Map{
		"Title":  "Sign up",
		"Form":   form,
		"Errors": errs,
	})
}

func (s *Server) renderLogin(c *fiber.Ctx, form service.LoginForm, errs map[string]string) error {
	return s.render(c, "auth/login", fiber.Map{
		"Title":  "Log in",
		"Form":   form,
		"Errors": errs,
		"Next":   c.FormValue("next", c.Query("next")),
	})
}
