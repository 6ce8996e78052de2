package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"blogicum/internal/featureflags"
	"blogicum/internal/middleware"
	"blogicum/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parseID extracts a route parameter by name as a positive uint.
// Malformed identifiers are reported as not found, like any unknown row.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Invalid %s", param))
	}
	return uint(id), nil
}

// render draws name inside the base layout with the shared page data merged in.
func (s *Server) render(c *fiber.Ctx, name string, data fiber.Map) error {
	return c.Render(name, s.viewData(c, data), baseLayout)
}

// viewData adds the values every page needs to data.
func (s *Server) viewData(c *fiber.Ctx, data fiber.Map) fiber.Map {
	if data == nil {
		data = fiber.Map{}
	}
	user := currentUser(c)
	data["CurrentUser"] = user
	data["CSRF"], _ = c.Locals("csrf").(string)
	data["Path"] = c.Path()
	data["ImageUploads"] = s.featureFlags.EnabledOr(featureflags.ImageUploads, currentUserID(c), true)
	data["Registration"] = s.featureFlags.EnabledOr(featureflags.Registration, currentUserID(c), true)
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	return data
}

// formErrors returns the per-field messages of a validation error, or nil for any other error.
func formErrors(err error) map[string]string {
	var appErr *models.AppError
	if !errors.As(err, &appErr) || appErr.Code != models.CodeValidation {
		return nil
	}
	if appErr.Fields == nil {
		return map[string]string{"__all__": appErr.Message}
	}
	return appErr.Fields
}

func isUnauthorized(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeUnauthorized
}

// countForm records a handled form submission.
func countForm(form string, saved bool) {
	outcome := "saved"
	if !saved {
		outcome = "invalid"
	}
	middleware.FormSubmissions.WithLabelValues(form, outcome).Inc()
}

// readUpload returns the content of the named multipart file, nil when none was sent.
func readUpload(c *fiber.Ctx, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		// No multipart body or no file under field.
		return nil, nil
	}
	if fh.Size == 0 {
		return nil, nil
	}
	return readMultipartFile(fh)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func postURL(id uint) string {
	return fmt.Sprintf("/posts/%d", id)
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username)
}

// redirect answers a form post with 302 Found.
func redirect(c *fiber.Ctx, location string) error {
	return c.Redirect(location, fiber.StatusFound)
}
