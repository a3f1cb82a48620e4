package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/model"
)

// getUserID extracts the authenticated user's ID from context.  The JWT
// middleware stores the raw claim, which arrives as a float64 after JSON
// decoding, so every plausible representation is handled.
func getUserID(c echo.Context) uint64 {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case int64:
		return uint64(v)
	case int:
		return uint64(v)
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// getRole returns the caller's role from context, defaulting to the
// regular user role.
func getRole(c echo.Context) model.Role {
	role, _ := c.Get("role").(string)
	return model.RoleFromString(role)
}

// parseID reads a numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// datetimeLayouts lists the accepted wire formats for reservation dates,
// in the order they are tried.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDateTime parses a date or datetime string in any accepted layout.
func parseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range datetimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// validationError responds 422 with a single field error in the
// field-keyed shape the SPA expects.
func validationError(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{
		"errors": map[string][]string{field: {msg}},
	})
}

// validationErrors responds 422 with multiple field errors.
func validationErrors(c echo.Context, errs map[string][]string) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{"errors": errs})
}

// forbidden responds with the shared 403 body.
func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, echo.Map{"message": "Non autorisé"})
}

// trimPtr trims a string pointer in place and nils it out when the result
// is empty, so optional fields bind uniformly.
func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
