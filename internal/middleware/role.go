package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ayoubz/gestion-salles/internal/model"
)

// RequireAdmin aborts the request with 403 unless the JWT role claim is
// administrateur.  It assumes JWTAuth ran earlier and stored the role in
// the context.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if !model.RoleFromString(role).IsAdmin() {
				return c.JSON(http.StatusForbidden, echo.Map{"message": "Non autorisé"})
			}
			return next(c)
		}
	}
}
