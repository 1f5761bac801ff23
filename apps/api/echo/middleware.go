package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// permission decides whether the authenticated user may go on.
type permission func(claims Claims) bool

func requireClaims(allowed permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !allowed(claims) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// adminMiddleware lets admins through; when roles are given, the admin must hold one of them.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return requireClaims(func(claims Claims) bool {
		if !claims.IsAdmin {
			return false
		}
		if len(roles) == 0 {
			return true
		}
		for _, role := range roles {
			if claims.HasRole(role) {
				return true
			}
		}
		return false
	})
}

// staffMiddleware lets admins and teachers through.
func staffMiddleware() echo.MiddlewareFunc {
	return requireClaims(func(claims Claims) bool { return claims.IsAdmin || claims.IsTeacher })
}

func teacherMiddleware() echo.MiddlewareFunc {
	return requireClaims(func(claims Claims) bool { return claims.IsTeacher })
}
