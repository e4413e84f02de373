package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/session"
)

func adminMiddleware(auth *jwtAuth, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.contextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && auth.contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// sessionMiddleware rejects tokens whose session ended or expired, and counts the request as session activity.
func sessionMiddleware(auth *jwtAuth, registry *session.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.contextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if err := registry.Touch(claims.Id); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
