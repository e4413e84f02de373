package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/session"
)

type sessionApi struct {
	auth     *jwtAuth
	registry *session.Registry
}

func registerSessionAPI(g *echo.Group, authed []echo.MiddlewareFunc, auth *jwtAuth, registry *session.Registry) {
	api := sessionApi{auth: auth, registry: registry}

	sg := g.Group("/sessions/current", authed...)
	sg.GET("", api.retrieve)
	sg.POST("/activity", api.activity)
	sg.GET("/events", api.events)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sess, err := api.registry.Lookup(claims.Id)
	if err != nil {
		return errors.Wrap(err, "looking up session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

// activity records an interaction reported by the client, one of session.TrackedEvents.
func (api *sessionApi) activity(ctx echo.Context) error {
	var data ActivityRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivityRequest")
	}
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.registry.Dispatch(claims.Id, data.Type); err != nil {
		return errors.Wrap(err, "dispatching activity")
	}
	return api.retrieve(ctx)
}

func (api *sessionApi) events(ctx echo.Context) error {
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	events, err := api.registry.Events(ctx.Request().Context(), claims.Id)
	if err != nil {
		return errors.Wrap(err, "querying session events")
	}
	return ctx.JSON(http.StatusOK, events)
}

type ActivityRequest struct {
	Type string `json:"type"`
}
