package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/video"
)

type videoApi struct {
	auth *jwtAuth
	svc  *video.Service
}

func registerVideoAPI(g *echo.Group, authed []echo.MiddlewareFunc, auth *jwtAuth, svc *video.Service) {
	api := videoApi{auth: auth, svc: svc}

	ag := g.Group("", authed...)
	ag.POST("/lectures/:id/views", api.start)

	vg := ag.Group("/views/:id", api.ownViewMiddleware)
	vg.GET("", api.retrieve)
	vg.PUT("/viewport", api.resize)
	vg.DELETE("", api.destroy)
}

func (api *videoApi) start(ctx echo.Context) error {
	var data StartViewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartViewRequest")
	}
	claims, err := api.auth.contextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	label := claims.Email
	if label == "" {
		label = claims.Username
	}
	v, err := api.svc.StartView(ctx.Request().Context(), video.StartView{
		LectureID: ctx.Param("id"),
		UserID:    claims.Subject,
		SessionID: claims.Id,
		Label:     label,
		Width:     data.Width,
		Height:    data.Height,
	})
	if err != nil {
		return errors.Wrap(err, "starting view")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *videoApi) retrieve(ctx echo.Context) error {
	v, err := api.svc.View(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding view")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *videoApi) resize(ctx echo.Context) error {
	var data ViewportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ViewportRequest")
	}
	v, err := api.svc.Resize(ctx.Param("id"), data.Width, data.Height)
	if err != nil {
		return errors.Wrap(err, "resizing view")
	}
	return ctx.JSON(http.StatusOK, v)
}

func (api *videoApi) destroy(ctx echo.Context) error {
	if err := api.svc.EndView(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "ending view")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ownViewMiddleware hides views opened by another user.
func (api *videoApi) ownViewMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := api.auth.contextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		v, err := api.svc.View(ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding view")
		}
		if v.UserID != claims.Subject {
			return errHttpNotFound
		}
		return next(ctx)
	}
}

type (
	StartViewRequest struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	ViewportRequest struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
)
