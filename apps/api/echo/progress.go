package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/progress"
)

type progressApi struct {
	svc *progress.Service
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *progress.Service) {
	api := progressApi{svc: svc}

	pg := g.Group("/progress", jwt)
	pg.GET("/me", api.me)
	pg.PUT("/:categoryId", api.update)
}

// Handlers

func (api *progressApi) me(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	up, err := api.svc.ForUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing user progress")
	}
	return ctx.JSON(http.StatusOK, up)
}

// update marks a category as completed (or not) by the requesting user.
func (api *progressApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data ProgressRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressRequest")
	}

	catID := ctx.Param("categoryId")
	res := ProgressResponse{CategoryID: catID}
	if data.Completed == nil {
		res.Completed, err = api.svc.Toggle(ctx.Request().Context(), claims.Subject, catID)
	} else {
		res.Completed = *data.Completed
		err = api.svc.SetCompleted(ctx.Request().Context(), claims.Subject, catID, res.Completed)
	}
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, res)
}
