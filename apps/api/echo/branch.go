package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/progress"
	"github.com/trezcool/pathways/core/user"
)

type branchApi struct {
	svc         *branch.Service
	progressSvc *progress.Service
	validate    *validator.Validate
}

func registerBranchAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *branch.Service,
	progressSvc *progress.Service,
	validate *validator.Validate,
) {
	api := branchApi{svc: svc, progressSvc: progressSvc, validate: validate}

	bg := g.Group("/branches", jwt)
	bg.GET("", api.query, adminOnly)
	bg.POST("", api.create, adminOnly)
	bg.DELETE("/:id", api.destroy, adminOnly)
	bg.GET("/:id/progress", api.progress, roleMiddleware(user.RoleAdmin, user.RoleManager))
}

// Handlers

func (api *branchApi) query(ctx echo.Context) error {
	branches, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	return ctx.JSON(http.StatusOK, branches)
}

func (api *branchApi) create(ctx echo.Context) error {
	var data branch.NewBranch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBranch")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating branch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *branchApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting branch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// progress returns the progress of the branch staff. Managers only see their own branch.
func (api *branchApi) progress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if claims.Role == user.RoleManager && claims.BranchID != id {
		return errHttpForbidden
	}

	b, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding branch")
	}
	bp, err := api.progressSvc.ForBranch(ctx.Request().Context(), b.ID)
	if err != nil {
		return errors.Wrap(err, "computing branch progress")
	}
	return ctx.JSON(http.StatusOK, bp)
}
