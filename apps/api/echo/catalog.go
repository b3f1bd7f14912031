package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/catalog"
)

type catalogApi struct {
	svc      *catalog.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *catalog.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}

	pg := g.Group("/paths", jwt)
	pg.GET("", api.tree)
	pg.POST("", api.createPath, adminOnly)
	pg.PUT("/:id", api.renamePath, adminOnly)
	pg.DELETE("/:id", api.deletePath, adminOnly)
	pg.POST("/:id/categories", api.createCategory, adminOnly)

	cg := g.Group("/categories", jwt, adminOnly)
	cg.PUT("/:id", api.renameCategory)
	cg.DELETE("/:id", api.deleteCategory)
	cg.POST("/:id/materials", api.createMaterial)

	mg := g.Group("/materials", jwt, adminOnly)
	mg.PUT("/:id", api.updateMaterial)
	mg.DELETE("/:id", api.deleteMaterial)
}

// Handlers

func (api *catalogApi) tree(ctx echo.Context) error {
	paths, err := api.svc.Tree(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "building catalog tree")
	}
	return ctx.JSON(http.StatusOK, paths)
}

func (api *catalogApi) createPath(ctx echo.Context) error {
	var data catalog.NewPath
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPath")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	path, err := api.svc.CreatePath(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating path")
	}
	return ctx.JSON(http.StatusCreated, path)
}

func (api *catalogApi) renamePath(ctx echo.Context) error {
	var data catalog.NewPath
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPath")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	path, err := api.svc.RenamePath(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "renaming path")
	}
	return ctx.JSON(http.StatusOK, path)
}

func (api *catalogApi) deletePath(ctx echo.Context) error {
	if err := api.svc.DeletePath(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting path")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) createCategory(ctx echo.Context) error {
	var data catalog.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cat, err := api.svc.CreateCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) renameCategory(ctx echo.Context) error {
	var data catalog.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	cat, err := api.svc.RenameCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "renaming category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) deleteCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) createMaterial(ctx echo.Context) error {
	var data catalog.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	mat, err := api.svc.CreateMaterial(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating material")
	}
	return ctx.JSON(http.StatusCreated, mat)
}

func (api *catalogApi) updateMaterial(ctx echo.Context) error {
	var data catalog.NewMaterial
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMaterial")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	mat, err := api.svc.UpdateMaterial(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating material")
	}
	return ctx.JSON(http.StatusOK, mat)
}

func (api *catalogApi) deleteMaterial(ctx echo.Context) error {
	if err := api.svc.DeleteMaterial(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
