package echoapi

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core/importer"
)

const (
	mimeTextCSV = "text/csv"
	mimeXLSX    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	importFileField = "file"
)

type importApi struct {
	svc *importer.Service
}

func registerImportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *importer.Service) {
	api := importApi{svc: svc}

	g.POST("/imports/:kind", api.create, jwt, adminOnly)
	g.GET("/exports/:kind", api.export, jwt, adminOnly)
}

// Handlers

// create imports a raw CSV body, or the csv or xlsx "file" of a multipart form.
func (api *importApi) create(ctx echo.Context) error {
	kind, err := importer.ParseKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	tbl, err := readTable(ctx)
	if err != nil {
		return err
	}

	rep, err := api.svc.ImportTable(ctx.Request().Context(), kind, tbl)
	if err != nil {
		return errors.Wrapf(err, "importing %s", kind)
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *importApi) export(ctx echo.Context) error {
	kind, err := importer.ParseKind(ctx.Param("kind"))
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	if err = api.svc.Export(ctx.Request().Context(), kind, buf); err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+string(kind)+`.csv"`)
	return ctx.Blob(http.StatusOK, mimeTextCSV+"; charset=utf-8", buf.Bytes())
}

func readTable(ctx echo.Context) (importer.Table, error) {
	req := ctx.Request()
	ct := req.Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		fh, err := ctx.FormFile(importFileField)
		if err != nil {
			return importer.Table{}, echo.NewHTTPError(http.StatusBadRequest, `missing "file" field`)
		}
		f, err := fh.Open()
		if err != nil {
			return importer.Table{}, errors.Wrap(err, "opening uploaded file")
		}
		defer f.Close()
		if strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") || fh.Header.Get(echo.HeaderContentType) == mimeXLSX {
			return importer.ParseXLSX(f)
		}
		return importer.ParseTable(f)
	}

	var body io.Reader = req.Body
	if strings.HasPrefix(ct, mimeXLSX) {
		return importer.ParseXLSX(body)
	}
	return importer.ParseTable(body)
}
