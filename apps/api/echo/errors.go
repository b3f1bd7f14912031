package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pathways/core"
	"github.com/trezcool/pathways/core/branch"
	"github.com/trezcool/pathways/core/catalog"
	"github.com/trezcool/pathways/core/importer"
	"github.com/trezcool/pathways/core/user"
)

// statusCodes maps the domain sentinel errors to their HTTP status.
var statusCodes = []struct {
	err  error
	code int
}{
	{user.ErrNotFound, http.StatusNotFound},
	{branch.ErrNotFound, http.StatusNotFound},
	{catalog.ErrPathNotFound, http.StatusNotFound},
	{catalog.ErrCategoryNotFound, http.StatusNotFound},
	{catalog.ErrMaterialNotFound, http.StatusNotFound},
	{importer.ErrUnknownKind, http.StatusNotFound},

	{user.ErrUsernameExists, http.StatusConflict},
	{user.ErrEmailExists, http.StatusConflict},
	{branch.ErrNameExists, http.StatusConflict},
	{branch.ErrInUse, http.StatusConflict},
	{catalog.ErrPathExists, http.StatusConflict},
	{catalog.ErrCategoryExists, http.StatusConflict},
}

func sentinelStatus(err error) (int, bool) {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.code, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if sc, ok := sentinelStatus(err); ok {
			code = sc
			message = err.Error()
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *core.ValidationError:
				if origErr.Fields != nil {
					fldErrs := make(map[string]string, len(origErr.Fields))
					for _, fErr := range origErr.Fields {
						fldErrs[fErr.Field] = fErr.Error
					}
					message = fldErrs
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			case *importer.ParseError:
				code = http.StatusBadRequest
				message = origErr.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
