package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// fieldName returns the JSON path of a failed field without the root struct,
// e.g. "guardian.phone" for "NewEnrollment.guardian.phone".
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// statusOf maps err to a response status and body. ok is false for server errors,
// which get a generic body.
func statusOf(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	switch cause := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if cause == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, cause.Message, true
		}
		if inner, isHTTP := cause.Internal.(*echo.HTTPError); isHTTP {
			cause = inner
		}
		return cause.Code, cause.Message, true
	case validator.ValidationErrors:
		fields := make(map[string]string, len(cause))
		for _, fe := range cause {
			fields[fieldName(fe)] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, true
	case *core.ValidationError:
		if len(cause.Fields) == 0 {
			return http.StatusBadRequest, cause.Error(), true
		}
		fields := make(map[string]string, len(cause.Fields))
		for _, fe := range cause.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, true
	case *core.NotFoundError:
		return http.StatusNotFound, cause.Error(), true
	case *core.UnavailableError:
		return http.StatusBadRequest, cause.Error(), true
	}
	// PersistenceError and anything unexpected
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler returns the echo.HTTPErrorHandler that renders application errors as JSON.
// signalShutdown is called whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := statusOf(err, translator)
		if !ok {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Username: claims.Username, Email: claims.Email}
			}
			msg := fmt.Sprintf("%s %s failed", ctx.Request().Method, ctx.Path())
			logger.Error(msg, errors.Wrap(err, msg), usr)

			if ctx.Echo().Debug {
				body = err.Error()
			}
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}
		if m, isStr := body.(string); isStr {
			body = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			logger.Warn("writing error response", err)
		}
	}
}
