package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// badCodeMsg deliberately does not reveal whether the signature or the
// freshness check failed, to avoid aiding forgery attempts.
const badCodeMsg = "invalid or expired code"

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
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
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
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
		default:
			code, message = attendanceErrorCode(origErr)
			if code != http.StatusInternalServerError {
				break
			}
			// any other error is a server error
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var caller attendance.Caller
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				caller.ID = claims.Subject
				caller.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), caller)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
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

// attendanceErrorCode maps domain errors to client-visible statuses and
// messages. Geofence violations carry no distance data.
func attendanceErrorCode(err error) (int, string) {
	switch err {
	case attendance.ErrThrottled:
		return http.StatusTooManyRequests, "too many requests, please wait and try again"
	case attendance.ErrInvalidToken, attendance.ErrTokenExpired:
		return http.StatusBadRequest, badCodeMsg
	case attendance.ErrSessionNotFound:
		return http.StatusNotFound, attendance.ErrSessionNotFound.Error()
	case attendance.ErrSessionExpired:
		return http.StatusGone, attendance.ErrSessionExpired.Error()
	case attendance.ErrLocationRequired:
		return http.StatusForbidden, "location is required to check in"
	case attendance.ErrOutOfRange:
		return http.StatusForbidden, "check-in is not allowed from your current location"
	case attendance.ErrForbidden:
		return http.StatusForbidden, attendance.ErrForbidden.Error()
	}
	return http.StatusInternalServerError, ""
}
