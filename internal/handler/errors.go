package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorHandler translates errors returned by handlers and middleware into
// JSON responses. Unknown errors become a bare 500 and are logged; their
// text never reaches the client.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err)
		if status == http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func classify(err error) (int, errorBody) {
	if v, ok := apperr.AsValidation(err); ok {
		return http.StatusBadRequest, errorBody{Error: "validation_error", Message: v.Message, Field: v.Field}
	}
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Error: "unauthenticated", Message: apperr.ErrUnauthenticated.Error()}
	case errors.Is(err, apperr.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: "invalid_credentials", Message: apperr.ErrInvalidCredentials.Error()}
	case errors.Is(err, apperr.ErrAccountDisabled):
		return http.StatusForbidden, errorBody{Error: "account_disabled", Message: "account is disabled"}
	case errors.Is(err, apperr.ErrSelfAction):
		return http.StatusForbidden, errorBody{Error: "self_action", Message: "operation not allowed on your own account"}
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: "forbidden", Message: "insufficient permissions"}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, errorBody{Error: "conflict", Message: apperr.ErrConflict.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "not_found", Message: "resource not found"}
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Error: "too_many_requests", Message: apperr.ErrRateLimited.Error()}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		return he.Code, errorBody{Error: "http_error", Message: msg}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal_error", Message: "internal server error"}
}
