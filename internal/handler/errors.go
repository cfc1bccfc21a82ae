package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/blog-cms/internal/repository"
	"github.com/iliyamo/blog-cms/internal/service"
	"github.com/iliyamo/blog-cms/internal/utils"
)

// Client-facing messages.
const (
	msgConflict           = "Username or email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgValidation         = "Validation failed"
	msgInternal           = "internal server error"
)

type errorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// NewHTTPErrorHandler maps domain errors returned by handlers to status codes
// and JSON bodies. Unknown errors become a 500 with a generic message; the
// real cause is only logged.
func NewHTTPErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := mapError(err)
		if status == http.StatusInternalServerError {
			logger.ErrorContext(c.Request().Context(), "request failed",
				"err", err,
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.WarnContext(c.Request().Context(), "write error response", "err", werr)
		}
	}
}

func mapError(err error) (int, errorResponse) {
	var verr *ValidationError
	var herr *echo.HTTPError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Message: msgValidation, Errors: verr.Fields}
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return http.StatusBadRequest, errorResponse{Message: msgValidation, Errors: []FieldError{
			{Field: "password", Message: "must be at most 72 bytes"},
		}}
	case errors.Is(err, repository.ErrConflict):
		return http.StatusBadRequest, errorResponse{Message: msgConflict}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest, errorResponse{Message: msgInvalidCredentials}
	case errors.Is(err, utils.ErrInvalidToken):
		return http.StatusUnauthorized, errorResponse{Message: "invalid token"}
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, errorResponse{Message: "not found"}
	case errors.As(err, &herr):
		if herr.Code >= http.StatusInternalServerError {
			return herr.Code, errorResponse{Message: msgInternal}
		}
		return herr.Code, errorResponse{Message: fmt.Sprint(herr.Message)}
	default:
		return http.StatusInternalServerError, errorResponse{Message: msgInternal}
	}
}
