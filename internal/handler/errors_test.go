package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/blog-cms/internal/repository"
	"github.com/iliyamo/blog-cms/internal/service"
	"github.com/iliyamo/blog-cms/internal/utils"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("insert: %w", repository.ErrConflict), http.StatusBadRequest, msgConflict},
		{fmt.Errorf("register: hash password: %w", bcrypt.ErrPasswordTooLong), http.StatusBadRequest, msgValidation},
		{service.ErrInvalidCredentials, http.StatusBadRequest, msgInvalidCredentials},
		{utils.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
		{repository.ErrNotFound, http.StatusNotFound, "not found"},
		{echo.NewHTTPError(http.StatusBadRequest, "invalid request body"), http.StatusBadRequest, "invalid request body"},
		{echo.NewHTTPError(http.StatusBadGateway, "upstream said no"), http.StatusBadGateway, msgInternal},
		{errors.New("dial tcp 10.0.0.5:3306: connection refused"), http.StatusInternalServerError, msgInternal},
	}
	for _, tc := range cases {
		status, body := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.message, body.Message, tc.err.Error())
	}
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	var logs bytes.Buffer
	h := NewHTTPErrorHandler(slog.New(slog.NewTextHandler(&logs, nil)))

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), rec)
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")

	h(errors.New("db password is hunter2"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "request_id=req-1")
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewRequestValidator()
	err := v.Validate(&registerRequest{Username: "alice", Email: "bad", Password: "123"})

	var verr *ValidationError
	if assert.ErrorAs(t, err, &verr) {
		fields := map[string]string{}
		for _, f := range verr.Fields {
			fields[f.Field] = f.Message
		}
		assert.Equal(t, "must be a valid email address", fields["email"])
		assert.Equal(t, "must be at least 6 characters", fields["password"])
		assert.NotContains(t, fields, "username")
	}

	assert.NoError(t, v.Validate(&loginRequest{Email: "a@x.com", Password: "x"}))

	err = v.Validate(&registerRequest{Username: "alice", Email: "a@x.com", Password: strings.Repeat("é", 40)})
	if assert.ErrorAs(t, err, &verr) {
		assert.Equal(t, []FieldError{{Field: "password", Message: "must be at most 72 bytes"}}, verr.Fields)
	}
}
