package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/shinyyama/barter-backend/internal/reqctx"
	"github.com/shinyyama/barter-backend/internal/service"
	"github.com/sirupsen/logrus"
)

const loggerKey = "logger"

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeServiceError maps service sentinels onto the error envelope.
func writeServiceError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", err.Error()))
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_transition", err.Error()))
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_state", err.Error()))
	case errors.Is(err, service.ErrUpstream):
		return c.JSON(http.StatusBadGateway, NewErrorResponse("upstream_error", fallback))
	case errors.Is(err, repository.ErrDBNotReady):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "database not ready"))
	}
	requestLog(c).WithError(err).Error(fallback)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", fallback))
}

// ContextLogger stores a logrus entry tagged with the request id on each echo context.
// It must run after the request id middleware.
func ContextLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(loggerKey, log.WithField("rid", reqctx.RID(c.Request().Context())))
			return next(c)
		}
	}
}

func requestLog(c echo.Context) logrus.FieldLogger {
	if l, ok := c.Get(loggerKey).(logrus.FieldLogger); ok {
		return l
	}
	return logrus.WithField("rid", reqctx.RID(c.Request().Context()))
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseIDParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
