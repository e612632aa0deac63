package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/bdobrica/parlor/common/trace"
	"github.com/bdobrica/parlor/internal/parlor/chat"
	"github.com/bdobrica/parlor/internal/parlor/logging"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, persona.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, persona.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chat.ErrInvalidRequest),
		errors.Is(err, training.ErrInvalidRecord),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, persona.ErrUnavailable),
		errors.Is(err, training.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the mapped error response. Internal details are
// only exposed for client errors.
func fail(c echo.Context, err error) error {
	ctx := c.Request().Context()
	code := statusFor(err)

	msg := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		logging.WithTrace(ctx).Error("backing store unavailable", "path", c.Path(), "err", err)
		msg = "service temporarily unavailable"
	case http.StatusInternalServerError:
		logging.WithTrace(ctx).Error("request failed", "path", c.Path(), "err", err)
		msg = "internal error"
	default:
		logging.WithTrace(ctx).Debug("request rejected", "path", c.Path(), "status", code, "err", err)
	}

	return c.JSON(code, errorResponse{Error: msg, TraceID: trace.FromContext(ctx)})
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.Join(chat.ErrInvalidRequest, errors.New("invalid request body"))
	}
	if err := c.Validate(dst); err != nil {
		return err
	}
	return nil
}
