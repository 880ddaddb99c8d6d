package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/langschool/backoffice/pkg/catalog"
	"github.com/langschool/backoffice/pkg/enrollment"
	"github.com/langschool/backoffice/pkg/guard"
	"github.com/langschool/backoffice/pkg/runtime"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeDuplicateEnrollment = "duplicate_enrollment"
	CodeCapacityExceeded    = "capacity_exceeded"
	CodeReferentialBlock    = "referential_block"
	CodeNotFound            = "not_found"
	CodeStoreUnavailable    = "store_unavailable"
	CodePaymentExists       = "payment_exists"
	CodeInvalidAmount       = "invalid_amount"
	CodeConflict            = "conflict"
	CodeValidation          = "validation_failed"
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeInternal            = "internal_error"
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Field    string          `json:"field,omitempty"`
	Decision *guard.Decision `json:"decision,omitempty"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// classify maps an error to its HTTP status and body.
func classify(err error) (int, ErrorBody) {
	var (
		validation *runtime.ValidationError
		blocked    *guard.BlockedError
		httpErr    *echo.HTTPError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, ErrorBody{Code: CodeValidation, Message: validation.Error(), Field: validation.Field}
	case errors.As(err, &blocked):
		return http.StatusConflict, ErrorBody{Code: CodeReferentialBlock, Message: blocked.Decision.Reason, Decision: &blocked.Decision}
	case errors.Is(err, guard.ErrReferentialBlock):
		return http.StatusConflict, ErrorBody{Code: CodeReferentialBlock, Message: err.Error()}
	case errors.Is(err, enrollment.ErrDuplicateEnrollment):
		return http.StatusConflict, ErrorBody{Code: CodeDuplicateEnrollment, Message: err.Error()}
	case errors.Is(err, enrollment.ErrCapacityExceeded):
		return http.StatusConflict, ErrorBody{Code: CodeCapacityExceeded, Message: err.Error()}
	case errors.Is(err, enrollment.ErrPaymentExists):
		return http.StatusConflict, ErrorBody{Code: CodePaymentExists, Message: err.Error()}
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, enrollment.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, ErrorBody{Code: CodeInvalidAmount, Message: err.Error()}
	case errors.Is(err, runtime.ErrInvalidData):
		return http.StatusUnprocessableEntity, ErrorBody{Code: CodeValidation, Message: err.Error(), Field: runtime.ConstraintName(err)}
	case errors.Is(err, guard.ErrUnknownKind):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, runtime.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, runtime.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{Code: CodeStoreUnavailable, Message: "the database is unavailable, retry later"}
	case errors.As(err, &httpErr):
		return httpErr.Code, ErrorBody{Code: httpCode(httpErr.Code), Message: httpMessage(httpErr)}
	}

	return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}
}

func httpCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return CodeBadRequest
	case http.StatusServiceUnavailable:
		return CodeStoreUnavailable
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeBadRequest
}

func httpMessage(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}

// errorHandler renders errors returned by handlers and middleware.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := classify(err)
		if status >= 500 {
			logger.Error("request failed",
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"method", c.Request().Method,
				"path", c.Path(),
				"error", err,
			)
		}
		if status == http.StatusServiceUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorResponse{Error: body})
		}
		if writeErr != nil {
			logger.Error("failed to write error response", "error", writeErr)
		}
	}
}
