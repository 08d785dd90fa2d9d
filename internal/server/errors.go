package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	exportdomain "github.com/smallbiznis/escolar/internal/export/domain"
	invoicedomain "github.com/smallbiznis/escolar/internal/invoice/domain"
	"github.com/smallbiznis/escolar/internal/scheduler"
	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
	"github.com/smallbiznis/escolar/pkg/relation"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

// validationSentinels become 400 responses carrying the sentinel as code.
var validationSentinels = []error{
	ErrInvalidRequest,
	exportdomain.ErrInvalidRequest,
	scheduler.ErrInvalidMode,
	scheduler.ErrInvalidSimulation,
	invoicedomain.ErrInvalidCategory,
	invoicedomain.ErrInvalidType,
	invoicedomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidRelation,
	invoicedomain.ErrInvalidDates,
	invoicedomain.ErrEmptyAmounts,
	invoicedomain.ErrAmountOverflow,
	invoicedomain.ErrSimulationTag,
	relation.ErrInvalidRelation,
	relation.ErrUnresolvedRelation,
	schooldomain.ErrInvalidID,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(sentinel),
					Code:    code,
					Message: err.Error(),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, scheduler.ErrRunInProgress),
		errors.Is(err, invoicedomain.ErrImmutableInvoice):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, exportdomain.ErrCompanyMissing),
		errors.Is(err, exportdomain.ErrCompanyNIFMissing):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "precondition_failed",
			Message: unwrapCode(err, exportdomain.ErrCompanyMissing, exportdomain.ErrCompanyNIFMissing),
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, exportdomain.ErrUploadUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invoicedomain.ErrNotFound),
		errors.Is(err, schooldomain.ErrNotFound),
		errors.Is(err, schooldomain.ErrCompanyNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(sentinel error) string {
	switch sentinel {
	case invoicedomain.ErrInvalidCategory:
		return "category"
	case invoicedomain.ErrInvalidType:
		return "type"
	case invoicedomain.ErrInvalidStatus:
		return "status"
	case invoicedomain.ErrInvalidDates:
		return "expirationDate"
	case invoicedomain.ErrEmptyAmounts, invoicedomain.ErrAmountOverflow:
		return "amounts"
	case invoicedomain.ErrSimulationTag:
		return "simulationTag"
	case scheduler.ErrInvalidMode:
		return "mode"
	case invoicedomain.ErrInvalidRelation, relation.ErrInvalidRelation, relation.ErrUnresolvedRelation:
		return "relation"
	default:
		return "request"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		return scheduler.ErrRunInProgress.Error()
	case errors.Is(err, invoicedomain.ErrImmutableInvoice):
		return invoicedomain.ErrImmutableInvoice.Error()
	default:
		return "conflict"
	}
}

func unwrapCode(err error, candidates ...error) string {
	for _, c := range candidates {
		if errors.Is(err, c) {
			return c.Error()
		}
	}
	return err.Error()
}
