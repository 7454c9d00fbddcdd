package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cvelasquez94/raffle-fast/internal/common/errors"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
)

// ErrorHandler recovers panics and renders them through the shared error format.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := GetRequestID(c)

		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithRequestID(requestID)

		sendErrorResponse(c, appErr)
	})
}

// RequestID injects an X-Request-ID header into every request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := GetRequestID(c)
	appErr.WithRequestID(requestID)

	response := ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
	}

	logError(appErr, c)

	c.JSON(httpStatusFor(appErr), response)
}

func httpStatusFor(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeRaffleNotFound, errors.ErrCodeTicketNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeNotOwner:
		return http.StatusForbidden
	case errors.ErrCodeConflict, errors.ErrCodeTicketTaken, errors.ErrCodeActiveRaffle:
		return http.StatusConflict
	case errors.ErrCodePartialReservation:
		// Part of the batch succeeded; the payload enumerates both sides.
		return http.StatusMultiStatus
	case errors.ErrCodeRaffleCompleted:
		return http.StatusGone
	case errors.ErrCodePaymentDisabled:
		return http.StatusUnprocessableEntity
	case errors.ErrCodePaymentProvider:
		return http.StatusBadGateway
	case errors.ErrCodeDatabaseError, errors.ErrCodeCacheError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func logError(appErr *errors.AppError, c *gin.Context) {
	event := logger.Error()
	switch {
	case appErr.IsInternal():
		// keep error level
	case appErr.IsUnauthorized():
		event = logger.Warn()
	default:
		event = logger.Info()
	}

	event.
		Str("request_id", GetRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)

	if appErr.Cause != nil {
		event.Err(appErr.Cause)
	}

	event.Msg("Request failed")
}

// GetRequestID returns the request id set by the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}

// HandleError converts a service error into the shared JSON error response.
// Handlers call this at their boundary; services never write to the response.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		sendErrorResponse(c, appErr)
		return
	}

	appErr := errors.Wrap(err, errors.ErrCodeInternal, "Unexpected error")
	sendErrorResponse(c, appErr)
}
