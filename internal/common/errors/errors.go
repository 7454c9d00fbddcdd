package errors

import (
	"fmt"
	"time"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	// Raffle errors
	ErrCodeRaffleNotFound  ErrorCode = "RAFFLE_NOT_FOUND"
	ErrCodeRaffleCompleted ErrorCode = "RAFFLE_COMPLETED"
	ErrCodeActiveRaffle    ErrorCode = "ACTIVE_RAFFLE_EXISTS"
	ErrCodeNotOwner        ErrorCode = "NOT_OWNER"

	// Ticket errors
	ErrCodeTicketNotFound     ErrorCode = "TICKET_NOT_FOUND"
	ErrCodeTicketTaken        ErrorCode = "TICKET_TAKEN"
	ErrCodePartialReservation ErrorCode = "PARTIAL_RESERVATION"

	// Payment errors
	ErrCodePaymentProvider ErrorCode = "PAYMENT_PROVIDER_ERROR"
	ErrCodePaymentDisabled ErrorCode = "PAYMENT_DISABLED"

	// Infrastructure errors
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeCacheError    ErrorCode = "CACHE_ERROR"
)

// AppError is the typed error carried from services to the delivery layer.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error is any of the "not found" classes.
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound ||
		e.Code == ErrCodeRaffleNotFound ||
		e.Code == ErrCodeTicketNotFound
}

func (e *AppError) IsValidation() bool {
	return e.Code == ErrCodeValidation || e.Code == ErrCodeBadRequest
}

func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized || e.Code == ErrCodeForbidden || e.Code == ErrCodeNotOwner
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeCacheError
}

// WithDetail attaches a key/value to the error payload.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New creates a new application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap attaches a cause to a new application error.
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Constructors for the errors services raise most often.

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewRaffleNotFoundError(raffleID string) *AppError {
	return New(ErrCodeRaffleNotFound, fmt.Sprintf("Raffle not found: %s", raffleID)).
		WithDetail("raffle_id", raffleID)
}

func NewTicketNotFoundError(ticketID string) *AppError {
	return New(ErrCodeTicketNotFound, fmt.Sprintf("Ticket not found: %s", ticketID)).
		WithDetail("ticket_id", ticketID)
}

// NewTicketTakenError reports a lost reservation race. The caller is expected
// to re-read the ticket and present its current state.
func NewTicketTakenError(ticketID string) *AppError {
	return New(ErrCodeTicketTaken, "Ticket is no longer available").
		WithDetail("ticket_id", ticketID)
}

// NewPartialReservationError enumerates the outcome of a batch reservation in
// which some tickets were lost to concurrent buyers. Reserved tickets stand.
func NewPartialReservationError(reserved, taken []int) *AppError {
	return New(ErrCodePartialReservation, "Some tickets could not be reserved").
		WithDetail("reserved_numbers", reserved).
		WithDetail("taken_numbers", taken)
}

func NewRaffleCompletedError(raffleID string) *AppError {
	return New(ErrCodeRaffleCompleted, "Raffle is completed and no longer accepts changes").
		WithDetail("raffle_id", raffleID)
}

func NewNotOwnerError(raffleID string) *AppError {
	return New(ErrCodeNotOwner, "Only the raffle owner may perform this operation").
		WithDetail("raffle_id", raffleID)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("Unauthorized: %s", reason))
}

func NewPaymentProviderError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePaymentProvider, fmt.Sprintf("Payment provider operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewPaymentDisabledError(raffleID string) *AppError {
	return New(ErrCodePaymentDisabled, "Payments are not enabled for this raffle").
		WithDetail("raffle_id", raffleID)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// AsAppError unwraps err into an AppError when possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil {
		appErr, _ = err.(*AppError)
	}
	return appErr, appErr != nil
}
