package errors

import (
	"net/http"
)

// APIError is a request-level failure with a fixed status, a stable machine
// readable code and the problem type it is reported under.
type APIError struct {
	StatusCode  int
	ErrorCode   string
	ProblemType string
	Message     string
	Details     interface{}
}

func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of e carrying details. The catalog values below
// are shared, so they are never mutated.
func (e *APIError) WithDetails(details interface{}) *APIError {
	c := *e
	c.Details = details
	return &c
}

// WithMessage returns a copy of e with a different message
func (e *APIError) WithMessage(message string) *APIError {
	c := *e
	c.Message = message
	return &c
}

// Problem renders e as problem details for the given request path
func (e *APIError) Problem(instance string) *ProblemDetails {
	pd := NewProblemDetails(e.StatusCode, e.ProblemType, http.StatusText(e.StatusCode), e.Message, instance).
		WithExtension("error_code", e.ErrorCode)
	if e.Details != nil {
		pd.WithExtension("details", e.Details)
	}
	return pd
}

func newAPIError(status int, problemType, code, message string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, ProblemType: problemType, Message: message}
}

// Request errors raised outside the domain layer
var (
	ErrInvalidRequest    = newAPIError(http.StatusBadRequest, TypeValidation, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed  = newAPIError(http.StatusBadRequest, TypeValidation, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingFile       = newAPIError(http.StatusBadRequest, TypeValidation, "MISSING_FILE", "A file must be uploaded in the \"file\" form field")
	ErrUnsupportedFile   = newAPIError(http.StatusBadRequest, TypeValidation, "UNSUPPORTED_FILE", "Only .csv and .xlsx files are supported")
	ErrDatasetNotFound   = newAPIError(http.StatusNotFound, TypeDataNotFound, "DATASET_NOT_FOUND", "No dataset has been uploaded in this session")
	ErrUnsupportedMedia  = newAPIError(http.StatusUnsupportedMediaType, TypeValidation, "UNSUPPORTED_MEDIA_TYPE", "Unsupported content type")
	ErrRateLimitExceeded = newAPIError(http.StatusTooManyRequests, TypeRateLimit, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrMetricsDisabled   = newAPIError(http.StatusServiceUnavailable, TypeServiceDown, "METRICS_DISABLED", "Prometheus metrics are disabled")
	ErrSheetsDisabled    = newAPIError(http.StatusServiceUnavailable, TypeServiceDown, "SHEETS_DISABLED", "Google Sheets import is not configured")
)

// ValidationError is one rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every rejected field of a request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// ErrValidation reports a single rejected field
func ErrValidation(field, message string) *APIError {
	return NewValidationErrors([]ValidationError{{Field: field, Message: message}})
}

// NewValidationErrors reports several rejected fields at once
func NewValidationErrors(errs []ValidationError) *APIError {
	return ErrValidationFailed.WithDetails(ValidationErrors{Errors: errs})
}

// InvalidRequestWithError wraps a decoding failure
func InvalidRequestWithError(err error) *APIError {
	return ErrInvalidRequest.WithDetails(err.Error())
}

// WriteError writes err as problem+json for code paths that have no
// ErrorHandler, such as middleware that runs before routing.
func WriteError(w http.ResponseWriter, r *http.Request, err *APIError) {
	err.Problem(r.URL.Path).Write(w)
}
