package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents transport failures talking to a dependency
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents invalid input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents a failure to obtain or use provider credentials
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeVerification represents an inbound request whose signature did not verify
	ErrTypeVerification ErrorType = "verification"
	// ErrTypeDecode represents an inbound body that is not a well-formed event
	ErrTypeDecode ErrorType = "decode"
	// ErrTypeHandler represents a failure returned by an event handler
	ErrTypeHandler ErrorType = "handler"
	// ErrTypeRegistration represents a failed webhook registration
	ErrTypeRegistration ErrorType = "registration"
	// ErrTypeNotRegistered means no webhook subscription is stored
	ErrTypeNotRegistered ErrorType = "not_registered"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func newError(t ErrorType, msg string, cause error) *AppError {
	return &AppError{Type: t, Message: msg, Cause: cause}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return newError(ErrTypeConnection, msg, cause)
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return newError(ErrTypeValidation, msg, nil)
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return newError(ErrTypeConfig, msg, nil)
}

// AuthError creates a new authentication error
func AuthError(msg string, cause error) *AppError {
	return newError(ErrTypeAuth, msg, cause)
}

// VerificationError creates a new signature verification error
func VerificationError(msg string, cause error) *AppError {
	return newError(ErrTypeVerification, msg, cause)
}

// DecodeError creates a new decode error
func DecodeError(msg string, cause error) *AppError {
	return newError(ErrTypeDecode, msg, cause)
}

// HandlerError wraps the failure of the handler registered for eventType
func HandlerError(eventType string, cause error) *AppError {
	return newError(ErrTypeHandler, fmt.Sprintf("handler for %s failed", eventType), cause).
		WithContext("event_type", eventType)
}

// RegistrationError creates a new registration error
func RegistrationError(msg string, cause error) *AppError {
	return newError(ErrTypeRegistration, msg, cause)
}

// NotRegisteredError reports that no webhook subscription is stored
func NotRegisteredError() *AppError {
	return newError(ErrTypeNotRegistered, "webhook is not registered", nil)
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return newError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return newError(ErrTypeInternal, msg, cause)
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if an error, or any error it wraps, is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		appErr, ok := As(err)
		if !ok {
			return false
		}
		if appErr.Type == errType {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrTypeInternal
}

// HTTPStatus maps an error to the status code the HTTP surfaces answer with
func HTTPStatus(err error) int {
	switch GetType(err) {
	case "":
		return http.StatusOK
	case ErrTypeValidation, ErrTypeDecode:
		return http.StatusBadRequest
	case ErrTypeVerification:
		return http.StatusUnauthorized
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeNotRegistered:
		return http.StatusConflict
	case ErrTypeAuth, ErrTypeConnection, ErrTypeRegistration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
