package llm

import (
	"errors"
	"fmt"
)

// ErrorType classifies gateway failures.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeProvider
	ErrorTypeRequest
	ErrorTypeResponse
	ErrorTypeAPI
	ErrorTypeEmptyCompletion
	ErrorTypeTimeout
	ErrorTypeOrchestration
)

// GatewayError is the error type returned by the provider gateway.
type GatewayError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.TypeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.TypeString(), e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) TypeString() string {
	switch e.Type {
	case ErrorTypeProvider:
		return "ProviderError"
	case ErrorTypeRequest:
		return "RequestError"
	case ErrorTypeResponse:
		return "ResponseError"
	case ErrorTypeAPI:
		return "APIError"
	case ErrorTypeEmptyCompletion:
		return "EmptyCompletionError"
	case ErrorTypeTimeout:
		return "TimeoutError"
	case ErrorTypeOrchestration:
		return "OrchestrationError"
	default:
		return "UnknownError"
	}
}

// NewGatewayError creates a GatewayError.
func NewGatewayError(errType ErrorType, message string, err error) *GatewayError {
	return &GatewayError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// IsErrorType reports whether err wraps a GatewayError of the given type.
func IsErrorType(err error, errType ErrorType) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Type == errType
	}
	return false
}
