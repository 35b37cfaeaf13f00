package shared

import (
	"github.com/samber/oops"
)

// Domain error codes
const (
	ErrCodeInvalidInput     = 1001
	ErrCodeNotFound         = 1002
	ErrCodeInvalidOperation = 1003

	// Session specific errors (2000-2999)
	ErrCodeSessionNotActive     = 2001
	ErrCodeSessionAlreadyActive = 2002
	ErrCodeSessionFinished      = 2003
	ErrCodeInvalidGoal          = 2004

	// Voice specific errors (3000-3999)
	ErrCodeSynthesisFailure = 3001
	ErrCodeSynthesisTimeout = 3002
	ErrCodeEmptyAudio       = 3003
	ErrCodePlaybackFailure  = 3004
	ErrCodeChannelBusy      = 3005
	ErrCodeInvalidRequest   = 3006

	// History specific errors (4000-4999)
	ErrCodeHistoryUnavailable = 4001
	ErrCodeHistoryCorrupt     = 4002
)

// NewDomainError creates a new domain error using oops
func NewDomainError(code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(message)
}

// NewDomainErrorf creates a new domain error with formatted message
func NewDomainErrorf(code int, format string, args ...interface{}) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(format, args...)
}

// WrapDomainError wraps an existing error with domain context
func WrapDomainError(err error, code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(err, message)
}

// codeToString converts int error code to string
func codeToString(code int) string {
	switch code {
	case ErrCodeInvalidInput:
		return "INVALID_INPUT"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeInvalidOperation:
		return "INVALID_OPERATION"
	case ErrCodeSessionNotActive:
		return "SESSION_NOT_ACTIVE"
	case ErrCodeSessionAlreadyActive:
		return "SESSION_ALREADY_ACTIVE"
	case ErrCodeSessionFinished:
		return "SESSION_FINISHED"
	case ErrCodeInvalidGoal:
		return "INVALID_GOAL"
	case ErrCodeSynthesisFailure:
		return "SYNTHESIS_FAILURE"
	case ErrCodeSynthesisTimeout:
		return "SYNTHESIS_TIMEOUT"
	case ErrCodeEmptyAudio:
		return "EMPTY_AUDIO"
	case ErrCodePlaybackFailure:
		return "PLAYBACK_FAILURE"
	case ErrCodeChannelBusy:
		return "CHANNEL_BUSY"
	case ErrCodeInvalidRequest:
		return "INVALID_REQUEST"
	case ErrCodeHistoryUnavailable:
		return "HISTORY_UNAVAILABLE"
	case ErrCodeHistoryCorrupt:
		return "HISTORY_CORRUPT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Common domain error builders
func ErrInvalidInput(msg string) error {
	return NewDomainError(ErrCodeInvalidInput, msg)
}

func ErrNotFound(resource string) error {
	return NewDomainErrorf(ErrCodeNotFound, "%s not found", resource)
}

func ErrInvalidOperation(operation string) error {
	return NewDomainErrorf(ErrCodeInvalidOperation, "Invalid operation: %s", operation)
}

func ErrSessionNotActive() error {
	return NewDomainError(ErrCodeSessionNotActive, "Run session is not active")
}
