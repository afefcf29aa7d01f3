package errors

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// ClassifyError maps driver, network and standard library errors onto host error codes
func ClassifyError(err error) ErrorCode {
	if err == nil {
		return ErrCodeUnknown
	}

	if code := CodeOf(err); code != ErrCodeUnknown {
		return code
	}

	if code := classifySQLiteError(err); code != ErrCodeUnknown {
		return code
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrCodeNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ENOENT):
		return ErrCodeConnection
	case errors.Is(err, os.ErrPermission):
		return ErrCodePermission
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCodeTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrCodeConnection
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unique constraint"):
		return ErrCodeDuplicate
	case strings.Contains(errStr, "constraint failed"):
		return ErrCodeConstraint
	case strings.Contains(errStr, "database is locked"):
		return ErrCodeBusy
	case strings.Contains(errStr, "database disk image is malformed"):
		return ErrCodeCorruption
	case strings.Contains(errStr, "no such table"), strings.Contains(errStr, "no such column"):
		return ErrCodeSchema
	case strings.Contains(errStr, "permission denied"):
		return ErrCodePermission
	case strings.Contains(errStr, "no space left"), strings.Contains(errStr, "disk full"):
		return ErrCodeDiskSpace
	case strings.Contains(errStr, "connection refused"):
		return ErrCodeConnection
	case strings.Contains(errStr, "timeout"):
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}

// Wrap classifies err and wraps it; nil stays nil
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return New(op, err, ClassifyError(err))
}

// WrapWithContext is Wrap with additional context
func WrapWithContext(op string, err error, contextMap map[string]string) error {
	if err == nil {
		return nil
	}
	return NewWithContext(op, err, ClassifyError(err), contextMap)
}

// HandleArgParseError reports a malformed KEY=VALUE token
func HandleArgParseError(op string, token string, reason string) error {
	return NewWithContext(op, errors.New(reason), ErrCodeArgParse, map[string]string{
		"token": token,
	})
}

// HandleConstructionError wraps a toolkit failure to build a window
func HandleConstructionError(op string, label string, err error) error {
	return NewWithContext(op, err, ErrCodeConstruction, map[string]string{
		"window_label": label,
	})
}

// HandleSerializationError wraps a failure to encode a window state record
func HandleSerializationError(op string, label string, err error) error {
	return NewWithContext(op, err, ErrCodeSerialization, map[string]string{
		"window_label": label,
	})
}

// HandleScriptInjectionError wraps a failure to evaluate the open-args script in a window
func HandleScriptInjectionError(op string, label string, err error) error {
	return NewWithContext(op, err, ErrCodeScriptInjection, map[string]string{
		"window_label": label,
	})
}

// HandleNotFound creates a standardized not found error
func HandleNotFound(op string, resource string, identifier string) error {
	return NewWithContext(op, errors.New(resource+" not found"), ErrCodeNotFound, map[string]string{
		"resource":   resource,
		"identifier": identifier,
	})
}

// HandleValidationError creates a standardized validation error
func HandleValidationError(op string, field string, value string, reason string) error {
	return NewWithContext(op, errors.New("validation failed"), ErrCodeValidation, map[string]string{
		"field":  field,
		"value":  value,
		"reason": reason,
	})
}

// HandleConnectionError creates a standardized connection error
func HandleConnectionError(op string, details string) error {
	return NewWithContext(op, errors.New("connection error"), ErrCodeConnection, map[string]string{
		"details": details,
	})
}

// HandleTimeoutError creates a standardized timeout error
func HandleTimeoutError(op string, timeout string) error {
	return NewWithContext(op, context.DeadlineExceeded, ErrCodeTimeout, map[string]string{
		"timeout": timeout,
	})
}

// HandleUnsupportedError reports a platform capability that is not available
func HandleUnsupportedError(op string, capability string, platform string) error {
	return NewWithContext(op, errors.ErrUnsupported, ErrCodeUnsupported, map[string]string{
		"capability": capability,
		"platform":   platform,
	})
}
