package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorCode classifies host errors
type ErrorCode int

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeArgParse
	ErrCodeConstruction
	ErrCodeSerialization
	ErrCodeScriptInjection
	ErrCodeNotFound
	ErrCodeValidation
	ErrCodeConnection
	ErrCodeTimeout
	ErrCodeBusy
	ErrCodeUnsupported
	ErrCodeDuplicate
	ErrCodeConstraint
	ErrCodePermission
	ErrCodeDiskSpace
	ErrCodeCorruption
	ErrCodeSchema
	ErrCodeInternal
)

// String returns a string representation of the error code
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeArgParse:
		return "ARG_PARSE"
	case ErrCodeConstruction:
		return "CONSTRUCTION"
	case ErrCodeSerialization:
		return "SERIALIZATION"
	case ErrCodeScriptInjection:
		return "SCRIPT_INJECTION"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeValidation:
		return "VALIDATION"
	case ErrCodeConnection:
		return "CONNECTION"
	case ErrCodeTimeout:
		return "TIMEOUT"
	case ErrCodeBusy:
		return "BUSY"
	case ErrCodeUnsupported:
		return "UNSUPPORTED"
	case ErrCodeDuplicate:
		return "DUPLICATE"
	case ErrCodeConstraint:
		return "CONSTRAINT"
	case ErrCodePermission:
		return "PERMISSION"
	case ErrCodeDiskSpace:
		return "DISK_SPACE"
	case ErrCodeCorruption:
		return "CORRUPTION"
	case ErrCodeSchema:
		return "SCHEMA"
	case ErrCodeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// HostError is an error raised anywhere in the widget host, with classification and context
type HostError struct {
	Op        string            // operation name
	Err       error             // underlying error
	Code      ErrorCode         // error classification
	Retryable bool              // whether retrying can help
	Context   map[string]string // additional context information
	Timestamp time.Time         // when the error occurred
}

func (e *HostError) Error() string {
	if e == nil {
		return "host error"
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Code != ErrCodeUnknown {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code.String()))
	}

	if e.Retryable {
		parts = append(parts, "retryable=true")
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
	}

	contextStr := ""
	if len(parts) > 0 {
		contextStr = fmt.Sprintf(" [%s]", strings.Join(parts, " "))
	}

	if e.Err != nil {
		return e.Err.Error() + contextStr
	}
	return "host error" + contextStr
}

func (e *HostError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches another *HostError by code, otherwise defers to the wrapped error
func (e *HostError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*HostError); ok {
		return e.Code == t.Code
	}
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

func (e *HostError) IsRetryable() bool {
	if e == nil {
		return false
	}
	return e.Retryable
}

// GetCode returns the code as a string for logging.ClassifiedError
func (e *HostError) GetCode() string {
	if e == nil {
		return ErrCodeUnknown.String()
	}
	return e.Code.String()
}

// GetContext never returns nil
func (e *HostError) GetContext() map[string]string {
	if e == nil || e.Context == nil {
		return make(map[string]string)
	}
	return e.Context
}

func (e *HostError) GetTimestamp() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.Timestamp
}

// WithContext mutates the receiver; only use it before the error is shared.
func (e *HostError) WithContext(key, value string) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a HostError with the given classification
func New(op string, err error, code ErrorCode) *HostError {
	return &HostError{
		Op:        op,
		Err:       err,
		Code:      code,
		Retryable: isRetryableError(code, err),
		Context:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// NewWithContext creates a HostError carrying a copy of context
func NewWithContext(op string, err error, code ErrorCode, context map[string]string) *HostError {
	hostErr := New(op, err, code)
	for k, v := range context {
		hostErr.Context[k] = v
	}
	return hostErr
}

func isRetryableError(code ErrorCode, err error) bool {
	switch code {
	case ErrCodeConnection, ErrCodeTimeout, ErrCodeBusy:
		return true
	case ErrCodeUnknown:
		if err != nil {
			errStr := strings.ToLower(err.Error())
			return strings.Contains(errStr, "temporary") ||
				strings.Contains(errStr, "retry") ||
				strings.Contains(errStr, "busy") ||
				strings.Contains(errStr, "locked")
		}
		return false
	default:
		return false
	}
}

func hasCode(err error, code ErrorCode) bool {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first HostError in err's chain
func CodeOf(err error) ErrorCode {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr.Code
	}
	return ErrCodeUnknown
}

func IsArgParse(err error) bool        { return hasCode(err, ErrCodeArgParse) }
func IsConstruction(err error) bool    { return hasCode(err, ErrCodeConstruction) }
func IsSerialization(err error) bool   { return hasCode(err, ErrCodeSerialization) }
func IsScriptInjection(err error) bool { return hasCode(err, ErrCodeScriptInjection) }
func IsNotFound(err error) bool        { return hasCode(err, ErrCodeNotFound) }
func IsValidation(err error) bool      { return hasCode(err, ErrCodeValidation) }
func IsConnection(err error) bool      { return hasCode(err, ErrCodeConnection) }
func IsTimeout(err error) bool         { return hasCode(err, ErrCodeTimeout) }
func IsBusy(err error) bool            { return hasCode(err, ErrCodeBusy) }
func IsUnsupported(err error) bool     { return hasCode(err, ErrCodeUnsupported) }
func IsDuplicate(err error) bool       { return hasCode(err, ErrCodeDuplicate) }
func IsCorruption(err error) bool      { return hasCode(err, ErrCodeCorruption) }
func IsSchema(err error) bool          { return hasCode(err, ErrCodeSchema) }

// IsRetryable checks if any HostError in err's chain is retryable
func IsRetryable(err error) bool {
	var hostErr *HostError
	if errors.As(err, &hostErr) {
		return hostErr.Retryable
	}
	return false
}
