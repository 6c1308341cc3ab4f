// Package errors provides the structured error values returned by every jailstore backend.
package errors

import (
	"encoding/json"
	stderr "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for storage operations.
type ErrorCode string

// Error code constants. Callers branch on these to decide between retrying and
// surfacing a failure.
const (
	// Filesystem errors
	ErrCodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	ErrCodeFileExists      ErrorCode = "FILE_EXISTS"
	ErrCodeNotAFile        ErrorCode = "NOT_A_FILE"
	ErrCodeDirNotFound     ErrorCode = "DIR_NOT_FOUND"
	ErrCodeDirExists       ErrorCode = "DIR_EXISTS"
	ErrCodeNotADir         ErrorCode = "NOT_A_DIR"
	ErrCodePathNotFound    ErrorCode = "PATH_NOT_FOUND"
	ErrCodePathExists      ErrorCode = "PATH_EXISTS"
	ErrCodePathUnavailable ErrorCode = "PATH_UNAVAILABLE"
	ErrCodeReadOnly        ErrorCode = "READ_ONLY"

	// Storage errors
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// Schema errors
	ErrCodeSchema ErrorCode = "SCHEMA"
	ErrCodeSyntax ErrorCode = "SYNTAX"

	// Configuration errors
	ErrCodeInvalidConfig  ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad     ErrorCode = "CONFIG_LOAD"
	ErrCodeUnsupportedURI ErrorCode = "UNSUPPORTED_URI"

	// Internal errors
	ErrCodeUnknown   ErrorCode = "UNKNOWN"
	ErrCodeInvariant ErrorCode = "INVARIANT"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryStorage       ErrorCategory = "storage"
	CategorySchema        ErrorCategory = "schema"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// StoreError represents a structured error with context and metadata.
type StoreError struct {
	// Core error information
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Context  map[string]string      `json:"context,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`

	// Operational metadata
	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Error handling hints
	Retryable bool `json:"retryable"`
	Fatal     bool `json:"fatal,omitempty"`

	Stack string `json:"stack,omitempty"`
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is matches any *StoreError carrying the same code.
func (e *StoreError) Is(target error) bool {
	if storeErr, ok := target.(*StoreError); ok {
		return e.Code == storeErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *StoreError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Fatal {
		parts = append(parts, "Fatal=true")
	}
	if len(e.Context) > 0 {
		ctx, _ := json.Marshal(e.Context)
		parts = append(parts, fmt.Sprintf("Context=%s", ctx))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("StoreError{%s}", strings.Join(parts, ", "))
}

// JSON returns the error as a JSON string.
func (e *StoreError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// NewError creates a new error with default values for the code.
func NewError(code ErrorCode, message string) *StoreError {
	e := &StoreError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]string),
		Details:   make(map[string]interface{}),
		Retryable: IsRetryableByDefault(code),
		Fatal:     code == ErrCodeInvariant,
	}
	if e.Fatal {
		e.Stack = CaptureStack(1)
	}
	return e
}

// Newf creates a new error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *StoreError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeFileNotFound, ErrCodeFileExists, ErrCodeNotAFile,
		ErrCodeDirNotFound, ErrCodeDirExists, ErrCodeNotADir,
		ErrCodePathNotFound, ErrCodePathExists, ErrCodePathUnavailable,
		ErrCodeReadOnly:
		return CategoryFilesystem
	case ErrCodeQuotaExceeded:
		return CategoryStorage
	case ErrCodeSchema, ErrCodeSyntax:
		return CategorySchema
	case ErrCodeInvalidConfig, ErrCodeConfigLoad, ErrCodeUnsupportedURI:
		return CategoryConfiguration
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
// Only failures of an external collaborator are worth retrying; tree-level
// conditions are deterministic.
func IsRetryableByDefault(code ErrorCode) bool {
	return code == ErrCodeUnknown
}

// CodeOf extracts the code from err. Foreign errors report UNKNOWN and a nil
// error reports the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var storeErr *StoreError
	if stderr.As(err, &storeErr) {
		return storeErr.Code
	}
	return ErrCodeUnknown
}

// HasCode reports whether err carries code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsFatal reports whether err signals broken tree invariants. Fatal errors
// must abort the caller's operation; they are never retried.
func IsFatal(err error) bool {
	var storeErr *StoreError
	if stderr.As(err, &storeErr) {
		return storeErr.Fatal
	}
	return false
}

// CaptureStack captures the current stack trace for debugging.
func CaptureStack(skip int) string {
	const depth = 10
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:]) // +2 to skip this function and the caller
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.HasSuffix(frame.File, "errors/errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

// WithContext adds contextual information to an error
func (e *StoreError) WithContext(key, value string) *StoreError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *StoreError) WithDetail(key string, value interface{}) *StoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *StoreError) WithComponent(component string) *StoreError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *StoreError) WithOperation(operation string) *StoreError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *StoreError) WithCause(cause error) *StoreError {
	e.Cause = cause
	return e
}

// WithStack captures the current stack trace
func (e *StoreError) WithStack() *StoreError {
	e.Stack = CaptureStack(2)
	return e
}

// GetRecommendation returns a user-friendly recommendation for fixing the error
func (e *StoreError) GetRecommendation() string {
	recommendations := map[ErrorCode]string{
		ErrCodeFileNotFound: "The file does not exist or is a directory. " +
			"List the parent directory to check the name.",
		ErrCodeFileExists:    "A file already occupies this path. Remove it first or pick another name.",
		ErrCodeDirExists:     "The directory is not empty or is a directory. Retry with the recursive option.",
		ErrCodeNotADir:       "The path names a file, not a directory.",
		ErrCodePathNotFound:  "Nothing exists at this path inside the jail.",
		ErrCodePathUnavailable: "A parent directory is missing or is a file. " +
			"Create the parents first or use the recursive option.",
		ErrCodeReadOnly:      "The store was opened read-only. Reopen it without read-only mode to modify it.",
		ErrCodeQuotaExceeded: "The key-value slot is full. Remove data or raise the slot quota.",
		ErrCodeSchema:        "The serialized tree has an unknown version or an inconsistent layout.",
		ErrCodeSyntax:        "The data is not well-formed. Check the file for syntax errors.",
		ErrCodeInvalidConfig: "Configuration validation failed. " +
			"Check your configuration file syntax and required parameters.",
		ErrCodeConfigLoad:     "The configuration file could not be read or parsed.",
		ErrCodeUnsupportedURI: "Use one of memory://, file://, badger:// or s3:// storage URIs.",
		ErrCodeInvariant:      "The storage tree is corrupted. Abort and restore from a known good copy.",
	}

	if rec, exists := recommendations[e.Code]; exists {
		return rec
	}

	return "Please check the error message for details."
}

// DetailedDiagnostic returns a comprehensive diagnostic message
func (e *StoreError) DetailedDiagnostic() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Error: %s", e.Message))
	parts = append(parts, fmt.Sprintf("Code: %s", e.Code))
	parts = append(parts, fmt.Sprintf("Category: %s", e.Category))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component: %s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		parts = append(parts, "\nContext:")
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("  %s: %s", k, e.Context[k]))
		}
	}

	parts = append(parts, "\nRecommendation:")
	parts = append(parts, "  "+e.GetRecommendation())

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("\nUnderlying cause: %s", e.Cause.Error()))
	}

	return strings.Join(parts, "\n")
}
