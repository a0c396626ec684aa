// Package errortypes provides error types and handling for SchemaRecall.
package errortypes

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// ErrorType represents the type of error that occurred
type ErrorType string

// Error types
const (
	ErrorTypeInput             ErrorType = "input"
	ErrorTypeDimensionMismatch ErrorType = "dimension_mismatch"
	ErrorTypeProvider          ErrorType = "provider"
	ErrorTypeStorage           ErrorType = "storage"
	ErrorTypeUnsupported       ErrorType = "unsupported"
	ErrorTypeNotFound          ErrorType = "not_found"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeInternal          ErrorType = "internal"
)

// AppError represents an application error with context
type AppError struct {
	Err       error
	Type      ErrorType
	Message   string
	StackInfo string
	Fields    map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

// Unwrap unwraps the error to support errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithField adds a field to the error for additional context
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithFields adds multiple fields to the error for additional context
func (e *AppError) WithFields(fields map[string]interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// captureStack captures the stack trace at the call site
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		// Skip testing and standard library frames
		if !strings.Contains(frame.File, "testing/") && !strings.Contains(frame.File, "/go/src/") {
			fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return builder.String()
}

// newAppError creates a new AppError with the given type, underlying error, and message
func newAppError(errType ErrorType, err error, message string) *AppError {
	if err == nil {
		err = errors.New(string(errType) + " error")
	}

	return &AppError{
		Err:       err,
		Type:      errType,
		Message:   message,
		StackInfo: captureStack(),
		Fields:    make(map[string]interface{}),
	}
}

// InputError reports a missing or empty required argument.
func InputError(err error, message string) *AppError {
	return newAppError(ErrorTypeInput, err, message)
}

// DimensionMismatchError reports an embedding whose length disagrees with the
// store's locked-in dimension.
func DimensionMismatchError(want, got int) *AppError {
	err := fmt.Errorf("embedding has %d values, store dimension is %d", got, want)
	return newAppError(ErrorTypeDimensionMismatch, err, "dimension mismatch").
		WithField("want", want).
		WithField("got", got)
}

// ProviderError reports a failed call to the embedding provider.
func ProviderError(err error, message string) *AppError {
	return newAppError(ErrorTypeProvider, err, message)
}

// StorageError reports a failure to read or write a snapshot.
func StorageError(err error, message string) *AppError {
	return newAppError(ErrorTypeStorage, err, message)
}

// UnsupportedError reports an operation the store does not implement.
func UnsupportedError(err error, message string) *AppError {
	return newAppError(ErrorTypeUnsupported, err, message)
}

// NotFoundError reports a lookup of an unknown record id.
func NotFoundError(err error, message string) *AppError {
	return newAppError(ErrorTypeNotFound, err, message)
}

// ConfigError creates a new configuration error
func ConfigError(err error, message string) *AppError {
	return newAppError(ErrorTypeConfig, err, message)
}

// InternalError creates a new internal error
func InternalError(err error, message string) *AppError {
	return newAppError(ErrorTypeInternal, err, message)
}

// LogError logs an AppError using the provided slog.Logger or the default slog logger.
// It logs the error message, type, stack trace, and any associated fields.
func LogError(logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		args := []any{
			"type", string(appErr.Type),
			"original_error", appErr.Err.Error(),
		}
		if appErr.StackInfo != "" {
			args = append(args, "stack", appErr.StackInfo)
		}
		for k, v := range appErr.Fields {
			args = append(args, k, v)
		}
		logger.Error(appErr.Message, args...)
	} else {
		logger.Error(err.Error(), "error", err)
	}
}

// TypeOf returns the ErrorType of the outermost AppError in err's chain, or
// the empty string when err carries none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

func isType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsInputError checks if an error is an input error
func IsInputError(err error) bool { return isType(err, ErrorTypeInput) }

// IsDimensionMismatch checks if an error is a dimension mismatch
func IsDimensionMismatch(err error) bool { return isType(err, ErrorTypeDimensionMismatch) }

// IsProviderError checks if an error is an embedding provider error
func IsProviderError(err error) bool { return isType(err, ErrorTypeProvider) }

// IsStorageError checks if an error is a storage error
func IsStorageError(err error) bool { return isType(err, ErrorTypeStorage) }

// IsUnsupported checks if an error is an unsupported operation error
func IsUnsupported(err error) bool { return isType(err, ErrorTypeUnsupported) }

// IsNotFound checks if an error is a not-found error
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool { return isType(err, ErrorTypeConfig) }
