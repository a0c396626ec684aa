package server

import (
	"log/slog"

	"github.com/localrivet/schemarecall/internal/errortypes"
	"github.com/localrivet/schemarecall/internal/tools"
)

// Error codes returned in tool responses
const (
	// CodeInvalidInput indicates a missing or empty argument
	CodeInvalidInput = "INVALID_INPUT"

	// CodeDimensionMismatch indicates an embedding of the wrong length
	CodeDimensionMismatch = "DIMENSION_MISMATCH"

	// CodeProviderError indicates the embedding provider call failed
	CodeProviderError = "PROVIDER_ERROR"

	// CodeStorageError indicates the snapshot could not be read or written
	CodeStorageError = "STORAGE_ERROR"

	// CodeUnsupported indicates the operation is not implemented
	CodeUnsupported = "UNSUPPORTED"

	// CodeNotFound indicates an unknown record id
	CodeNotFound = "NOT_FOUND"

	// CodeConfigError indicates a misconfigured server
	CodeConfigError = "CONFIG_ERROR"

	// CodeInternalError indicates any other failure
	CodeInternalError = "INTERNAL_ERROR"
)

// errorCodes maps error types to response codes.
var errorCodes = map[errortypes.ErrorType]string{
	errortypes.ErrorTypeInput:             CodeInvalidInput,
	errortypes.ErrorTypeDimensionMismatch: CodeDimensionMismatch,
	errortypes.ErrorTypeProvider:          CodeProviderError,
	errortypes.ErrorTypeStorage:           CodeStorageError,
	errortypes.ErrorTypeUnsupported:       CodeUnsupported,
	errortypes.ErrorTypeNotFound:          CodeNotFound,
	errortypes.ErrorTypeConfig:            CodeConfigError,
	errortypes.ErrorTypeInternal:          CodeInternalError,
}

// ErrorCode returns the response code for err.
func ErrorCode(err error) string {
	if code, ok := errorCodes[errortypes.TypeOf(err)]; ok {
		return code
	}
	return CodeInternalError
}

// fail logs err and records it on the response. Input errors are the
// caller's mistake and are logged at warn without a stack.
func fail(logger *slog.Logger, result *tools.Result, tool string, err error) {
	code := ErrorCode(err)
	if code == CodeInvalidInput || code == CodeNotFound {
		logger.Warn("Tool call rejected", "tool", tool, "code", code, "error", err)
	} else {
		errortypes.LogError(logger.With("tool", tool, "code", code), err)
	}
	result.Fail(code, err.Error())
}
