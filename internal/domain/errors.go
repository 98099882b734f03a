package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	// Storage errors. Corruption is healed by the registry and only ever logged;
	// I/O failures are returned to the caller of the mutating operation.
	ErrStorageCorrupt = fmt.Errorf("agent storage corrupted")
	ErrStorageIO      = fmt.Errorf("agent storage i/o failed")

	// Collaborator errors. The orchestrator maps each to a fallback value.
	ErrAnalysisFailed   = fmt.Errorf("task analysis failed")
	ErrCreationFailed   = fmt.Errorf("agent creation failed")
	ErrDelegationFailed = fmt.Errorf("delegation failed")
	ErrEmptyResult      = fmt.Errorf("empty result")

	ErrConfigLoad = fmt.Errorf("failed to load configuration")

	// Provider transport errors.
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Upsert")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// StorageIOError tags err as a StorageIO failure while keeping it in the chain.
func StorageIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DomainError{Op: op, Err: fmt.Errorf("%w: %w", ErrStorageIO, err)}
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// ErrorCode is a machine-parseable error category for logs.
type ErrorCode string

const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
	CodeStorageCorrupt   ErrorCode = "STORAGE_CORRUPT"
	CodeStorageIO        ErrorCode = "STORAGE_IO"
	CodeAnalysisFailed   ErrorCode = "ANALYSIS_FAILED"
	CodeCreationFailed   ErrorCode = "CREATION_FAILED"
	CodeDelegationFailed ErrorCode = "DELEGATION_FAILED"
	CodeEmptyResult      ErrorCode = "EMPTY_RESULT"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid      ErrorCode = "AUTH_INVALID"
)

// errorCodes is ordered from most to least specific so wrapped chains resolve
// to the narrowest code.
var errorCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrStorageCorrupt, CodeStorageCorrupt},
	{ErrStorageIO, CodeStorageIO},
	{ErrAnalysisFailed, CodeAnalysisFailed},
	{ErrCreationFailed, CodeCreationFailed},
	{ErrDelegationFailed, CodeDelegationFailed},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrEmptyResult, CodeEmptyResult},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrProviderError, CodeProviderError},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeUnknown
}
