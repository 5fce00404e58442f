package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind discriminates failure categories across the whole pipeline
type ErrorKind string

const (
	KindUnknown                ErrorKind = ""
	KindPackageNotFound        ErrorKind = "package_not_found"
	KindInvalidPackage         ErrorKind = "invalid_package"
	KindUnsupportedFormat      ErrorKind = "unsupported_format"
	KindVerificationFailed     ErrorKind = "verification_failed"
	KindBackendNotFound        ErrorKind = "backend_not_found"
	KindDependencyUnmet        ErrorKind = "dependency_unmet"
	KindInstallationTimeout    ErrorKind = "installation_timeout"
	KindInstallationCancelled  ErrorKind = "installation_cancelled"
	KindInsufficientPrivileges ErrorKind = "insufficient_privileges"
	KindServiceNotRunning      ErrorKind = "service_not_running"
	KindNetworkTimeout         ErrorKind = "network_timeout"
	KindDownloadFailed         ErrorKind = "download_failed"
	KindBatchActive            ErrorKind = "batch_active"
	KindHistory                ErrorKind = "history"
)

// Error is the one concrete error type carried through the pipeline.
// Message is always populated; Details and Suggestion are optional.
type Error struct {
	Kind       ErrorKind
	Message    string
	Details    string
	Suggestion string
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given kind and message
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error wrapping an underlying cause
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails attaches a detail string and returns the same error
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithSuggestion attaches a remediation hint and returns the same error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// KindOf extracts the ErrorKind from any error chain. Foreign errors
// report KindUnknown.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// NewChecksumMismatchError reports a digest mismatch. Both values go into
// the message so the caller always sees expected against computed.
func NewChecksumMismatchError(expected, computed string) *Error {
	return NewError(KindVerificationFailed,
		fmt.Sprintf("checksum mismatch: expected %s, computed %s", expected, computed)).
		WithSuggestion("re-download the package or check the published checksum")
}

// NewSignatureError reports an invalid or unverifiable signature
func NewSignatureError(detail string) *Error {
	return NewError(KindVerificationFailed, "signature verification failed").
		WithDetails(detail).
		WithSuggestion("import the publisher's key or obtain a signed package")
}

// NewStructuralError reports a failed format-specific integrity inspection
func NewStructuralError(detail string) *Error {
	return NewError(KindVerificationFailed, "package structure check failed").
		WithDetails(detail).
		WithSuggestion("the file may be corrupt; re-download it")
}

// NewBackendNotFoundError reports that no capable package manager exists
// on the host for the given format.
func NewBackendNotFoundError(format Format) *Error {
	return NewError(KindBackendNotFound,
		fmt.Sprintf("no installation backend available for %s packages", format)).
		WithSuggestion("install the matching package manager via your distribution")
}

// NewUnsupportedFormatError reports a format outside the supported set
func NewUnsupportedFormatError(path string) *Error {
	return NewError(KindUnsupportedFormat, "unsupported package format").
		WithDetails(path).
		WithSuggestion("supported extensions: .deb, .rpm, .snap, .flatpak")
}

// ExitCodeFor maps an error to the CLI process exit code
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch KindOf(err) {
	case KindPackageNotFound, KindInvalidPackage, KindUnsupportedFormat:
		return ExitInvalidArgs
	case KindVerificationFailed:
		return ExitVerification
	case KindBackendNotFound, KindServiceNotRunning:
		return ExitBackendMissing
	case KindInstallationTimeout, KindNetworkTimeout:
		return ExitTimeout
	case KindInstallationCancelled:
		return ExitInterrupted
	case KindInsufficientPrivileges:
		return ExitPermission
	case KindHistory:
		return ExitHistory
	case KindDependencyUnmet, KindDownloadFailed:
		return ExitInstallFailed
	default:
		return ExitGeneral
	}
}
