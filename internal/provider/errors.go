// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes provider errors for handling.
type ErrorKind int

const (
	// KindConfiguration is a missing required credential or URL,
	// raised before any network call and never retried.
	KindConfiguration ErrorKind = iota

	// KindTransport is a network-level failure (DNS, refused connection,
	// timeout) caught and wrapped with the underlying message preserved.
	KindTransport

	// KindProtocol is a non-2xx HTTP status or a malformed body where a
	// required field cannot be recovered.
	KindProtocol

	// KindCredential is an explicit invalid-key signal from a provider,
	// separated from KindProtocol to produce an operator-actionable message.
	KindCredential
)

// String returns the kind name for logs.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindCredential:
		return "credential"
	default:
		return "unknown"
	}
}

// Error is the uniform error type crossing every adapter boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func configurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

func transportError(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}

func protocolError(message string) *Error {
	return &Error{Kind: KindProtocol, Message: message}
}

func credentialError(message string) *Error {
	return &Error{Kind: KindCredential, Message: message}
}

// =============================================================================
// KIND CHECKS
// =============================================================================

// kindOf extracts the provider error kind, or -1 for foreign errors.
func kindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorKind(-1)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return kindOf(err) == KindConfiguration }

// IsTransport reports whether err is a transport error.
func IsTransport(err error) bool { return kindOf(err) == KindTransport }

// IsProtocol reports whether err is a protocol error.
func IsProtocol(err error) bool { return kindOf(err) == KindProtocol }

// IsCredential reports whether err is a credential error.
func IsCredential(err error) bool { return kindOf(err) == KindCredential }
