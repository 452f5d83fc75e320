package zapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// Kind is the category of a dispatch failure.
type Kind int

const (
	// KindNetwork indicates a connect, TLS, or timeout failure
	KindNetwork Kind = iota
	// KindAuth indicates rejected credentials or an expired session
	KindAuth
	// KindDevice indicates the router rejected the operation with a structured error
	KindDevice
	// KindProtocol indicates a malformed or unexpected reply envelope
	KindProtocol
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "Network Error"
	case KindAuth:
		return "Authentication Error"
	case KindDevice:
		return "Device Error"
	case KindProtocol:
		return "Protocol Error"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// NetworkSubtype refines KindNetwork failures.
type NetworkSubtype int

const (
	NetworkGeneral NetworkSubtype = iota
	NetworkTimeout
	NetworkConnectionRefused
	NetworkDNS
	NetworkHostUnreachable
	NetworkUnreachable
	NetworkTLS
	NetworkServer
)

// Error is the single error type surfaced by the zapi package.
type Error struct {
	Kind           Kind           // Category of error
	Message        string         // Human-readable error message
	Code           string         // Device error code (KindDevice, KindAuth from the router)
	Tag            string         // Device error tag (rpc-error.error-tag)
	StatusCode     int            // HTTP status code (if applicable)
	Err            error          // Underlying error (if any)
	NetworkSubtype NetworkSubtype // More specific network error type
	Host           string         // Router address (for context)
	Retryable      bool           // Whether the dispatcher may retry the call
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code=%s", msg, e.Code)
		if e.Tag != "" {
			msg += ", tag=" + e.Tag
		}
		msg += ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport failure to a KindNetwork error with a subtype.
func ClassifyNetworkError(err error, host string) *Error {
	if err == nil {
		return nil
	}

	netErr := func(subtype NetworkSubtype, message string, retryable bool) *Error {
		return &Error{
			Kind:           KindNetwork,
			Message:        message,
			Err:            err,
			NetworkSubtype: subtype,
			Host:           host,
			Retryable:      retryable,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return netErr(NetworkTimeout, "request timed out", true)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return netErr(NetworkDNS, fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name), false)
	}

	var unknownAuth x509.UnknownAuthorityError
	var certInvalid x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &unknownAuth) || errors.As(err, &certInvalid) ||
		errors.As(err, &hostnameErr) || errors.As(err, &recordErr) {
		return netErr(NetworkTLS, "TLS handshake failed", true)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return netErr(NetworkConnectionRefused, "router refused connection", true)
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return netErr(NetworkHostUnreachable, "host unreachable", true)
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return netErr(NetworkUnreachable, "network unreachable", true)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		classified := ClassifyNetworkError(urlErr.Err, host)
		classified.Err = err
		return classified
	}

	return netErr(NetworkGeneral, "network error occurred", true)
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *Error {
	classified := ClassifyNetworkError(err, "")
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &Error{
		Kind:      KindNetwork,
		Message:   message,
		Retryable: true,
	}
}

// NewServerError creates a retryable network error for a 5xx HTTP status.
func NewServerError(statusCode int, message string) *Error {
	return &Error{
		Kind:           KindNetwork,
		Message:        message,
		StatusCode:     statusCode,
		NetworkSubtype: NetworkServer,
		Retryable:      true,
	}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *Error {
	return &Error{
		Kind:    KindAuth,
		Message: message,
	}
}

// NewDeviceError creates an error for a structured failure reported by the router
func NewDeviceError(code, tag, message string) *Error {
	return &Error{
		Kind:    KindDevice,
		Message: message,
		Code:    code,
		Tag:     tag,
	}
}

// NewProtocolError creates an error for an unexpected reply shape
func NewProtocolError(message string, err error) *Error {
	return &Error{
		Kind:    KindProtocol,
		Message: message,
		Err:     err,
	}
}

func asError(err error) (*Error, bool) {
	var zerr *Error
	if errors.As(err, &zerr) {
		return zerr, true
	}
	return nil, false
}

// IsNetworkError checks if an error is a network error (including timeout, refused, DNS, TLS)
func IsNetworkError(err error) bool {
	zerr, ok := asError(err)
	return ok && zerr.Kind == KindNetwork
}

// IsTimeout checks if an error is a network timeout
func IsTimeout(err error) bool {
	zerr, ok := asError(err)
	return ok && zerr.Kind == KindNetwork && zerr.NetworkSubtype == NetworkTimeout
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	zerr, ok := asError(err)
	return ok && zerr.Kind == KindAuth
}

// IsDeviceError checks if an error was reported by the router
func IsDeviceError(err error) bool {
	zerr, ok := asError(err)
	return ok && zerr.Kind == KindDevice
}

// IsProtocolError checks if an error is a reply shape error
func IsProtocolError(err error) bool {
	zerr, ok := asError(err)
	return ok && zerr.Kind == KindProtocol
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	zerr, ok := asError(err)
	// Unknown errors are not retryable by default
	return ok && zerr.Retryable
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	zerr, ok := asError(err)
	if !ok {
		return err.Error()
	}

	switch zerr.Kind {
	case KindNetwork:
		switch zerr.NetworkSubtype {
		case NetworkTimeout:
			return "Router not responding (timeout)"
		case NetworkConnectionRefused:
			return "Router refused connection"
		case NetworkDNS:
			return "Cannot resolve router hostname"
		case NetworkHostUnreachable:
			return "Router unreachable - check network connection"
		case NetworkUnreachable:
			return "Network unreachable - check connection"
		case NetworkTLS:
			return "TLS handshake with router failed"
		case NetworkServer:
			return fmt.Sprintf("Router error (HTTP %d)", zerr.StatusCode)
		default:
			return "Network error - check connection"
		}
	case KindAuth:
		return "Authentication failed - check credentials"
	case KindDevice:
		if zerr.Code != "" {
			return fmt.Sprintf("Router rejected the request (code %s)", zerr.Code)
		}
		return zerr.Message
	case KindProtocol:
		return "Unexpected reply from router"
	default:
		return zerr.Message
	}
}

// TroubleshootingHint returns user-friendly troubleshooting advice for an error
func TroubleshootingHint(err error) string {
	zerr, ok := asError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch zerr.Kind {
	case KindNetwork:
		hint := []string{"Communication with the router failed."}
		switch zerr.NetworkSubtype {
		case NetworkTimeout:
			hint = append(hint, "Troubleshooting:",
				"  • Check that the router is powered on",
				"  • Try increasing --timeout",
				"  • The router may be busy applying a configuration change")
		case NetworkConnectionRefused:
			hint = append(hint, "Troubleshooting:",
				"  • Verify the router address is the Multy controller, not a satellite node",
				"  • The web server may be restarting - wait a minute and retry")
		case NetworkTLS:
			hint = append(hint, "Troubleshooting:",
				"  • The router uses a self-signed certificate; a proxy may be intercepting TLS")
		default:
			hint = append(hint, "Troubleshooting:",
				"  • Check your network connection",
				"  • Verify the router address ("+zerr.Host+")",
				"  • Try 'multy-cli discover' to locate the router")
		}
		return strings.Join(hint, "\n")

	case KindAuth:
		return strings.Join([]string{
			"Authentication failed.",
			"Troubleshooting:",
			"  • Check the username and password in your config file",
			"  • SSO grant codes are single use - obtain a fresh one",
			"  • Too many failed logins may temporarily lock the admin account",
		}, "\n")

	case KindDevice:
		return strings.Join([]string{
			fmt.Sprintf("The router rejected the request (code %s).", zerr.Code),
			"Check the command inputs (MAC address format, value ranges, indexes).",
		}, "\n")

	case KindProtocol:
		return strings.Join([]string{
			"The router's reply did not have the expected shape.",
			"This may indicate a firmware variant that is not supported yet.",
			"Run with MULTY_LOG_LEVEL=debug and report the envelope dump.",
		}, "\n")

	default:
		return "An error occurred. Please check the error message for details."
	}
}
