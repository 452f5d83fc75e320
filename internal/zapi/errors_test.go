package zapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"testing"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		subtype   NetworkSubtype
		retryable bool
	}{
		{
			name:      "deadline",
			err:       context.DeadlineExceeded,
			subtype:   NetworkTimeout,
			retryable: true,
		},
		{
			name:      "connection refused",
			err:       &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			subtype:   NetworkConnectionRefused,
			retryable: true,
		},
		{
			name:      "dns",
			err:       &net.DNSError{Name: "router.local", Err: "no such host"},
			subtype:   NetworkDNS,
			retryable: false,
		},
		{
			name:      "wrapped in url.Error",
			err:       &url.Error{Op: "Post", URL: "https://x/zapi", Err: &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}},
			subtype:   NetworkHostUnreachable,
			retryable: true,
		},
		{
			name:      "unknown",
			err:       errors.New("boom"),
			subtype:   NetworkGeneral,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err, "192.168.212.1")
			if got.Kind != KindNetwork {
				t.Errorf("Kind = %v, want %v", got.Kind, KindNetwork)
			}
			if got.NetworkSubtype != tt.subtype {
				t.Errorf("NetworkSubtype = %v, want %v", got.NetworkSubtype, tt.subtype)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classified error does not wrap %v", tt.err)
			}
		})
	}

	if ClassifyNetworkError(nil, "") != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestPredicates(t *testing.T) {
	network := NewNetworkError("down", context.DeadlineExceeded)
	auth := NewAuthError("denied")
	device := NewDeviceError("4001", "invalid-value", "bad mac")
	protocol := NewProtocolError("no root", nil)
	server := NewServerError(503, "unavailable")

	tests := []struct {
		name      string
		err       error
		network   bool
		timeout   bool
		auth      bool
		device    bool
		protocol  bool
		retryable bool
	}{
		{"network", network, true, true, false, false, false, true},
		{"auth", auth, false, false, true, false, false, false},
		{"device", device, false, false, false, true, false, false},
		{"protocol", protocol, false, false, false, false, true, false},
		{"server", server, true, false, false, false, false, true},
		{"wrapped device", fmt.Errorf("set wifi: %w", device), false, false, false, true, false, false},
		{"plain", errors.New("plain"), false, false, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkError(tt.err); got != tt.network {
				t.Errorf("IsNetworkError() = %v, want %v", got, tt.network)
			}
			if got := IsTimeout(tt.err); got != tt.timeout {
				t.Errorf("IsTimeout() = %v, want %v", got, tt.timeout)
			}
			if got := IsAuthError(tt.err); got != tt.auth {
				t.Errorf("IsAuthError() = %v, want %v", got, tt.auth)
			}
			if got := IsDeviceError(tt.err); got != tt.device {
				t.Errorf("IsDeviceError() = %v, want %v", got, tt.device)
			}
			if got := IsProtocolError(tt.err); got != tt.protocol {
				t.Errorf("IsProtocolError() = %v, want %v", got, tt.protocol)
			}
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := NewDeviceError("4001", "invalid-value", "bad mac")
	want := "Device Error: bad mac (code=4001, tag=invalid-value)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestShortMessageAndHint(t *testing.T) {
	errs := []error{
		NewNetworkError("down", context.DeadlineExceeded),
		NewAuthError("denied"),
		NewDeviceError("4001", "", "bad"),
		NewProtocolError("shape", nil),
		errors.New("plain"),
	}
	for _, err := range errs {
		if ShortMessage(err) == "" {
			t.Errorf("ShortMessage(%v) is empty", err)
		}
		if TroubleshootingHint(err) == "" {
			t.Errorf("TroubleshootingHint(%v) is empty", err)
		}
	}

	if got := ShortMessage(NewDeviceError("4001", "", "bad")); !strings.Contains(got, "4001") {
		t.Errorf("ShortMessage() = %q, want code in message", got)
	}
}
