package commands

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// ValidationError reports input rejected before anything is sent to the router.
type ValidationError struct {
	Command string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Command, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Command, e.Field, e.Message)
}

// NewValidationError creates a validation error for a command input field
func NewValidationError(command, field, message string) *ValidationError {
	return &ValidationError{Command: command, Field: field, Message: message}
}

// IsValidationError checks if an error is an input validation error
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

var macPattern = regexp.MustCompile(`^[0-9a-fA-F]{2}([:-][0-9a-fA-F]{2}){5}$`)

// ValidateMAC validates a MAC address in colon or dash notation.
func ValidateMAC(mac string) error {
	if !macPattern.MatchString(mac) {
		return fmt.Errorf("invalid MAC address %q (want aa:bb:cc:dd:ee:ff)", mac)
	}
	return nil
}

// NormalizeMAC lowercases a MAC address and converts dashes to colons.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.ReplaceAll(mac, "-", ":"))
}

// ValidatePort validates a TCP/UDP port number.
// Valid range: 1-65535
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", port)
	}
	return nil
}

// ValidateBrightness validates an LED brightness level.
// Valid range: 0-100
func ValidateBrightness(level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness must be 0-100, got %d", level)
	}
	return nil
}

// ValidateIPv4 validates a dotted-quad IPv4 address.
func ValidateIPv4(addr string) error {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || strings.Contains(addr, ":") {
		return fmt.Errorf("invalid IPv4 address %q", addr)
	}
	return nil
}

// ValidateSSID validates a WiFi SSID.
// SSIDs must be non-empty and <= 32 characters (the 802.11 limit).
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return fmt.Errorf("SSID cannot be empty")
	}
	if len(ssid) > 32 {
		return fmt.Errorf("SSID too long (max 32 chars): %d chars", len(ssid))
	}
	return nil
}

// ValidateWiFiPassword validates a WPA2 passphrase.
// WPA2 requires 8-63 characters.
func ValidateWiFiPassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("WPA2 password too short (min 8 chars): %d chars", len(password))
	}
	if len(password) > 63 {
		return fmt.Errorf("WPA2 password too long (max 63 chars): %d chars", len(password))
	}
	return nil
}

// ValidateProtocol validates a port forwarding protocol name.
func ValidateProtocol(protocol string) error {
	switch protocol {
	case "TCP", "UDP", "ALL":
		return nil
	}
	return fmt.Errorf("protocol must be TCP, UDP or ALL, got %q", protocol)
}
