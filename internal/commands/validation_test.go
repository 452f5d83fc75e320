package commands

import (
	"testing"
)

// TestValidateMAC tests MAC address validation
func TestValidateMAC(t *testing.T) {
	tests := []struct {
		name    string
		mac     string
		wantErr bool
	}{
		{"Valid: colons", "aa:bb:cc:dd:ee:ff", false},
		{"Valid: upper case", "AA:BB:CC:DD:EE:FF", false},
		{"Valid: dashes", "aa-bb-cc-dd-ee-ff", false},
		{"Invalid: empty", "", true},
		{"Invalid: short", "aa:bb:cc:dd:ee", true},
		{"Invalid: non-hex", "zz:bb:cc:dd:ee:ff", true},
		{"Invalid: no separators", "aabbccddeeff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMAC(tt.mac)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMAC(%q) error = %v, wantErr %v", tt.mac, err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeMAC(t *testing.T) {
	if got := NormalizeMAC("AA-BB-CC-DD-EE-FF"); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("NormalizeMAC() = %q", got)
	}
}

// TestValidatePort tests port range validation
func TestValidatePort(t *testing.T) {
	tests := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"Valid: 1", 1, false},
		{"Valid: 8080", 8080, false},
		{"Valid: 65535", 65535, false},
		{"Invalid: 0", 0, true},
		{"Invalid: negative", -1, true},
		{"Invalid: too high", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePort(tt.port)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePort(%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
			}
		})
	}
}

// TestValidateBrightness tests LED brightness validation
func TestValidateBrightness(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		wantErr bool
	}{
		{"Valid: 0", 0, false},
		{"Valid: 50", 50, false},
		{"Valid: 100", 100, false},
		{"Invalid: negative", -1, true},
		{"Invalid: too high", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBrightness(tt.level)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBrightness(%d) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestValidateIPv4(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"Valid", "192.168.1.20", false},
		{"Invalid: IPv6", "fe80::1", true},
		{"Invalid: hostname", "router.local", true},
		{"Invalid: out of range", "192.168.1.300", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIPv4(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIPv4(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

// TestValidateWiFiCredentials tests SSID and passphrase validation
func TestValidateWiFiCredentials(t *testing.T) {
	if err := ValidateSSID("home"); err != nil {
		t.Errorf("ValidateSSID(home) error = %v", err)
	}
	if err := ValidateSSID(""); err == nil {
		t.Error("ValidateSSID(\"\") error = nil")
	}
	if err := ValidateSSID("abcdefghijklmnopqrstuvwxyz0123456"); err == nil {
		t.Error("ValidateSSID(33 chars) error = nil")
	}
	if err := ValidateWiFiPassword("short"); err == nil {
		t.Error("ValidateWiFiPassword(short) error = nil")
	}
	if err := ValidateWiFiPassword("longenough"); err != nil {
		t.Errorf("ValidateWiFiPassword(longenough) error = %v", err)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("switch-led", "mac", "required")
	if got, want := err.Error(), "switch-led: mac: required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !IsValidationError(err) {
		t.Error("IsValidationError() = false")
	}
}
