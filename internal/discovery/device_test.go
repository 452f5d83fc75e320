package discovery

import (
	"testing"
)

func TestRouter_String(t *testing.T) {
	router := &Router{
		Instance: "Multy X",
		Hostname: "Multy-1A2B3C.local.",
		IP:       "192.168.212.1",
		Model:    "WSQ50",
	}

	expected := "Multy router Multy X [WSQ50] (Multy-1A2B3C.local.) at 192.168.212.1"
	if router.String() != expected {
		t.Errorf("Router.String() = %v, want %v", router.String(), expected)
	}
}

func TestRouter_ZAPIURL(t *testing.T) {
	tests := []struct {
		name     string
		router   *Router
		expected string
	}{
		{
			name:     "IPv4",
			router:   &Router{IP: "192.168.212.1", Port: 80},
			expected: "https://192.168.212.1:443/zapi",
		},
		{
			name:     "IPv6",
			router:   &Router{IP: "fe80::1", Port: 80},
			expected: "https://[fe80::1]:443/zapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.router.ZAPIURL(); got != tt.expected {
				t.Errorf("Router.ZAPIURL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRouter_GetMetadata_NilMap(t *testing.T) {
	router := &Router{Metadata: nil}

	if got := router.GetMetadata("anything"); got != "" {
		t.Errorf("Router.GetMetadata() with nil map = %v, want empty string", got)
	}
}
