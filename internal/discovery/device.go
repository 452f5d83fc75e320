package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Router represents a Multy router found on the network
type Router struct {
	// Instance is the advertised mDNS instance name (e.g., "Multy X")
	Instance string

	// Hostname is the mDNS hostname (e.g., "Multy-1A2B3C.local.")
	Hostname string

	// IP is the router address, IPv4 when one was advertised
	IP string

	// Port is the advertised HTTP port (typically 80)
	Port int

	// Model is taken from the "model" TXT record when present
	Model string

	// Metadata contains all mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the router was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the router
func (r *Router) String() string {
	name := r.Instance
	if r.Model != "" {
		name = fmt.Sprintf("%s [%s]", name, r.Model)
	}
	return fmt.Sprintf("Multy router %s (%s) at %s", name, r.Hostname, r.IP)
}

// Host returns the address to use as a device host in configuration.
func (r *Router) Host() string {
	return r.IP
}

// ZAPIURL returns the HTTPS ZAPI endpoint of the router
func (r *Router) ZAPIURL() string {
	return "https://" + net.JoinHostPort(r.IP, strconv.Itoa(443)) + "/zapi"
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Router) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}
