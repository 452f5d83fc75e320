package poller

import (
	"fmt"
	"sort"

	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/zapi"
)

// Resource is one read issued on every tick.
type Resource struct {
	Name  string
	Call  zapi.CallSpec
	Shape state.Shape
}

// Resource names polled by default.
const (
	ResourceSystemInfo       = "system-info"
	ResourceSystemState      = "system-state"
	ResourceNetworkDevices   = "network-devices"
	ResourceDeviceStatistics = "device-statistics"
	ResourceMeshNodes        = "mesh-nodes"
	ResourceBandwidth        = "bandwidth"
	ResourceWANStatus        = "wan-status"
	ResourceInternetStatus   = "internet-status"
	ResourceSpeedTestResult  = "speed-test-result"
	ResourceFirmwareStatus   = "firmware-status"
)

var defaultResources = []Resource{
	{ResourceSystemInfo, zapi.GetConfig(zapi.NSSystem, "basic-system-info"), state.Object},
	{ResourceSystemState, zapi.GetConfig(zapi.NSSystem, "system-state"), state.Object},
	{ResourceNetworkDevices, zapi.GetConfig(zapi.NSNetworkDevice, "network-devices"), state.List("device", "id")},
	{ResourceDeviceStatistics, zapi.RPC(zapi.NSNetworkDevice, "get-device-statistics", nil), state.Object},
	{ResourceMeshNodes, zapi.GetConfig(zapi.NSWiFiSystem, "system-devices-state"), state.List("device", "mac")},
	{ResourceBandwidth, zapi.RPC(zapi.NSSystem, "current-band-width", nil), state.Object},
	{ResourceWANStatus, zapi.RPC(zapi.NSEasy123, "is-wan-port-connected", nil), state.Object},
	{ResourceInternetStatus, zapi.RPC(zapi.NSEasy123, "access-internet-status", nil), state.Object},
	{ResourceSpeedTestResult, zapi.RPC(zapi.NSSpeedTest, "test-result", nil), state.Object},
	{ResourceFirmwareStatus, zapi.RPC(zapi.NSFirmware, "on-line-check", nil), state.Object},
}

// DefaultResources returns the resources polled when none are configured.
func DefaultResources() []Resource {
	out := make([]Resource, len(defaultResources))
	copy(out, defaultResources)
	return out
}

// ResourceNames returns the names of the default resources, sorted.
func ResourceNames() []string {
	names := make([]string, 0, len(defaultResources))
	for _, r := range defaultResources {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// LookupResource finds a default resource by name.
func LookupResource(name string) (Resource, bool) {
	for _, r := range defaultResources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// SelectResources resolves names to default resources, preserving order.
// An empty list selects every default resource.
func SelectResources(names []string) ([]Resource, error) {
	if len(names) == 0 {
		return DefaultResources(), nil
	}
	out := make([]Resource, 0, len(names))
	for _, name := range names {
		r, ok := LookupResource(name)
		if !ok {
			return nil, fmt.Errorf("unknown resource %q (known: %v)", name, ResourceNames())
		}
		out = append(out, r)
	}
	return out, nil
}
