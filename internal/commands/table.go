package commands

import (
	"sort"
	"strconv"
	"time"

	"github.com/muurk/multy/internal/poller"
	"github.com/muurk/multy/internal/zapi"
)

// FieldType is the accepted type of a command input.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeMAC
	TypeIPv4
	TypePort
	TypeSSID
	TypePassword
	TypeProtocol
	TypeBrightness
	TypeSwitch
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeMAC:
		return "mac"
	case TypeIPv4:
		return "ipv4"
	case TypePort:
		return "port"
	case TypeSSID:
		return "ssid"
	case TypePassword:
		return "password"
	case TypeProtocol:
		return "protocol"
	case TypeBrightness:
		return "brightness"
	case TypeSwitch:
		return "on|off"
	default:
		return "unknown"
	}
}

// Field describes one input of a command.
type Field struct {
	// Name is the argument name callers use.
	Name string

	// Key is the dotted path of the value inside the call input.
	// Empty means Name.
	Key string

	Type     FieldType
	Required bool

	// Default is used when the argument is absent. A func() any default is
	// evaluated at call time.
	Default any

	// DefaultFrom copies another field's value when this one is absent.
	DefaultFrom string

	Help string
}

func (f Field) key() string {
	if f.Key == "" {
		return f.Name
	}
	return f.Key
}

// Command is an envelope template plus the schema of its input.
type Command struct {
	Name        string
	Description string
	Operation   zapi.Operation
	Namespace   string
	Root        string
	Fields      []Field

	// NoOutput marks commands whose reply carries no output element.
	NoOutput bool

	// AnyOf lists fields of which at least one must be given.
	AnyOf []string

	// Affects names the polled resources a successful call changes.
	Affects []string

	// Disruptive marks commands that interrupt connectivity; the CLI asks
	// for confirmation before sending them.
	Disruptive bool
}

func unixNow() any {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

var table = []Command{
	{
		Name:        "reboot",
		Description: "Restart the router",
		Namespace:   zapi.NSSystem,
		Root:        "system-restart",
		NoOutput:    true,
		Disruptive:  true,
	},
	{
		Name:        "shutdown",
		Description: "Power the router down",
		Namespace:   zapi.NSSystem,
		Root:        "system-shutdown",
		NoOutput:    true,
		Disruptive:  true,
	},
	{
		Name:        "restart-node",
		Description: "Restart one mesh node",
		Namespace:   zapi.NSWiFiSystem,
		Root:        "restart",
		Fields: []Field{
			{Name: "mac", Type: TypeMAC, Required: true, Help: "node MAC address"},
		},
		NoOutput:   true,
		Affects:    []string{poller.ResourceMeshNodes},
		Disruptive: true,
	},
	{
		Name:        "get-wifi",
		Description: "Read WiFi configuration",
		Namespace:   zapi.NSEasy123,
		Root:        "get-wifi-configuration",
		Fields: []Field{
			{Name: "network", Type: TypeString, Default: "main", Help: "main or guest"},
		},
	},
	{
		Name:        "set-wifi",
		Description: "Change SSID or password",
		Namespace:   zapi.NSEasy123,
		Root:        "set-wifi",
		Fields: []Field{
			{Name: "network", Type: TypeString, Default: "main", Help: "main or guest"},
			{Name: "ssid", Type: TypeSSID, Help: "network name"},
			{Name: "ssid-5g", Type: TypeSSID, Help: "5GHz network name"},
			{Name: "password", Key: "psk.key", Type: TypePassword, Help: "WPA2 passphrase"},
		},
		AnyOf:      []string{"ssid", "ssid-5g", "password"},
		NoOutput:   true,
		Disruptive: true,
	},
	{
		Name:        "block-device",
		Description: "Block internet access for a client",
		Namespace:   zapi.NSFirewallV4,
		Root:        "block",
		Fields: []Field{
			{Name: "mac-address", Type: TypeMAC, Required: true, Help: "client MAC address"},
			{Name: "lasting-time", Type: TypeInt, Default: 0, Help: "minutes, 0 for indefinite"},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceNetworkDevices},
	},
	{
		Name:        "unblock-device",
		Description: "Remove a client block rule",
		Namespace:   zapi.NSFirewallV4,
		Root:        "unblock",
		Fields: []Field{
			{Name: "index", Type: TypeString, Required: true, Help: "block rule index"},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceNetworkDevices},
	},
	{
		Name:        "speed-test",
		Description: "Start an internet speed test",
		Namespace:   zapi.NSSpeedTest,
		Root:        "speed-test",
		Fields: []Field{
			{Name: "originator", Type: TypeInt, Default: 1},
			{Name: "device-mac", Type: TypeString, Default: ""},
			{Name: "test-id", Type: TypeString, Default: unixNow},
			{Name: "target", Type: TypeString, Default: "Internet"},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceSpeedTestResult},
	},
	{
		Name:        "switch-led",
		Description: "Turn a node LED on or off",
		Namespace:   zapi.NSWiFiSystem,
		Root:        "switch-led",
		Fields: []Field{
			{Name: "mac", Type: TypeMAC, Required: true, Help: "node MAC address"},
			{Name: "led-switch", Type: TypeSwitch, Required: true},
			{Name: "led-brightness-level", Type: TypeBrightness, Default: 100},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceMeshNodes},
	},
	{
		Name:        "rename-node",
		Description: "Rename a mesh node",
		Namespace:   zapi.NSWiFiSystem,
		Root:        "naming",
		Fields: []Field{
			{Name: "mac", Type: TypeMAC, Required: true},
			{Name: "name", Type: TypeString, Required: true},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceMeshNodes},
	},
	{
		Name:        "set-device-name",
		Description: "Rename a client device",
		Namespace:   zapi.NSNetworkDevice,
		Root:        "set-device-name",
		Fields: []Field{
			{Name: "id", Type: TypeString, Required: true, Help: "device id"},
			{Name: "name", Type: TypeString, Required: true},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceNetworkDevices},
	},
	{
		Name:        "parental-block",
		Description: "Pause a parental control profile",
		Namespace:   zapi.NSParental,
		Root:        "block",
		Fields: []Field{
			{Name: "index", Type: TypeString, Required: true, Help: "profile index"},
		},
		NoOutput: true,
	},
	{
		Name:        "parental-unblock",
		Description: "Resume a parental control profile",
		Namespace:   zapi.NSParental,
		Root:        "unblock",
		Fields: []Field{
			{Name: "index", Type: TypeString, Required: true, Help: "profile index"},
		},
		NoOutput: true,
	},
	{
		Name:        "parental-bonus",
		Description: "Grant extra minutes to a profile",
		Namespace:   zapi.NSParental,
		Root:        "bonus",
		Fields: []Field{
			{Name: "index", Type: TypeString, Required: true, Help: "profile index"},
			{Name: "minute", Type: TypeInt, Required: true, Help: "bonus minutes"},
		},
		NoOutput: true,
	},
	{
		Name:        "port-forward-add",
		Description: "Add a port forwarding rule",
		Namespace:   zapi.NSNATGeneral,
		Root:        "add-rule",
		Fields: []Field{
			{Name: "service", Type: TypeString, Required: true, Help: "rule name"},
			{Name: "service-index", Type: TypeInt, Default: 0},
			{Name: "protocol", Type: TypeProtocol, Default: "TCP"},
			{Name: "external-port", Type: TypePort, Required: true},
			{Name: "external-port-end", Type: TypePort, DefaultFrom: "external-port"},
			{Name: "internal-port", Type: TypePort, Required: true},
			{Name: "local-ip", Type: TypeIPv4, Required: true},
		},
		NoOutput: true,
	},
	{
		Name:        "port-forward-remove",
		Description: "Remove a port forwarding rule",
		Namespace:   zapi.NSNATGeneral,
		Root:        "remove-rule",
		Fields: []Field{
			{Name: "index", Type: TypeInt, Required: true, Help: "rule index"},
		},
		NoOutput: true,
	},
	{
		Name:        "wake-on-lan",
		Description: "Send a wake-on-LAN packet",
		Namespace:   zapi.NSSystem,
		Root:        "system-wake-on-lan",
		Fields: []Field{
			{Name: "mac-address", Type: TypeMAC, Required: true},
		},
		NoOutput: true,
		Affects:  []string{poller.ResourceNetworkDevices},
	},
	{
		Name:        "firmware-check",
		Description: "Check for new firmware",
		Namespace:   zapi.NSFirmware,
		Root:        "on-line-check",
		Affects:     []string{poller.ResourceFirmwareStatus},
	},
	{
		Name:        "api-version",
		Description: "Report the ZAPI version",
		Namespace:   zapi.NSSystem,
		Root:        "api-version",
	},
	{
		Name:        "port-state",
		Description: "Report Ethernet port link state",
		Namespace:   zapi.NSSystem,
		Root:        "current-port-state",
	},
}

// Lookup finds a command by name.
func Lookup(name string) (Command, bool) {
	for _, c := range table {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// All returns every command sorted by name.
func All() []Command {
	out := make([]Command, len(table))
	copy(out, table)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every command name, sorted.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name
	}
	return names
}
