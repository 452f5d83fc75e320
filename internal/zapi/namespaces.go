package zapi

// Path is the HTTP path of the ZAPI endpoint on the router.
const Path = "/zapi"

// BaseXMLNS is the envelope namespace carried on every rpc object.
const BaseXMLNS = "urn:ietf:params:xml:ns:netconf:base:1.0"

// System namespaces
const (
	NSSystem             = "urn:zyxel:cpe:system:zyxel-system"
	NSAuth               = "urn:zyxel:cpe:system:authentication"
	NSEasy123            = "urn:zyxel:cpe:system:zyxel-system-easy123"
	NSSpeedTest          = "urn:zyxel:cpe:system:zyxel-system-speed-test"
	NSFirmware           = "urn:zyxel:cpe:system:zyxel-system-firmware-upgrade"
	NSNetworkDevice      = "urn:zyxel:cpe:system:zyxel-system-network-device"
	NSWiFiSystem         = "urn:zyxel:cpe:system:zyxel-system-wifi-system"
	NSCloud              = "urn:zyxel:cpe:system:zyxel-system-cloud"
	NSCapability         = "urn:zyxel:cpe:system:zyxel-system-capability"
	NSLog                = "urn:zyxel:cpe:system:zyxel-system-log"
	NSWiFiLog            = "urn:zyxel:cpe:system:zyxel-wifi-system-log"
	NSWANProfile         = "urn:zyxel:cpe:system:zyxel-system-wan-profile"
	NSLANProfile         = "urn:zyxel:cpe:system:zyxel-system-lan-profile"
	NSOpMode             = "urn:zyxel:cpe:system:zyxel-system-opmode"
	NSMACFilter          = "urn:zyxel:cpe:system:zyxel-system-macfilter"
	NSWirelessScheduling = "urn:zyxel:cpe:system:zyxel-system-wireless-scheduling"
	NSBluetoothLowEnergy = "urn:zyxel:cpe:system:zyxel-system-bluetooth-low-energy"
	NSEntitlement        = "urn:zyxel:cpe:system:zyxel-system-entitlement"
)

// Interface namespaces
const (
	NSSSID        = "urn:zyxel:cpe:interface:zyxel-interface-ssid"
	NSRadio       = "urn:zyxel:cpe:interface:zyxel-interface-radio"
	NSApply       = "urn:zyxel:cpe:interface:zyxel-interface-apply"
	NSHomeNetwork = "urn:zyxel:cpe:interface:zyxel-interface-homenetwork"
)

// Application namespaces
const (
	NSParental       = "urn:zyxel:cpe:applications:zyxel-applications-parental-control"
	NSNAT            = "urn:zyxel:cpe:applications:zyxel-applications-nat"
	NSNATGeneral     = "urn:zyxel:cpe:applications:zyxel-applications-nat-general"
	NSNATPortTrigger = "urn:zyxel:cpe:applications:zyxel-applications-nat-port-trigger"
	NSFirewallV4     = "urn:zyxel:cpe:applications:zyxel-applications-ipv4-firewall"
	NSFirewallV6     = "urn:zyxel:cpe:applications:zyxel-applications-ipv6-firewall"
	NSDHCPServer     = "urn:zyxel:cpe:applications:zyxel-applications-dhcp-server"
	NSNotification   = "urn:zyxel:cpe:applications:zyxel-applications-notification"
	NSCyberSecurity  = "urn:zyxel:cpe:applications:zyxel-applications-cyber-security"
	NSOpenVPN        = "urn:zyxel:cpe:applications:zyxel-applications-openvpn"
	NSPPTP           = "urn:zyxel:cpe:applications:zyxel-applications-pptp-server"
	NSUPnP           = "urn:zyxel:cpe:applications:zyxel-applications-upnp"
	NSDDNS           = "urn:zyxel:cpe:applications:zyxel-applications-ddns"
	NSBandwidth      = "urn:zyxel:cpe:applications:zyxel-applications-bandwidth"
	NSRouting        = "urn:zyxel:cpe:applications:zyxel-applications-routing"
	NSEchoServer     = "urn:zyxel:cpe:applications:zyxel-applications-echo-server"
)

// CodeAccessDenied is the device error code for a rejected or expired session.
const CodeAccessDenied = "2002"

// CodeMissingFilterRoot is returned when a get-config filter lacks its empty root object.
const CodeMissingFilterRoot = "5156"
