package commands

import "context"

// Reboot restarts the router.
func (f *Facade) Reboot(ctx context.Context) error {
	_, err := f.Execute(ctx, "reboot", nil)
	return err
}

// Shutdown powers the router down.
func (f *Facade) Shutdown(ctx context.Context) error {
	_, err := f.Execute(ctx, "shutdown", nil)
	return err
}

// RestartNode restarts the mesh node with the given MAC address.
func (f *Facade) RestartNode(ctx context.Context, mac string) error {
	_, err := f.Execute(ctx, "restart-node", map[string]any{"mac": mac})
	return err
}

// WiFiSettings holds the fields set-wifi can change. Empty fields are left
// untouched on the router.
type WiFiSettings struct {
	Network  string
	SSID     string
	SSID5G   string
	Password string
}

func (w WiFiSettings) args() map[string]any {
	args := map[string]any{}
	if w.Network != "" {
		args["network"] = w.Network
	}
	if w.SSID != "" {
		args["ssid"] = w.SSID
	}
	if w.SSID5G != "" {
		args["ssid-5g"] = w.SSID5G
	}
	if w.Password != "" {
		args["password"] = w.Password
	}
	return args
}

// SetWiFi changes SSIDs and/or the WPA2 passphrase.
func (f *Facade) SetWiFi(ctx context.Context, settings WiFiSettings) error {
	_, err := f.Execute(ctx, "set-wifi", settings.args())
	return err
}

// GetWiFi reads the WiFi configuration of network ("main" when empty).
func (f *Facade) GetWiFi(ctx context.Context, network string) (map[string]any, error) {
	args := map[string]any{}
	if network != "" {
		args["network"] = network
	}
	res, err := f.Execute(ctx, "get-wifi", args)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// BlockDevice blocks internet access for mac. A zero duration blocks
// indefinitely; otherwise minutes is the block length.
func (f *Facade) BlockDevice(ctx context.Context, mac string, minutes int) error {
	_, err := f.Execute(ctx, "block-device", map[string]any{"mac-address": mac, "lasting-time": minutes})
	return err
}

// UnblockDevice removes the block rule at index.
func (f *Facade) UnblockDevice(ctx context.Context, index string) error {
	_, err := f.Execute(ctx, "unblock-device", map[string]any{"index": index})
	return err
}

// StartSpeedTest starts a speed test. Results appear in the
// speed-test-result resource.
func (f *Facade) StartSpeedTest(ctx context.Context) error {
	_, err := f.Execute(ctx, "speed-test", nil)
	return err
}

// SwitchLED turns the LED of node mac on or off at the given brightness (0-100).
func (f *Facade) SwitchLED(ctx context.Context, mac string, on bool, brightness int) error {
	_, err := f.Execute(ctx, "switch-led", map[string]any{
		"mac":                  mac,
		"led-switch":           on,
		"led-brightness-level": brightness,
	})
	return err
}

// RenameNode sets the display name of a mesh node.
func (f *Facade) RenameNode(ctx context.Context, mac, name string) error {
	_, err := f.Execute(ctx, "rename-node", map[string]any{"mac": mac, "name": name})
	return err
}

// SetDeviceName sets the display name of a client device.
func (f *Facade) SetDeviceName(ctx context.Context, id, name string) error {
	_, err := f.Execute(ctx, "set-device-name", map[string]any{"id": id, "name": name})
	return err
}

// ParentalBlock cuts internet access for a parental-control profile.
func (f *Facade) ParentalBlock(ctx context.Context, index string) error {
	_, err := f.Execute(ctx, "parental-block", map[string]any{"index": index})
	return err
}

// ParentalUnblock restores internet access for a parental-control profile.
func (f *Facade) ParentalUnblock(ctx context.Context, index string) error {
	_, err := f.Execute(ctx, "parental-unblock", map[string]any{"index": index})
	return err
}

// ParentalBonus grants a profile extra minutes of access.
func (f *Facade) ParentalBonus(ctx context.Context, index string, minutes int) error {
	_, err := f.Execute(ctx, "parental-bonus", map[string]any{"index": index, "minute": minutes})
	return err
}

// PortForward is a NAT port forwarding rule.
type PortForward struct {
	Service      string
	Protocol     string
	ExternalPort int
	// ExternalPortEnd defaults to ExternalPort for single-port rules.
	ExternalPortEnd int
	InternalPort    int
	LocalIP         string
}

// AddPortForward creates a port forwarding rule.
func (f *Facade) AddPortForward(ctx context.Context, rule PortForward) error {
	args := map[string]any{
		"service":       rule.Service,
		"external-port": rule.ExternalPort,
		"internal-port": rule.InternalPort,
		"local-ip":      rule.LocalIP,
	}
	if rule.Protocol != "" {
		args["protocol"] = rule.Protocol
	}
	if rule.ExternalPortEnd != 0 {
		args["external-port-end"] = rule.ExternalPortEnd
	}
	_, err := f.Execute(ctx, "port-forward-add", args)
	return err
}

// RemovePortForward deletes the rule at index.
func (f *Facade) RemovePortForward(ctx context.Context, index int) error {
	_, err := f.Execute(ctx, "port-forward-remove", map[string]any{"index": index})
	return err
}

// WakeOnLAN sends a magic packet to mac from the router.
func (f *Facade) WakeOnLAN(ctx context.Context, mac string) error {
	_, err := f.Execute(ctx, "wake-on-lan", map[string]any{"mac-address": mac})
	return err
}

// FirmwareCheck asks the router to look for new firmware.
func (f *Facade) FirmwareCheck(ctx context.Context) (map[string]any, error) {
	res, err := f.Execute(ctx, "firmware-check", nil)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// APIVersion reports the router's ZAPI version.
func (f *Facade) APIVersion(ctx context.Context) (map[string]any, error) {
	res, err := f.Execute(ctx, "api-version", nil)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// PortState reports Ethernet port link state.
func (f *Facade) PortState(ctx context.Context) (map[string]any, error) {
	res, err := f.Execute(ctx, "port-state", nil)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}
