package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/muurk/multy/internal/zapi"
)

// Defaults applied by Device.Resolve.
const (
	DefaultPollInterval    = 30 * time.Second
	DefaultCallTimeout     = 10 * time.Second
	DefaultMaxAttempts     = 3
	DefaultConcurrency     = 1
	DefaultDiscoverTimeout = 5
	DefaultListenAddr      = "127.0.0.1:8765"
	DefaultUsername        = "admin"
)

// Credential kinds accepted in the config file.
const (
	CredentialLocal = "local"
	CredentialSSO   = "sso"
)

// ErrPasswordRequired is returned when a local credential has no password
// configured and none was supplied at runtime.
var ErrPasswordRequired = errors.New("password required")

// Registry represents the entire user configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by user-chosen device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device is the configuration of one router.
type Device struct {
	Host     string `yaml:"host"`
	Nickname string `yaml:"nickname,omitempty"`

	// Credential is "local" (username/password) or "sso" (grant code)
	Credential  string `yaml:"credential,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"` // Environment variable holding the password
	GrantCode   string `yaml:"grant_code,omitempty"`

	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	CallTimeout  time.Duration `yaml:"call_timeout,omitempty"`
	MaxAttempts  int           `yaml:"max_attempts,omitempty"`
	Concurrency  int           `yaml:"concurrency,omitempty"`
	Resources    []string      `yaml:"resources,omitempty"` // Empty polls every default resource
	StateFile    string        `yaml:"state_file,omitempty"`

	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultDevice   string `yaml:"default_device,omitempty"`
	DiscoverTimeout int    `yaml:"discover_timeout"` // mDNS discovery timeout in seconds
	ListenAddr      string `yaml:"listen_addr,omitempty"`
}

func defaultPreferences() *Preferences {
	return &Preferences{
		DiscoverTimeout: DefaultDiscoverTimeout,
		ListenAddr:      DefaultListenAddr,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: defaultPreferences(),
	}
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// EnsureDevice ensures a device entry exists in the registry.
// Returns the device entry (existing or newly created).
func (r *Registry) EnsureDevice(name string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if device, exists := r.Devices[name]; exists {
		return device
	}
	device := &Device{}
	r.Devices[name] = device
	return device
}

// RemoveDevice deletes a device entry and clears it as the default.
func (r *Registry) RemoveDevice(name string) {
	delete(r.Devices, name)
	if r.Preferences != nil && r.Preferences.DefaultDevice == name {
		r.Preferences.DefaultDevice = ""
	}
}

// UpdateDeviceLastSeen updates the last seen timestamp and host for a device.
func (r *Registry) UpdateDeviceLastSeen(name, host string) {
	device := r.EnsureDevice(name)
	device.LastSeen = time.Now()
	device.Host = host
}

// DeviceNames returns configured device names, sorted.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectDevice picks the device named name, or the default device when name
// is empty. With no default and exactly one device, that device is used.
func (r *Registry) SelectDevice(name string) (string, *Device, error) {
	if name == "" && r.Preferences != nil {
		name = r.Preferences.DefaultDevice
	}
	if name == "" {
		switch len(r.Devices) {
		case 0:
			return "", nil, fmt.Errorf("no devices configured (run 'multy-cli login')")
		case 1:
			name = r.DeviceNames()[0]
		default:
			return "", nil, fmt.Errorf("several devices configured, choose one of %v", r.DeviceNames())
		}
	}
	device := r.Devices[name]
	if device == nil {
		return "", nil, fmt.Errorf("unknown device %q", name)
	}
	return name, device, nil
}

// Resolved is a device configuration with every default applied.
type Resolved struct {
	Name         string
	Host         string
	Credential   string
	Username     string
	Password     string
	GrantCode    string
	PollInterval time.Duration
	CallTimeout  time.Duration
	MaxAttempts  int
	Concurrency  int
	Resources    []string
	StateFile    string
}

// Resolve applies defaults to d. The password is read from PasswordEnv when
// the file does not carry one.
func (d *Device) Resolve(name string) (*Resolved, error) {
	if d.Host == "" {
		return nil, fmt.Errorf("device %q has no host", name)
	}
	r := &Resolved{
		Name:         name,
		Host:         d.Host,
		Credential:   d.Credential,
		Username:     d.Username,
		Password:     d.Password,
		GrantCode:    d.GrantCode,
		PollInterval: d.PollInterval,
		CallTimeout:  d.CallTimeout,
		MaxAttempts:  d.MaxAttempts,
		Concurrency:  d.Concurrency,
		Resources:    append([]string(nil), d.Resources...),
		StateFile:    d.StateFile,
	}
	if r.Credential == "" {
		r.Credential = CredentialLocal
	}
	if r.Credential != CredentialLocal && r.Credential != CredentialSSO {
		return nil, fmt.Errorf("device %q: unknown credential kind %q (want local or sso)", name, r.Credential)
	}
	if r.Username == "" {
		r.Username = DefaultUsername
	}
	if r.Password == "" && d.PasswordEnv != "" {
		r.Password = os.Getenv(d.PasswordEnv)
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
	if r.CallTimeout <= 0 {
		r.CallTimeout = DefaultCallTimeout
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.Concurrency <= 0 {
		r.Concurrency = DefaultConcurrency
	}
	if r.StateFile == "" {
		dir, err := GetConfigDir()
		if err == nil {
			r.StateFile = filepath.Join(dir, "state", name+".cbor")
		}
	}
	return r, nil
}

// ZAPICredential builds the login credential.
// Returns ErrPasswordRequired for a local credential without a password.
func (r *Resolved) ZAPICredential() (zapi.Credential, error) {
	if r.Credential == CredentialSSO {
		if r.GrantCode == "" {
			return nil, fmt.Errorf("device %q: sso credential needs grant_code", r.Name)
		}
		return zapi.GrantCredential{GrantCode: r.GrantCode}, nil
	}
	if r.Password == "" {
		return nil, ErrPasswordRequired
	}
	return zapi.LocalCredential{Username: r.Username, Password: r.Password}, nil
}
