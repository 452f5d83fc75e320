package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/config"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/poller"
	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/version"
	"github.com/muurk/multy/internal/zapi"
)

// Global flags shared by every router command
var (
	configPath    string
	deviceName    string
	hostFlag      string
	userFlag      string
	grantCodeFlag string
	intervalFlag  time.Duration
	timeoutFlag   time.Duration
	resourcesFlag []string
	logLevel      string
	jsonOutput    bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default is the platform config directory)")
	pf.StringVarP(&deviceName, "device", "d", "", "Configured device name (default device if empty)")
	pf.StringVar(&hostFlag, "host", "", "Router address, overrides the configured host")
	pf.StringVar(&userFlag, "user", "", "Admin username")
	pf.StringVar(&grantCodeFlag, "grant-code", "", "SSO grant code instead of a password")
	pf.DurationVar(&intervalFlag, "interval", 0, "Poll interval (default 30s)")
	pf.DurationVar(&timeoutFlag, "timeout", 0, "Per-call timeout (default 10s)")
	pf.StringSliceVar(&resourcesFlag, "resources", nil, "Resources to poll (default all): "+strings.Join(poller.ResourceNames(), ", "))
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default MULTY_LOG_LEVEL or silent")
	pf.BoolVar(&jsonOutput, "json", false, "Print JSON instead of styled output")
}

// loadRegistry reads the config file named by --config or the default one.
func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadRegistry()
}

func saveRegistry(reg *config.Registry) error {
	if configPath != "" {
		return reg.SaveFile(configPath)
	}
	return reg.Save()
}

// resolveDevice picks the router to talk to and applies flag overrides.
// --host alone works without any config file.
func resolveDevice(reg *config.Registry) (*config.Resolved, error) {
	var (
		name   string
		device config.Device
	)
	switch {
	case deviceName == "" && hostFlag != "":
		name, device = hostFlag, config.Device{Host: hostFlag}
		for _, n := range reg.DeviceNames() {
			if reg.Devices[n].Host == hostFlag {
				name, device = n, *reg.Devices[n]
				break
			}
		}
	default:
		n, d, err := reg.SelectDevice(deviceName)
		if err != nil {
			return nil, err
		}
		name, device = n, *d
	}

	applyOverrides(&device)
	return device.Resolve(name)
}

func applyOverrides(d *config.Device) {
	if hostFlag != "" {
		d.Host = hostFlag
	}
	if userFlag != "" {
		d.Username = userFlag
	}
	if grantCodeFlag != "" {
		d.Credential = config.CredentialSSO
		d.GrantCode = grantCodeFlag
	}
	if intervalFlag > 0 {
		d.PollInterval = intervalFlag
	}
	if timeoutFlag > 0 {
		d.CallTimeout = timeoutFlag
	}
	if len(resourcesFlag) > 0 {
		d.Resources = resourcesFlag
	}
}

// credentialFor builds the login credential, prompting for a missing
// password when stdin is a terminal.
func credentialFor(device *config.Resolved) (zapi.Credential, error) {
	cred, err := device.ZAPICredential()
	if !errors.Is(err, config.ErrPasswordRequired) {
		return cred, err
	}
	password, err := promptPassword(device.Username, device.Host)
	if err != nil {
		return nil, err
	}
	device.Password = password
	return device.ZAPICredential()
}

func promptPassword(user, host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%w for %s@%s: set password_env in the config file or run interactively",
			config.ErrPasswordRequired, user, host)
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}

// engine is the wired client stack for one router.
type engine struct {
	device     *config.Resolved
	transport  *zapi.Transport
	session    *zapi.Session
	dispatcher *zapi.Dispatcher
	cache      *state.Cache
	scheduler  *poller.Scheduler
	facade     *commands.Facade
}

func newEngine(device *config.Resolved) (*engine, error) {
	cred, err := credentialFor(device)
	if err != nil {
		return nil, err
	}
	resources, err := poller.SelectResources(device.Resources)
	if err != nil {
		return nil, err
	}

	transport := zapi.NewTransport(device.Host)
	transport.UserAgent = version.UserAgent()
	// Outer bound only; the dispatcher applies the per-call deadline
	transport.SetTimeout(2 * device.CallTimeout)

	session := zapi.NewSession(transport, cred)
	dispatcher := zapi.NewDispatcher(transport, session, zapi.DispatcherConfig{
		Concurrency: int64(device.Concurrency),
		MaxAttempts: device.MaxAttempts,
		CallTimeout: device.CallTimeout,
		MaxBackoff:  zapi.DefaultMaxBackoff,
	})

	cache := state.NewCache()
	scheduler := poller.NewScheduler(dispatcher, cache, poller.Config{
		Interval:  device.PollInterval,
		Resources: resources,
	})

	facade := commands.New(dispatcher)
	facade.SetRefresher(scheduler)

	logging.Debug("Engine ready",
		zap.String("device", device.Name),
		zap.String("host", device.Host),
		zap.String("credential", string(cred.Kind())),
		zap.Int("resources", len(resources)),
	)

	return &engine{
		device:     device,
		transport:  transport,
		session:    session,
		dispatcher: dispatcher,
		cache:      cache,
		scheduler:  scheduler,
		facade:     facade,
	}, nil
}

// openEngine loads the config and wires the engine for the selected router.
func openEngine() (*engine, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	device, err := resolveDevice(reg)
	if err != nil {
		return nil, err
	}
	return newEngine(device)
}

// enableStore persists snapshots so later runs diff against them.
func (e *engine) enableStore() {
	if e.device.StateFile != "" {
		e.scheduler.SetStore(state.NewStore(e.device.StateFile))
	}
}

// resourceNames lists the polled resources in poll order.
func (e *engine) resourceNames() []string {
	resources, _ := poller.SelectResources(e.device.Resources)
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Name
	}
	return names
}

// close drains in-flight calls. It runs after the command context may have
// been cancelled, so it gets its own deadline.
func (e *engine) close() {
	ctx, cancel := context.WithTimeout(context.Background(), e.device.CallTimeout)
	defer cancel()
	if err := e.dispatcher.Close(ctx); err != nil {
		logging.Warn("Dispatcher did not drain", zap.Error(err))
	}
}
