package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/multy/internal/config"
	"github.com/muurk/multy/internal/eventstream"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/ui"
)

var (
	serveListen   string
	serveCertPath string
	serveKeyPath  string
	serveReadOnly bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the router and serve its state over HTTP and WebSocket",
	Long: `Poll the router continuously and expose the state cache to other programs.

Endpoints:

  GET  /events                  WebSocket stream of events (?filter=<expr>, ?history=true)
  GET  /snapshots               latest snapshot of every resource
  GET  /snapshots/{resource}    latest snapshot of one resource
  GET  /history/{resource}      recent events of one resource
  GET  /status                  resources, subscriber and drop counters
  POST /commands/{name}         run a command with a JSON object of inputs

The listener binds to 127.0.0.1 by default. Commands can reboot the router
or change WiFi credentials; use --read-only when exposing the server further.`,
	Example: `  # Serve on the default address
  multy-cli serve

  # Serve on all interfaces with TLS, without the command endpoint
  multy-cli serve --listen :8765 --cert server.pem --key server.key --read-only`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from preferences, "+config.DefaultListenAddr+")")
	serveCmd.Flags().StringVar(&serveCertPath, "cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveKeyPath, "key", "", "TLS private key file")
	serveCmd.Flags().BoolVar(&serveReadOnly, "read-only", false, "Disable POST /commands")
	rootCmd.AddCommand(serveCmd)
}

// parseListen splits a listen address. An empty port means the default.
func parseListen(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if portStr == "" {
		return host, eventstream.DefaultPort, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return host, port, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if (serveCertPath == "") != (serveKeyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	listen := serveListen
	if listen == "" && reg.Preferences != nil {
		listen = reg.Preferences.ListenAddr
	}
	if listen == "" {
		listen = config.DefaultListenAddr
	}
	host, port, err := parseListen(listen)
	if err != nil {
		return err
	}

	device, err := resolveDevice(reg)
	if err != nil {
		return err
	}
	eng, err := newEngine(device)
	if err != nil {
		return err
	}
	defer eng.close()
	eng.enableStore()

	var exec eventstream.Executor
	if !serveReadOnly {
		exec = eng.facade
	}
	srv, err := eventstream.New(&eventstream.Config{
		Host:     host,
		Port:     port,
		CertPath: serveCertPath,
		KeyPath:  serveKeyPath,
	}, eng.cache, exec)
	if err != nil {
		return err
	}
	srv.SetStaleReporter(eng.scheduler)

	if !jsonOutput {
		scheme := "http"
		if serveCertPath != "" {
			scheme = "https"
		}
		fmt.Println(ui.NewHeader("Serving router state", "multy-cli serve", map[string]string{
			"Router":    device.Host,
			"Listen":    scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port)),
			"Interval":  device.PollInterval.String(),
			"Resources": strconv.Itoa(len(eng.resourceNames())),
			"Commands":  strconv.FormatBool(!serveReadOnly),
		}).Render())
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return eng.scheduler.Run(ctx)
	})
	g.Go(func() error {
		return srv.Start(ctx)
	})

	err = g.Wait()
	stats := eng.scheduler.Stats()
	logging.Info("Serve stopped",
		zap.Uint64("ticks", stats.Ticks),
		zap.Uint64("failures", stats.Failures),
		zap.Uint64("dropped_events", eng.cache.Dropped()),
	)
	return err
}
