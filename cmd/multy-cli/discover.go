package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/multy/internal/discovery"
	"github.com/muurk/multy/internal/ui"
)

var (
	discoverTimeout int
	discoverSave    string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find Multy routers on the local network",
	Long: `Browse mDNS for Multy routers and list their addresses.

Routers advertise an HTTP service whose host or instance name contains
"Multy" or whose model TXT record is a WSQ/WSR model. Satellite nodes are
listed too; ZAPI commands must go to the controller node.`,
	Example: `  # Scan with the configured timeout (default 5s)
  multy-cli discover

  # Scan longer and save the first router as "home"
  multy-cli discover --timeout 10 --save home`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "scan-timeout", 0, "Scan timeout in seconds (default from preferences)")
	discoverCmd.Flags().StringVar(&discoverSave, "save", "", "Save the first router found under this device name")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner()
	switch {
	case discoverTimeout > 0:
		scanner.Timeout = time.Duration(discoverTimeout) * time.Second
	case reg.Preferences != nil && reg.Preferences.DiscoverTimeout > 0:
		scanner.Timeout = time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	}

	if !jsonOutput {
		fmt.Printf("Scanning for Multy routers (timeout: %s)...\n\n", scanner.Timeout)
	}
	start := time.Now()
	routers, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(routers); err != nil {
			return err
		}
	} else {
		fmt.Println(ui.RenderRouters(routers, time.Since(start)))
	}

	if discoverSave == "" || len(routers) == 0 {
		return nil
	}

	router := routers[0]
	reg.UpdateDeviceLastSeen(discoverSave, router.Host())
	if router.Instance != "" {
		reg.Devices[discoverSave].Nickname = router.Instance
	}
	if reg.Preferences.DefaultDevice == "" {
		reg.Preferences.DefaultDevice = discoverSave
	}
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if !jsonOutput {
		fmt.Printf("\nSaved %s as device %q. Run 'multy-cli login -d %s' to store credentials.\n",
			router.Host(), discoverSave, discoverSave)
	}
	return nil
}
