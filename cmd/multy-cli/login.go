package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/multy/internal/config"
	"github.com/muurk/multy/internal/ui"
)

var (
	loginSavePassword bool
	loginPasswordEnv  string
)

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Verify credentials and save a router to the config file",
	Long: `Log in to a router once and, on success, save it to the config file.

The password is prompted for unless the config already provides one. It is
only written to the file with --save-password; prefer --password-env so it
is read from the environment on every run.`,
	Example: `  # Add the router at 192.168.212.1 as "home"
  multy-cli login home --host 192.168.212.1

  # Read the password from $MULTY_PASSWORD on later runs
  multy-cli login home --host 192.168.212.1 --password-env MULTY_PASSWORD

  # Log in with an SSO grant code
  multy-cli login home --host 192.168.212.1 --grant-code 3f9a...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginSavePassword, "save-password", false, "Store the password in the config file")
	loginCmd.Flags().StringVar(&loginPasswordEnv, "password-env", "", "Environment variable to read the password from")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	name := deviceName
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		name = "default"
	}

	stored := reg.EnsureDevice(name)
	if loginPasswordEnv != "" {
		stored.PasswordEnv = loginPasswordEnv
	}
	device := *stored
	applyOverrides(&device)
	if device.Host == "" {
		reg.RemoveDevice(name)
		return fmt.Errorf("device %q has no host: pass --host", name)
	}

	resolved, err := device.Resolve(name)
	if err != nil {
		return err
	}
	eng, err := newEngine(resolved)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.session.Login(cmd.Context()); err != nil {
		fmt.Println(ui.RenderFailure("Login to "+resolved.Host, err))
		return fmt.Errorf("login failed")
	}

	// Persist only what was asked for, never flag-only tuning
	stored.Host = resolved.Host
	stored.Credential = resolved.Credential
	stored.Username = resolved.Username
	if resolved.Credential == config.CredentialSSO {
		stored.GrantCode = ""
	}
	if loginSavePassword {
		stored.Password = resolved.Password
	}
	reg.UpdateDeviceLastSeen(name, resolved.Host)
	if reg.Preferences.DefaultDevice == "" {
		reg.Preferences.DefaultDevice = name
	}
	if err := saveRegistry(reg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	details := map[string]string{
		"Device": name,
		"Host":   resolved.Host,
		"User":   resolved.Username,
	}
	if resolved.Credential == config.CredentialSSO {
		details["User"] = "sso"
	}
	switch {
	case loginSavePassword:
		details["Password"] = "saved in config file"
	case stored.PasswordEnv != "":
		details["Password"] = "from $" + stored.PasswordEnv
	default:
		details["Password"] = "prompted on each run"
	}
	fmt.Println(ui.RenderSuccess("Logged in", details))
	return nil
}
