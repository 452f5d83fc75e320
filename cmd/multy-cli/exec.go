package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/ui"
)

var execYes bool

var execCmd = &cobra.Command{
	Use:   "exec <command> [field=value...]",
	Short: "Run a router command",
	Long: `Run one command from the command table (see 'multy-cli commands').

Inputs are given as field=value pairs and validated before anything is sent.
Commands that interrupt connectivity ask for confirmation unless --yes is
given. After a successful command the resources it affects are read again.`,
	Example: `  # Turn the LED of a node off
  multy-cli exec switch-led mac=aa:bb:cc:dd:ee:ff led-switch=off

  # Block a client for 30 minutes
  multy-cli exec block-device mac-address=11:22:33:44:55:66 lasting-time=30

  # Forward port 8080 to a LAN host
  multy-cli exec port-forward-add service=web external-port=8080 internal-port=80 local-ip=192.168.212.20

  # Reboot without the prompt
  multy-cli exec reboot --yes`,
	Args: cobra.MinimumNArgs(1),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return commands.Names(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: runExec,
}

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands accepted by exec",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(commands.All())
		}
		fmt.Print(ui.RenderCommands(commands.All()))
		return nil
	},
}

func init() {
	execCmd.Flags().BoolVarP(&execYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(commandsCmd)
}

// parseInputs turns field=value arguments into command inputs. Values stay
// strings; the command table coerces them to their field types.
func parseInputs(args []string) (map[string]any, error) {
	inputs := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: want field=value", arg)
		}
		if _, dup := inputs[key]; dup {
			return nil, fmt.Errorf("input %q given twice", key)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func runExec(cmd *cobra.Command, args []string) error {
	name := args[0]
	command, ok := commands.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown command %q (see 'multy-cli commands')", name)
	}
	inputs, err := parseInputs(args[1:])
	if err != nil {
		return err
	}
	// Validate before prompting or logging in
	if _, err := command.Input(inputs); err != nil {
		return err
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.close()

	if command.Disruptive && !execYes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("%s interrupts connectivity: pass --yes to run it non-interactively", name)
		}
		if !ui.ConfirmCommand(os.Stdin, os.Stdout, name, eng.device.Host) {
			return nil
		}
	}

	res, err := eng.facade.Execute(cmd.Context(), name, inputs)
	if err != nil {
		if !jsonOutput {
			fmt.Println(ui.RenderFailure(name, err))
		}
		return err
	}

	if jsonOutput {
		out := struct {
			Command      string         `json:"command"`
			Output       map[string]any `json:"output,omitempty"`
			Refreshed    []string       `json:"refreshed,omitempty"`
			RefreshError string         `json:"refresh_error,omitempty"`
		}{Command: res.Command, Output: res.Output, Refreshed: res.Refreshed}
		if res.RefreshErr != nil {
			out.RefreshError = res.RefreshErr.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Println(ui.RenderCommandResult(res))
	return nil
}
