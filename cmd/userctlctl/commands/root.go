// Package commands implements userctlctl's CLI commands.
package commands

import (
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/dylangardner/userctl/internal/cli/output"
	"github.com/dylangardner/userctl/pkg/rpc"
)

var (
	busName    string
	objectPath string
	sessionBus bool
	outputFmt  string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "userctlctl",
	Short: "CLI client for userctld's D-Bus RPC surface",
	Long: `userctlctl talks to a running userctld over D-Bus: it lists and inspects
resource-control classes, evaluates which class a user would match, and
triggers reloads and transient property changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&busName, "bus-name", "org.dylangardner.userctl", "D-Bus well-known name the daemon owns")
	rootCmd.PersistentFlags().StringVar(&objectPath, "object-path", "/org/dylangardner/userctl", "D-Bus object path the Manager interface is exported at")
	rootCmd.PersistentFlags().BoolVar(&sessionBus, "session-bus", false, "connect to the session bus instead of the system bus")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(listClassesCmd)
	rootCmd.AddCommand(getClassCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(daemonReloadCmd)
	rootCmd.AddCommand(setPropertyCmd)
}

// newClient connects to the bus configured by the persistent flags.
func newClient() (*rpc.Client, error) {
	return rpc.NewClient(busName, dbus.ObjectPath(objectPath), sessionBus)
}

// printer builds the output.Printer for the configured --output format.
func printer() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFmt)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(rootCmd.OutOrStdout(), format, !noColor), nil
}
