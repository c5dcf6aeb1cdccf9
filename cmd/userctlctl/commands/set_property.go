package commands

import (
	"github.com/spf13/cobra"
)

var setPropertyCmd = &cobra.Command{
	Use:   "set-property <name> <key> <value>",
	Short: "Add or replace one control on a class, in memory only",
	Long: `Add or replace a single resource-control key on a class. The change is
transient: it is applied in memory and enforced immediately against the
class's active members, but is not written back to the class file, so a
subsequent Reload or DaemonReload discards it.

Examples:
  userctlctl set-property student CPUQuota 75%`,
	Args: cobra.ExactArgs(3),
	RunE: runSetProperty,
}

func runSetProperty(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.SetProperty(args[0], args[1], args[2]); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("set " + args[1] + "=" + args[2] + " on " + args[0])
	return nil
}
