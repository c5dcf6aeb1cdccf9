package commands

import (
	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload <name>",
	Short: "Re-parse one class file and re-enforce its active members",
	Long: `Re-parse a single class file. If the file can no longer be opened or
read, the daemon keeps the previous definition in memory and this command
surfaces that failure as a ClassFailure error rather than silently
succeeding. A file that still parses, even with per-line diagnostics,
replaces the previous definition.

Examples:
  userctlctl reload student`,
	Args: cobra.ExactArgs(1),
	RunE: runReload,
}

func runReload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.Reload(args[0]); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("reloaded " + args[0])
	return nil
}
