package commands

import (
	"github.com/spf13/cobra"
)

var daemonReloadCmd = &cobra.Command{
	Use:   "daemon-reload",
	Short: "Rebuild the entire class registry from disk",
	Long: `Rescan the class directory and rebuild the registry from scratch. On
failure the old registry is left untouched. On success every class is
re-enforced against its currently active members.

Examples:
  userctlctl daemon-reload`,
	RunE: runDaemonReload,
}

func runDaemonReload(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	if err := client.DaemonReload(); err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Success("daemon reloaded")
	return nil
}
