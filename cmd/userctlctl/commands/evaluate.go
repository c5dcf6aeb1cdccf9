package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <uid>",
	Short: "Show which class a uid would currently match",
	Long: `Resolve uid's winning class by the same rule the daemon applies when a
user logs in (highest priority wins; on a tie the lexicographically first
class wins), and print its filepath.

Examples:
  userctlctl evaluate 1001`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	uid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	path, err := client.Evaluate(uint32(uid))
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	p.Println(path)
	return nil
}
