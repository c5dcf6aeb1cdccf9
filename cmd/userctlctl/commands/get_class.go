package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dylangardner/userctl/internal/cli/output"
)

var getClassCmd = &cobra.Command{
	Use:   "get-class <name>",
	Short: "Show one class's filepath, priority, sharing and membership",
	Long: `Fetch a single class's RPC payload: its filepath, whether it is shared,
its priority, and its member uids/gids. The class-file extension is
appended automatically if name omits it.

Examples:
  userctlctl get-class student
  userctlctl get-class student.class -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGetClass,
}

type classInfoField [][2]string

func (f classInfoField) Headers() []string { return []string{"FIELD", "VALUE"} }

func (f classInfoField) Rows() [][]string {
	rows := make([][]string, 0, len(f))
	for _, kv := range f {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	return rows
}

func runGetClass(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	info, err := client.GetClass(args[0])
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(info)
	}
	return p.Print(classInfoField{
		{"Filepath", info.Filepath},
		{"Shared", strconv.FormatBool(info.Shared)},
		{"Priority", strconv.FormatFloat(info.Priority, 'g', -1, 64)},
		{"Users", fmt.Sprintf("%v", info.Users)},
		{"Groups", fmt.Sprintf("%v", info.Groups)},
	})
}
