package commands

import (
	"github.com/spf13/cobra"
)

var listClassesCmd = &cobra.Command{
	Use:   "list-classes",
	Short: "List every loaded class's filepath",
	Long: `List the filepaths of every class currently loaded by the daemon, in
lexicographic order by class name.

Examples:
  userctlctl list-classes
  userctlctl list-classes -o json`,
	RunE: runListClasses,
}

type classPathList []string

func (l classPathList) Headers() []string { return []string{"FILEPATH"} }

func (l classPathList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, path := range l {
		rows = append(rows, []string{path})
	}
	return rows
}

func runListClasses(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	paths, err := client.ListClasses()
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	return p.Print(classPathList(paths))
}
