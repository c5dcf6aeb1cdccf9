// Command userctlctl is the CLI client for userctld's D-Bus RPC surface.
package main

import (
	"fmt"
	"os"

	"github.com/dylangardner/userctl/cmd/userctlctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
