// Command genflow is GenFlow's CLI entry point, grounded on the teacher's
// cmd/nexus cobra-based command tree.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "genflow",
		Short: "GenFlow multi-agent workflow orchestrator",
	}
	root.AddCommand(buildRunCmd(), buildStatusCmd(), buildValidateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
