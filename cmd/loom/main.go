package main

import (
	"fmt"
	"os"

	"github.com/loomworks/loom/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own diagnostics through the formatter;
		// the message here is the short failure summary, if any.
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
