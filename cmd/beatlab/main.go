// Command beatlab edits, plays, exports and serves step-sequencer projects.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/beatlab/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
