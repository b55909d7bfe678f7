// Command isaac inspects, merges and queries serialized terminology
// chronicles.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/isaac/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
