// Command mosaic runs and serves a shared mosaic board.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mosaic/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
