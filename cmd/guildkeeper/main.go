// Command guildkeeper runs the community engagement bot.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/guildkeeper/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
