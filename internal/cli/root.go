// Package cli is the guildkeeper command line: run the bot, validate a
// config file, run harness scenarios and inspect the journal.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions are the flags every subcommand inherits.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand assembles guildkeeper and its subcommands. Errors are
// neither printed nor followed by usage here; main reports them once.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "guildkeeper",
		Short: "guildkeeper - community engagement bot",
		Long:  "A Discord bot for leveling, AFK notices, counting, giveaways, reminders, mini-games and an LLM assistant.",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging and progress output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		NewRunCommand(opts),
		NewValidateCommand(opts),
		NewTestCommand(opts),
		NewTraceCommand(opts),
	)
	return cmd
}
