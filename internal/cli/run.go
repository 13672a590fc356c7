package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/guildkeeper/internal/chat"
	"github.com/roach88/guildkeeper/internal/config"
	"github.com/roach88/guildkeeper/internal/discord"
	"github.com/roach88/guildkeeper/internal/engine"
	"github.com/roach88/guildkeeper/internal/journal"
	"github.com/roach88/guildkeeper/internal/llm"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config  string
	Journal string
	EnvFile string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the bot",
		Long: `Connect to the Discord gateway and run the engagement engine.

The bot token is read from DISCORD_TOKEN. When GROQ_API_KEY is set the
assistant commands are enabled. Both may come from a .env file.

Outcomes (level-ups, giveaway results, delivered reminders, delivery
failures) are appended to a SQLite journal. Engagement state itself is
kept in memory and starts empty on every run.

Examples:
  guildkeeper run
  guildkeeper run --config ./guildkeeper.yaml --journal ./guildkeeper.db
  guildkeeper run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", config.DefaultPath, "path to the config file")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (overrides config and GUILDKEEPER_JOURNAL)")
	cmd.Flags().StringVar(&opts.EnvFile, "env-file", ".env", "optional dotenv file")

	return cmd
}

func runBot(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel, opts.Verbose))

	env, err := config.LoadEnv(opts.EnvFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	if err := env.RequireDiscord(); err != nil {
		return WrapExitError(ExitCommandError, "cannot connect", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := opts.Journal
	if path == "" {
		path = cfg.JournalPath(env)
	}
	slog.Info("opening journal", "path", path)
	jr, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := jr.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()
	last, err := jr.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	deps := engine.Deps{Journal: jr, StartSeq: last}
	if env.AssistantEnabled() {
		client, err := llm.New(cfg.LLMConfig(env))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create LLM client", err)
		}
		deps.Completer = client
		slog.Info("assistant enabled", "model", cfg.Assistant.DefaultModel)
	} else {
		slog.Info("assistant disabled: GROQ_API_KEY is not set")
	}

	// The gateway only calls the handler after Open, when eng is set.
	var eng *engine.Engine
	gw, err := discord.New(env.DiscordToken, func(in chat.Inbound) {
		if !eng.Enqueue(engine.InboundEvent(in)) {
			slog.Debug("engine stopped, inbound event dropped", "id", in.ID)
		}
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create gateway", err)
	}
	deps.Messenger = gw.Messenger()

	eng, err = engine.New(cfg.Settings(), deps)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	if err := gw.Open(); err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			slog.Error("error closing gateway", "error", closeErr)
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "guildkeeper is running. Press Ctrl-C to stop.")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	slog.Info("engine stopped gracefully", "seq", eng.Seq())
	return nil
}

// newLogger builds the process logger. --verbose forces debug.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
