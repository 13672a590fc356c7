package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/guildkeeper/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Kind    string
	Subject string // optional - filter to one user, channel or giveaway
	Limit   int
}

// TraceEvent is one journal entry in the timeline.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	Kind       string         `json:"kind"`
	Subject    string         `json:"subject,omitempty"`
	ChannelID  string         `json:"channel_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string         `json:"journal"`
	Timeline []TraceEvent   `json:"timeline"`
	Counts   map[string]int `json:"counts"`
	LastSeq  int64          `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recent journal entries",
		Long: `Show the newest outcomes recorded in the journal, oldest first.

The output includes:
- Timeline: level-ups, welcome-backs, counting resets, giveaway results,
  resolved rounds, delivered reminders and delivery failures
- Counts: entries per kind across the whole journal

Examples:
  guildkeeper trace --journal ./guildkeeper.db
  guildkeeper trace --journal ./guildkeeper.db --kind giveaway_ended
  guildkeeper trace --journal ./guildkeeper.db --subject 1234 --limit 200 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only entries of this kind")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "only entries about this subject")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of entries")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening creates the file, so a typo would silently make a new one.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	jr, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jr.Close()

	entries, err := jr.Recent(ctx, journal.Filter{Kind: journal.Kind(opts.Kind), Limit: opts.Limit})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	counts, err := jr.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count journal entries", err)
	}
	last, err := jr.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Journal:  opts.Journal,
		Timeline: buildTimeline(entries, opts.Subject),
		Counts:   make(map[string]int, len(counts)),
		LastSeq:  last,
	}
	for k, n := range counts {
		result.Counts[string(k)] = n
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// buildTimeline converts journal entries, keeping only subject when set.
func buildTimeline(entries []journal.Entry, subject string) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		if subject != "" && e.Subject != subject {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:        e.Seq,
			Kind:       string(e.Kind),
			Subject:    e.Subject,
			ChannelID:  e.ChannelID,
			Detail:     e.Detail,
			RecordedAt: e.RecordedAt,
		})
	}
	return timeline
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Journal: %s (last seq %d)\n", result.Journal, result.LastSeq)
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No matching entries.")
	} else {
		fmt.Fprintln(w, "Timeline:")
		for _, ev := range result.Timeline {
			fmt.Fprintf(w, "  [%d] %s %s %s", ev.Seq, ev.RecordedAt.UTC().Format(time.RFC3339), ev.Kind, ev.Subject)
			if ev.ChannelID != "" && ev.ChannelID != ev.Subject {
				fmt.Fprintf(w, " #%s", ev.ChannelID)
			}
			fmt.Fprintln(w)
			if formatter.Verbose || len(ev.Detail) > 0 {
				fmt.Fprintf(w, "       %s\n", formatArgs(ev.Detail))
			}
		}
	}

	kinds := make([]string, 0, len(result.Counts))
	for k := range result.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Counts:")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-16s %d\n", k, result.Counts[k])
	}
	return nil
}

// formatArgs renders a detail map with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
