package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/guildkeeper/internal/config"
)

// ValidationIssue is one problem found in a config file.
type ValidationIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	File   string            `json:"file"`
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config]",
		Short: "Validate a config file",
		Long: `Validate a guildkeeper config file without starting the bot.

The file is checked against the embedded CUE schema (types, ranges,
unknown keys) and then for consistency (award bounds, the default model
and persona exist in their catalogues, trivia answers are in range).
Every problem is reported, not just the first.

Exit codes:
  0 - The config is valid
  1 - The config has problems
  2 - The file could not be read

Examples:
  guildkeeper validate
  guildkeeper validate ./guildkeeper.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfigRead, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}
	formatter.VerboseLog("Validating %s (%d bytes)", path, len(data))

	result := ValidationResult{File: path, Valid: true}
	for _, err := range config.Lint(data, path) {
		result.Valid = false
		result.Errors = append(result.Errors, toIssue(err))
	}

	if result.Valid {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
		return nil
	}
	return outputValidationErrors(formatter, result)
}

func toIssue(err error) ValidationIssue {
	var verr *config.ValidationError
	if !errors.As(err, &verr) {
		return ValidationIssue{Field: "config", Message: err.Error()}
	}
	issue := ValidationIssue{Field: verr.Field, Message: verr.Message}
	if verr.Pos.IsValid() {
		issue.Line = verr.Pos.Line()
		issue.Column = verr.Pos.Column()
	}
	return issue
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeConfigInvalid,
				Message: result.Errors[0].Message,
			},
		}); err != nil {
			return err
		}
		return failed
	}

	fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n\n", result.File)
	for _, issue := range result.Errors {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d:%d\n", issue.Line, issue.Column)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Field, issue.Message)
	}
	return failed
}
