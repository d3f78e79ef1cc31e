package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/curator/internal/scenario"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Trace bool // include the canonical trace in the output
}

// RunReport is the run command's result payload.
type RunReport struct {
	Name          string          `json:"name"`
	Pass          bool            `json:"pass"`
	Errors        []string        `json:"errors,omitempty"`
	Events        int             `json:"events"`
	Notifications int             `json:"notifications"`
	Trace         json.RawMessage `json:"trace,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a single scenario",
		Long: `Run one scenario file against a fresh curation session.

Loads the scenario, executes its steps, checks the expectations and
reports the outcome. With --trace the canonical trace is included.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (file not found, invalid scenario, etc.)

Examples:
  curator run scenarios/merge.yaml
  curator run scenarios/merge.yaml --trace
  curator run scenarios/merge.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include the canonical trace in the output")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := scenario.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	formatter.VerboseLog("Running scenario %s (%d steps)", s.Name, len(s.Steps))

	result, err := scenario.Run(cmd.Context(), s, scenario.WithLogger(sessionLogger(opts.RootOptions, cmd)))
	if err != nil {
		_ = formatter.Error(ErrCodeRunFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	report := RunReport{
		Name:          result.Name,
		Pass:          result.Pass,
		Errors:        result.Errors,
		Events:        len(result.Snapshot.Entries),
		Notifications: result.Notifications,
	}
	if opts.Trace {
		trace, err := result.Snapshot.MarshalCanonical()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to marshal trace", err)
		}
		report.Trace = trace
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, report)
	}
	return outputRunText(cmd, report)
}

// outputRunJSON outputs the run report as JSON.
func outputRunJSON(cmd *cobra.Command, report RunReport) error {
	response := CLIResponse{Status: "ok", Data: report}
	if !report.Pass {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("scenario %s failed", report.Name),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Name))
	}
	return nil
}

// outputRunText outputs the run report as text.
func outputRunText(cmd *cobra.Command, report RunReport) error {
	w := cmd.OutOrStdout()

	if report.Pass {
		fmt.Fprintf(w, "✓ %s (%d events, %d notifications)\n", report.Name, report.Events, report.Notifications)
	} else {
		fmt.Fprintf(w, "✗ %s\n", report.Name)
		for _, e := range report.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if len(report.Trace) > 0 {
		fmt.Fprintln(w, string(report.Trace))
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", report.Name))
	}
	return nil
}

// sessionLogger routes curator logs to stderr in verbose mode and
// discards them otherwise.
func sessionLogger(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	if opts.Verbose {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
