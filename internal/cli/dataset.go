package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/curator/internal/dataset"
)

// DatasetInfo is the JSON payload for the dataset info command.
type DatasetInfo struct {
	Path       string         `json:"path"`
	Clusters   int            `json:"clusters"`
	Elements   int            `json:"elements"`
	Similarity int            `json:"similarity"`
	Labels     map[string]int `json:"labels,omitempty"`
}

// NewDatasetCommand creates the dataset command group.
func NewDatasetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage SQLite dataset files",
	}

	cmd.AddCommand(newDatasetInitCommand(rootOpts))
	cmd.AddCommand(newDatasetInfoCommand(rootOpts))

	return cmd
}

func newDatasetInitCommand(rootOpts *RootOptions) *cobra.Command {
	var clusters int

	cmd := &cobra.Command{
		Use:   "init <db-file>",
		Short: "Create a dataset seeded with synthetic clusters",
		Long: `Create a SQLite dataset file seeded with a synthetic sample:
cluster i holds i elements and similarity falls off with id distance.
Useful as a fixture for path-based scenarios.

Examples:
  curator dataset init demo.db
  curator dataset init demo.db --clusters 25`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetInit(rootOpts, args[0], clusters, cmd)
		},
	}

	cmd.Flags().IntVar(&clusters, "clusters", 10, "number of clusters to seed")

	return cmd
}

func runDatasetInit(opts *RootOptions, path string, clusters int, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if clusters < 1 {
		return NewExitError(ExitCommandError, "cluster count must be positive")
	}

	// Seeding skips rows that already exist, so an old file would keep
	// its contents and silently ignore the new sample. Refuse instead.
	if _, err := os.Stat(path); err == nil {
		formatter.Error(ErrCodeDataset, fmt.Sprintf("dataset file already exists: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("dataset file already exists: %s", path))
	}

	store, err := dataset.Open(path)
	if err != nil {
		formatter.Error(ErrCodeDataset, "failed to create dataset", err.Error())
		return WrapExitError(ExitCommandError, "failed to create dataset", err)
	}
	defer store.Close()

	if err := store.Seed(cmd.Context(), dataset.Sample(clusters)); err != nil {
		formatter.Error(ErrCodeDataset, "failed to seed dataset", err.Error())
		return WrapExitError(ExitCommandError, "failed to seed dataset", err)
	}

	sum, err := store.Info(cmd.Context())
	if err != nil {
		formatter.Error(ErrCodeDataset, "failed to read dataset", err.Error())
		return WrapExitError(ExitCommandError, "failed to read dataset", err)
	}

	if opts.Format == "json" {
		return formatter.Success(datasetInfo(path, sum))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s (%d clusters, %d elements)\n", path, sum.Clusters, sum.Elements)
	return nil
}

func newDatasetInfoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <db-file>",
		Short: "Show dataset row counts",
		Long: `Show cluster, element and similarity row counts for a dataset,
plus label counts broken down by field.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDatasetInfo(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runDatasetInfo(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		formatter.Error(ErrCodeNotFound, fmt.Sprintf("dataset file not found: %s", path), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("dataset file not found: %s", path))
	}

	store, err := dataset.Open(path)
	if err != nil {
		formatter.Error(ErrCodeDataset, "failed to open dataset", err.Error())
		return WrapExitError(ExitCommandError, "failed to open dataset", err)
	}
	defer store.Close()

	sum, err := store.Info(cmd.Context())
	if err != nil {
		formatter.Error(ErrCodeDataset, "failed to read dataset", err.Error())
		return WrapExitError(ExitCommandError, "failed to read dataset", err)
	}

	if opts.Format == "json" {
		return formatter.Success(datasetInfo(path, sum))
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Dataset: %s\n", path)
	fmt.Fprintf(w, "  Clusters:   %d\n", sum.Clusters)
	fmt.Fprintf(w, "  Elements:   %d\n", sum.Elements)
	fmt.Fprintf(w, "  Similarity: %d\n", sum.Similarity)
	for _, field := range sortedLabelFields(sum.Labels) {
		fmt.Fprintf(w, "  Labels[%s]: %d\n", field, sum.Labels[field])
	}
	return nil
}

func datasetInfo(path string, sum dataset.Summary) DatasetInfo {
	info := DatasetInfo{
		Path:       path,
		Clusters:   sum.Clusters,
		Elements:   sum.Elements,
		Similarity: sum.Similarity,
	}
	if len(sum.Labels) > 0 {
		info.Labels = sum.Labels
	}
	return info
}

func sortedLabelFields(labels map[string]int) []string {
	fields := make([]string, 0, len(labels))
	for field := range labels {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	return fields
}
