package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aknob/AfpMaster-sub002/internal/record"
)

// ValidationResult holds validation results for a definitions file.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Records []string `json:"records,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <definitions.yaml>",
		Short: "Validate record definitions",
		Long: `Validate a YAML record definitions file.

Checks that every selection names a table, that join rules only reference
selections that exist, and that afterburner formulas are well formed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot read definitions", err)
	}

	defs, err := record.ParseDefinitions(data)
	if err != nil {
		if formatter.Format == "json" {
			result := ValidationResult{Valid: false, Errors: []string{err.Error()}}
			_ = formatter.Error("validation failed", result)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintln(formatter.Writer)
			fmt.Fprintf(formatter.Writer, "  %v\n", err)
		}
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		formatter.VerboseLog("Parsed record definition: %s", def.Name)
		names = append(names, def.Name)
	}
	sort.Strings(names)

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Records: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d record definition(s) valid\n", len(names))
	return nil
}
