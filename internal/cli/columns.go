package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aknob/AfpMaster-sub002/internal/store"
)

// ColumnsResult holds the discovered layout of a table.
type ColumnsResult struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
}

// NewColumnsCommand creates the columns command.
func NewColumnsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns <database> <table>",
		Short: "Show the column layout of a table",
		Long: `Show the column layout of a table, in declaration order.

This is the same discovery the engine uses when a record definition
names a table without an explicit column list.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runColumns(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runColumns(opts *RootOptions, dbPath, table string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error(fmt.Sprintf("database %s not found", dbPath), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "cannot open database", err)
	}
	defer st.Close()

	cols, err := st.Columns(cmd.Context(), table)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("cannot read table %s", table), err)
	}

	formatter.VerboseLog("Discovered %d column(s) in %s", len(cols), table)

	if formatter.Format == "json" {
		return formatter.Success(ColumnsResult{Table: table, Columns: cols})
	}
	fmt.Fprintf(formatter.Writer, "%s: %s\n", table, strings.Join(cols, ", "))
	return nil
}
