package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/aknob/AfpMaster-sub002/internal/payment"
)

// DistributeResult holds the allocation computed for one payment.
type DistributeResult struct {
	TotalCents      int64   `json:"total_cents"`
	AllocationCents []int64 `json:"allocation_cents"`
}

// NewDistributeCommand creates the distribute command.
func NewDistributeCommand(rootOpts *RootOptions) *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "distribute <total> <outstanding:paid>...",
		Short: "Distribute a payment across open balances",
		Long: `Distribute a payment total across a list of balances.

Amounts are decimal strings ("60", "60.50"); each balance is written as
outstanding:paid. The allocation is computed exactly in cents, with ties
and remainders going to the first balance.

Example:

  afpm distribute 60 50:0 30:0`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistribute(rootOpts, locale, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&locale, "locale", "en", "locale used for text output")

	return cmd
}

func runDistribute(opts *RootOptions, locale, total string, pairs []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tag, err := language.Parse(locale)
	if err != nil {
		_ = formatter.Error(fmt.Sprintf("invalid locale %q", locale), nil)
		return WrapExitError(ExitCommandError, "invalid locale", err)
	}

	totalCents, err := payment.ParseAmount(total)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid total", err)
	}

	balances := make([]payment.Balance, 0, len(pairs))
	for _, pair := range pairs {
		outstanding, paid, ok := strings.Cut(pair, ":")
		if !ok {
			_ = formatter.Error(fmt.Sprintf("balance %q is not outstanding:paid", pair), nil)
			return NewExitError(ExitFailure, "invalid balance")
		}
		oc, err := payment.ParseAmount(outstanding)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid balance", err)
		}
		pc, err := payment.ParseAmount(paid)
		if err != nil {
			_ = formatter.Error(err.Error(), nil)
			return WrapExitError(ExitFailure, "invalid balance", err)
		}
		balances = append(balances, payment.Balance{OutstandingCents: oc, PaidCents: pc})
	}

	allocation := payment.Distribute(totalCents, balances)

	if formatter.Format == "json" {
		return formatter.Success(DistributeResult{TotalCents: totalCents, AllocationCents: allocation})
	}

	for i, cents := range allocation {
		fmt.Fprintf(formatter.Writer, "balance %d: %s\n", i+1, payment.FormatCents(cents, tag))
	}
	return nil
}
