package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newReviewCommand() *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Review and verify suggested categories",
	}
	reviewCmd.AddCommand(newReviewListCommand(), newReviewVerifyCommand(), newReviewCategoriesCommand())
	return reviewCmd
}

func newReviewListCommand() *cobra.Command {
	var below float64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unverified transactions, least confident first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			txns, err := ws.review().Pending(commandContext(cmd), below)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(txns) == 0 {
				good.Fprintln(out, "Nothing to review.")
				return nil
			}
			total := len(txns)
			if limit > 0 && len(txns) > limit {
				txns = txns[:limit]
			}
			printTransactions(out, txns, ws.cfg.Model.ConfidenceThreshold)
			if len(txns) < total {
				dim.Fprintf(out, "... %d more\n", total-len(txns))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&below, "below", 0, "only list transactions with confidence under this value")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show (0 for all)")

	return cmd
}

func newReviewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id> <category>",
		Short: "Set the correct category of a transaction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			category := strings.Join(args[1:], " ")
			t, err := ws.review().Verify(commandContext(cmd), args[0], category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ", t.ID)
			good.Fprintf(cmd.OutOrStdout(), "%s\n", t.UserVerifiedCategory)
			if !ws.cats.Contains(t.UserVerifiedCategory) {
				warn.Fprintf(cmd.OutOrStdout(), "%q is not one of the configured categories.\n", t.UserVerifiedCategory)
			}
			return nil
		},
	}
}

func newReviewCategoriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the configured categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			for _, c := range ws.cats.All() {
				if c == ws.cats.Fallback() {
					dim.Fprintf(cmd.OutOrStdout(), "%s (fallback)\n", c)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}
