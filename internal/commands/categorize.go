package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/store"
)

func newCategorizeCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Re-run the model over stored transactions",
		Long: `Categorize refreshes the AI suggestion and confidence of every unverified
transaction with the current model. Verified categories are never changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := commandContext(cmd)
			txns, err := ws.store.List(ctx, store.Filter{UnverifiedOnly: !all})
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to categorize.")
				return nil
			}
			stats, err := ws.categorizer().Categorize(txns)
			if err != nil {
				return err
			}
			if err := ws.store.UpdatePredictions(ctx, txns); err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also refresh suggestions on verified transactions")

	return cmd
}

func newPredictCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <description>",
		Short: "Show the category the model would assign to a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			d, err := ws.categorizer().Predict(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !ws.models.Exists() {
				warn.Fprintln(cmd.OutOrStdout(), "No trained model yet.")
			}
			printDecision(cmd.OutOrStdout(), d, ws.cfg.Model.ConfidenceThreshold)
			return nil
		},
	}
}
