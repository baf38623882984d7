package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/training"
)

func newTrainCommand() *cobra.Command {
	var csvPath, textCol, labelCol string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model on labeled transactions",
		Long: `Train fits a new model on every stored transaction that has a label (the
verified category, else the bank's original one), replaces the saved model and
re-categorizes the unverified transactions. With --csv it trains on a labeled
CSV file instead and leaves stored transactions alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()
			out := cmd.OutOrStdout()

			if csvPath != "" {
				f, err := os.Open(csvPath)
				if err != nil {
					return fmt.Errorf("opening %s: %w", csvPath, err)
				}
				defer f.Close()
				res, err := ws.trainer().TrainFromCSV(f, textCol, labelCol)
				return reportTraining(out, res, err, ws.cfg.Model.MinSamples)
			}

			res, err := ws.review().Retrain(commandContext(cmd))
			if res == nil {
				return err
			}
			if err := reportTraining(out, res.Training, err, ws.cfg.Model.MinSamples); err != nil {
				return err
			}
			if res.Training != nil && res.Training.Model != nil {
				fmt.Fprintln(out)
				printStats(out, res.Recategorized)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "train from a labeled CSV file")
	cmd.Flags().StringVar(&textCol, "text-col", "Description", "CSV column holding the description")
	cmd.Flags().StringVar(&labelCol, "label-col", "Category", "CSV column holding the category")

	return cmd
}

// reportTraining prints a training outcome. Too little data is reported, not
// returned as an error.
func reportTraining(out io.Writer, res *training.Result, err error, minSamples int) error {
	if errors.Is(err, training.ErrNotTrained) {
		have := 0
		if res != nil {
			have = res.Samples
		}
		warn.Fprintf(out, "Not enough labeled data to train: %d of %d examples.\n", have, minSamples)
		return nil
	}
	if err != nil {
		return err
	}
	printTraining(out, res)
	return nil
}
