package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/auditlog"
	"github.com/spendsort/spendsort/internal/export"
	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
)

func newExportCommand() *cobra.Command {
	var output string
	var from, to string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions with their effective category to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			f, err := dateFilter(from, to)
			if err != nil {
				return err
			}
			txns, err := ws.store.List(commandContext(cmd), f)
			if err != nil {
				return err
			}

			if output == "-" {
				return export.WriteTransactions(cmd.OutOrStdout(), txns)
			}
			if output == "" {
				output = fmt.Sprintf("transactions-%s.csv", time.Now().Format("20060102-150405"))
			}
			path, err := export.WriteFile(ws.root, output, txns)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(txns), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `file name under exports/, or "-" for stdout`)
	cmd.Flags().StringVar(&from, "from", "", "first date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date to include (YYYY-MM-DD)")

	return cmd
}

func newAuditCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the category change history as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := commandContext(cmd)
			var entries []model.AuditEntry
			if id != "" {
				entries, err = ws.store.AuditTrail(ctx, id)
			} else {
				entries, err = ws.store.AllAudit(ctx)
			}
			if err != nil {
				return err
			}
			return auditlog.WriteEntries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "only show changes to this transaction")

	return cmd
}

func dateFilter(from, to string) (store.Filter, error) {
	var f store.Filter
	var err error
	if from != "" {
		if f.From, err = time.Parse("2006-01-02", from); err != nil {
			return f, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if to != "" {
		if f.To, err = time.Parse("2006-01-02", to); err != nil {
			return f, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return f, nil
}
