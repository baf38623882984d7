package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/importer"
)

func newImportCommand() *cobra.Command {
	var watch bool
	var format string

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import bank CSVs and categorize the new transactions",
		Long: `Import reads the given CSV files, or every CSV in the workspace import/
folder when none are given. Files from the folder are moved to
import/processed once imported. Transactions that were imported before are
skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			if format != "" {
				ws.cfg.Import.Format = format
			}
			p, err := ws.parser()
			if err != nil {
				return err
			}
			svc := ws.importer()
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				var total importer.Summary
				for _, path := range args {
					sum, err := svc.ImportFile(ctx, path, p)
					total.Add(sum)
					if err != nil {
						return err
					}
				}
				printSummary(out, total)
				return nil
			}

			sum, err := svc.ImportDir(ctx, ws.root, p)
			printSummary(out, sum)
			if !watch {
				return err
			}
			if err != nil {
				ws.log.Warn().Err(err).Msg("initial import had failures")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", importer.Dir(ws.root))
			return importer.NewWatcher(ws.log).Watch(ctx, ws.root, func(fi importer.FileInfo) {
				sum, err := svc.ImportFile(ctx, fi.Path, p)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return
					}
					ws.log.Error().Err(err).Str("file", fi.Name).Msg("import failed")
					return
				}
				if err := importer.MarkProcessed(ws.root, fi.Name); err != nil {
					ws.log.Error().Err(err).Str("file", fi.Name).Msg("moving imported file")
				}
				fmt.Fprintf(out, "%s: ", fi.Name)
				printSummary(out, sum)
			})
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and import CSVs as they appear in import/")
	cmd.Flags().StringVar(&format, "format", "", "override the configured CSV format")

	return cmd
}
