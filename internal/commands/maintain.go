package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/export"
	"github.com/spendsort/spendsort/internal/logger"
	"github.com/spendsort/spendsort/internal/store"
)

// snapshotter is implemented by stores that can copy their raw file.
type snapshotter interface {
	Snapshot(w io.Writer) (int64, error)
}

func newDeleteCommand() *cobra.Command {
	var from, to string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the transactions dated within a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" && to == "" {
				return errors.New("give --from, --to or both (use reset to delete everything)")
			}
			f, err := dateFilter(from, to)
			if err != nil {
				return err
			}
			if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()
			if dryRun {
				txns, err := ws.store.List(ctx, f)
				if err != nil {
					return err
				}
				printTransactions(out, txns, ws.cfg.Model.ConfidenceThreshold)
				warn.Fprintf(out, "%d transactions would be deleted\n", len(txns))
				return nil
			}

			n, err := ws.store.DeleteRange(ctx, f.From, f.To)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info().Str("from", from).Str("to", to).Int("deleted", n).Msg("deleted transactions")
			fmt.Fprintf(out, "Deleted %d transactions\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date to delete (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date to delete (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be deleted without deleting")

	return cmd
}

func newResetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every transaction and the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every transaction; rerun with --yes")
			}
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := commandContext(cmd)
			n, err := ws.store.DeleteRange(ctx, time.Time{}, time.Time{})
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Warn().Int("deleted", n).Msg("store reset")
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d transactions\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting everything")

	return cmd
}

func newBackupCommand() *cobra.Command {
	var snapshot bool

	cmd := &cobra.Command{
		Use:   "backup [file]",
		Short: "Write every transaction and the audit log to a backup file",
		Long: `Write every transaction and the audit log to a JSON backup that restore
reads back into either store. With --snapshot, copy the raw bolt file instead.

A bare file name is placed under exports/; "-" writes to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			var snap snapshotter
			if snapshot {
				var ok bool
				if snap, ok = ws.store.(snapshotter); !ok {
					return fmt.Errorf("--snapshot needs the bolt store, not %s", ws.cfg.Storage.Driver)
				}
			}

			now := time.Now()
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			if name == "" {
				ext := ".json"
				if snapshot {
					ext = ".db"
				}
				name = fmt.Sprintf("backup-%s%s", now.Format("20060102-150405"), ext)
			}

			out := cmd.OutOrStdout()
			w := out
			path := "-"
			var file *os.File
			if name != "-" {
				path = backupPath(ws.root, name)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("creating backup dir: %w", err)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating backup file: %w", err)
				}
				defer f.Close()
				file, w = f, f
			}

			ctx := commandContext(cmd)
			var summary string
			if snap != nil {
				n, err := snap.Snapshot(w)
				if err != nil {
					return err
				}
				summary = fmt.Sprintf("%d bytes", n)
			} else {
				b, err := store.Dump(ctx, ws.store, w, now)
				if err != nil {
					return err
				}
				summary = fmt.Sprintf("%d transactions, %d audit entries", len(b.Transactions), len(b.Audit))
			}
			if file != nil {
				if err := file.Close(); err != nil {
					return fmt.Errorf("closing backup file: %w", err)
				}
			}
			log := logger.FromContext(ctx)
			log.Info().Str("path", path).Bool("snapshot", snapshot).Msg("backup written")
			if path != "-" {
				fmt.Fprintf(out, "Backed up %s to %s\n", summary, path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "copy the raw bolt file instead of writing JSON")

	return cmd
}

func newRestoreCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <backup.json>",
		Short: "Replace every transaction and the audit log with a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("restore replaces every transaction; rerun with --yes")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening backup: %w", err)
			}
			defer f.Close()
			b, err := store.ReadBackup(f)
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := commandContext(cmd)
			if err := store.Restore(ctx, ws.store, b); err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			log.Info().
				Str("path", args[0]).
				Time("backup_created", b.CreatedAt).
				Int("transactions", len(b.Transactions)).
				Msg("backup restored")
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d transactions and %d audit entries\n", len(b.Transactions), len(b.Audit))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm replacing the current contents")

	return cmd
}

// backupPath places bare file names under exports/ and keeps any path with
// a directory as given.
func backupPath(root, name string) string {
	if filepath.Base(name) == name {
		return filepath.Join(root, export.Dir, name)
	}
	return name
}
