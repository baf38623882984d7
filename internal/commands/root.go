package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/buildinfo"
	"github.com/spendsort/spendsort/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "spendsort",
		Short:   "Self-learning categorization of bank transactions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			cmd.SetContext(logger.WithContext(commandContext(cmd), logger.New(cmd.ErrOrStderr(), level)))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("dir", ".", "workspace directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (overrides spendsort.yaml)")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(),
		newCategorizeCommand(),
		newPredictCommand(),
		newTrainCommand(),
		newReviewCommand(),
		newExportCommand(),
		newAuditCommand(),
		newDeleteCommand(),
		newResetCommand(),
		newBackupCommand(),
		newRestoreCommand(),
		newMappingCommand(),
	)

	return rootCmd
}
