package commands

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/config"
	"github.com/spendsort/spendsort/internal/importer"
)

func newMappingCommand() *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Save or load the CSV column mapping used by the mapped format",
	}
	mappingCmd.AddCommand(newMappingSaveCommand(), newMappingLoadCommand())
	return mappingCmd
}

func newMappingSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>",
		Short: "Write the workspace's effective column mapping to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			columns := importer.NewMappedParser(ws.cfg.Import.Columns, nil).Columns
			if err := config.SaveColumns(args[0], columns); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d column mappings to %s\n", len(columns), args[0])
			return nil
		},
	}
}

func newMappingLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Use a saved column mapping for future imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceDir(cmd)
			if err != nil {
				return err
			}
			columns, err := config.LoadColumns(args[0])
			if err != nil {
				return err
			}
			var unknown []string
			for field := range columns {
				if _, ok := importer.DefaultColumns[field]; !ok {
					unknown = append(unknown, field)
				}
			}
			if len(unknown) > 0 {
				slices.Sort(unknown)
				return fmt.Errorf("unknown fields in %s: %s", args[0], strings.Join(unknown, ", "))
			}

			path := filepath.Join(root, config.FileName)
			if err := config.Update(path, func(c *config.Config) {
				c.Import.Format = "mapped"
				c.Import.Columns = columns
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d column mappings into %s\n", len(columns), path)
			return nil
		},
	}
}
