package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/config"
	"github.com/spendsort/spendsort/internal/export"
	"github.com/spendsort/spendsort/internal/gitops"
	"github.com/spendsort/spendsort/internal/importer"
	"github.com/spendsort/spendsort/internal/logger"
)

func newInitCommand() *cobra.Command {
	var format string
	var dsn string
	var useGit bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new spendsort workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := workspaceDir(cmd)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
			}

			cfg := config.Default()
			cfg.Import.Format = format
			if dsn != "" {
				cfg.Storage.Driver = "postgres"
				cfg.Storage.DSN = dsn
				cfg.Storage.Path = ""
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if importer.DefaultRegistry(nil, nil).Get(format) == nil {
				return fmt.Errorf("unknown import format %q", format)
			}
			if err := runInit(cmd.OutOrStdout(), dir, cfg, useGit, force); err != nil {
				return err
			}
			log := logger.FromContext(commandContext(cmd))
			log.Debug().
				Str("dir", dir).
				Str("storage", cfg.Storage.Driver).
				Bool("git", useGit).
				Msg("workspace initialized")
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "mapped", "bank CSV format (mapped or chase)")
	cmd.Flags().StringVar(&dsn, "postgres-dsn", "", "store transactions in postgres instead of a local file")
	cmd.Flags().BoolVar(&useGit, "git", false, "track the workspace configuration in git")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing spendsort.yaml")

	return cmd
}

func runInit(out io.Writer, dir string, cfg *config.Config, useGit, force bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	dirs := []string{
		"import",
		filepath.Join("import", "processed"),
		cfg.Model.Dir,
		export.Dir,
	}
	if cfg.Storage.Driver == "bolt" {
		dirs = append(dirs, filepath.Dir(cfg.Storage.Path))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if useGit {
		paths := []string{config.FileName}
		if !gitops.IsRepo(dir) {
			if err := gitops.Init(dir); err != nil {
				return err
			}
			paths = append(paths, ".gitignore")
		}
		hash, err := gitops.Commit(dir, "init: spendsort workspace", gitops.DefaultAuthor, paths...)
		if err != nil {
			return fmt.Errorf("initial commit: %w", err)
		}
		fmt.Fprintf(out, "Initialized spendsort workspace at %s (%s)\n", dir, hash)
		return nil
	}

	fmt.Fprintf(out, "Initialized spendsort workspace at %s\n", dir)
	return nil
}
