package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spendsort/spendsort/internal/artifact"
	"github.com/spendsort/spendsort/internal/categories"
	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/config"
	"github.com/spendsort/spendsort/internal/forest"
	"github.com/spendsort/spendsort/internal/importer"
	"github.com/spendsort/spendsort/internal/logger"
	"github.com/spendsort/spendsort/internal/review"
	"github.com/spendsort/spendsort/internal/store"
	"github.com/spendsort/spendsort/internal/store/boltstore"
	"github.com/spendsort/spendsort/internal/store/pgstore"
	"github.com/spendsort/spendsort/internal/textfeat"
	"github.com/spendsort/spendsort/internal/training"
)

// workspace is an opened spendsort directory: its configuration, its
// transaction store and its model artifacts.
type workspace struct {
	root   string
	cfg    *config.Config
	log    zerolog.Logger
	store  store.Store
	models artifact.Store
	cats   *categories.Service
}

// openWorkspace loads <dir>/spendsort.yaml and opens the configured store.
// Callers must close the workspace.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	root, err := workspaceDir(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a spendsort workspace (run spendsort init)", root)
		}
		return nil, err
	}

	// An explicit --log-level wins; otherwise spendsort.yaml sets the level.
	log := logger.FromContext(commandContext(cmd))
	if f := cmd.Flags().Lookup("log-level"); f == nil || !f.Changed {
		log = logger.New(cmd.ErrOrStderr(), cfg.Log.Level)
		cmd.SetContext(logger.WithContext(commandContext(cmd), log))
	}

	s, err := openStore(cfg, root)
	if err != nil {
		return nil, err
	}
	return &workspace{
		root:   root,
		cfg:    cfg,
		log:    log,
		store:  s,
		models: artifact.NewFileStore(resolve(root, cfg.Model.Dir)),
		cats:   categories.NewService(cfg.Categories),
	}, nil
}

// openStore picks the transaction backend named by cfg.Storage.Driver.
func openStore(cfg *config.Config, root string) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return pgstore.Open(cfg.Storage.DSN)
	case "bolt", "":
		path := cfg.Storage.Path
		if path == "" {
			path = config.Default().Storage.Path
		}
		return boltstore.Open(resolve(root, path))
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (w *workspace) Close() error {
	return w.store.Close()
}

func (w *workspace) categorizer() *categorize.Categorizer {
	return categorize.New(w.models, w.cfg.Model.ConfidenceThreshold, w.cats.Fallback(), w.log)
}

func (w *workspace) trainer() *training.Trainer {
	m := w.cfg.Model
	opts := training.Options{
		MinSamples: m.MinSamples,
		TestSize:   m.TestSize,
		Seed:       m.Seed,
		Stratify:   m.Stratify,
		Vectorizer: textfeat.DefaultOptions(),
		Forest:     forest.DefaultOptions(),
	}
	if m.MaxFeatures > 0 {
		opts.Vectorizer.MaxFeatures = m.MaxFeatures
	}
	if m.Trees > 0 {
		opts.Forest.NumTrees = m.Trees
	}
	if m.MinSamplesSplit > 0 {
		opts.Forest.MinSamplesSplit = m.MinSamplesSplit
	}
	opts.Forest.Seed = m.Seed
	return training.New(w.models, opts, w.log)
}

func (w *workspace) importer() *importer.Service {
	return importer.NewService(w.store, w.categorizer(), w.log)
}

func (w *workspace) parser() (importer.Parser, error) {
	reg := importer.DefaultRegistry(w.cfg.Import.Columns, w.cfg.Import.DateFormats)
	p := reg.Get(w.cfg.Import.Format)
	if p == nil {
		return nil, fmt.Errorf("unknown import format %q", w.cfg.Import.Format)
	}
	return p, nil
}

func (w *workspace) review() *review.Service {
	return review.NewService(w.store, w.trainer(), w.categorizer(), w.cats, w.log)
}

func workspaceDir(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil || dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolve makes a configured path relative to the workspace root.
func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
