// Package review is the feedback loop: users verify categories, and the
// verified labels feed the next training run.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spendsort/spendsort/internal/categories"
	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/model"
	"github.com/spendsort/spendsort/internal/store"
	"github.com/spendsort/spendsort/internal/training"
)

// Trainer fits and persists a model from labeled records.
type Trainer interface {
	Train(records []training.LabeledRecord) (*training.Result, error)
}

// Categorizer fills in AI suggestions on a batch.
type Categorizer interface {
	Categorize(txns []*model.Transaction) (categorize.Stats, error)
}

// Service verifies transactions and retrains on the result.
type Service struct {
	store       store.Store
	trainer     Trainer
	categorizer Categorizer
	categories  *categories.Service
	log         zerolog.Logger
}

// NewService returns a Service.
func NewService(s store.Store, trainer Trainer, categorizer Categorizer, cats *categories.Service, log zerolog.Logger) *Service {
	return &Service{store: s, trainer: trainer, categorizer: categorizer, categories: cats, log: log}
}

// Verify sets the user's category on a transaction. The category list is
// only a hint: a name outside it is stored and logged as a warning.
func (s *Service) Verify(ctx context.Context, id, category string) (*model.Transaction, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, errors.New("verify: empty category")
	}
	if s.categories != nil && !s.categories.Contains(category) {
		s.log.Warn().Str("category", category).Msg("category is not in the configured list")
	}
	t, err := s.store.SetVerifiedCategory(ctx, id, category)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("id", id).Str("category", category).Msg("transaction verified")
	return t, nil
}

// Pending returns unverified transactions, least confident first. A
// threshold above zero keeps only those below it.
func (s *Service) Pending(ctx context.Context, threshold float64) ([]*model.Transaction, error) {
	txns, err := s.store.List(ctx, store.Filter{UnverifiedOnly: true, BelowConfidence: threshold})
	if err != nil {
		return nil, fmt.Errorf("listing pending: %w", err)
	}
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].ConfidenceScore < txns[j].ConfidenceScore })
	return txns, nil
}

// RetrainResult reports a Retrain call.
type RetrainResult struct {
	Training      *training.Result
	Recategorized categorize.Stats
}

// Retrain trains on every stored transaction, then re-categorizes the
// unverified ones with the new model and stores their predictions. With too
// little labeled data it returns training.ErrNotTrained and changes nothing.
func (s *Service) Retrain(ctx context.Context) (*RetrainResult, error) {
	all, err := s.store.List(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	res := &RetrainResult{}
	res.Training, err = s.trainer.Train(training.Records(all))
	if err != nil {
		return res, err
	}
	if s.categories != nil {
		if unknown := s.categories.Unknown(res.Training.Classes); len(unknown) > 0 {
			s.log.Warn().Strs("labels", unknown).Msg("model learned labels outside the category list")
		}
	}

	var unverified []*model.Transaction
	for _, t := range all {
		if !t.IsVerified() {
			unverified = append(unverified, t)
		}
	}
	if len(unverified) == 0 {
		return res, nil
	}
	res.Recategorized, err = s.categorizer.Categorize(unverified)
	if err != nil {
		return res, fmt.Errorf("re-categorizing: %w", err)
	}
	if err := s.store.UpdatePredictions(ctx, unverified); err != nil {
		return res, err
	}
	return res, nil
}
