package categorize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spendsort/spendsort/internal/artifact"
	"github.com/spendsort/spendsort/internal/forest"
	"github.com/spendsort/spendsort/internal/model"
)

// Stats summarizes one Categorize call.
type Stats struct {
	Categorized int
	Overridden  int // fell below the threshold
	Skipped     int // no description to classify; given the fallback
	ColdStart   bool
}

// Categorizer runs inference with whatever model the store currently holds.
// It loads the artifacts on every call and never caches them, so a retrain
// is picked up by the next call.
type Categorizer struct {
	store     artifact.Store
	threshold float64
	fallback  string
	log       zerolog.Logger
}

// New returns a Categorizer. fallback is the catch-all category, normally the
// last entry of the category list.
func New(store artifact.Store, threshold float64, fallback string, log zerolog.Logger) *Categorizer {
	return &Categorizer{store: store, threshold: threshold, fallback: fallback, log: log}
}

// Categorize writes AISuggestedCategory and ConfidenceScore onto every
// transaction in place. With no trained model, and for blank descriptions,
// a transaction gets the fallback at confidence 0. Nothing is persisted.
func (c *Categorizer) Categorize(txns []*model.Transaction) (Stats, error) {
	var stats Stats
	m, err := c.store.Load()
	if errors.Is(err, artifact.ErrNoModel) {
		for _, t := range txns {
			t.AISuggestedCategory = c.fallback
			t.ConfidenceScore = 0
		}
		stats.Categorized = len(txns)
		stats.Overridden = len(txns)
		stats.ColdStart = true
		c.log.Info().Int("count", len(txns)).Msg("no trained model, using fallback category")
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("loading model: %w", err)
	}

	docs := make([]string, 0, len(txns))
	targets := make([]*model.Transaction, 0, len(txns))
	for _, t := range txns {
		if strings.TrimSpace(t.Description) == "" {
			t.AISuggestedCategory = c.fallback
			t.ConfidenceScore = 0
			stats.Categorized++
			stats.Overridden++
			stats.Skipped++
			continue
		}
		docs = append(docs, t.Description)
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return stats, nil
	}

	X := m.Vectorizer.TransformBatch(docs)
	probs, err := m.Forest.PredictProbaBatch(X)
	if err != nil {
		return stats, fmt.Errorf("predicting: %w", err)
	}

	classes := m.Forest.Classes()
	for i, t := range targets {
		predicted := classes[forest.Argmax(probs[i])]
		d := Gate(predicted, classes, probs[i], c.threshold, c.fallback)
		t.AISuggestedCategory = d.Category
		t.ConfidenceScore = d.Confidence
		stats.Categorized++
		if d.Overridden {
			stats.Overridden++
		}
	}

	c.log.Debug().
		Int("categorized", stats.Categorized).
		Int("overridden", stats.Overridden).
		Int("skipped", stats.Skipped).
		Msg("categorized batch")
	return stats, nil
}

// Predict runs the same load, transform, predict and gate sequence for a
// single description.
func (c *Categorizer) Predict(description string) (Decision, error) {
	m, err := c.store.Load()
	if errors.Is(err, artifact.ErrNoModel) {
		return Decision{Category: c.fallback, Overridden: true}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("loading model: %w", err)
	}
	if strings.TrimSpace(description) == "" {
		return Decision{Category: c.fallback, Overridden: true}, nil
	}

	probs, err := m.Forest.PredictProba(m.Vectorizer.Transform(description))
	if err != nil {
		return Decision{}, fmt.Errorf("predicting: %w", err)
	}
	classes := m.Forest.Classes()
	return Gate(classes[forest.Argmax(probs)], classes, probs, c.threshold, c.fallback), nil
}
