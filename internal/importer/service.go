package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/spendsort/spendsort/internal/categorize"
	"github.com/spendsort/spendsort/internal/dedup"
	"github.com/spendsort/spendsort/internal/model"
)

// Sink is where imported transactions go. Insert returns false for a hash
// that is already stored.
type Sink interface {
	dedup.Index
	Insert(ctx context.Context, t *model.Transaction) (bool, error)
}

// Categorizer fills in AI suggestions on a batch.
type Categorizer interface {
	Categorize(txns []*model.Transaction) (categorize.Stats, error)
}

// Summary counts what happened to each row of an import.
type Summary struct {
	Added    int
	Skipped  int // already imported, or repeated within the batch
	Rejected int // unparseable rows
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.Added += other.Added
	s.Skipped += other.Skipped
	s.Rejected += other.Rejected
}

// Service imports parsed transactions: new ones are categorized as a batch
// and then stored.
type Service struct {
	sink        Sink
	categorizer Categorizer
	log         zerolog.Logger
}

// NewService returns a Service.
func NewService(sink Sink, categorizer Categorizer, log zerolog.Logger) *Service {
	return &Service{sink: sink, categorizer: categorizer, log: log}
}

// Import stores the transactions whose hash is not yet known. Duplicates are
// skips, not errors.
func (s *Service) Import(ctx context.Context, txns []*model.Transaction) (Summary, error) {
	var sum Summary
	seen := make(map[string]bool, len(txns))
	fresh := make([]*model.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.TransactionHash == "" {
			t.TransactionHash = dedup.ForTransaction(*t)
		}
		if seen[t.TransactionHash] {
			sum.Skipped++
			continue
		}
		seen[t.TransactionHash] = true

		exists, err := s.sink.Exists(ctx, t.TransactionHash)
		if err != nil {
			return sum, fmt.Errorf("checking duplicate: %w", err)
		}
		if exists {
			sum.Skipped++
			continue
		}
		fresh = append(fresh, t)
	}

	if len(fresh) > 0 {
		if _, err := s.categorizer.Categorize(fresh); err != nil {
			return sum, fmt.Errorf("categorizing import: %w", err)
		}
	}

	for _, t := range fresh {
		added, err := s.sink.Insert(ctx, t)
		if err != nil {
			return sum, fmt.Errorf("storing transaction: %w", err)
		}
		if added {
			sum.Added++
		} else {
			sum.Skipped++
		}
	}
	return sum, nil
}

// ImportBatch imports a parsed file and carries its rejected count over.
func (s *Service) ImportBatch(ctx context.Context, b *Batch) (Summary, error) {
	sum, err := s.Import(ctx, b.Transactions)
	sum.Rejected += b.Rejected
	return sum, err
}

// ImportFile parses path with p and imports the result.
func (s *Service) ImportFile(ctx context.Context, path string, p Parser) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	b, err := p.Parse(f)
	if err != nil {
		return Summary{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	sum, err := s.ImportBatch(ctx, b)
	if err != nil {
		return sum, err
	}
	s.log.Info().
		Str("file", path).
		Int("added", sum.Added).
		Int("skipped", sum.Skipped).
		Int("rejected", sum.Rejected).
		Msg("imported file")
	return sum, nil
}

// ImportDir imports every CSV in <root>/import and moves each successfully
// imported file to import/processed. A file that fails stays in place and
// the remaining files are still imported; the first error is returned.
func (s *Service) ImportDir(ctx context.Context, root string, p Parser) (Summary, error) {
	files, err := Scan(root)
	if err != nil {
		return Summary{}, err
	}
	var total Summary
	var firstErr error
	for _, fi := range files {
		sum, err := s.ImportFile(ctx, fi.Path, p)
		total.Add(sum)
		if err != nil {
			s.log.Error().Err(err).Str("file", fi.Name).Msg("import failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := MarkProcessed(root, fi.Name); err != nil {
			return total, err
		}
	}
	return total, firstErr
}
