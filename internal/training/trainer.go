// Package training fits a new model from labeled descriptions, scores it on
// a held-out split and replaces the persisted model with it.
package training

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/spendsort/spendsort/internal/artifact"
	"github.com/spendsort/spendsort/internal/forest"
	"github.com/spendsort/spendsort/internal/sparse"
	"github.com/spendsort/spendsort/internal/textfeat"
)

// ErrNotTrained is returned when there are too few labeled examples. No
// model is produced and the persisted one is left alone.
var ErrNotTrained = errors.New("not trained: too few labeled examples")

// LabeledRecord is anything that can become a training example. An empty
// Label means the record carries no signal.
type LabeledRecord interface {
	Text() string
	Label() string
}

// Records adapts a typed slice to []LabeledRecord.
func Records[T LabeledRecord](items []T) []LabeledRecord {
	out := make([]LabeledRecord, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// Example is a plain LabeledRecord.
type Example struct {
	Description string
	Category    string
}

func (e Example) Text() string  { return e.Description }
func (e Example) Label() string { return e.Category }

// Options controls the pipeline.
type Options struct {
	MinSamples int     // inclusive minimum of labeled examples
	TestSize   float64 // held-out fraction
	Seed       int64
	Stratify   bool
	Vectorizer textfeat.Options
	Forest     forest.Options
}

// DefaultOptions returns 10 minimum samples, a 20% unstratified hold-out and
// seed 42.
func DefaultOptions() Options {
	return Options{
		MinSamples: 10,
		TestSize:   0.2,
		Seed:       42,
		Vectorizer: textfeat.DefaultOptions(),
		Forest:     forest.DefaultOptions(),
	}
}

// Result describes a completed training run.
type Result struct {
	Samples    int // labeled examples used
	Excluded   int // records dropped for missing text or label
	TrainSize  int
	TestSize   int
	Stratified bool
	Classes    []string
	Vocabulary int
	Report     Report
	Model      *artifact.Model
}

// Trainer runs the training pipeline and writes to an artifact store.
type Trainer struct {
	opts  Options
	store artifact.Store
	log   zerolog.Logger
}

// New returns a Trainer.
func New(store artifact.Store, opts Options, log zerolog.Logger) *Trainer {
	if opts.MinSamples <= 0 {
		opts.MinSamples = 10
	}
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		opts.TestSize = 0.2
	}
	return &Trainer{opts: opts, store: store, log: log}
}

// Train collects labels, checks the minimum, splits, fits, evaluates and
// persists. Persisting happens whatever the evaluation says.
func (t *Trainer) Train(records []LabeledRecord) (*Result, error) {
	docs, labels, excluded := collect(records)
	res := &Result{Samples: len(docs), Excluded: excluded, Stratified: t.opts.Stratify}
	t.log.Debug().Int("labeled", len(docs)).Int("excluded", excluded).Msg("collected labels")

	if len(docs) < t.opts.MinSamples {
		t.log.Warn().Int("labeled", len(docs)).Int("required", t.opts.MinSamples).Msg("not enough labeled data to train")
		return res, ErrNotTrained
	}

	trainIdx, testIdx := t.split(labels)
	res.TrainSize, res.TestSize = len(trainIdx), len(testIdx)

	vec := textfeat.New(t.opts.Vectorizer)
	Xtrain, err := vec.FitTransform(pick(docs, trainIdx))
	if err != nil {
		return res, fmt.Errorf("fitting vectorizer: %w", err)
	}
	clf := forest.New(t.opts.Forest)
	if err := clf.Fit(Xtrain, pick(labels, trainIdx), vec.NumFeatures()); err != nil {
		return res, fmt.Errorf("fitting classifier: %w", err)
	}
	res.Classes = clf.Classes()
	res.Vocabulary = vec.NumFeatures()

	var Xtest []sparse.Vector
	if len(testIdx) > 0 {
		Xtest = vec.TransformBatch(pick(docs, testIdx))
	}
	predicted, err := clf.PredictBatch(Xtest)
	if err != nil {
		return res, fmt.Errorf("evaluating: %w", err)
	}
	res.Report = Evaluate(pick(labels, testIdx), predicted)

	res.Model = &artifact.Model{Vectorizer: vec, Forest: clf}
	if err := t.store.Save(res.Model); err != nil {
		return res, fmt.Errorf("saving model: %w", err)
	}

	t.log.Info().
		Int("train", res.TrainSize).
		Int("test", res.TestSize).
		Int("classes", len(res.Classes)).
		Float64("accuracy", res.Report.Accuracy).
		Msg("model trained")
	return res, nil
}

// collect keeps records with both text and a label.
func collect(records []LabeledRecord) (docs, labels []string, excluded int) {
	for _, r := range records {
		text := strings.TrimSpace(r.Text())
		label := strings.TrimSpace(r.Label())
		if text == "" || label == "" {
			excluded++
			continue
		}
		docs = append(docs, text)
		labels = append(labels, label)
	}
	return docs, labels, excluded
}

// split returns train and test row indices. The test size is
// ceil(n * TestSize), at least one row and at most n-1.
func (t *Trainer) split(labels []string) (train, test []int) {
	n := len(labels)
	nTest := int(math.Ceil(float64(n) * t.opts.TestSize))
	nTest = min(max(nTest, 1), n-1)

	rng := rand.New(rand.NewSource(t.opts.Seed))
	if t.opts.Stratify {
		return stratifiedSplit(labels, nTest, rng)
	}
	perm := rng.Perm(n)
	test = append(test, perm[:nTest]...)
	train = append(train, perm[nTest:]...)
	return train, test
}

// stratifiedSplit gives each label a share of the test rows proportional to
// its frequency. Leftover rows go to the labels with the largest remainders,
// and a label never loses its last training row.
func stratifiedSplit(labels []string, nTest int, rng *rand.Rand) (train, test []int) {
	groups := make(map[string][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := float64(len(labels))
	quota := make(map[string]int, len(keys))
	frac := make(map[string]float64, len(keys))
	assigned := 0
	for _, k := range keys {
		exact := float64(len(groups[k])) * float64(nTest) / n
		quota[k] = min(int(exact), len(groups[k])-1)
		frac[k] = exact - float64(quota[k])
		assigned += quota[k]
	}
	byRemainder := append([]string(nil), keys...)
	sort.SliceStable(byRemainder, func(i, j int) bool { return frac[byRemainder[i]] > frac[byRemainder[j]] })
	for assigned < nTest {
		progressed := false
		for _, k := range byRemainder {
			if assigned == nTest {
				break
			}
			if quota[k] < len(groups[k])-1 {
				quota[k]++
				assigned++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	for _, k := range keys {
		rows := groups[k]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		test = append(test, rows[:quota[k]]...)
		train = append(train, rows[quota[k]:]...)
	}
	return train, test
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
