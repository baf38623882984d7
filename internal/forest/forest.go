// Package forest implements a bagged ensemble of randomized decision trees
// over sparse feature vectors.
package forest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/spendsort/spendsort/internal/sparse"
)

// ErrNotFitted is returned when predicting with an empty forest.
var ErrNotFitted = errors.New("forest is not fitted")

// Options configures training.
type Options struct {
	NumTrees        int
	MaxDepth        int // 0 = unbounded
	MinSamplesSplit int
	MaxFeatures     int // candidate features per split; 0 = sqrt(n_features)
	Seed            int64
	NoBootstrap     bool
}

// DefaultOptions returns 100 unbounded trees, min 2 samples to split, seed 42.
func DefaultOptions() Options {
	return Options{NumTrees: 100, MinSamplesSplit: 2, Seed: 42}
}

// Node is one tree node. Leaves have Feature == -1 and a class distribution.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Dist      []float64
}

// Tree is a flattened decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node
}

// Forest is a fitted classifier. The exported fields are its complete state.
type Forest struct {
	Options     Options
	ClassNames  []string
	NumFeatures int
	Trees       []Tree
}

// New returns an unfitted Forest.
func New(opts Options) *Forest {
	if opts.NumTrees <= 0 {
		opts.NumTrees = 1
	}
	if opts.MinSamplesSplit < 2 {
		opts.MinSamplesSplit = 2
	}
	return &Forest{Options: opts}
}

// Fit trains the ensemble on X with labels y. numFeatures is the width of the
// feature space X was drawn from.
func (f *Forest) Fit(X []sparse.Vector, y []string, numFeatures int) error {
	if len(X) == 0 {
		return errors.New("fit: no samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("fit: %d samples but %d labels", len(X), len(y))
	}

	f.ClassNames = distinct(y)
	classIdx := make(map[string]int, len(f.ClassNames))
	for i, c := range f.ClassNames {
		classIdx[c] = i
	}
	labels := make([]int, len(y))
	for i, l := range y {
		labels[i] = classIdx[l]
	}

	f.NumFeatures = numFeatures
	maxFeatures := f.Options.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(numFeatures))))
	}

	rng := rand.New(rand.NewSource(f.Options.Seed))
	f.Trees = make([]Tree, f.Options.NumTrees)
	for t := range f.Trees {
		b := &builder{
			x:           X,
			y:           labels,
			numClasses:  len(f.ClassNames),
			maxFeatures: maxFeatures,
			opts:        f.Options,
			rng:         rand.New(rand.NewSource(rng.Int63())),
		}
		f.Trees[t] = b.build(b.sample(len(X)))
	}
	return nil
}

// Classes returns the labels seen during fitting, sorted.
func (f *Forest) Classes() []string { return f.ClassNames }

// PredictProba returns one probability per class, aligned with Classes().
func (f *Forest) PredictProba(x sparse.Vector) ([]float64, error) {
	if len(f.Trees) == 0 {
		return nil, ErrNotFitted
	}
	probs := make([]float64, len(f.ClassNames))
	for _, tree := range f.Trees {
		for c, p := range tree.leaf(x).Dist {
			probs[c] += p
		}
	}
	n := float64(len(f.Trees))
	for c := range probs {
		probs[c] /= n
	}
	return probs, nil
}

// Predict returns the most probable class.
func (f *Forest) Predict(x sparse.Vector) (string, error) {
	probs, err := f.PredictProba(x)
	if err != nil {
		return "", err
	}
	return f.ClassNames[Argmax(probs)], nil
}

// PredictProbaBatch runs PredictProba over every row.
func (f *Forest) PredictProbaBatch(X []sparse.Vector) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		p, err := f.PredictProba(x)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// PredictBatch runs Predict over every row.
func (f *Forest) PredictBatch(X []sparse.Vector) ([]string, error) {
	probs, err := f.PredictProbaBatch(X)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(probs))
	for i, p := range probs {
		out[i] = f.ClassNames[Argmax(p)]
	}
	return out, nil
}

// Argmax returns the index of the largest value; ties go to the lowest index.
func Argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func (t Tree) leaf(x sparse.Vector) Node {
	n := t.Nodes[0]
	for n.Feature >= 0 {
		if x.At(n.Feature) <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n
}

func distinct(y []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range y {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
