package forest

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/sparse"
)

func vec(pairs ...float64) sparse.Vector {
	m := make(map[int]float64)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[int(pairs[i])] = pairs[i+1]
	}
	return sparse.FromMap(m)
}

// separable: feature 0 marks "a", feature 1 marks "b", feature 2 is noise.
func separable() ([]sparse.Vector, []string) {
	X := []sparse.Vector{
		vec(0, 1), vec(0, 0.8, 2, 0.6), vec(0, 0.9), vec(0, 0.7, 2, 0.7),
		vec(1, 1), vec(1, 0.8, 2, 0.6), vec(1, 0.9), vec(1, 0.7, 2, 0.7),
	}
	y := []string{"a", "a", "a", "a", "b", "b", "b", "b"}
	return X, y
}

func TestFit_ClassesSorted(t *testing.T) {
	f := New(DefaultOptions())
	require.NoError(t, f.Fit([]sparse.Vector{vec(0, 1), vec(1, 1), vec(2, 1)}, []string{"zeta", "alpha", "mid"}, 3))
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, f.Classes())
	assert.Len(t, f.Trees, 100)
}

func TestFit_Errors(t *testing.T) {
	f := New(DefaultOptions())
	assert.Error(t, f.Fit(nil, nil, 0))
	assert.Error(t, f.Fit([]sparse.Vector{vec(0, 1)}, []string{"a", "b"}, 1))
}

func TestPredict_NotFitted(t *testing.T) {
	_, err := New(DefaultOptions()).Predict(vec(0, 1))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestPredict_Separable(t *testing.T) {
	X, y := separable()
	f := New(DefaultOptions())
	require.NoError(t, f.Fit(X, y, 3))

	got, err := f.Predict(vec(0, 0.95))
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	probs, err := f.PredictProba(vec(1, 0.95))
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	assert.Greater(t, probs[1], 0.7)
}

func TestPredictProba_SumsToOne(t *testing.T) {
	X, y := separable()
	f := New(DefaultOptions())
	require.NoError(t, f.Fit(X, y, 3))

	all, err := f.PredictProbaBatch([]sparse.Vector{vec(), vec(2, 1), vec(0, 0.5, 1, 0.5)})
	require.NoError(t, err)
	for _, probs := range all {
		var sum float64
		for _, p := range probs {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestSingleClass(t *testing.T) {
	f := New(DefaultOptions())
	require.NoError(t, f.Fit([]sparse.Vector{vec(0, 1), vec(1, 1)}, []string{"only", "only"}, 2))
	probs, err := f.PredictProba(vec(3, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, probs)
}

func TestDeterministicForSeed(t *testing.T) {
	X, y := separable()
	inputs := []sparse.Vector{vec(), vec(2, 1), vec(0, 0.3, 1, 0.3, 2, 0.3), vec(0, 0.75)}

	a := New(DefaultOptions())
	require.NoError(t, a.Fit(X, y, 3))
	b := New(DefaultOptions())
	require.NoError(t, b.Fit(X, y, 3))

	pa, err := a.PredictProbaBatch(inputs)
	require.NoError(t, err)
	pb, err := b.PredictProbaBatch(inputs)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestNoBootstrapSingleTreeMemorizes(t *testing.T) {
	X, y := separable()
	f := New(Options{NumTrees: 1, MinSamplesSplit: 2, NoBootstrap: true, MaxFeatures: 3})
	require.NoError(t, f.Fit(X, y, 3))

	preds, err := f.PredictBatch(X)
	require.NoError(t, err)
	assert.Equal(t, y, preds)
}

func TestMaxDepthLimitsTree(t *testing.T) {
	X, y := separable()
	f := New(Options{NumTrees: 1, MinSamplesSplit: 2, MaxDepth: 1, NoBootstrap: true, MaxFeatures: 3})
	require.NoError(t, f.Fit(X, y, 3))
	assert.LessOrEqual(t, len(f.Trees[0].Nodes), 3)
}

func TestGobRoundTrip(t *testing.T) {
	X, y := separable()
	f := New(DefaultOptions())
	require.NoError(t, f.Fit(X, y, 3))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(f))
	var got Forest
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))

	for _, x := range X {
		want, err := f.PredictProba(x)
		require.NoError(t, err)
		have, err := got.PredictProba(x)
		require.NoError(t, err)
		assert.Equal(t, want, have)
	}
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.5, 0.3}))
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 0, Argmax([]float64{}))
}
