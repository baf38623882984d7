package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsort/spendsort/internal/forest"
	"github.com/spendsort/spendsort/internal/textfeat"
)

func trainedModel(t *testing.T) *Model {
	t.Helper()
	docs := []string{"netflix subscription", "spotify subscription", "rewe supermarket", "lidl supermarket"}
	labels := []string{"Entertainment", "Entertainment", "Groceries", "Groceries"}

	vec := textfeat.New(textfeat.DefaultOptions())
	X, err := vec.FitTransform(docs)
	require.NoError(t, err)

	clf := forest.New(forest.DefaultOptions())
	require.NoError(t, clf.Fit(X, labels, vec.NumFeatures()))
	return &Model{Vectorizer: vec, Forest: clf}
}

func TestLoad_NoModel(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "model"))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNoModel)
	assert.False(t, s.Exists())

	_, err = s.ModTime()
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "model"))
	m := trainedModel(t)
	require.NoError(t, s.Save(m))
	assert.True(t, s.Exists())

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, m.Forest.Classes(), got.Forest.Classes())

	for _, doc := range []string{"netflix", "lidl supermarket berlin", "unknown merchant"} {
		want, err := m.Forest.PredictProba(m.Vectorizer.Transform(doc))
		require.NoError(t, err)
		have, err := got.Forest.PredictProba(got.Vectorizer.Transform(doc))
		require.NoError(t, err)
		assert.Equal(t, want, have, doc)
	}
}

func TestSave_Overwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model")
	s := NewFileStore(dir)
	require.NoError(t, s.Save(trainedModel(t)))

	vec := textfeat.New(textfeat.DefaultOptions())
	X, err := vec.FitTransform([]string{"uber ride", "shell fuel"})
	require.NoError(t, err)
	clf := forest.New(forest.DefaultOptions())
	require.NoError(t, clf.Fit(X, []string{"Transportation", "Transportation"}, vec.NumFeatures()))
	require.NoError(t, s.Save(&Model{Vectorizer: vec, Forest: clf}))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Transportation"}, got.Forest.Classes())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files or history left behind")
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	require.NoError(t, s.Save(trainedModel(t)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClassifierFile), []byte("not a gob"), 0o644))

	_, err := s.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoModel)
	assert.Contains(t, err.Error(), "decoding classifier.gob")
}

func TestSave_Incomplete(t *testing.T) {
	s := NewFileStore(t.TempDir())
	assert.Error(t, s.Save(nil))
	assert.Error(t, s.Save(&Model{Vectorizer: textfeat.New(textfeat.DefaultOptions())}))
}
