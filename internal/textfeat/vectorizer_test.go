package textfeat

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitted(t *testing.T, opts Options, docs ...string) *Vectorizer {
	t.Helper()
	v := New(opts)
	require.NoError(t, v.Fit(docs))
	return v
}

func TestAnalyze_UnigramsAndBigrams(t *testing.T) {
	v := New(DefaultOptions())
	terms := v.analyze("The Coffee at Joe's Cafe")
	// "the" and "at" are stop words, "s" is too short.
	assert.Equal(t, []string{"coffee", "joe", "cafe", "coffee joe", "joe cafe"}, terms)
}

func TestAnalyze_KeepStopWords(t *testing.T) {
	v := New(Options{NGramMin: 1, NGramMax: 1, KeepStopWords: true})
	assert.Equal(t, []string{"the", "coffee"}, v.analyze("the coffee"))
}

func TestAnalyze_Unicode(t *testing.T) {
	v := New(Options{NGramMin: 1, NGramMax: 1})
	assert.Equal(t, []string{"café", "münchen"}, v.analyze("Café MÜNCHEN"))
}

func TestFit_VocabularyIsAlphabetical(t *testing.T) {
	v := fitted(t, Options{NGramMin: 1, NGramMax: 1}, "zebra apple", "mango")
	assert.Equal(t, []string{"apple", "mango", "zebra"}, terms(v))
	assert.Equal(t, 3, v.NumFeatures())
}

func TestFit_MaxFeaturesKeepsMostFrequent(t *testing.T) {
	v := fitted(t, Options{MaxFeatures: 2, NGramMin: 1, NGramMax: 1},
		"rent rent grocery", "rent grocery", "cinema")
	assert.Equal(t, []string{"grocery", "rent"}, terms(v))
}

func TestFit_MaxFeaturesTieBreaksAlphabetically(t *testing.T) {
	v := fitted(t, Options{MaxFeatures: 2, NGramMin: 1, NGramMax: 1}, "delta charlie bravo alpha")
	assert.Equal(t, []string{"alpha", "bravo"}, terms(v))
}

func TestFit_EmptyVocabulary(t *testing.T) {
	v := New(DefaultOptions())
	err := v.Fit([]string{"the and of", "a"})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
	assert.ErrorIs(t, New(DefaultOptions()).Fit(nil), ErrEmptyVocabulary)
}

func TestFit_SmoothIDF(t *testing.T) {
	v := fitted(t, Options{NGramMin: 1, NGramMax: 1}, "rent", "rent grocery", "cinema")
	// n=3: rent df=2, grocery df=1.
	assert.InDelta(t, math.Log(4.0/3.0)+1, v.IDF[v.Vocabulary["rent"]], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, v.IDF[v.Vocabulary["grocery"]], 1e-12)
}

func TestTransform_L2Normalized(t *testing.T) {
	v := fitted(t, DefaultOptions(), "uber trip downtown", "lidl groceries", "uber eats")
	vec := v.Transform("uber trip home")
	var sum float64
	for _, w := range vec.Values {
		sum += w * w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestTransform_DropsUnknownTerms(t *testing.T) {
	v := fitted(t, DefaultOptions(), "uber trip", "lidl groceries")
	vec := v.Transform("completely unseen words")
	assert.Zero(t, vec.Len())

	vec = v.Transform("uber never seen")
	require.Equal(t, 1, vec.Len())
	assert.Equal(t, v.Vocabulary["uber"], vec.Indices[0])
	assert.InDelta(t, 1.0, vec.Values[0], 1e-12)
}

func TestTransform_CountsRepeatedTerms(t *testing.T) {
	v := fitted(t, Options{NGramMin: 1, NGramMax: 1}, "rent grocery", "rent grocery")
	vec := v.Transform("rent rent grocery")
	assert.Greater(t, vec.At(v.Vocabulary["rent"]), vec.At(v.Vocabulary["grocery"]))
}

func TestGobRoundTripIsExact(t *testing.T) {
	v := fitted(t, DefaultOptions(), "Netflix subscription", "Rewe supermarket", "Shell fuel station")

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(v))
	var got Vectorizer
	require.NoError(t, gob.NewDecoder(&buf).Decode(&got))

	for _, doc := range []string{"netflix", "rewe supermarket berlin", "fuel"} {
		assert.Equal(t, v.Transform(doc), got.Transform(doc), doc)
	}
}

// terms returns the vocabulary in column order.
func terms(v *Vectorizer) []string {
	out := make([]string, len(v.Vocabulary))
	for term, col := range v.Vocabulary {
		out[col] = term
	}
	return out
}
