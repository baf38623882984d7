// Package textfeat turns free-text transaction descriptions into TF-IDF
// feature vectors.
package textfeat

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/spendsort/spendsort/internal/sparse"
)

// ErrEmptyVocabulary is returned by Fit when no usable term survives
// tokenization and stop-word removal.
var ErrEmptyVocabulary = errors.New("empty vocabulary: documents contain only stop words or no words")

// DefaultMaxFeatures caps the fitted vocabulary.
const DefaultMaxFeatures = 5000

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Options controls analysis and vocabulary size.
type Options struct {
	MaxFeatures   int  // 0 = unlimited
	NGramMin      int  // smallest n-gram length
	NGramMax      int  // largest n-gram length
	KeepStopWords bool // false drops English stop words
}

// DefaultOptions returns word unigrams and bigrams, 5000 terms, stop words removed.
func DefaultOptions() Options {
	return Options{MaxFeatures: DefaultMaxFeatures, NGramMin: 1, NGramMax: 2}
}

// Vectorizer is a fitted TF-IDF model. The exported fields are its complete
// state; a gob round trip reproduces the same vectors.
type Vectorizer struct {
	Options    Options
	Vocabulary map[string]int // term -> column
	IDF        []float64      // indexed by column
}

// New returns an unfitted Vectorizer.
func New(opts Options) *Vectorizer {
	if opts.NGramMin <= 0 {
		opts.NGramMin = 1
	}
	if opts.NGramMax < opts.NGramMin {
		opts.NGramMax = opts.NGramMin
	}
	return &Vectorizer{Options: opts}
}

// Fit learns the vocabulary and inverse document frequencies from docs.
func (v *Vectorizer) Fit(docs []string) error {
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, term := range v.analyze(doc) {
			termFreq[term]++
			if !seen[term] {
				seen[term] = true
				docFreq[term]++
			}
		}
	}
	if len(termFreq) == 0 {
		return ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(termFreq))
	for term := range termFreq {
		terms = append(terms, term)
	}
	if v.Options.MaxFeatures > 0 && len(terms) > v.Options.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if termFreq[terms[i]] != termFreq[terms[j]] {
				return termFreq[terms[i]] > termFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.Options.MaxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.Vocabulary = make(map[string]int, len(terms))
	v.IDF = make([]float64, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return nil
}

// FitTransform fits on docs and returns their vectors.
func (v *Vectorizer) FitTransform(docs []string) ([]sparse.Vector, error) {
	if err := v.Fit(docs); err != nil {
		return nil, err
	}
	return v.TransformBatch(docs), nil
}

// Transform vectorizes a single document. Terms outside the vocabulary are
// dropped.
func (v *Vectorizer) Transform(doc string) sparse.Vector {
	counts := make(map[int]float64)
	for _, term := range v.analyze(doc) {
		if col, ok := v.Vocabulary[term]; ok {
			counts[col]++
		}
	}
	// Sum in column order so the result does not depend on map iteration.
	vec := sparse.FromMap(counts)
	var norm float64
	for k, col := range vec.Indices {
		vec.Values[k] *= v.IDF[col]
		norm += vec.Values[k] * vec.Values[k]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k := range vec.Values {
			vec.Values[k] /= norm
		}
	}
	return vec
}

// TransformBatch vectorizes docs in order.
func (v *Vectorizer) TransformBatch(docs []string) []sparse.Vector {
	out := make([]sparse.Vector, len(docs))
	for i, doc := range docs {
		out[i] = v.Transform(doc)
	}
	return out
}

// NumFeatures is the fitted vocabulary size.
func (v *Vectorizer) NumFeatures() int { return len(v.IDF) }

// analyze lowercases, tokenizes, drops stop words and emits n-grams.
func (v *Vectorizer) analyze(doc string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(doc), -1)
	tokens := raw[:0]
	for _, tok := range raw {
		if !v.Options.KeepStopWords {
			if _, stop := englishStopWords[tok]; stop {
				continue
			}
		}
		tokens = append(tokens, tok)
	}

	if v.Options.NGramMin == 1 && v.Options.NGramMax == 1 {
		return tokens
	}
	var terms []string
	for n := v.Options.NGramMin; n <= v.Options.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}
