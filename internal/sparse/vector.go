// Package sparse holds the sparse feature vector shared by the text
// extractor and the classifier.
package sparse

import "sort"

// Vector is a sparse row. Indices are strictly increasing and Values[i] is
// the weight at Indices[i]; absent indices are zero.
type Vector struct {
	Indices []int
	Values  []float64
}

// At returns the weight at feature index i.
func (v Vector) At(i int) float64 {
	k := sort.SearchInts(v.Indices, i)
	if k < len(v.Indices) && v.Indices[k] == i {
		return v.Values[k]
	}
	return 0
}

// Len is the number of non-zero entries.
func (v Vector) Len() int { return len(v.Indices) }

// FromMap builds a Vector from index -> weight, dropping zeros.
func FromMap(m map[int]float64) Vector {
	idx := make([]int, 0, len(m))
	for i, w := range m {
		if w != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = m[i]
	}
	return Vector{Indices: idx, Values: vals}
}
