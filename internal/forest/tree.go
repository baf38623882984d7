package forest

import (
	"math/rand"
	"sort"

	"github.com/spendsort/spendsort/internal/sparse"
)

type builder struct {
	x           []sparse.Vector
	y           []int
	numClasses  int
	maxFeatures int
	opts        Options
	rng         *rand.Rand
	nodes       []Node
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

// sample draws the bootstrap rows for one tree. Rows drawn more than once
// appear more than once, which weights them accordingly.
func (b *builder) sample(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		if b.opts.NoBootstrap {
			rows[i] = i
		} else {
			rows[i] = b.rng.Intn(n)
		}
	}
	return rows
}

func (b *builder) build(rows []int) Tree {
	b.nodes = nil
	b.grow(rows, 0)
	return Tree{Nodes: b.nodes}
}

// grow appends the subtree for rows and returns its root index.
func (b *builder) grow(rows []int, depth int) int {
	counts := b.classCounts(rows)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	if isPure(counts) || len(rows) < b.opts.MinSamplesSplit ||
		(b.opts.MaxDepth > 0 && depth >= b.opts.MaxDepth) {
		b.nodes[id].Dist = normalize(counts)
		return id
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		b.nodes[id].Dist = normalize(counts)
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r].At(best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = best.feature
	b.nodes[id].Threshold = best.threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

// bestSplit inspects features in random order until maxFeatures
// non-constant ones have been evaluated. Features that are zero for every
// row are constant and never drawn.
func (b *builder) bestSplit(rows []int) (split, bool) {
	present := make(map[int]bool)
	for _, r := range rows {
		for _, f := range b.x[r].Indices {
			present[f] = true
		}
	}
	candidates := make([]int, 0, len(present))
	for f := range present {
		candidates = append(candidates, f)
	}
	sort.Ints(candidates)
	b.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	best := split{feature: -1}
	visited := 0
	values := make([]float64, len(rows))
	order := make([]int, len(rows))
	for _, f := range candidates {
		if visited >= b.maxFeatures {
			break
		}
		constant := true
		for i, r := range rows {
			values[i] = b.x[r].At(f)
			if values[i] != values[0] {
				constant = false
			}
		}
		if constant {
			continue
		}
		visited++

		if s, ok := b.evaluate(f, rows, values, order); ok && (best.feature < 0 || s.impurity < best.impurity) {
			best = s
		}
	}
	return best, best.feature >= 0
}

// evaluate scans every threshold of feature f and returns the one with the
// lowest weighted Gini impurity.
func (b *builder) evaluate(f int, rows []int, values []float64, order []int) (split, bool) {
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return values[order[i]] < values[order[j]] })

	n := len(rows)
	total := b.classCounts(rows)
	left := make([]float64, b.numClasses)
	right := make([]float64, b.numClasses)
	copy(right, total)

	best := split{feature: -1}
	for k := 0; k < n-1; k++ {
		c := b.y[rows[order[k]]]
		left[c]++
		right[c]--

		lo, hi := values[order[k]], values[order[k+1]]
		if lo == hi {
			continue
		}
		nl := float64(k + 1)
		nr := float64(n - k - 1)
		imp := (nl*gini(left, nl) + nr*gini(right, nr)) / float64(n)
		if best.feature < 0 || imp < best.impurity {
			thr := lo + (hi-lo)/2
			if thr >= hi {
				thr = lo
			}
			best = split{feature: f, threshold: thr, impurity: imp}
		}
	}
	return best, best.feature >= 0
}

func (b *builder) classCounts(rows []int) []float64 {
	counts := make([]float64, b.numClasses)
	for _, r := range rows {
		counts[b.y[r]]++
	}
	return counts
}

func gini(counts []float64, n float64) float64 {
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64) []float64 {
	var total float64
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, len(counts))
	for i, c := range counts {
		dist[i] = c / total
	}
	return dist
}
