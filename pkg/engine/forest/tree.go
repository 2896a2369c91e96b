// Package forest implements the tree learners: a bagged random forest and
// gradient boosted trees, both scoring with real-valued outputs.
package forest

import (
	"math"
	"math/rand"
	"sort"
)

// maxThresholds bounds the candidate split points tried per feature
const maxThresholds = 32

// Node is a binary regression tree node. Missing values (NaN) go left.
type Node struct {
	Feature   int
	Threshold float64
	Left      *Node
	Right     *Node
	Value     float64 // Leaf prediction value
	IsLeaf    bool
}

// Predict walks the tree for one row
func (n *Node) Predict(row []float64) float64 {
	for !n.IsLeaf {
		v := row[n.Feature]
		if math.IsNaN(v) || v <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Leaves counts the leaves below n
func (n *Node) Leaves() int {
	if n.IsLeaf {
		return 1
	}
	return n.Left.Leaves() + n.Right.Leaves()
}

// treeBuilder grows one regression tree on weighted targets. Growth is
// leaf-wise: the leaf whose best split has the largest weighted variance
// reduction is split next, until maxLeaves is reached.
type treeBuilder struct {
	x               [][]float64
	target          []float64
	weights         []float64
	maxLeaves       int
	minSamples      int
	featureFraction float64
	rng             *rand.Rand

	// leafValue computes a leaf's output from its rows; nil means the
	// weighted mean target
	leafValue func(rows []int) float64
}

// candidate is a leaf with its best split, waiting to be expanded
type candidate struct {
	node      *Node
	rows      []int
	feature   int
	threshold float64
	gain      float64
}

func (b *treeBuilder) build(rows []int) *Node {
	root := &Node{}
	var frontier []*candidate

	add := func(n *Node, rows []int) {
		b.setLeaf(n, rows)
		if len(rows) < 2*b.minSamples || b.isHomogeneous(rows) {
			return
		}
		if feature, threshold, gain := b.findBestSplit(rows); gain > 0 {
			frontier = append(frontier, &candidate{node: n, rows: rows, feature: feature, threshold: threshold, gain: gain})
		}
	}
	add(root, rows)

	for leaves := 1; leaves < b.maxLeaves && len(frontier) > 0; leaves++ {
		best := 0
		for i, c := range frontier {
			if c.gain > frontier[best].gain {
				best = i
			}
		}
		c := frontier[best]
		frontier = append(frontier[:best], frontier[best+1:]...)

		left, right := b.splitRows(c.rows, c.feature, c.threshold)
		*c.node = Node{Feature: c.feature, Threshold: c.threshold, Left: &Node{}, Right: &Node{}}
		add(c.node.Left, left)
		add(c.node.Right, right)
	}
	return root
}

func (b *treeBuilder) setLeaf(n *Node, rows []int) {
	n.IsLeaf = true
	n.Value = b.mean(rows)
	if b.leafValue != nil {
		n.Value = b.leafValue(rows)
	}
}

func (b *treeBuilder) mean(rows []int) float64 {
	var sum, total float64
	for _, i := range rows {
		sum += b.weights[i] * b.target[i]
		total += b.weights[i]
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (b *treeBuilder) isHomogeneous(rows []int) bool {
	first := b.target[rows[0]]
	for _, i := range rows[1:] {
		if b.target[i] != first {
			return false
		}
	}
	return true
}

// candidateFeatures samples the features considered at one split
func (b *treeBuilder) candidateFeatures() []int {
	n := len(b.x[0])
	if b.featureFraction <= 0 || b.featureFraction >= 1 || b.rng == nil {
		all := make([]int, n)
		for j := range all {
			all[j] = j
		}
		return all
	}
	k := max(1, int(math.Ceil(b.featureFraction*float64(n))))
	return b.rng.Perm(n)[:k]
}

// findBestSplit finds the best feature and threshold to split on
func (b *treeBuilder) findBestSplit(rows []int) (int, float64, float64) {
	bestFeature, bestThreshold, bestGain := 0, 0.0, 0.0

	var sum, sumSq, total float64
	for _, i := range rows {
		w := b.weights[i]
		sum += w * b.target[i]
		sumSq += w * b.target[i] * b.target[i]
		total += w
	}
	if total == 0 {
		return 0, 0, 0
	}
	parent := sumSq - sum*sum/total

	for _, feature := range b.candidateFeatures() {
		for _, threshold := range b.thresholds(rows, feature) {
			var ls, lsq, lw float64
			var lc int
			for _, i := range rows {
				v := b.x[i][feature]
				if math.IsNaN(v) || v <= threshold {
					w := b.weights[i]
					ls += w * b.target[i]
					lsq += w * b.target[i] * b.target[i]
					lw += w
					lc++
				}
			}
			rc := len(rows) - lc
			if lc < b.minSamples || rc < b.minSamples || lw == 0 || lw == total {
				continue
			}

			rs, rsq, rw := sum-ls, sumSq-lsq, total-lw
			child := (lsq - ls*ls/lw) + (rsq - rs*rs/rw)
			if gain := parent - child; gain > bestGain+1e-12 {
				bestFeature, bestThreshold, bestGain = feature, threshold, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

// thresholds returns midpoints between distinct sorted values, thinned to at
// most maxThresholds evenly spaced candidates
func (b *treeBuilder) thresholds(rows []int, feature int) []float64 {
	values := make([]float64, 0, len(rows))
	for _, i := range rows {
		if v := b.x[i][feature]; !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	sort.Float64s(values)

	var mids []float64
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1] {
			mids = append(mids, (values[i]+values[i-1])/2)
		}
	}
	if len(mids) <= maxThresholds {
		return mids
	}

	thinned := make([]float64, maxThresholds)
	for i := range thinned {
		thinned[i] = mids[i*len(mids)/maxThresholds]
	}
	return thinned
}

func (b *treeBuilder) splitRows(rows []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range rows {
		v := b.x[i][feature]
		if math.IsNaN(v) || v <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
