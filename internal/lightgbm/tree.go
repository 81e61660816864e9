package lightgbm

import (
	"math"
	"sort"
)

// Node is one node of a regression tree. Leaves carry the (already shrunk)
// output value; internal nodes route rows by threshold comparison.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a single regression tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Predict returns the tree output for one feature vector.
// Rows with value <= threshold go left.
func (t *Tree) Predict(x []float64) float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// treeGrower grows one tree leaf-wise (best-first) on gradient/hessian pairs,
// bounded by NumLeaves, MaxDepth and MinChildSamples.
type treeGrower struct {
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int // sampled feature subset for this tree

	numLeaves       int
	maxDepth        int
	minChildSamples int
	lambdaL1        float64
	lambdaL2        float64
	shrinkage       float64

	// split gain accumulated per (global) feature index
	gains []float64
}

// openLeaf is a not-yet-finalized leaf together with its best known split.
type openLeaf struct {
	nodeIndex int
	rows      []int
	depth     int
	sumG      float64
	sumH      float64

	hasSplit      bool
	bestGain      float64
	bestFeature   int
	bestThreshold float64
}

func (g *treeGrower) grow(rows []int) *Tree {
	tree := &Tree{}

	sumG, sumH := g.sums(rows)
	root := &openLeaf{nodeIndex: 0, rows: rows, depth: 0, sumG: sumG, sumH: sumH}
	tree.Nodes = append(tree.Nodes, Node{Leaf: true, Value: g.leafValue(sumG, sumH)})
	g.findBestSplit(root)

	open := []*openLeaf{root}
	leaves := 1

	for leaves < g.numLeaves {
		// Pick the open leaf with the largest positive gain.
		best := -1
		for i, leaf := range open {
			if !leaf.hasSplit {
				continue
			}
			if best == -1 || leaf.bestGain > open[best].bestGain {
				best = i
			}
		}
		if best == -1 {
			break
		}

		leaf := open[best]
		open = append(open[:best], open[best+1:]...)

		left, right := g.partition(leaf)
		g.gains[leaf.bestFeature] += leaf.bestGain

		leftIdx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{Leaf: true, Value: g.leafValue(left.sumG, left.sumH)})
		rightIdx := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, Node{Leaf: true, Value: g.leafValue(right.sumG, right.sumH)})

		parent := &tree.Nodes[leaf.nodeIndex]
		parent.Leaf = false
		parent.Feature = leaf.bestFeature
		parent.Threshold = leaf.bestThreshold
		parent.Left = leftIdx
		parent.Right = rightIdx
		parent.Value = 0

		left.nodeIndex = leftIdx
		right.nodeIndex = rightIdx
		g.findBestSplit(left)
		g.findBestSplit(right)
		open = append(open, left, right)

		leaves++
	}

	// Shrink leaf outputs once the structure is final.
	for i := range tree.Nodes {
		if tree.Nodes[i].Leaf {
			tree.Nodes[i].Value *= g.shrinkage
		}
	}

	return tree
}

func (g *treeGrower) sums(rows []int) (sumG, sumH float64) {
	for _, r := range rows {
		sumG += g.grad[r]
		sumH += g.hess[r]
	}
	return sumG, sumH
}

// leafValue is the Newton-step leaf output with L1 soft-thresholding and L2
// smoothing on the gradient sum.
func (g *treeGrower) leafValue(sumG, sumH float64) float64 {
	return -softThreshold(sumG, g.lambdaL1) / (sumH + g.lambdaL2)
}

func (g *treeGrower) leafScore(sumG, sumH float64) float64 {
	thresholded := softThreshold(sumG, g.lambdaL1)
	return thresholded * thresholded / (sumH + g.lambdaL2)
}

func softThreshold(v, l1 float64) float64 {
	if v > l1 {
		return v - l1
	}
	if v < -l1 {
		return v + l1
	}
	return 0
}

// findBestSplit scans every sampled feature for the best threshold of a leaf.
func (g *treeGrower) findBestSplit(leaf *openLeaf) {
	leaf.hasSplit = false
	if g.maxDepth > 0 && leaf.depth >= g.maxDepth {
		return
	}
	n := len(leaf.rows)
	if n < 2*g.minChildSamples {
		return
	}

	parentScore := g.leafScore(leaf.sumG, leaf.sumH)

	type entry struct {
		value float64
		grad  float64
		hess  float64
	}
	entries := make([]entry, n)

	for _, feature := range g.features {
		for i, r := range leaf.rows {
			entries[i] = entry{value: g.x[r][feature], grad: g.grad[r], hess: g.hess[r]}
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].value < entries[b].value })

		var leftG, leftH float64
		for i := 0; i < n-1; i++ {
			leftG += entries[i].grad
			leftH += entries[i].hess

			if i+1 < g.minChildSamples || n-(i+1) < g.minChildSamples {
				continue
			}
			// Only split where the feature value actually changes.
			if entries[i].value == entries[i+1].value {
				continue
			}

			rightG := leaf.sumG - leftG
			rightH := leaf.sumH - leftH
			gain := 0.5 * (g.leafScore(leftG, leftH) + g.leafScore(rightG, rightH) - parentScore)

			if gain > 1e-12 && (!leaf.hasSplit || gain > leaf.bestGain) {
				leaf.hasSplit = true
				leaf.bestGain = gain
				leaf.bestFeature = feature
				leaf.bestThreshold = (entries[i].value + entries[i+1].value) / 2
			}
		}
	}
}

// partition splits a leaf's rows by its chosen threshold into two open leaves.
func (g *treeGrower) partition(leaf *openLeaf) (left, right *openLeaf) {
	left = &openLeaf{depth: leaf.depth + 1}
	right = &openLeaf{depth: leaf.depth + 1}

	for _, r := range leaf.rows {
		if g.x[r][leaf.bestFeature] <= leaf.bestThreshold {
			left.rows = append(left.rows, r)
			left.sumG += g.grad[r]
			left.sumH += g.hess[r]
		} else {
			right.rows = append(right.rows, r)
			right.sumG += g.grad[r]
			right.sumH += g.hess[r]
		}
	}
	return left, right
}

// clampProb keeps probabilities away from exact 0/1 for log-loss stability.
func clampProb(p float64) float64 {
	const eps = 1e-15
	return math.Max(eps, math.Min(1-eps, p))
}
