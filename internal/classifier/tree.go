package classifier

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// minGain is the smallest weighted impurity decrease accepted as a split.
const minGain = 1e-12

// Node is one node of a flattened decision tree. Leaves have Feature -1 and
// carry the class probability distribution in Value.
type Node struct {
	Feature   int       `json:"f" msgpack:"f"`
	Threshold float64   `json:"t,omitempty" msgpack:"t,omitempty"`
	Left      int       `json:"l,omitempty" msgpack:"l,omitempty"`
	Right     int       `json:"r,omitempty" msgpack:"r,omitempty"`
	Value     []float64 `json:"v,omitempty" msgpack:"v,omitempty"`
}

func (n Node) Leaf() bool { return n.Feature < 0 }

// Tree is a CART classification tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes" msgpack:"nodes"`
}

// Proba returns the leaf distribution reached by x. Samples go left when
// x[feature] <= threshold.
func (t Tree) Proba(x []float64) []float64 {
	n := t.Nodes[0]
	for !n.Leaf() {
		if x[n.Feature] <= n.Threshold {
			n = t.Nodes[n.Left]
		} else {
			n = t.Nodes[n.Right]
		}
	}
	return n.Value
}

// check verifies that every split reads a known feature and points forward
// to nodes inside the tree, and that every leaf holds one value per class.
func (t Tree) check(features, classes int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf() {
			if len(n.Value) != classes {
				return fmt.Errorf("leaf %d has %d values for %d classes", i, len(n.Value), classes)
			}
			continue
		}
		if n.Feature >= features {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, features)
		}
		for _, c := range []int{n.Left, n.Right} {
			if c <= i || c >= len(t.Nodes) {
				return fmt.Errorf("node %d has child %d outside (%d, %d)", i, c, i, len(t.Nodes))
			}
		}
	}
	return nil
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

type treeParams struct {
	maxDepth    int
	minSplit    int
	maxFeatures int
}

// treeBuilder grows one tree with Gini impurity on weighted samples.
type treeBuilder struct {
	x       [][]float64
	y       []int
	w       []float64
	classes int
	params  treeParams
	rng     *rand.Rand
	nodes   []Node
}

func buildTree(x [][]float64, y []int, w []float64, idx []int, classes int, params treeParams, rng *rand.Rand) Tree {
	b := &treeBuilder{x: x, y: y, w: w, classes: classes, params: params, rng: rng}
	b.grow(idx, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	dist, total := b.distribution(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: -1})

	stop := total <= 0 ||
		len(idx) < b.params.minSplit ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) ||
		gini(dist, total) <= minGain
	if !stop {
		if f, thr, ok := b.bestSplit(idx, dist, total); ok {
			var left, right []int
			for _, s := range idx {
				if b.x[s][f] <= thr {
					left = append(left, s)
				} else {
					right = append(right, s)
				}
			}
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.nodes[id] = Node{Feature: f, Threshold: thr, Left: l, Right: r}
			return id
		}
	}

	for c := range dist {
		if total > 0 {
			dist[c] /= total
		}
	}
	b.nodes[id].Value = dist
	return id
}

func (b *treeBuilder) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, b.classes)
	total := 0.0
	for _, s := range idx {
		dist[b.y[s]] += b.w[s]
		total += b.w[s]
	}
	return dist, total
}

// bestSplit scans random features until maxFeatures non-constant ones have
// been evaluated, and returns the split with the largest impurity decrease.
func (b *treeBuilder) bestSplit(idx []int, dist []float64, total float64) (int, float64, bool) {
	parent := total * gini(dist, total)
	best := minGain
	bestFeature, bestThreshold := -1, 0.0

	order := make([]int, len(idx))
	left := make([]float64, b.classes)
	right := make([]float64, b.classes)
	visited := 0
	for _, f := range b.rng.Perm(len(b.x[idx[0]])) {
		if visited >= b.params.maxFeatures {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })
		if b.x[order[0]][f] == b.x[order[len(order)-1]][f] {
			continue
		}
		visited++

		clear(left)
		wl := 0.0
		for k := 0; k < len(order)-1; k++ {
			s := order[k]
			left[b.y[s]] += b.w[s]
			wl += b.w[s]

			lo, hi := b.x[s][f], b.x[order[k+1]][f]
			wr := total - wl
			if lo == hi || wl <= 0 || wr <= 0 {
				continue
			}
			for c := range right {
				right[c] = dist[c] - left[c]
			}
			gain := parent - wl*gini(left, wl) - wr*gini(right, wr)
			if gain > best {
				best = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}
