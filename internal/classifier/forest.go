package classifier

import (
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// Forest is a bagged ensemble of CART trees over Classes class indices.
type Forest struct {
	Classes int    `json:"classes" msgpack:"classes"`
	Trees   []Tree `json:"trees" msgpack:"trees"`
}

// fitForest grows cfg.Trees trees in parallel. Tree t draws from its own
// PCG stream (cfg.Seed, t), so the forest does not depend on scheduling.
func fitForest(x [][]float64, y []int, classes int, cfg Config) (*Forest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("no training rows")
	}
	features := len(x[0])
	params := treeParams{
		maxDepth:    cfg.MaxDepth,
		minSplit:    max(cfg.MinSamplesSplit, 2),
		maxFeatures: cfg.MaxFeatures,
	}
	if params.maxFeatures <= 0 {
		params.maxFeatures = max(int(math.Sqrt(float64(features))), 1)
	}
	params.maxFeatures = min(params.maxFeatures, features)

	classWeight := balancedWeights(y, classes)
	f := &Forest{Classes: classes, Trees: make([]Tree, cfg.Trees)}

	var eg errgroup.Group
	eg.SetLimit(max(cfg.Workers, 1))
	for t := range f.Trees {
		eg.Go(func() error {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)))
			w, idx := bootstrap(len(x), y, classWeight, rng)
			f.Trees[t] = buildTree(x, y, w, idx, classes, params, rng)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// Proba averages the leaf distributions of every tree.
func (f *Forest) Proba(x []float64) []float64 {
	out := make([]float64, f.Classes)
	for _, t := range f.Trees {
		for c, p := range t.Proba(x) {
			out[c] += p
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

// Predict returns the most probable class index; ties go to the lower index.
func (f *Forest) Predict(x []float64) int {
	proba := f.Proba(x)
	best := 0
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return best
}

// balancedWeights gives each present class total weight n/k, where k is the
// number of classes present.
func balancedWeights(y []int, classes int) []float64 {
	counts := make([]int, classes)
	for _, c := range y {
		counts[c]++
	}
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	w := make([]float64, classes)
	for c, n := range counts {
		if n > 0 {
			w[c] = float64(len(y)) / float64(present*n)
		}
	}
	return w
}

// bootstrap draws n samples with replacement and folds the draw counts into
// per-sample weights. idx lists the samples drawn at least once.
func bootstrap(n int, y []int, classWeight []float64, rng *rand.Rand) ([]float64, []int) {
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		counts[rng.IntN(n)]++
	}
	w := make([]float64, n)
	idx := make([]int, 0, n)
	for i, c := range counts {
		if c > 0 {
			w[i] = classWeight[y[i]] * float64(c)
			idx = append(idx, i)
		}
	}
	return w, idx
}
