package classifier

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/signature"
)

// Fold is one train/test partition of sample indices.
type Fold struct {
	Train  []int
	Test   []int
	Groups []int // groups in Test
}

// GroupKFold splits samples into k folds so that each group lands in exactly
// one test fold. Groups are placed largest first into the currently smallest
// fold.
func GroupKFold(groups []int, k int) ([]Fold, error) {
	if k < 2 {
		return nil, &model.ConfigurationError{Field: "folds", Value: float64(k), Reason: "need at least 2 folds"}
	}
	sizes := make(map[int]int)
	for _, g := range groups {
		sizes[g]++
	}
	if len(sizes) < k {
		return nil, &model.ConfigurationError{
			Field:  "folds",
			Value:  float64(k),
			Reason: fmt.Sprintf("only %d distinct groups", len(sizes)),
		}
	}

	unique := make([]int, 0, len(sizes))
	for g := range sizes {
		unique = append(unique, g)
	}
	sort.Slice(unique, func(i, j int) bool {
		if sizes[unique[i]] != sizes[unique[j]] {
			return sizes[unique[i]] > sizes[unique[j]]
		}
		return unique[i] < unique[j]
	})

	foldOf := make(map[int]int, len(unique))
	load := make([]int, k)
	folds := make([]Fold, k)
	for _, g := range unique {
		lightest := 0
		for f := 1; f < k; f++ {
			if load[f] < load[lightest] {
				lightest = f
			}
		}
		foldOf[g] = lightest
		load[lightest] += sizes[g]
		folds[lightest].Groups = append(folds[lightest].Groups, g)
	}
	for f := range folds {
		sort.Ints(folds[f].Groups)
	}

	for i, g := range groups {
		for f := range folds {
			if foldOf[g] == f {
				folds[f].Test = append(folds[f].Test, i)
			} else {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
	}
	return folds, nil
}

// FoldScore is the held-out accuracy of one fold.
type FoldScore struct {
	Technologies []model.Technology `json:"technologies"`
	Train        int                `json:"train"`
	Test         int                `json:"test"`
	Accuracy     float64            `json:"accuracy"`
}

// Report summarizes a cross-validation run.
type Report struct {
	Folds []FoldScore `json:"folds"`
	Mean  float64     `json:"mean"`
}

// CrossValidate runs group k-fold validation keyed by technology: a
// technology is never in both the training and test side of a fold.
func CrossValidate(lib signature.Library, cfg Config) (Report, error) {
	groups := make([]int, len(lib))
	for i, s := range lib {
		groups[i] = s.Technology.Code()
	}
	folds, err := GroupKFold(groups, cfg.Folds)
	if err != nil {
		return Report{}, err
	}

	var report Report
	scores := make([]float64, len(folds))
	for f, fold := range folds {
		train := make(signature.Library, len(fold.Train))
		for i, k := range fold.Train {
			train[i] = lib[k]
		}
		m, err := Fit(train, cfg)
		if err != nil {
			return Report{}, fmt.Errorf("fold %d: %w", f, err)
		}

		correct := 0
		for _, k := range fold.Test {
			label, err := m.Predict(lib[k].Vector)
			if err != nil {
				return Report{}, fmt.Errorf("fold %d: %w", f, err)
			}
			if label == lib[k].Label {
				correct++
			}
		}
		scores[f] = float64(correct) / float64(len(fold.Test))

		score := FoldScore{Train: len(fold.Train), Test: len(fold.Test), Accuracy: scores[f]}
		for _, g := range fold.Groups {
			tech, _ := model.TechnologyFromCode(g)
			score.Technologies = append(score.Technologies, tech)
		}
		report.Folds = append(report.Folds, score)
	}
	report.Mean = stat.Mean(scores, nil)

	log.Infow("cross-validation finished", "folds", len(folds), "mean_accuracy", report.Mean)
	return report, nil
}
