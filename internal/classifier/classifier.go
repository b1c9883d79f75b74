// Package classifier trains and applies the fault classifier: a standard
// scaler followed by a class-balanced random forest over named shape
// features.
package classifier

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/signature"
)

// Config controls forest training and validation.
type Config struct {
	Trees           int    `yaml:"trees"`
	MaxDepth        int    `yaml:"max_depth"`         // 0 = unlimited
	MinSamplesSplit int    `yaml:"min_samples_split"` // at least 2
	MaxFeatures     int    `yaml:"max_features"`      // 0 = sqrt(features)
	Seed            uint64 `yaml:"seed"`
	Workers         int    `yaml:"workers"`
	Folds           int    `yaml:"folds"`

	// Features is the model schema; empty means model.ClassifierFeatureNames.
	Features []string `yaml:"features"`
}

func DefaultConfig() Config {
	return Config{
		Trees:           100,
		MinSamplesSplit: 2,
		Seed:            42,
		Workers:         runtime.NumCPU(),
		Folds:           3,
	}
}

func (c Config) featureNames() []string {
	if len(c.Features) == 0 {
		return model.ClassifierFeatureNames
	}
	return c.Features
}

// TrainedModel is a fitted scaler and forest bound to a feature schema.
type TrainedModel struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Features  []string
	Classes   []model.FaultLabel
	Scaler    Scaler
	Forest    *Forest
}

// Fit standardizes the library's features and trains a forest on them.
func Fit(lib signature.Library, cfg Config) (*TrainedModel, error) {
	if len(lib) == 0 {
		return nil, &model.DataError{Reason: "signature library is empty"}
	}
	if cfg.Trees < 1 {
		return nil, &model.ConfigurationError{Field: "trees", Value: float64(cfg.Trees), Reason: "must be at least 1"}
	}

	names := cfg.featureNames()
	classes := classesOf(lib)
	index := make(map[model.FaultLabel]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	x := make([][]float64, len(lib))
	y := make([]int, len(lib))
	for i, s := range lib {
		row, err := align(s.Vector, names)
		if err != nil {
			var mismatch *model.SchemaMismatchError
			if errors.As(err, &mismatch) {
				return nil, &model.DataError{Reason: fmt.Sprintf("signature %d lacks features %s", i, strings.Join(mismatch.Missing, ", "))}
			}
			return nil, err
		}
		x[i] = row
		y[i] = index[s.Label]
	}

	scaler, err := FitScaler(x)
	if err != nil {
		return nil, fmt.Errorf("fitting scaler: %w", err)
	}
	forest, err := fitForest(scaler.TransformAll(x), y, len(classes), cfg)
	if err != nil {
		return nil, fmt.Errorf("fitting forest: %w", err)
	}

	m := &TrainedModel{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Features:  append([]string(nil), names...),
		Classes:   classes,
		Scaler:    scaler,
		Forest:    forest,
	}
	log.Debugw("classifier trained",
		"model_id", m.ID,
		"samples", len(lib),
		"classes", len(classes),
		"trees", cfg.Trees,
	)
	return m, nil
}

// classesOf lists the library's labels in canonical order, then any others
// sorted by name.
func classesOf(lib signature.Library) []model.FaultLabel {
	seen := make(map[model.FaultLabel]bool)
	for _, s := range lib {
		seen[s.Label] = true
	}
	var out []model.FaultLabel
	for _, l := range model.AllFaultLabels {
		if seen[l] {
			out = append(out, l)
			delete(seen, l)
		}
	}
	var extra []model.FaultLabel
	for l := range seen {
		extra = append(extra, l)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// align orders v's values by names. Absent features are 0 and reported in a
// SchemaMismatchError; the returned row is always usable.
func align(v model.FeatureVector, names []string) ([]float64, error) {
	row := make([]float64, len(names))
	var missing []string
	for j, name := range names {
		val, ok := v.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		row[j] = val
	}
	if len(missing) > 0 {
		return row, &model.SchemaMismatchError{Missing: missing}
	}
	return row, nil
}

// Align maps v onto the model schema by name. A non-nil error is always a
// *model.SchemaMismatchError and the row is still valid.
func (m *TrainedModel) Align(v model.FeatureVector) ([]float64, error) {
	return align(v, m.Features)
}

// PredictProba returns the class probabilities for v.
func (m *TrainedModel) PredictProba(v model.FeatureVector) (map[model.FaultLabel]float64, error) {
	proba, err := m.proba(v)
	if err != nil {
		return nil, err
	}
	out := make(map[model.FaultLabel]float64, len(proba))
	for c, p := range proba {
		out[m.Classes[c]] = p
	}
	return out, nil
}

// Predict returns the most probable fault label for v.
func (m *TrainedModel) Predict(v model.FeatureVector) (model.FaultLabel, error) {
	proba, err := m.proba(v)
	if err != nil {
		return "", err
	}
	best := 0
	for c, p := range proba {
		if p > proba[best] {
			best = c
		}
	}
	return m.Classes[best], nil
}

// Predict classifies v with m.
func Predict(v model.FeatureVector, m *TrainedModel) (model.FaultLabel, error) {
	if m == nil {
		return "", &model.ModelError{Reason: "no trained model"}
	}
	return m.Predict(v)
}

func (m *TrainedModel) proba(v model.FeatureVector) ([]float64, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	row, err := m.Align(v)
	var mismatch *model.SchemaMismatchError
	if errors.As(err, &mismatch) {
		for _, name := range mismatch.Missing {
			if name == model.FeatureModuleTypeCode {
				// Unknown technology is scored as the first class.
				log.Warnw("module_type_code missing, defaulting to 0", "model_id", m.ID)
			}
		}
		log.Warnw("feature vector does not match model schema, substituting 0",
			"model_id", m.ID,
			"missing", mismatch.Missing,
		)
	}
	return m.Forest.Proba(m.Scaler.Transform(row)), nil
}

// check rejects models whose parts disagree, e.g. a truncated artifact.
func (m *TrainedModel) check() error {
	switch {
	case m.Forest == nil || len(m.Forest.Trees) == 0:
		return &model.ModelError{Reason: "classifier has no trees"}
	case len(m.Classes) == 0 || m.Forest.Classes != len(m.Classes):
		return &model.ModelError{Reason: fmt.Sprintf("classifier has %d labels for %d classes", len(m.Classes), m.Forest.Classes)}
	case len(m.Scaler.Mean) != len(m.Features) || len(m.Scaler.Scale) != len(m.Features):
		return &model.ModelError{Reason: fmt.Sprintf("scaler has %d columns for %d features", len(m.Scaler.Mean), len(m.Features))}
	}
	for i, t := range m.Forest.Trees {
		if err := t.check(len(m.Features), m.Forest.Classes); err != nil {
			return &model.ModelError{Reason: fmt.Sprintf("tree %d: %s", i, err)}
		}
	}
	return nil
}
