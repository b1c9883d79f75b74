package signature

import (
	"fmt"
	"math"

	"pvivy/internal/model"
)

// Severity locates one sample on a fault's severity axis.
type Severity struct {
	Index int
	Steps int
	// Draw is a uniform [0,1) sample from the generator's seeded source.
	Draw float64
}

// Fraction maps Index onto [0,1]; a single-step axis sits at 0.
func (s Severity) Fraction() float64 {
	if s.Steps <= 1 {
		return 0
	}
	return float64(s.Index) / float64(s.Steps-1)
}

// Perturbation derives faulty module parameters from healthy ones. It must
// not depend on anything except its arguments.
type Perturbation interface {
	Apply(p model.ModuleParameters, s Severity) (model.ModuleParameters, error)
}

// Scale multiplies one field by a factor interpolated linearly from Start
// (mildest) to End (most severe).
type Scale struct {
	Field model.Field `yaml:"field"`
	Start float64     `yaml:"start"`
	End   float64     `yaml:"end"`
}

func (sc Scale) Factor(s Severity) float64 {
	return sc.Start + (sc.End-sc.Start)*s.Fraction()
}

func (sc Scale) Apply(p model.ModuleParameters, s Severity) (model.ModuleParameters, error) {
	v, err := p.Get(sc.Field)
	if err != nil {
		return p, err
	}
	return p.With(sc.Field, v*sc.Factor(s))
}

// Rule applies several scales at the same severity.
type Rule []Scale

func (r Rule) Apply(p model.ModuleParameters, s Severity) (model.ModuleParameters, error) {
	var err error
	for _, sc := range r {
		if p, err = sc.Apply(p, s); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Choice picks one reduction from Reductions using the severity draw and
// scales every field in Fields by (1 - reduction). Severity index is ignored.
type Choice struct {
	Fields     []model.Field `yaml:"fields"`
	Reductions []float64     `yaml:"reductions"`
}

func (c Choice) Pick(draw float64) float64 {
	k := int(math.Floor(draw * float64(len(c.Reductions))))
	if k >= len(c.Reductions) {
		k = len(c.Reductions) - 1
	}
	if k < 0 {
		k = 0
	}
	return c.Reductions[k]
}

func (c Choice) Apply(p model.ModuleParameters, s Severity) (model.ModuleParameters, error) {
	if len(c.Reductions) == 0 {
		return p, fmt.Errorf("choice perturbation has no reductions")
	}
	factor := 1 - c.Pick(s.Draw)
	for _, f := range c.Fields {
		v, err := p.Get(f)
		if err != nil {
			return p, err
		}
		if p, err = p.With(f, v*factor); err != nil {
			return p, err
		}
	}
	return p, nil
}
