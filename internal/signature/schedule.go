package signature

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"pvivy/internal/model"
)

// Schedule maps each fault label to the perturbation that produces it.
// Adding a fault mode is adding an entry.
type Schedule map[model.FaultLabel]Perturbation

// DefaultSchedule returns the built-in fault table. Healthy samples carry a
// small manufacturing spread so the classifier does not learn the nameplate
// as the only healthy point.
func DefaultSchedule() Schedule {
	return Schedule{
		model.FaultHealthy: Rule{
			{Field: model.FieldRshRef, Start: 1.1, End: 0.9},
			{Field: model.FieldVocRef, Start: 1.1, End: 0.95},
			{Field: model.FieldILRef, Start: 1.1, End: 0.95},
			{Field: model.FieldVmpRef, Start: 1.1, End: 0.95},
			{Field: model.FieldImpRef, Start: 1.1, End: 0.95},
			{Field: model.FieldRs, Start: 1.05, End: 1},
		},
		model.FaultPID: Rule{
			{Field: model.FieldRshRef, Start: 0.9, End: 0.2},
			{Field: model.FieldVocRef, Start: 1.0, End: 0.9},
		},
		model.FaultSoiling: Scale{Field: model.FieldILRef, Start: 0.95, End: 0.70},
		// Partial shading loses photocurrent and adds resistive mismatch loss.
		model.FaultShading: Rule{
			{Field: model.FieldILRef, Start: 0.9, End: 0.2},
			{Field: model.FieldRs, Start: 1.0, End: 2.0},
		},
		model.FaultRsIncrease: Scale{Field: model.FieldRs, Start: 1.5, End: 3.0},
		model.FaultBypassDiode: Choice{
			Fields:     []model.Field{model.FieldVocRef, model.FieldVmpRef},
			Reductions: []float64{1.0 / 3.0, 2.0 / 3.0},
		},
	}
}

// Labels returns the scheduled labels: known labels in their canonical order,
// then any others sorted by name.
func (s Schedule) Labels() []model.FaultLabel {
	labels := make([]model.FaultLabel, 0, len(s))
	known := make(map[model.FaultLabel]bool, len(model.AllFaultLabels))
	for _, l := range model.AllFaultLabels {
		known[l] = true
		if _, ok := s[l]; ok {
			labels = append(labels, l)
		}
	}
	var extra []model.FaultLabel
	for l := range s {
		if !known[l] {
			extra = append(extra, l)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(labels, extra...)
}

// entry is one label in a schedule file. Exactly one of Scale and Choice is
// set; several scales form a multi-field rule.
type entry struct {
	Scale  []Scale `yaml:"scale"`
	Choice *Choice `yaml:"choice"`
}

// ParseSchedule decodes a YAML schedule:
//
//	Soiling:
//	  scale:
//	    - {field: I_L_ref, start: 0.95, end: 0.70}
//	Bypass_Diode_Short:
//	  choice: {fields: [V_oc_ref, V_mp_ref], reductions: [0.333, 0.667]}
func ParseSchedule(data []byte) (Schedule, error) {
	var raw map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schedule: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("schedule is empty")
	}

	s := make(Schedule, len(raw))
	for label, e := range raw {
		if label == "" {
			return nil, fmt.Errorf("schedule entry with empty label")
		}
		switch {
		case len(e.Scale) > 0 && e.Choice != nil:
			return nil, fmt.Errorf("label %s: scale and choice are mutually exclusive", label)
		case len(e.Scale) > 0:
			for _, sc := range e.Scale {
				if _, err := model.ParseField(string(sc.Field)); err != nil {
					return nil, fmt.Errorf("label %s: %w", label, err)
				}
			}
			if len(e.Scale) == 1 {
				s[model.FaultLabel(label)] = e.Scale[0]
			} else {
				s[model.FaultLabel(label)] = Rule(e.Scale)
			}
		case e.Choice != nil:
			if len(e.Choice.Reductions) == 0 || len(e.Choice.Fields) == 0 {
				return nil, fmt.Errorf("label %s: choice needs fields and reductions", label)
			}
			for _, f := range e.Choice.Fields {
				if _, err := model.ParseField(string(f)); err != nil {
					return nil, fmt.Errorf("label %s: %w", label, err)
				}
			}
			s[model.FaultLabel(label)] = *e.Choice
		default:
			return nil, fmt.Errorf("label %s: no perturbation", label)
		}
	}
	return s, nil
}

// LoadSchedule reads a schedule file.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return ParseSchedule(data)
}
