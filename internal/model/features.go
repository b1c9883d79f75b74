package model

// Feature names, in the order the extractor emits them.
const (
	FeatureIscNorm        = "Isc_norm"
	FeatureVocNorm        = "Voc_norm"
	FeatureImpNorm        = "Imp_norm"
	FeatureVmpNorm        = "Vmp_norm"
	FeatureFF             = "FF"
	FeatureSlopeAtIsc     = "slope_at_Isc"
	FeatureSlopeAtVoc     = "slope_at_Voc"
	FeatureMaxCurvature   = "max_curvature"
	FeatureIdealityFit    = "diode_ideality_fit"
	FeatureNumSteps       = "num_steps"
	FeaturePmpRatio       = "Pmp_ratio"
	FeatureAreaRatio      = "area_ratio"
	FeatureKneeCurvature  = "knee_curvature"
	FeatureModuleTypeCode = "module_type_code"
)

// ShapeFeatureNames is the extractor output order.
var ShapeFeatureNames = []string{
	FeatureIscNorm, FeatureVocNorm, FeatureImpNorm, FeatureVmpNorm, FeatureFF,
	FeatureSlopeAtIsc, FeatureSlopeAtVoc, FeatureMaxCurvature, FeatureIdealityFit,
	FeatureNumSteps, FeaturePmpRatio, FeatureAreaRatio, FeatureKneeCurvature,
}

// ClassifierFeatureNames is the default schema a classifier is trained on.
var ClassifierFeatureNames = []string{
	FeatureFF, FeatureSlopeAtIsc, FeatureSlopeAtVoc, FeatureMaxCurvature,
	FeatureIdealityFit, FeatureNumSteps, FeaturePmpRatio, FeatureAreaRatio,
	FeatureKneeCurvature, FeatureIscNorm, FeatureVocNorm, FeatureModuleTypeCode,
}

type Feature struct {
	Name  string  `json:"name" msgpack:"name"`
	Value float64 `json:"value" msgpack:"value"`
}

// FeatureVector is an ordered set of named features. Methods never modify
// the receiver; With and Without return copies.
type FeatureVector struct {
	Features []Feature `json:"features" msgpack:"features"`
}

// Get returns the named feature value.
func (v FeatureVector) Get(name string) (float64, bool) {
	for _, f := range v.Features {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (v FeatureVector) Names() []string {
	names := make([]string, len(v.Features))
	for i, f := range v.Features {
		names[i] = f.Name
	}
	return names
}

func (v FeatureVector) Values() []float64 {
	vals := make([]float64, len(v.Features))
	for i, f := range v.Features {
		vals[i] = f.Value
	}
	return vals
}

// With returns a copy with name set to value, replacing an existing entry in
// place or appending a new one.
func (v FeatureVector) With(name string, value float64) FeatureVector {
	out := FeatureVector{Features: make([]Feature, 0, len(v.Features)+1)}
	replaced := false
	for _, f := range v.Features {
		if f.Name == name {
			f.Value = value
			replaced = true
		}
		out.Features = append(out.Features, f)
	}
	if !replaced {
		out.Features = append(out.Features, Feature{Name: name, Value: value})
	}
	return out
}

// Without returns a copy with the named feature removed.
func (v FeatureVector) Without(name string) FeatureVector {
	out := FeatureVector{Features: make([]Feature, 0, len(v.Features))}
	for _, f := range v.Features {
		if f.Name != name {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// WithTechnology tags the vector with a technology class code.
func (v FeatureVector) WithTechnology(t Technology) FeatureVector {
	return v.With(FeatureModuleTypeCode, float64(t.Code()))
}
