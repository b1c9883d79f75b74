package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/model"
	"pvivy/internal/singlediode"
	"pvivy/internal/translate"
)

var monoSi = model.ModuleParameters{
	Ns: 96, IscRef: 5.1, VocRef: 59.4, ImpRef: 4.69, VmpRef: 46.9,
	AlphaSc: 0.004539, BetaOc: -0.22216, ARef: 2.6373,
	ILRef: 5.114, IoRef: 8.196e-10, Rs: 1.065, RshRef: 381.68,
}

func simulate(t *testing.T, p model.ModuleParameters, op model.OperatingPoint) model.IVCurve {
	t.Helper()
	ep, err := translate.Translate(p, op, translate.KindDeSoto)
	require.NoError(t, err)
	curve, err := singlediode.Solve(ep)
	require.NoError(t, err)
	return curve
}

func feature(t *testing.T, fv model.FeatureVector, name string) float64 {
	t.Helper()
	v, ok := fv.Get(name)
	require.True(t, ok, "feature %s missing", name)
	return v
}

// linearCurve is I = isc - 0.01*V sampled on [0, 50].
func linearCurve(n int, isc float64) model.IVCurve {
	c := model.IVCurve{Voltage: make([]float64, n), Current: make([]float64, n)}
	for k := 0; k < n; k++ {
		c.Voltage[k] = 50 * float64(k) / float64(n-1)
		c.Current[k] = isc - 0.01*c.Voltage[k]
	}
	return c
}

func TestExtract_HealthyReferenceModule(t *testing.T) {
	curve := simulate(t, monoSi, model.ReferenceOperatingPoint)
	fv, err := Extract(curve, monoSi.Nameplate())
	require.NoError(t, err)

	assert.Equal(t, model.ShapeFeatureNames, fv.Names())
	assert.InDelta(t, 1.0, feature(t, fv, model.FeatureIscNorm), 0.02)
	assert.InDelta(t, 1.0, feature(t, fv, model.FeatureVocNorm), 0.02)
	assert.InDelta(t, 1.0, feature(t, fv, model.FeatureImpNorm), 0.03)
	assert.InDelta(t, 1.0, feature(t, fv, model.FeatureVmpNorm), 0.03)
	assert.InDelta(t, 0.726, feature(t, fv, model.FeatureFF), 0.01)
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureNumSteps))
	assert.Equal(t, 1.0, feature(t, fv, model.FeaturePmpRatio))
	assert.Less(t, feature(t, fv, model.FeatureSlopeAtVoc), feature(t, fv, model.FeatureSlopeAtIsc))
	assert.NotZero(t, feature(t, fv, model.FeatureIdealityFit))
	assert.Greater(t, feature(t, fv, model.FeatureKneeCurvature), 0.0)

	area := feature(t, fv, model.FeatureAreaRatio)
	assert.Greater(t, area, feature(t, fv, model.FeatureFF))
	assert.Less(t, area, 1.0)
}

func TestExtract_Deterministic(t *testing.T) {
	curve := simulate(t, monoSi, model.OperatingPoint{Irradiance: 800, CellTemperature: 40})
	a, err := Extract(curve, monoSi.Nameplate())
	require.NoError(t, err)
	b, err := Extract(curve, monoSi.Nameplate())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtract_FillFactorBounded(t *testing.T) {
	modules := []model.ModuleParameters{monoSi}
	lossy := monoSi
	lossy.Rs, lossy.RshRef = 3.0, 60
	modules = append(modules, lossy)

	for _, p := range modules {
		for _, op := range []model.OperatingPoint{
			{Irradiance: 1000, CellTemperature: 25},
			{Irradiance: 200, CellTemperature: 10},
			{Irradiance: 1100, CellTemperature: 70},
		} {
			fv, err := Extract(simulate(t, p, op), p.Nameplate())
			require.NoError(t, err)
			ff := feature(t, fv, model.FeatureFF)
			assert.GreaterOrEqual(t, ff, 0.0, "op %+v", op)
			assert.LessOrEqual(t, ff, 1.0, "op %+v", op)
		}
	}
}

func TestExtract_SingleStep(t *testing.T) {
	curve := linearCurve(100, 5)
	for k := 60; k < curve.Len(); k++ {
		curve.Current[k] -= 1.0
	}
	fv, err := Extract(curve, model.Nameplate{Isc: 5, Voc: 50, Imp: 4, Vmp: 40})
	require.NoError(t, err)
	assert.Equal(t, 1.0, feature(t, fv, model.FeatureNumSteps))

	clean, err := Extract(linearCurve(100, 5), model.Nameplate{Isc: 5, Voc: 50, Imp: 4, Vmp: 40})
	require.NoError(t, err)
	assert.Equal(t, 0.0, feature(t, clean, model.FeatureNumSteps))
}

func TestExtract_PmpRatioTwoPeaks(t *testing.T) {
	power := []float64{0, 4, 6, 4, 2, 3, 5, 3, 1, 0.5, 0}
	curve := model.IVCurve{Voltage: make([]float64, len(power)), Current: make([]float64, len(power))}
	for k := range power {
		curve.Voltage[k] = float64(k)
		if k == 0 {
			curve.Current[k] = 5
			continue
		}
		curve.Current[k] = power[k] / curve.Voltage[k]
	}
	fv, err := Extract(curve, model.Nameplate{Isc: 5, Voc: 10, Imp: 3, Vmp: 2})
	require.NoError(t, err)
	assert.InDelta(t, 6.0/5.0, feature(t, fv, model.FeaturePmpRatio), 1e-12)
}

func TestExtract_ZeroReferenceNormalizesToZero(t *testing.T) {
	curve := simulate(t, monoSi, model.ReferenceOperatingPoint)
	fv, err := Extract(curve, model.Nameplate{})
	require.NoError(t, err)
	for _, name := range []string{model.FeatureIscNorm, model.FeatureVocNorm, model.FeatureImpNorm, model.FeatureVmpNorm} {
		assert.Equal(t, 0.0, feature(t, fv, name), name)
	}
}

func TestExtract_DegenerateCurveIsFinite(t *testing.T) {
	zero := model.IVCurve{Voltage: make([]float64, 100), Current: make([]float64, 100)}
	fv, err := Extract(zero, monoSi.Nameplate())
	require.NoError(t, err)
	for _, f := range fv.Features {
		assert.False(t, math.IsNaN(f.Value) || math.IsInf(f.Value, 0), "%s=%g", f.Name, f.Value)
	}
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureFF))
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureSlopeAtIsc))
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureMaxCurvature))
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureAreaRatio))
	assert.Equal(t, 1.0, feature(t, fv, model.FeaturePmpRatio))
}

func TestExtract_CoincidentVoltages(t *testing.T) {
	curve := model.IVCurve{
		Voltage: []float64{0, 0, 10, 20, 30, 30},
		Current: []float64{5, 5, 4.9, 4.5, 2, 0},
	}
	fv, err := Extract(curve, model.Nameplate{Isc: 5, Voc: 30, Imp: 4.5, Vmp: 20})
	require.NoError(t, err)
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureSlopeAtIsc))
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureSlopeAtVoc))
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureMaxCurvature))
	for _, f := range fv.Features {
		assert.False(t, math.IsNaN(f.Value) || math.IsInf(f.Value, 0), "%s=%g", f.Name, f.Value)
	}
}

func TestExtract_KneeNeedsMargin(t *testing.T) {
	// Power peaks at index 1, too close to the start.
	curve := model.IVCurve{
		Voltage: []float64{0, 1, 2, 3, 4, 5},
		Current: []float64{10, 10, 1, 0.5, 0.2, 0},
	}
	fv, err := Extract(curve, model.Nameplate{Isc: 10, Voc: 5, Imp: 10, Vmp: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, feature(t, fv, model.FeatureKneeCurvature))
}

func TestExtract_UnsortedVoltageArea(t *testing.T) {
	curve := model.IVCurve{
		Voltage: []float64{0, 20, 10, 30},
		Current: []float64{4, 3, 3.5, 0},
	}
	fv, err := Extract(curve, model.Nameplate{Isc: 4, Voc: 30, Imp: 3, Vmp: 20})
	require.NoError(t, err)
	// 0.5*20*7 + 0.5*(-10)*6.5 + 0.5*20*3.5 = 70 - 32.5 + 35
	assert.InDelta(t, 72.5/120.0, feature(t, fv, model.FeatureAreaRatio), 1e-12)
}

func TestExtract_InvalidCurve(t *testing.T) {
	_, err := Extract(model.IVCurve{}, monoSi.Nameplate())
	assert.True(t, errors.Is(err, model.ErrData))

	_, err = Extract(model.IVCurve{Voltage: []float64{1}, Current: []float64{1}}, monoSi.Nameplate())
	assert.True(t, errors.Is(err, model.ErrData))

	_, err = Extract(model.IVCurve{Voltage: []float64{1, 2}, Current: []float64{1}}, monoSi.Nameplate())
	assert.True(t, errors.Is(err, model.ErrData))
}

func TestReferenceFromCurve(t *testing.T) {
	curve := simulate(t, monoSi, model.ReferenceOperatingPoint)
	ref, err := ReferenceFromCurve(curve)
	require.NoError(t, err)
	assert.InEpsilon(t, 5.1, ref.Isc, 0.02)
	assert.InEpsilon(t, 59.4, ref.Voc, 0.02)
	assert.InEpsilon(t, 4.69, ref.Imp, 0.03)
	assert.InEpsilon(t, 46.9, ref.Vmp, 0.03)

	_, err = ReferenceFromCurve(model.IVCurve{})
	assert.Error(t, err)
}
