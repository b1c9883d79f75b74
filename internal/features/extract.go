// Package features turns an I-V curve into the fixed shape-feature vector
// the anomaly classifier consumes.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"pvivy/internal/model"
)

const (
	// stepFraction of Isc a consecutive-sample current change must exceed to
	// count as a bypass/shading step.
	stepFraction = 0.1

	// Exponential-region bounds for the ideality fit, as fractions of Voc.
	idealityLow  = 0.1
	idealityHigh = 0.9

	// currentFloor keeps log(I) finite in the ideality fit.
	currentFloor = 1e-10
)

// Extract computes the shape features of curve normalized against ref, in
// model.ShapeFeatureNames order. Every value is finite: undefined quantities
// take their documented fallback.
func Extract(curve model.IVCurve, ref model.Nameplate) (model.FeatureVector, error) {
	if err := curve.Validate(); err != nil {
		return model.FeatureVector{}, err
	}
	if curve.Len() < 2 {
		return model.FeatureVector{}, &model.DataError{Reason: "I-V curve needs at least 2 samples"}
	}

	v, i := curve.Voltage, curve.Current
	n := len(v)
	isc := i[0]
	voc := v[n-1]

	power := curve.Power()
	mpp := floats.MaxIdx(power)
	imp, vmp := i[mpp], v[mpp]

	ff := 0.0
	if isc != 0 && voc != 0 {
		ff = finite((vmp*imp)/(voc*isc), 0)
	}

	curvature := Gradient(Gradient(i, v), v)
	knee := 0.0
	if mpp >= 2 && mpp < len(curvature)-2 {
		knee = finite(math.Abs(curvature[mpp]), 0)
	}

	vals := []float64{
		ratio(isc, ref.Isc),
		ratio(voc, ref.Voc),
		ratio(imp, ref.Imp),
		ratio(vmp, ref.Vmp),
		ff,
		slope(v[0], v[1], i[0], i[1]),
		slope(v[n-2], v[n-1], i[n-2], i[n-1]),
		maxAbs(curvature),
		idealityFit(v, i, voc),
		float64(countSteps(i, isc)),
		pmpRatio(power),
		areaRatio(v, i, isc*voc),
		knee,
	}

	fv := model.FeatureVector{Features: make([]model.Feature, len(vals))}
	for k, name := range model.ShapeFeatureNames {
		fv.Features[k] = model.Feature{Name: name, Value: vals[k]}
	}
	return fv, nil
}

// ReferenceFromCurve derives a nameplate from a modeled curve: maximum
// current and voltage, and the current/voltage at maximum power.
func ReferenceFromCurve(curve model.IVCurve) (model.Nameplate, error) {
	if err := curve.Validate(); err != nil {
		return model.Nameplate{}, err
	}
	mpp := floats.MaxIdx(curve.Power())
	return model.Nameplate{
		Isc: floats.Max(curve.Current),
		Voc: floats.Max(curve.Voltage),
		Imp: curve.Current[mpp],
		Vmp: curve.Voltage[mpp],
	}, nil
}

func ratio(x, ref float64) float64 {
	if ref == 0 {
		return 0
	}
	return finite(x/ref, 0)
}

func slope(v0, v1, i0, i1 float64) float64 {
	if v1 == v0 {
		return 0
	}
	return finite((i1-i0)/(v1-v0), 0)
}

// maxAbs is the largest |x|, or 0 if any element is not finite.
func maxAbs(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// idealityFit regresses ln(I) on V inside the exponential region and returns
// the inverse slope.
func idealityFit(v, i []float64, voc float64) float64 {
	var xs, ys []float64
	for k := range v {
		if v[k] > idealityLow*voc && v[k] < idealityHigh*voc {
			xs = append(xs, v[k])
			ys = append(ys, math.Log(math.Max(i[k], currentFloor)))
		}
	}
	if len(xs) < 2 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if beta == 0 {
		return 0
	}
	return finite(1/beta, 0)
}

func countSteps(i []float64, isc float64) int {
	steps := 0
	for k := 1; k < len(i); k++ {
		if math.Abs(i[k]-i[k-1]) > stepFraction*isc {
			steps++
		}
	}
	return steps
}

// pmpRatio is the ratio of the two highest local power maxima, 1 when fewer
// than two exist.
func pmpRatio(power []float64) float64 {
	peaks := LocalMaxima(power)
	if len(peaks) < 2 {
		return 1
	}
	heights := make([]float64, len(peaks))
	for k, p := range peaks {
		heights[k] = power[p]
	}
	sort.Float64s(heights)
	top, second := heights[len(heights)-1], heights[len(heights)-2]
	if second == 0 {
		return 1
	}
	return finite(top/second, 1)
}

func areaRatio(v, i []float64, ideal float64) float64 {
	if ideal == 0 {
		return 0
	}
	var area float64
	if sort.Float64sAreSorted(v) {
		area = integrate.Trapezoidal(v, i)
	} else {
		// Measured sweeps can arrive out of order; integrate as given.
		for k := 1; k < len(v); k++ {
			area += 0.5 * (v[k] - v[k-1]) * (i[k] + i[k-1])
		}
	}
	return finite(area/ideal, 0)
}

func finite(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}
