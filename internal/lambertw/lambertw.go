// Package lambertw evaluates the principal branch of the Lambert W function,
// the inverse of w*exp(w).
package lambertw

import "math"

const (
	maxIter = 64
	tol     = 1e-15

	// logOverflow is the largest argument exp can take without overflowing
	// to +Inf, with some headroom.
	logOverflow = 700
)

// W returns W0(x) for x >= -1/e, NaN below the branch point and +Inf for +Inf.
func W(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return math.NaN()
	case math.IsInf(x, 1):
		return math.Inf(1)
	case x == 0:
		return 0
	}
	branch := -1 / math.E
	if x < branch {
		return math.NaN()
	}
	if x == branch {
		return -1
	}
	return halley(x, initialGuess(x))
}

// WExp returns W0(exp(logx)) without forming exp(logx), so very large
// arguments stay finite.
func WExp(logx float64) float64 {
	switch {
	case math.IsNaN(logx):
		return math.NaN()
	case math.IsInf(logx, 1):
		return math.Inf(1)
	case math.IsInf(logx, -1):
		return 0
	}
	if logx < logOverflow {
		return W(math.Exp(logx))
	}

	// Newton on f(w) = w + ln(w) - logx; w ≈ logx - ln(logx) is already
	// close for logx this large.
	w := logx - math.Log(logx)
	for i := 0; i < maxIter; i++ {
		f := w + math.Log(w) - logx
		next := w - f/(1+1/w)
		if math.Abs(next-w) <= tol*(1+math.Abs(next)) {
			return next
		}
		w = next
	}
	return w
}

func initialGuess(x float64) float64 {
	switch {
	case x < -0.25:
		// Series about the branch point.
		p := math.Sqrt(2 * (math.E*x + 1))
		return -1 + p - p*p/3
	case x < math.E:
		return math.Log1p(x)
	default:
		l := math.Log(x)
		return l - math.Log(l)
	}
}

func halley(x, w float64) float64 {
	for i := 0; i < maxIter; i++ {
		ew := math.Exp(w)
		f := w*ew - x
		wp1 := w + 1
		if wp1 == 0 {
			return w
		}
		next := w - f/(ew*wp1-(w+2)*f/(2*wp1))
		if math.Abs(next-w) <= tol*(1+math.Abs(next)) {
			return next
		}
		w = next
	}
	return w
}
