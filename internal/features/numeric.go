package features

// Gradient returns df/dx using second-order central differences in the
// interior (valid for non-uniform spacing) and one-sided first differences at
// the ends. len(f) must equal len(x) and be at least 2. Coincident x values
// produce non-finite entries, which callers must treat as undefined.
func Gradient(f, x []float64) []float64 {
	n := len(f)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = (f[1] - f[0]) / (x[1] - x[0])
	g[n-1] = (f[n-1] - f[n-2]) / (x[n-1] - x[n-2])
	for k := 1; k < n-1; k++ {
		hs := x[k] - x[k-1]
		hd := x[k+1] - x[k]
		g[k] = -(hd/(hs*(hs+hd)))*f[k-1] + ((hd-hs)/(hs*hd))*f[k] + (hs/(hd*(hs+hd)))*f[k+1]
	}
	return g
}

// LocalMaxima returns the indices of samples strictly greater than both
// neighbours. A flat-topped peak reports the middle of its plateau (rounded
// down). The first and last samples are never peaks.
func LocalMaxima(x []float64) []int {
	var peaks []int
	last := len(x) - 1
	for k := 1; k < last; k++ {
		if !(x[k-1] < x[k]) {
			continue
		}
		ahead := k + 1
		for ahead < last && x[ahead] == x[k] {
			ahead++
		}
		if x[ahead] < x[k] {
			peaks = append(peaks, (k+ahead-1)/2)
			k = ahead
		}
	}
	return peaks
}
