package pipeline

import (
	"math"
	"sort"
)

// rollingMean computes a trailing mean over the given window. Entries before
// the window fills, and windows containing NaN, yield NaN.
func rollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd computes a trailing sample standard deviation.
func rollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum, sumSq := 0.0, 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
			sumSq += values[j] * values[j]
		}
		if !ok {
			continue
		}
		n := float64(window)
		variance := (sumSq - sum*sum/n) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

// rollingMedian computes a trailing median, producing values once minPeriods
// observations are available.
func rollingMedian(values []float64, window, minPeriods int) []float64 {
	out := nanSlice(len(values))
	if minPeriods < 1 {
		minPeriods = 1
	}
	buf := make([]float64, 0, window)
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		buf = buf[:0]
		for j := lo; j <= i; j++ {
			if !math.IsNaN(values[j]) {
				buf = append(buf, values[j])
			}
		}
		if len(buf) < minPeriods {
			continue
		}
		sort.Float64s(buf)
		mid := len(buf) / 2
		if len(buf)%2 == 1 {
			out[i] = buf[mid]
		} else {
			out[i] = (buf[mid-1] + buf[mid]) / 2
		}
	}
	return out
}

// rollingStdMin is rollingStd with a minimum observation count, matching the
// rolling(window, min_periods) convention used for outlier screens.
func rollingStdMin(values []float64, window, minPeriods int) []float64 {
	out := nanSlice(len(values))
	if minPeriods < 2 {
		minPeriods = 2
	}
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, sumSq := 0.0, 0.0
		n := 0
		for j := lo; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			sumSq += values[j] * values[j]
			n++
		}
		if n < minPeriods {
			continue
		}
		fn := float64(n)
		variance := (sumSq - sum*sum/fn) / (fn - 1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

// quantile returns the linearly interpolated q-quantile of the non-NaN values.
func quantile(values []float64, q float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	if q <= 0 {
		return clean[0]
	}
	if q >= 1 {
		return clean[len(clean)-1]
	}
	pos := q * float64(len(clean)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return clean[lo]
	}
	frac := pos - float64(lo)
	return clean[lo]*(1-frac) + clean[hi]*frac
}

// rank returns the fraction of values less than or equal to each value,
// computed over the non-NaN entries. NaN entries stay NaN.
func rank(values []float64) []float64 {
	type indexed struct {
		v float64
		i int
	}
	clean := make([]indexed, 0, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, indexed{v, i})
		}
	}
	out := nanSlice(len(values))
	if len(clean) == 0 {
		return out
	}
	sort.Slice(clean, func(a, b int) bool { return clean[a].v < clean[b].v })

	n := float64(len(clean))
	i := 0
	for i < len(clean) {
		j := i
		for j < len(clean) && clean[j].v == clean[i].v {
			j++
		}
		// average rank for ties, scaled to (0, 1]
		avg := (float64(i+1) + float64(j)) / 2 / n
		for k := i; k < j; k++ {
			out[clean[k].i] = avg
		}
		i = j
	}
	return out
}

// pearson computes the correlation between two series over rows where both
// are finite.
func pearson(a, b []float64) float64 {
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	n := 0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		sumA += a[i]
		sumB += b[i]
		sumAB += a[i] * b[i]
		sumA2 += a[i] * a[i]
		sumB2 += b[i] * b[i]
		n++
	}
	if n < 2 {
		return 0
	}
	fn := float64(n)
	cov := sumAB - sumA*sumB/fn
	varA := sumA2 - sumA*sumA/fn
	varB := sumB2 - sumB*sumB/fn
	if varA <= 0 || varB <= 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// variance returns the sample variance of the non-NaN entries.
func variance(values []float64) float64 {
	sum, sumSq := 0.0, 0.0
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		sumSq += v * v
		n++
	}
	if n < 2 {
		return 0
	}
	fn := float64(n)
	v := (sumSq - sum*sum/fn) / (fn - 1)
	if v < 0 {
		return 0
	}
	return v
}
