// Package posterior post-processes posterior sample sets loaded from result
// containers: maximum-likelihood selection, quantiles, credible intervals,
// and the histograms the plotting tools render.
package posterior

import (
	"fmt"
	"math"
	"sort"

	"github.com/gwkit/ringdown/results"
)

// Samples is a column-oriented posterior sample set. All columns have equal
// length.
type Samples struct {
	Params        map[string][]float64
	Loglikelihood []float64
}

// FromFile loads every sampled parameter and the log-likelihood column from
// an open result container.
func FromFile(f *results.File) (*Samples, error) {
	names, err := f.Parameters()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("posterior: container holds no sampled parameters")
	}

	s := &Samples{Params: make(map[string][]float64, len(names))}
	n := -1
	for _, name := range names {
		col, err := f.Samples(name)
		if err != nil {
			return nil, err
		}
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return nil, fmt.Errorf("posterior: column %q has %d samples, want %d", name, len(col), n)
		}
		s.Params[name] = col
	}

	ll, err := f.Dataset(results.LoglikelihoodKey)
	if err == nil {
		if len(ll) != n {
			return nil, fmt.Errorf("posterior: loglikelihood has %d samples, want %d", len(ll), n)
		}
		s.Loglikelihood = ll
	}
	return s, nil
}

// Len returns the number of samples.
func (s *Samples) Len() int {
	for _, col := range s.Params {
		return len(col)
	}
	return 0
}

// MaxLoglikelihoodIndex returns the index of the sample with the highest
// log-likelihood.
func (s *Samples) MaxLoglikelihoodIndex() (int, error) {
	if len(s.Loglikelihood) == 0 {
		return 0, fmt.Errorf("posterior: no loglikelihood column loaded")
	}
	best := 0
	for i, v := range s.Loglikelihood {
		if v > s.Loglikelihood[best] {
			best = i
		}
	}
	return best, nil
}

// Point returns parameter values of sample i.
func (s *Samples) Point(i int) (map[string]float64, error) {
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("posterior: sample index out of range: %d of %d", i, s.Len())
	}
	out := make(map[string]float64, len(s.Params))
	for name, col := range s.Params {
		out[name] = col[i]
	}
	return out, nil
}

// Quantile returns the q-th quantile of vals using linear interpolation
// between order statistics.
func Quantile(vals []float64, q float64) (float64, error) {
	if len(vals) == 0 {
		return 0, fmt.Errorf("posterior: quantile of empty sample set")
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("posterior: quantile must be in [0,1]: %v", q)
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo == len(sorted)-1 {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac, nil
}

// CredibleInterval returns the median and the symmetric interval enclosing
// the given probability mass.
func CredibleInterval(vals []float64, prob float64) (lo, median, hi float64, err error) {
	if prob <= 0 || prob > 1 {
		return 0, 0, 0, fmt.Errorf("posterior: credible mass must be in (0,1]: %v", prob)
	}
	tail := (1 - prob) / 2
	if lo, err = Quantile(vals, tail); err != nil {
		return 0, 0, 0, err
	}
	if median, err = Quantile(vals, 0.5); err != nil {
		return 0, 0, 0, err
	}
	if hi, err = Quantile(vals, 1-tail); err != nil {
		return 0, 0, 0, err
	}
	return lo, median, hi, nil
}

// Histogram bins vals into the given number of equal-width bins and returns
// bin edges (len bins+1) and counts (len bins).
func Histogram(vals []float64, bins int) (edges []float64, counts []float64, err error) {
	if len(vals) == 0 {
		return nil, nil, fmt.Errorf("posterior: histogram of empty sample set")
	}
	if bins <= 0 {
		return nil, nil, fmt.Errorf("posterior: histogram bins must be > 0: %d", bins)
	}

	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max {
		// Degenerate distribution; widen artificially so edges are distinct.
		min -= 0.5
		max += 0.5
	}

	width := (max - min) / float64(bins)
	edges = make([]float64, bins+1)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}
	counts = make([]float64, bins)
	for _, v := range vals {
		b := int((v - min) / width)
		if b == bins {
			b--
		}
		counts[b]++
	}
	return edges, counts, nil
}

// Hist2D bins paired samples into a bins-by-bins count grid; counts[i][j]
// covers x bin i and y bin j.
func Hist2D(x, y []float64, bins int) (xEdges, yEdges []float64, counts [][]float64, err error) {
	if len(x) != len(y) {
		return nil, nil, nil, fmt.Errorf("posterior: paired samples differ in length: %d vs %d", len(x), len(y))
	}
	xEdges, _, err = Histogram(x, bins)
	if err != nil {
		return nil, nil, nil, err
	}
	yEdges, _, err = Histogram(y, bins)
	if err != nil {
		return nil, nil, nil, err
	}

	counts = make([][]float64, bins)
	for i := range counts {
		counts[i] = make([]float64, bins)
	}
	xw := xEdges[1] - xEdges[0]
	yw := yEdges[1] - yEdges[0]
	for k := range x {
		i := clampBin(int((x[k]-xEdges[0])/xw), bins)
		j := clampBin(int((y[k]-yEdges[0])/yw), bins)
		counts[i][j]++
	}
	return xEdges, yEdges, counts, nil
}

func clampBin(b, bins int) int {
	if b < 0 {
		return 0
	}
	if b >= bins {
		return bins - 1
	}
	return b
}

// StandardDeviation returns the sample standard deviation.
func StandardDeviation(vals []float64) (float64, error) {
	if len(vals) < 2 {
		return 0, fmt.Errorf("posterior: need at least 2 samples: %d", len(vals))
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(vals)-1)), nil
}
