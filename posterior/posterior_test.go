package posterior

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/gwkit/ringdown/results"
)

func containerWith(t *testing.T, cols map[string][]float64) *results.File {
	t.Helper()
	f, err := results.Open(filepath.Join(t.TempDir(), "run.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	for name, vals := range cols {
		if err := f.PutDataset(name, vals); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestFromFileAndMaxLoglikelihood(t *testing.T) {
	f := containerWith(t, map[string][]float64{
		"samples/final_mass":     {60, 65, 70},
		"samples/final_spin":     {0.6, 0.7, 0.8},
		results.LoglikelihoodKey: {-3, 4, 1},
	})

	s, err := FromFile(f)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}

	i, err := s.MaxLoglikelihoodIndex()
	if err != nil {
		t.Fatal(err)
	}
	if i != 1 {
		t.Fatalf("max-loglikelihood index = %d, want 1", i)
	}

	pt, err := s.Point(i)
	if err != nil {
		t.Fatal(err)
	}
	if pt["final_mass"] != 65 || pt["final_spin"] != 0.7 {
		t.Fatalf("point = %v, want mass 65 spin 0.7", pt)
	}
}

func TestFromFileColumnMismatch(t *testing.T) {
	f := containerWith(t, map[string][]float64{
		"samples/a": {1, 2, 3},
		"samples/b": {1, 2},
	})
	if _, err := FromFile(f); err == nil {
		t.Fatal("expected error for ragged columns")
	}
}

func TestFromFileEmptyContainer(t *testing.T) {
	f := containerWith(t, nil)
	if _, err := FromFile(f); err == nil {
		t.Fatal("expected error for container without samples")
	}
}

func TestMaxLoglikelihoodMissingColumn(t *testing.T) {
	f := containerWith(t, map[string][]float64{"samples/a": {1}})
	s, err := FromFile(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.MaxLoglikelihoodIndex(); err == nil {
		t.Fatal("expected error without loglikelihood column")
	}
}

func TestQuantile(t *testing.T) {
	vals := []float64{4, 1, 3, 2, 5}

	cases := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.25, 2},
		{0.5, 3},
		{1, 5},
	}
	for _, tc := range cases {
		got, err := Quantile(vals, tc.q)
		if err != nil {
			t.Fatalf("Quantile(%v): %v", tc.q, err)
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("Quantile(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}

	if _, err := Quantile(nil, 0.5); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := Quantile(vals, 1.5); err == nil {
		t.Fatal("expected error for q > 1")
	}
}

func TestCredibleIntervalOrdering(t *testing.T) {
	vals := make([]float64, 1001)
	for i := range vals {
		vals[i] = float64(i)
	}

	lo, med, hi, err := CredibleInterval(vals, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if !(lo < med && med < hi) {
		t.Fatalf("interval not ordered: %v %v %v", lo, med, hi)
	}
	if math.Abs(lo-50) > 1 || math.Abs(med-500) > 1 || math.Abs(hi-950) > 1 {
		t.Fatalf("interval = (%v, %v, %v), want ~(50, 500, 950)", lo, med, hi)
	}
}

func TestHistogramCountsEveryone(t *testing.T) {
	vals := []float64{0, 0.1, 0.5, 0.9, 1}
	edges, counts, err := Histogram(vals, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 5 || len(counts) != 4 {
		t.Fatalf("shape = (%d edges, %d counts), want (5, 4)", len(edges), len(counts))
	}
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total != 5 {
		t.Fatalf("total count = %v, want 5", total)
	}
	// The maximum lands in the last bin, not one past it.
	if counts[3] != 2 {
		t.Fatalf("last bin = %v, want 2", counts[3])
	}
}

func TestHistogramDegenerate(t *testing.T) {
	edges, counts, err := Histogram([]float64{7, 7, 7}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if edges[0] >= edges[len(edges)-1] {
		t.Fatal("degenerate histogram produced zero-width range")
	}
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total != 3 {
		t.Fatalf("total = %v, want 3", total)
	}
}

func TestHist2D(t *testing.T) {
	x := []float64{0, 1, 0, 1}
	y := []float64{0, 0, 1, 1}
	_, _, counts, err := Hist2D(x, y, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if counts[i][j] != 1 {
				t.Fatalf("counts[%d][%d] = %v, want 1", i, j, counts[i][j])
			}
		}
	}

	if _, _, _, err := Hist2D(x, y[:3], 2); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestStandardDeviation(t *testing.T) {
	sd, err := StandardDeviation([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sd-2.138089935) > 1e-6 {
		t.Fatalf("sd = %v, want ~2.138", sd)
	}
	if _, err := StandardDeviation([]float64{1}); err == nil {
		t.Fatal("expected error for single sample")
	}
}
