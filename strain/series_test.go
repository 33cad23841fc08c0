package strain

import (
	"math"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, 4096, 0); err == nil {
		t.Fatal("expected error for empty data")
	}
	if _, err := New([]float64{1}, 0, 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := New([]float64{1}, math.NaN(), 0); err == nil {
		t.Fatal("expected error for NaN sample rate")
	}
}

func TestSliceByGPSInterval(t *testing.T) {
	data := make([]float64, 4096)
	for i := range data {
		data[i] = float64(i)
	}
	s, err := New(data, 1024, 1126259462)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seg, err := s.Slice(1126259463, 1126259464)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(seg.Data) != 1024 {
		t.Fatalf("len = %d, want 1024", len(seg.Data))
	}
	if seg.Epoch != 1126259463 {
		t.Fatalf("epoch = %v, want 1126259463", seg.Epoch)
	}
	if seg.Data[0] != 1024 {
		t.Fatalf("seg.Data[0] = %v, want 1024", seg.Data[0])
	}

	// Mutating the slice must not touch the parent.
	seg.Data[0] = -1
	if s.Data[1024] == -1 {
		t.Fatal("slice aliases parent data")
	}
}

func TestSliceOutOfRange(t *testing.T) {
	s, _ := New(make([]float64, 100), 100, 0)

	if _, err := s.Slice(-1, 0.5); err == nil {
		t.Fatal("expected error for start before epoch")
	}
	if _, err := s.Slice(0.5, 2); err == nil {
		t.Fatal("expected error for end past series")
	}
	if _, err := s.Slice(0.5, 0.5); err == nil {
		t.Fatal("expected error for empty interval")
	}
}

func TestDetrendRemovesLinearTrend(t *testing.T) {
	data := make([]float64, 1000)
	for i := range data {
		data[i] = 3 + 0.01*float64(i)
	}
	s, _ := New(data, 1000, 0)
	s.Detrend()

	for i, v := range s.Data {
		if math.Abs(v) > 1e-9 {
			t.Fatalf("residual at %d = %v, want ~0", i, v)
		}
	}
}

func TestInjectClipsToOverlap(t *testing.T) {
	s, _ := New(make([]float64, 100), 100, 10)
	tmpl, _ := New([]float64{1, 1, 1, 1}, 100, 10.98)

	n, err := s.Inject(tmpl)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if n != 2 {
		t.Fatalf("overlap = %d, want 2", n)
	}
	if s.Data[98] != 1 || s.Data[99] != 1 {
		t.Fatalf("tail = %v %v, want 1 1", s.Data[98], s.Data[99])
	}
}

func TestInjectRateMismatch(t *testing.T) {
	s, _ := New(make([]float64, 10), 100, 0)
	tmpl, _ := New([]float64{1}, 200, 0)

	if _, err := s.Inject(tmpl); err == nil {
		t.Fatal("expected sample-rate mismatch error")
	}
}

func TestTaperEndpoints(t *testing.T) {
	data := make([]float64, 256)
	for i := range data {
		data[i] = 1
	}
	s, _ := New(data, 256, 0)
	if err := s.Taper(0.5); err != nil {
		t.Fatalf("Taper: %v", err)
	}

	if math.Abs(s.Data[0]) > 1e-12 {
		t.Fatalf("first sample = %v, want 0", s.Data[0])
	}
	if s.Data[128] != 1 {
		t.Fatalf("center sample = %v, want untouched 1", s.Data[128])
	}

	if err := s.Taper(1.5); err == nil {
		t.Fatal("expected error for alpha > 1")
	}
}

func TestDecimatePreservesLowFrequency(t *testing.T) {
	const rate = 4096.0
	n := 8192
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Sin(2 * math.Pi * 30 * float64(i) / rate)
	}
	s, _ := New(data, rate, 0)

	down, err := s.Decimate(4)
	if err != nil {
		t.Fatalf("Decimate: %v", err)
	}
	if down.SampleRate != 1024 {
		t.Fatalf("rate = %v, want 1024", down.SampleRate)
	}
	if len(down.Data) != n/4 {
		t.Fatalf("len = %d, want %d", len(down.Data), n/4)
	}

	// Away from the edges the 30 Hz tone must survive decimation.
	for i := 100; i < len(down.Data)-100; i++ {
		want := math.Sin(2 * math.Pi * 30 * float64(i) / 1024)
		if math.Abs(down.Data[i]-want) > 0.05 {
			t.Fatalf("sample %d = %v, want %v", i, down.Data[i], want)
		}
	}
}

func TestDecimateValidation(t *testing.T) {
	s, _ := New(make([]float64, 8), 8, 0)
	if _, err := s.Decimate(0); err == nil {
		t.Fatal("expected error for factor 0")
	}
	if _, err := s.Decimate(16); err == nil {
		t.Fatal("expected error for factor longer than series")
	}
}
