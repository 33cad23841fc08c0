package qnm

import (
	"math"
	"testing"
)

func TestFromMassSpinGW150914Ballpark(t *testing.T) {
	// A ~68 solar mass remnant with spin ~0.69 rings down near 250 Hz
	// with a damping time of about 4 ms.
	f, tau, err := FromMassSpin(Mode{2, 2, 0}, 68, 0.69)
	if err != nil {
		t.Fatalf("FromMassSpin: %v", err)
	}
	if f < 230 || f > 270 {
		t.Fatalf("f = %v Hz, want ~250", f)
	}
	if tau < 3e-3 || tau > 5e-3 {
		t.Fatalf("tau = %v s, want ~4ms", tau)
	}
}

func TestOvertoneDampsFaster(t *testing.T) {
	_, tau0, err := FromMassSpin(Mode{2, 2, 0}, 68, 0.69)
	if err != nil {
		t.Fatal(err)
	}
	_, tau1, err := FromMassSpin(Mode{2, 2, 1}, 68, 0.69)
	if err != nil {
		t.Fatal(err)
	}
	if tau1 >= tau0 {
		t.Fatalf("overtone tau %v not shorter than fundamental %v", tau1, tau0)
	}
}

func TestMassSpinRoundTrip(t *testing.T) {
	cases := []struct {
		mass, spin float64
	}{
		{10, 0},
		{68, 0.69},
		{250, 0.95},
	}
	for _, tc := range cases {
		f, tau, err := FromMassSpin(Mode{2, 2, 0}, tc.mass, tc.spin)
		if err != nil {
			t.Fatalf("forward (%v, %v): %v", tc.mass, tc.spin, err)
		}
		mass, spin, err := MassSpinFromFTau(Mode{2, 2, 0}, f, tau)
		if err != nil {
			t.Fatalf("inverse (%v, %v): %v", f, tau, err)
		}
		if math.Abs(mass-tc.mass) > 1e-6*tc.mass {
			t.Fatalf("mass = %v, want %v", mass, tc.mass)
		}
		if math.Abs(spin-tc.spin) > 1e-9 {
			t.Fatalf("spin = %v, want %v", spin, tc.spin)
		}
	}
}

func TestValidation(t *testing.T) {
	if _, _, err := FromMassSpin(Mode{3, 3, 0}, 68, 0.69); err == nil {
		t.Fatal("expected error for untabulated mode")
	}
	if _, _, err := FromMassSpin(Mode{2, 2, 0}, -1, 0.5); err == nil {
		t.Fatal("expected error for negative mass")
	}
	if _, _, err := FromMassSpin(Mode{2, 2, 0}, 68, 1.0); err == nil {
		t.Fatal("expected error for extremal spin")
	}
	if _, _, err := MassSpinFromFTau(Mode{2, 2, 0}, 250, -1); err == nil {
		t.Fatal("expected error for negative tau")
	}
}

func TestTemplateEnvelope(t *testing.T) {
	const rate = 4096.0
	s, err := Template(250, 0.004, 1e-21, 0, rate, 0.1, 1126259462.4)
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if s.SampleRate != rate {
		t.Fatalf("rate = %v, want %v", s.SampleRate, rate)
	}
	if s.Data[0] != 1e-21 {
		t.Fatalf("h(0) = %v, want 1e-21 (cos phase 0)", s.Data[0])
	}

	// One damping time in, the envelope is down by 1/e.
	i := int(0.004 * s.SampleRate)
	env := 1e-21 * math.Exp(-1)
	if math.Abs(s.Data[i]) > env+1e-24 {
		t.Fatalf("|h(tau)| = %v, want <= %v", math.Abs(s.Data[i]), env)
	}
}

func TestTemplateValidation(t *testing.T) {
	if _, err := Template(0, 0.004, 1, 0, 4096, 0.1, 0); err == nil {
		t.Fatal("expected error for zero frequency")
	}
	if _, err := Template(3000, 0.004, 1, 0, 4096, 0.1, 0); err == nil {
		t.Fatal("expected error for frequency above Nyquist")
	}
}
