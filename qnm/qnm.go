// Package qnm provides Kerr quasinormal-mode frequency and damping-time fits
// and damped-sinusoid template synthesis for ringdown analysis.
//
// Frequencies and quality factors use the standard polynomial fits in the
// remnant's dimensionless spin,
//
//	2*pi*f*M = f1 + f2*(1-a)^f3
//	Q        = q1 + q2*(1-a)^q3
//
// with M in geometric (seconds) units. Only the l=m=2 fundamental and first
// overtone are tabulated; that is what ringdown spectroscopy of the loudest
// events constrains.
package qnm

import (
	"fmt"
	"math"

	"github.com/gwkit/ringdown/strain"
)

// SolarMassSeconds converts a mass in solar masses to geometric seconds.
const SolarMassSeconds = 4.925490947641267e-6

// Mode labels a quasinormal mode by spherical-harmonic indices and overtone.
type Mode struct {
	L, M, N int
}

// String formats a mode the way parameter names embed it, e.g. "220".
func (m Mode) String() string {
	return fmt.Sprintf("%d%d%d", m.L, m.M, m.N)
}

type fitCoeffs struct {
	f1, f2, f3 float64
	q1, q2, q3 float64
}

var fits = map[Mode]fitCoeffs{
	{2, 2, 0}: {f1: 1.5251, f2: -1.1568, f3: 0.1292, q1: 0.7000, q2: 1.4187, q3: -0.4990},
	{2, 2, 1}: {f1: 1.3673, f2: -1.0260, f3: 0.1628, q1: 0.1000, q2: 0.5436, q3: -0.4731},
}

func coeffsFor(m Mode) (fitCoeffs, error) {
	c, ok := fits[m]
	if !ok {
		return fitCoeffs{}, fmt.Errorf("qnm: no fit for mode %s", m)
	}
	return c, nil
}

func validateMassSpin(mass, spin float64) error {
	if mass <= 0 || math.IsNaN(mass) || math.IsInf(mass, 0) {
		return fmt.Errorf("qnm: final mass must be > 0 solar masses: %v", mass)
	}
	if spin < 0 || spin >= 1 || math.IsNaN(spin) {
		return fmt.Errorf("qnm: spin must be in [0,1): %v", spin)
	}
	return nil
}

// FromMassSpin returns the mode frequency in Hz and damping time in seconds
// for a remnant of the given mass (solar masses) and dimensionless spin.
func FromMassSpin(m Mode, mass, spin float64) (f, tau float64, err error) {
	c, err := coeffsFor(m)
	if err != nil {
		return 0, 0, err
	}
	if err := validateMassSpin(mass, spin); err != nil {
		return 0, 0, err
	}

	mSec := mass * SolarMassSeconds
	omega := c.f1 + c.f2*math.Pow(1-spin, c.f3)
	f = omega / (2 * math.Pi * mSec)
	q := c.q1 + c.q2*math.Pow(1-spin, c.q3)
	tau = q / (math.Pi * f)
	return f, tau, nil
}

// MassSpinFromFTau inverts the fits: given a mode's frequency (Hz) and
// damping time (s) it returns remnant mass (solar masses) and spin.
func MassSpinFromFTau(m Mode, f, tau float64) (mass, spin float64, err error) {
	c, err := coeffsFor(m)
	if err != nil {
		return 0, 0, err
	}
	if f <= 0 || tau <= 0 {
		return 0, 0, fmt.Errorf("qnm: frequency and damping time must be > 0: f=%v tau=%v", f, tau)
	}

	q := math.Pi * f * tau
	base := (q - c.q1) / c.q2
	if base <= 0 {
		return 0, 0, fmt.Errorf("qnm: quality factor %v below fit range for mode %s", q, m)
	}
	oneMinusA := math.Pow(base, 1/c.q3)
	spin = 1 - oneMinusA
	if spin < 0 || spin >= 1 {
		return 0, 0, fmt.Errorf("qnm: inverted spin %v outside [0,1) for mode %s", spin, m)
	}

	omega := c.f1 + c.f2*math.Pow(oneMinusA, c.f3)
	mass = omega / (2 * math.Pi * f) / SolarMassSeconds
	return mass, spin, nil
}

// Quality returns the quality factor pi*f*tau.
func Quality(f, tau float64) float64 {
	return math.Pi * f * tau
}

// Template synthesizes a single damped sinusoid
//
//	h(t) = amp * exp(-t/tau) * cos(2*pi*f*t + phase)
//
// sampled at rate for the given duration, starting at GPS time epoch.
func Template(f, tau, amp, phase, rate, duration, epoch float64) (*strain.Series, error) {
	if f <= 0 || tau <= 0 {
		return nil, fmt.Errorf("qnm: template needs f > 0 and tau > 0: f=%v tau=%v", f, tau)
	}
	if rate <= 0 || duration <= 0 {
		return nil, fmt.Errorf("qnm: template needs rate > 0 and duration > 0: rate=%v duration=%v", rate, duration)
	}
	if f >= rate/2 {
		return nil, fmt.Errorf("qnm: template frequency %v above Nyquist %v", f, rate/2)
	}

	n := int(duration * rate)
	if n == 0 {
		n = 1
	}
	data := make([]float64, n)
	for i := range data {
		t := float64(i) / rate
		data[i] = amp * math.Exp(-t/tau) * math.Cos(2*math.Pi*f*t+phase)
	}
	return strain.New(data, rate, epoch)
}
