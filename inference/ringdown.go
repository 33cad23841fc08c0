package inference

import (
	"fmt"
	"sort"
	"strings"
)

// RunSpec collects everything needed to emit a ringdown run configuration.
// Times are GPS seconds unless stated otherwise.
type RunSpec struct {
	TriggerTime float64

	// Detectors maps detector names (H1, L1, ...) to frame file paths.
	Detectors map[string]string
	// Channels maps detector names to strain channel names.
	Channels map[string]string

	SampleRate float64

	// Analysis window in seconds relative to the trigger time.
	AnalysisStart float64
	AnalysisEnd   float64

	// PSD estimation settings. Start/end are relative to the trigger time.
	PSDStart         float64
	PSDEnd           float64
	PSDSegmentLen    float64
	PSDSegmentStride float64
	PSDEstimation    string // e.g. "median-mean"

	LowFrequencyCutoff float64
	StrainHighPass     float64
	PadData            float64

	// Modes lists quasinormal modes by label, e.g. "220", "221".
	Modes []string

	// Prior ranges for the fundamental-mode frequency (Hz), damping time
	// (s), amplitude, and phase are uniform between min and max.
	FreqMin, FreqMax float64
	TauMin, TauMax   float64
	AmpMax           float64

	// Sampler settings.
	SamplerName        string // e.g. "dynesty"
	NLive              int
	DlogZ              float64
	CheckpointInterval int // seconds
}

// Validate checks that every field needed for emission is set and coherent.
func (s *RunSpec) Validate() error {
	if len(s.Detectors) == 0 {
		return fmt.Errorf("inference: run spec needs at least one detector")
	}
	for det, frame := range s.Detectors {
		if frame == "" {
			return fmt.Errorf("inference: detector %s has no frame file", det)
		}
		if s.Channels[det] == "" {
			return fmt.Errorf("inference: detector %s has no channel name", det)
		}
	}
	if s.TriggerTime <= 0 {
		return fmt.Errorf("inference: trigger time must be > 0: %v", s.TriggerTime)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("inference: sample rate must be > 0: %v", s.SampleRate)
	}
	if s.AnalysisEnd <= s.AnalysisStart {
		return fmt.Errorf("inference: analysis window [%v, %v] is empty", s.AnalysisStart, s.AnalysisEnd)
	}
	if s.PSDSegmentLen <= 0 || s.PSDEnd <= s.PSDStart {
		return fmt.Errorf("inference: PSD settings incomplete: segment %v, window [%v, %v]",
			s.PSDSegmentLen, s.PSDStart, s.PSDEnd)
	}
	if len(s.Modes) == 0 {
		return fmt.Errorf("inference: run spec needs at least one mode")
	}
	if s.FreqMax <= s.FreqMin || s.FreqMin <= 0 {
		return fmt.Errorf("inference: frequency prior [%v, %v] invalid", s.FreqMin, s.FreqMax)
	}
	if s.TauMax <= s.TauMin || s.TauMin <= 0 {
		return fmt.Errorf("inference: damping-time prior [%v, %v] invalid", s.TauMin, s.TauMax)
	}
	if s.AmpMax <= 0 {
		return fmt.Errorf("inference: amplitude prior max must be > 0: %v", s.AmpMax)
	}
	if s.SamplerName == "" || s.NLive <= 0 {
		return fmt.Errorf("inference: sampler settings incomplete: name %q, nlive %d", s.SamplerName, s.NLive)
	}
	return nil
}

func (s *RunSpec) detectorNames() []string {
	names := make([]string, 0, len(s.Detectors))
	for det := range s.Detectors {
		names = append(names, det)
	}
	sort.Strings(names)
	return names
}

// ModelDocument emits the [model] block.
func (s *RunSpec) ModelDocument() *Document {
	d := NewDocument()
	d.Section("model").
		Set("name", "gated_gaussian_margpol").
		Setf("low-frequency-cutoff", "%g", s.LowFrequencyCutoff)
	return d
}

// DataDocument emits the [data] block: instruments, frame files, channels,
// analysis window, and PSD estimation settings.
func (s *RunSpec) DataDocument() *Document {
	dets := s.detectorNames()

	frames := make([]string, len(dets))
	channels := make([]string, len(dets))
	for i, det := range dets {
		frames[i] = det + ":" + s.Detectors[det]
		channels[i] = det + ":" + s.Channels[det]
	}

	estimation := s.PSDEstimation
	if estimation == "" {
		estimation = "median-mean"
	}
	stride := s.PSDSegmentStride
	if stride <= 0 {
		stride = s.PSDSegmentLen / 2
	}

	d := NewDocument()
	sec := d.Section("data").
		Set("instruments", strings.Join(dets, " ")).
		Setf("trigger-time", "%.6f", s.TriggerTime).
		Setf("analysis-start-time", "%g", s.AnalysisStart).
		Setf("analysis-end-time", "%g", s.AnalysisEnd).
		Setf("sample-rate", "%g", s.SampleRate).
		Set("frame-files", strings.Join(frames, " ")).
		Set("channel-name", strings.Join(channels, " ")).
		Set("psd-estimation", estimation).
		Setf("psd-segment-length", "%g", s.PSDSegmentLen).
		Setf("psd-segment-stride", "%g", stride).
		Setf("psd-start-time", "%g", s.PSDStart).
		Setf("psd-end-time", "%g", s.PSDEnd)
	if s.PadData > 0 {
		sec.Setf("pad-data", "%g", s.PadData)
	}
	if s.StrainHighPass > 0 {
		sec.Setf("strain-high-pass", "%g", s.StrainHighPass)
	}
	return d
}

// PriorDocument emits [static_params], [variable_params], the per-parameter
// [prior-*] sections, and the mass/spin [waveform_transforms-*] sections.
func (s *RunSpec) PriorDocument() *Document {
	d := NewDocument()

	d.Section("static_params").
		Set("approximant", "TdQNMfromFreqTau").
		Set("lmns", strings.Join(s.Modes, " ")).
		Setf("tref", "%.6f", s.TriggerTime).
		Setf("t_gate_start", "%.6f", s.TriggerTime-1).
		Setf("t_gate_end", "%.6f", s.TriggerTime)

	vp := d.Section("variable_params")
	for _, mode := range s.Modes {
		for _, name := range []string{"f_" + mode, "tau_" + mode, "amp_" + mode, "phi_" + mode} {
			vp.Set(name, "")
		}
	}

	for _, mode := range s.Modes {
		f := "f_" + mode
		d.Section("prior-"+f).
			Set("name", "uniform").
			Setf("min-"+f, "%g", s.FreqMin).
			Setf("max-"+f, "%g", s.FreqMax)

		tau := "tau_" + mode
		d.Section("prior-"+tau).
			Set("name", "uniform").
			Setf("min-"+tau, "%g", s.TauMin).
			Setf("max-"+tau, "%g", s.TauMax)

		amp := "amp_" + mode
		d.Section("prior-"+amp).
			Set("name", "uniform").
			Setf("min-"+amp, "%g", 0.0).
			Setf("max-"+amp, "%g", s.AmpMax)

		phi := "phi_" + mode
		d.Section("prior-"+phi).
			Set("name", "uniform_angle")
	}

	// Derived remnant mass and spin from the fundamental mode.
	if len(s.Modes) > 0 {
		mode := s.Modes[0]
		d.Section("waveform_transforms-final_mass+final_spin").
			Set("name", "qnm_freqtau_to_mass_spin").
			Setf("inputs", "f_%s tau_%s", mode, mode).
			Set("mode", mode)
	}

	return d
}

// SamplerDocument emits the [sampler] block.
func (s *RunSpec) SamplerDocument() *Document {
	name := s.SamplerName
	if name == "" {
		name = "dynesty"
	}

	d := NewDocument()
	sec := d.Section("sampler").
		Set("name", name).
		Setf("nlive", "%d", s.NLive)
	if s.DlogZ > 0 {
		sec.Setf("dlogz", "%g", s.DlogZ)
	}
	if s.CheckpointInterval > 0 {
		sec.Setf("checkpoint_time_interval", "%d", s.CheckpointInterval)
	}
	return d
}

// Documents returns the four configuration blocks in invocation order:
// model, data, prior, sampler.
func (s *RunSpec) Documents() ([]*Document, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return []*Document{
		s.ModelDocument(),
		s.DataDocument(),
		s.PriorDocument(),
		s.SamplerDocument(),
	}, nil
}
