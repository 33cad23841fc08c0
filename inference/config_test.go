package inference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRenderOrderDeterministic(t *testing.T) {
	build := func() string {
		d := NewDocument()
		d.Section("model").Set("name", "gated_gaussian_margpol").Set("low-frequency-cutoff", "20")
		d.Section("sampler").Set("name", "dynesty").Set("nlive", "2000")
		text, err := d.Render()
		require.NoError(t, err)
		return text
	}

	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
	assert.Less(t, strings.Index(first, "[model]"), strings.Index(first, "[sampler]"))
}

func TestDocumentRoundTrip(t *testing.T) {
	d := NewDocument()
	d.Section("data").
		Set("instruments", "H1 L1").
		Set("trigger-time", "1126259462.430000").
		Set("sample-rate", "2048")
	d.Section("prior-f_220").
		Set("name", "uniform").
		Set("min-f_220", "100").
		Set("max-f_220", "400")

	text, err := d.Render()
	require.NoError(t, err)

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"instruments":  "H1 L1",
		"trigger-time": "1126259462.430000",
		"sample-rate":  "2048",
	}, parsed["data"])
	assert.Equal(t, "uniform", parsed["prior-f_220"]["name"])
	assert.Equal(t, "400", parsed["prior-f_220"]["max-f_220"])
}

func TestDocumentWriteFileMatchesRender(t *testing.T) {
	d := NewDocument()
	d.Section("model").Set("name", "gated_gaussian_margpol")

	path := filepath.Join(t.TempDir(), "model.ini")
	require.NoError(t, d.WriteFile(path))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	rendered, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, rendered, string(onDisk))
}

func TestSectionOverwriteKeepsPosition(t *testing.T) {
	d := NewDocument()
	d.Section("s").Set("a", "1").Set("b", "2").Set("a", "3")

	text, err := d.Render()
	require.NoError(t, err)
	assert.Less(t, strings.Index(text, "a"), strings.Index(text, "b"))

	parsed, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "3", parsed["s"]["a"])
}

func validSpec() *RunSpec {
	return &RunSpec{
		TriggerTime:        1126259462.43,
		Detectors:          map[string]string{"H1": "/data/H1.rdwf", "L1": "/data/L1.rdwf"},
		Channels:           map[string]string{"H1": "H1:GWOSC-STRAIN", "L1": "L1:GWOSC-STRAIN"},
		SampleRate:         2048,
		AnalysisStart:      -4,
		AnalysisEnd:        4,
		PSDStart:           -144,
		PSDEnd:             144,
		PSDSegmentLen:      8,
		LowFrequencyCutoff: 20,
		StrainHighPass:     15,
		PadData:            8,
		Modes:              []string{"220"},
		FreqMin:            100,
		FreqMax:            400,
		TauMin:             0.0005,
		TauMax:             0.02,
		AmpMax:             1e-19,
		SamplerName:        "dynesty",
		NLive:              2000,
		DlogZ:              0.1,
		CheckpointInterval: 1800,
	}
}

func TestRunSpecDocuments(t *testing.T) {
	docs, err := validSpec().Documents()
	require.NoError(t, err)
	require.Len(t, docs, 4)

	model, err := docs[0].Render()
	require.NoError(t, err)
	parsed, err := Parse(model)
	require.NoError(t, err)
	assert.Equal(t, "gated_gaussian_margpol", parsed["model"]["name"])
	assert.Equal(t, "20", parsed["model"]["low-frequency-cutoff"])

	data, err := docs[1].Render()
	require.NoError(t, err)
	parsed, err = Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "H1 L1", parsed["data"]["instruments"])
	assert.Equal(t, "H1:/data/H1.rdwf L1:/data/L1.rdwf", parsed["data"]["frame-files"])
	assert.Equal(t, "median-mean", parsed["data"]["psd-estimation"])
	assert.Equal(t, "4", parsed["data"]["psd-segment-stride"], "stride defaults to half the segment")

	prior, err := docs[2].Render()
	require.NoError(t, err)
	parsed, err = Parse(prior)
	require.NoError(t, err)
	assert.Contains(t, parsed, "static_params")
	assert.Contains(t, parsed, "variable_params")
	assert.Contains(t, parsed, "prior-f_220")
	assert.Contains(t, parsed, "prior-tau_220")
	assert.Contains(t, parsed, "prior-amp_220")
	assert.Contains(t, parsed, "prior-phi_220")
	assert.Contains(t, parsed, "waveform_transforms-final_mass+final_spin")
	assert.Equal(t, "100", parsed["prior-f_220"]["min-f_220"])
	assert.Equal(t, "uniform_angle", parsed["prior-phi_220"]["name"])
	assert.Equal(t, "f_220 tau_220", parsed["waveform_transforms-final_mass+final_spin"]["inputs"])

	sampler, err := docs[3].Render()
	require.NoError(t, err)
	parsed, err = Parse(sampler)
	require.NoError(t, err)
	assert.Equal(t, "dynesty", parsed["sampler"]["name"])
	assert.Equal(t, "2000", parsed["sampler"]["nlive"])
	assert.Equal(t, "1800", parsed["sampler"]["checkpoint_time_interval"])
}

func TestRunSpecValidate(t *testing.T) {
	mutations := map[string]func(*RunSpec){
		"no detectors":    func(s *RunSpec) { s.Detectors = nil },
		"missing channel": func(s *RunSpec) { delete(s.Channels, "H1") },
		"zero trigger":    func(s *RunSpec) { s.TriggerTime = 0 },
		"bad window":      func(s *RunSpec) { s.AnalysisEnd = s.AnalysisStart },
		"no modes":        func(s *RunSpec) { s.Modes = nil },
		"bad freq prior":  func(s *RunSpec) { s.FreqMax = s.FreqMin },
		"bad tau prior":   func(s *RunSpec) { s.TauMin = 0 },
		"no sampler":      func(s *RunSpec) { s.SamplerName = "" },
		"no psd window":   func(s *RunSpec) { s.PSDEnd = s.PSDStart },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			spec := validSpec()
			mutate(spec)
			assert.Error(t, spec.Validate())
		})
	}

	assert.NoError(t, validSpec().Validate())
}
