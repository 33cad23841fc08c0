// Package pipeline orchestrates a full ringdown run: data retrieval,
// configuration emission, external inference, result inspection, and
// diagnostic plotting.
package pipeline

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwkit/ringdown/inference"
)

// Config is the YAML run configuration.
type Config struct {
	Run         RunConfig        `yaml:"run"`
	Executables ExecutableConfig `yaml:"executables"`
	Data        DataConfig       `yaml:"data"`
	Analysis    AnalysisConfig   `yaml:"analysis"`
	PSD         PSDConfig        `yaml:"psd"`
	Prior       PriorConfig      `yaml:"prior"`
	Sampler     SamplerConfig    `yaml:"sampler"`
	Plot        PlotConfig       `yaml:"plot"`
}

// RunConfig holds run-level settings.
type RunConfig struct {
	Label      string `yaml:"label"`
	OutputDir  string `yaml:"output_dir"`
	Seed       int64  `yaml:"seed"`
	NProcesses int    `yaml:"nprocesses"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// ExecutableConfig names the external tools.
type ExecutableConfig struct {
	Inference string `yaml:"inference"`
	Plot      string `yaml:"plot"`
}

// DetectorConfig describes one detector's data source.
type DetectorConfig struct {
	Name     string `yaml:"name"`
	FrameURL string `yaml:"frame_url"`
	SHA256   string `yaml:"sha256"`
	Channel  string `yaml:"channel"`
}

// DataConfig holds data selection settings.
type DataConfig struct {
	TriggerTime float64          `yaml:"trigger_time"`
	SampleRate  float64          `yaml:"sample_rate"`
	CacheDir    string           `yaml:"cache_dir"`
	Detectors   []DetectorConfig `yaml:"detectors"`
}

// AnalysisConfig bounds the analysis segment relative to the trigger.
type AnalysisConfig struct {
	Start               float64 `yaml:"start"`
	End                 float64 `yaml:"end"`
	LowFrequencyCutoff  float64 `yaml:"low_frequency_cutoff"`
	HighFrequencyCutoff float64 `yaml:"high_frequency_cutoff"`
	StrainHighPass      float64 `yaml:"strain_high_pass"`
	PadData             float64 `yaml:"pad_data"`
}

// PSDConfig holds PSD estimation settings, times relative to the trigger.
type PSDConfig struct {
	Start         float64 `yaml:"start"`
	End           float64 `yaml:"end"`
	SegmentLength float64 `yaml:"segment_length"`
	SegmentStride float64 `yaml:"segment_stride"`
	Estimation    string  `yaml:"estimation"`
}

// PriorConfig holds the sampled-parameter prior ranges.
type PriorConfig struct {
	Modes   []string `yaml:"modes"`
	FreqMin float64  `yaml:"freq_min"`
	FreqMax float64  `yaml:"freq_max"`
	TauMin  float64  `yaml:"tau_min"`
	TauMax  float64  `yaml:"tau_max"`
	AmpMax  float64  `yaml:"amp_max"`
}

// SamplerConfig holds external sampler settings.
type SamplerConfig struct {
	Name               string  `yaml:"name"`
	NLive              int     `yaml:"nlive"`
	DlogZ              float64 `yaml:"dlogz"`
	CheckpointInterval int     `yaml:"checkpoint_interval"`
}

// PlotParameter is one plotted expression with a display label.
type PlotParameter struct {
	Expression string `yaml:"expression"`
	Label      string `yaml:"label"`
}

// PlotConfig selects the posterior plots.
type PlotConfig struct {
	Marginal   bool            `yaml:"marginal"`
	Scatter    bool            `yaml:"scatter"`
	Parameters []PlotParameter `yaml:"parameters"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, env-expands, parses, and validates a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read config: %w", err)
	}

	expanded := envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("pipeline: parse config: %w", err)
	}

	if cfg.Run.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Run.TimeoutRaw)
		if err != nil {
			return nil, fmt.Errorf("pipeline: parse timeout %q: %w", cfg.Run.TimeoutRaw, err)
		}
		cfg.Run.Timeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field constraints the packages downstream rely on.
func (c *Config) Validate() error {
	if c.Run.Label == "" {
		return fmt.Errorf("pipeline: run.label is required")
	}
	if c.Run.OutputDir == "" {
		return fmt.Errorf("pipeline: run.output_dir is required")
	}
	if c.Executables.Inference == "" {
		return fmt.Errorf("pipeline: executables.inference is required")
	}
	if len(c.Data.Detectors) == 0 {
		return fmt.Errorf("pipeline: data.detectors must not be empty")
	}
	for i, det := range c.Data.Detectors {
		if det.Name == "" || det.FrameURL == "" || det.Channel == "" {
			return fmt.Errorf("pipeline: detector %d needs name, frame_url, and channel", i)
		}
	}
	if c.Data.CacheDir == "" {
		return fmt.Errorf("pipeline: data.cache_dir is required")
	}
	// The remaining numeric constraints are enforced by the inference
	// RunSpec, which sees them all in one place.
	return c.runSpec(nil).Validate()
}

// runSpec builds the inference RunSpec. framePaths maps detector names to
// local frame files; nil leaves the URL as a placeholder (validation only).
func (c *Config) runSpec(framePaths map[string]string) *inference.RunSpec {
	detectors := make(map[string]string, len(c.Data.Detectors))
	channels := make(map[string]string, len(c.Data.Detectors))
	for _, det := range c.Data.Detectors {
		path := det.FrameURL
		if framePaths != nil {
			path = framePaths[det.Name]
		}
		detectors[det.Name] = path
		channels[det.Name] = det.Channel
	}

	return &inference.RunSpec{
		TriggerTime:        c.Data.TriggerTime,
		Detectors:          detectors,
		Channels:           channels,
		SampleRate:         c.Data.SampleRate,
		AnalysisStart:      c.Analysis.Start,
		AnalysisEnd:        c.Analysis.End,
		PSDStart:           c.PSD.Start,
		PSDEnd:             c.PSD.End,
		PSDSegmentLen:      c.PSD.SegmentLength,
		PSDSegmentStride:   c.PSD.SegmentStride,
		PSDEstimation:      c.PSD.Estimation,
		LowFrequencyCutoff: c.Analysis.LowFrequencyCutoff,
		StrainHighPass:     c.Analysis.StrainHighPass,
		PadData:            c.Analysis.PadData,
		Modes:              c.Prior.Modes,
		FreqMin:            c.Prior.FreqMin,
		FreqMax:            c.Prior.FreqMax,
		TauMin:             c.Prior.TauMin,
		TauMax:             c.Prior.TauMax,
		AmpMax:             c.Prior.AmpMax,
		SamplerName:        c.Sampler.Name,
		NLive:              c.Sampler.NLive,
		DlogZ:              c.Sampler.DlogZ,
		CheckpointInterval: c.Sampler.CheckpointInterval,
	}
}
