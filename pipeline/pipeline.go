package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/gwkit/ringdown/fetch"
	"github.com/gwkit/ringdown/inference"
	"github.com/gwkit/ringdown/measure/snr"
	"github.com/gwkit/ringdown/posterior"
	"github.com/gwkit/ringdown/psd"
	"github.com/gwkit/ringdown/qnm"
	"github.com/gwkit/ringdown/results"
	"github.com/gwkit/ringdown/strain"
)

// Pipeline drives one configured ringdown analysis end to end.
type Pipeline struct {
	Config *Config
	Logger *slog.Logger

	// Fetcher defaults to a fetch.Client over Config.Data.CacheDir.
	Fetcher *fetch.Client
}

// DetectorSNR is the recomputed matched-filter SNR for one detector.
type DetectorSNR struct {
	Detector string
	Peak     float64
	PeakTime float64
}

// RunInfo summarizes a completed run.
type RunInfo struct {
	ID          string
	Dir         string
	ConfigFiles []string
	ResultFile  string

	// MaxLikelihood is the highest-likelihood posterior sample.
	MaxLikelihood map[string]float64
	// SNRs holds the per-detector matched-filter SNR of that sample.
	SNRs []DetectorSNR
	// PlotFiles are the images produced by the plotting tool.
	PlotFiles []string
}

// New creates a pipeline over a validated config.
func New(cfg *Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Config: cfg,
		Logger: logger.With("component", "pipeline"),
		Fetcher: &fetch.Client{
			CacheDir: cfg.Data.CacheDir,
			Logger:   logger,
		},
	}
}

// Prepare fetches the strain frames and writes the run directory with the
// four configuration files, stopping short of invoking the sampler.
func (p *Pipeline) Prepare(ctx context.Context) (*RunInfo, error) {
	info, _, err := p.prepare(ctx)
	return info, err
}

func (p *Pipeline) prepare(ctx context.Context) (*RunInfo, map[string]string, error) {
	cfg := p.Config

	runID := uuid.NewString()
	dir := filepath.Join(cfg.Run.OutputDir, cfg.Run.Label+"-"+runID[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("pipeline: create run dir: %w", err)
	}
	info := &RunInfo{ID: runID, Dir: dir}
	p.Logger.Info("run started", "id", runID, "dir", dir)

	framePaths, err := p.fetchFrames(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := p.emitConfig(dir, framePaths, info); err != nil {
		return nil, nil, err
	}
	return info, framePaths, nil
}

// Run executes the pipeline: fetch, emit configuration, invoke inference,
// inspect the result container, and render plots. The context bounds the
// whole run; the configured timeout additionally caps the sampler.
func (p *Pipeline) Run(ctx context.Context) (*RunInfo, error) {
	info, framePaths, err := p.prepare(ctx)
	if err != nil {
		return nil, err
	}

	info.ResultFile = filepath.Join(info.Dir, "result.sqlite")
	if err := p.runInference(ctx, info); err != nil {
		return nil, err
	}

	if err := p.inspect(framePaths, info); err != nil {
		return nil, err
	}

	if err := p.renderPlots(ctx, info); err != nil {
		return nil, err
	}

	p.Logger.Info("run finished", "id", info.ID, "result", info.ResultFile)
	return info, nil
}

func (p *Pipeline) fetchFrames(ctx context.Context) (map[string]string, error) {
	paths := make(map[string]string, len(p.Config.Data.Detectors))
	for _, det := range p.Config.Data.Detectors {
		path, err := p.Fetcher.Fetch(ctx, fetch.File{
			URL:    det.FrameURL,
			SHA256: det.SHA256,
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: fetch %s frame: %w", det.Name, err)
		}
		paths[det.Name] = path
	}
	return paths, nil
}

func (p *Pipeline) emitConfig(dir string, framePaths map[string]string, info *RunInfo) error {
	docs, err := p.Config.runSpec(framePaths).Documents()
	if err != nil {
		return err
	}

	names := []string{"model.ini", "data.ini", "prior.ini", "sampler.ini"}
	for i, doc := range docs {
		path := filepath.Join(dir, names[i])
		if err := doc.WriteFile(path); err != nil {
			return err
		}
		info.ConfigFiles = append(info.ConfigFiles, path)
	}
	return nil
}

func (p *Pipeline) runInference(ctx context.Context, info *RunInfo) error {
	cfg := p.Config

	runCtx := ctx
	if cfg.Run.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Run.Timeout)
		defer cancel()
	}

	res, err := inference.Run(runCtx, p.Logger, inference.Job{
		Executable:  cfg.Executables.Inference,
		ConfigFiles: info.ConfigFiles,
		OutputFile:  info.ResultFile,
		Seed:        cfg.Run.Seed,
		NProcesses:  cfg.Run.NProcesses,
		Force:       true,
		Verbose:     true,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pipeline: inference exited %d: %s",
			res.ExitCode, tail(res.Stderr, 500))
	}
	return nil
}

// inspect loads the posterior, selects the maximum-likelihood sample, and
// recomputes its matched-filter SNR against each detector's data.
func (p *Pipeline) inspect(framePaths map[string]string, info *RunInfo) error {
	f, err := results.Open(info.ResultFile)
	if err != nil {
		return err
	}
	defer f.Close()

	samples, err := posterior.FromFile(f)
	if err != nil {
		return err
	}
	best, err := samples.MaxLoglikelihoodIndex()
	if err != nil {
		return err
	}
	point, err := samples.Point(best)
	if err != nil {
		return err
	}
	info.MaxLikelihood = point

	mode := p.Config.Prior.Modes[0]
	freq, okF := point["f_"+mode]
	tau, okT := point["tau_"+mode]
	if !okF || !okT {
		p.Logger.Warn("posterior lacks f/tau columns, skipping SNR recomputation", "mode", mode)
		return nil
	}
	amp := point["amp_"+mode]
	if amp == 0 {
		amp = 1
	}

	for _, det := range p.Config.Data.Detectors {
		detSNR, err := p.detectorSNR(f, framePaths[det.Name], det.Name, freq, tau, amp, point["phi_"+mode])
		if err != nil {
			return fmt.Errorf("pipeline: SNR for %s: %w", det.Name, err)
		}
		info.SNRs = append(info.SNRs, *detSNR)
		p.Logger.Info("max-likelihood SNR", "detector", det.Name,
			"snr", detSNR.Peak, "time", detSNR.PeakTime)
	}
	return nil
}

func (p *Pipeline) detectorSNR(f *results.File, framePath, det string,
	freq, tau, amp, phi float64) (*DetectorSNR, error) {

	series, _, err := strain.ReadFrame(framePath)
	if err != nil {
		return nil, err
	}
	if factor := series.SampleRate / p.Config.Data.SampleRate; factor > 1 {
		series, err = series.Decimate(int(factor))
		if err != nil {
			return nil, err
		}
	}

	trigger := p.Config.Data.TriggerTime
	seg, err := series.Slice(trigger+p.Config.Analysis.Start, trigger+p.Config.Analysis.End)
	if err != nil {
		return nil, err
	}
	seg.Detrend()
	if err := seg.Taper(0.1); err != nil {
		return nil, err
	}

	estimate, err := p.noisePSD(f, det, series)
	if err != nil {
		return nil, err
	}

	tmpl, err := qnm.Template(freq, tau, amp, phi, seg.SampleRate, seg.Duration(), trigger)
	if err != nil {
		return nil, err
	}

	res, err := snr.MatchedFilter(seg, tmpl, snr.Config{
		PSD:           estimate,
		LowFrequency:  p.Config.Analysis.LowFrequencyCutoff,
		HighFrequency: p.Config.Analysis.HighFrequencyCutoff,
	})
	if err != nil {
		return nil, err
	}

	// The trigger is mid-segment, so search near it rather than taking
	// the global peak.
	peak, at, err := res.PeakWithin(trigger-0.1, trigger+0.1)
	if err != nil {
		peak, at = res.Peak, res.PeakTime
	}
	return &DetectorSNR{Detector: det, Peak: peak, PeakTime: at}, nil
}

// noisePSD prefers the PSD the sampler stored; when absent it re-estimates
// from the off-source data around the analysis segment.
func (p *Pipeline) noisePSD(f *results.File, det string, series *strain.Series) (*psd.Estimate, error) {
	if power, deltaF, err := f.PSD(det); err == nil {
		return &psd.Estimate{DeltaF: deltaF, Power: power}, nil
	}

	trigger := p.Config.Data.TriggerTime
	off, err := series.Slice(trigger+p.Config.PSD.Start, trigger+p.Config.PSD.End)
	if err != nil {
		return nil, err
	}
	segLen := int(p.Config.PSD.SegmentLength * off.SampleRate)

	avg := psd.AverageMedian
	if p.Config.PSD.Estimation == "mean" {
		avg = psd.AverageMean
	}
	return psd.Welch(off, segLen, psd.WithAverage(avg))
}

func (p *Pipeline) renderPlots(ctx context.Context, info *RunInfo) error {
	cfg := p.Config
	if cfg.Executables.Plot == "" {
		return nil
	}

	var flags []string
	if cfg.Plot.Marginal {
		flags = append(flags, "--plot-marginal")
	}
	if cfg.Plot.Scatter {
		flags = append(flags, "--plot-scatter")
	}

	params := make([]inference.Parameter, len(cfg.Plot.Parameters))
	for i, pp := range cfg.Plot.Parameters {
		params[i] = inference.Parameter{Expression: pp.Expression, Label: pp.Label}
	}

	out := filepath.Join(info.Dir, "posterior.svg")
	res, err := inference.RunPlot(ctx, p.Logger, inference.PlotJob{
		Executable: cfg.Executables.Plot,
		InputFile:  info.ResultFile,
		OutputFile: out,
		PlotFlags:  flags,
		Parameters: params,
		Verbose:    true,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("pipeline: plotting exited %d: %s", res.ExitCode, tail(res.Stderr, 500))
	}
	info.PlotFiles = append(info.PlotFiles, out)
	return nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
