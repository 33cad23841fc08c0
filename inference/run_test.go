package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable shell script for use as a fake tool.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestJobArgsOrder(t *testing.T) {
	job := Job{
		Executable:  "pycbc_inference",
		ConfigFiles: []string{"model.ini", "data.ini", "prior.ini", "sampler.ini"},
		OutputFile:  "run.sqlite",
		Seed:        1897,
		NProcesses:  8,
		Force:       true,
		Verbose:     true,
	}
	assert.Equal(t, []string{
		"--verbose",
		"--seed", "1897",
		"--config-file", "model.ini", "data.ini", "prior.ini", "sampler.ini",
		"--output-file", "run.sqlite",
		"--nprocesses", "8",
		"--force",
	}, job.Args())
}

func TestPlotJobArgs(t *testing.T) {
	job := PlotJob{
		Executable: "plot_posterior",
		InputFile:  "run.sqlite",
		OutputFile: "posterior.svg",
		PlotFlags:  []string{"--plot-scatter", "--plot-marginal"},
		Parameters: []Parameter{
			{Expression: "final_mass", Label: "$M_f$"},
			{Expression: "final_spin"},
		},
	}
	assert.Equal(t, []string{
		"--input-file", "run.sqlite",
		"--output-file", "posterior.svg",
		"--plot-scatter", "--plot-marginal",
		"--parameters", "final_mass:$M_f$", "final_spin",
	}, job.Args())
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	tool := writeScript(t, `echo "sampling"; echo "warning" >&2; exit 3`)

	res, err := Run(context.Background(), nil, Job{
		Executable:  tool,
		ConfigFiles: []string{"unused.ini"},
		OutputFile:  "unused.sqlite",
	})
	require.NoError(t, err, "non-zero exit is not a run error")
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "sampling\n", string(res.Stdout))
	assert.Equal(t, "warning\n", string(res.Stderr))
}

func TestRunWallClockCutoff(t *testing.T) {
	tool := writeScript(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, nil, Job{
		Executable:  tool,
		ConfigFiles: []string{"unused.ini"},
		OutputFile:  "unused.sqlite",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "cutoff must kill the tool promptly")
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := Run(context.Background(), nil, Job{
		Executable:  filepath.Join(t.TempDir(), "absent"),
		ConfigFiles: []string{"a.ini"},
		OutputFile:  "out",
	})
	assert.Error(t, err)
}

func TestRunValidation(t *testing.T) {
	_, err := Run(context.Background(), nil, Job{})
	assert.Error(t, err)

	_, err = RunPlot(context.Background(), nil, PlotJob{})
	assert.Error(t, err)
}

func TestRunPlotChecksImage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "img.svg")

	// Tool exits cleanly but writes nothing: RunPlot must object.
	tool := writeScript(t, `exit 0`)
	_, err := RunPlot(context.Background(), nil, PlotJob{
		Executable: tool,
		InputFile:  "run.sqlite",
		OutputFile: out,
	})
	assert.Error(t, err)

	// Tool writes a non-empty image: accepted.
	tool = writeScript(t, `echo "<svg/>" > "$4"; exit 0`)
	res, err := RunPlot(context.Background(), nil, PlotJob{
		Executable: tool,
		InputFile:  "run.sqlite",
		OutputFile: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	// A failing tool passes through regardless of the image.
	tool = writeScript(t, `exit 1`)
	res, err = RunPlot(context.Background(), nil, PlotJob{
		Executable: tool,
		InputFile:  "run.sqlite",
		OutputFile: out,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}
