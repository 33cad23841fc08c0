package inference

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// Job describes one invocation of the inference executable.
type Job struct {
	// Executable is the sampler driver binary, e.g. "pycbc_inference".
	Executable string
	// ConfigFiles are the INI files passed with --config-file, in order.
	ConfigFiles []string
	// OutputFile is the result container path.
	OutputFile string

	Seed       int64
	NProcesses int
	Force      bool
	Verbose    bool
}

// Args returns the full argument list after the executable name.
func (j *Job) Args() []string {
	var args []string
	if j.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, "--seed", strconv.FormatInt(j.Seed, 10))
	args = append(args, "--config-file")
	args = append(args, j.ConfigFiles...)
	args = append(args, "--output-file", j.OutputFile)
	if j.NProcesses > 0 {
		args = append(args, "--nprocesses", strconv.Itoa(j.NProcesses))
	}
	if j.Force {
		args = append(args, "--force")
	}
	return args
}

func (j *Job) validate() error {
	if j.Executable == "" {
		return fmt.Errorf("inference: job needs an executable")
	}
	if len(j.ConfigFiles) == 0 {
		return fmt.Errorf("inference: job needs config files")
	}
	if j.OutputFile == "" {
		return fmt.Errorf("inference: job needs an output file")
	}
	return nil
}

// PlotJob describes one invocation of the plotting executable.
type PlotJob struct {
	Executable string
	InputFile  string
	OutputFile string

	// PlotFlags select the plot types, e.g. "--plot-marginal".
	PlotFlags []string
	// Parameters are expression:label pairs passed to --parameters.
	Parameters []Parameter
	Verbose    bool
}

// Parameter is a plotted parameter expression with its display label.
type Parameter struct {
	Expression string
	Label      string
}

// Args returns the full argument list after the executable name.
func (j *PlotJob) Args() []string {
	var args []string
	if j.Verbose {
		args = append(args, "--verbose")
	}
	args = append(args, "--input-file", j.InputFile)
	args = append(args, "--output-file", j.OutputFile)
	args = append(args, j.PlotFlags...)
	if len(j.Parameters) > 0 {
		args = append(args, "--parameters")
		for _, p := range j.Parameters {
			if p.Label != "" {
				args = append(args, p.Expression+":"+p.Label)
			} else {
				args = append(args, p.Expression)
			}
		}
	}
	return args
}

func (j *PlotJob) validate() error {
	if j.Executable == "" {
		return fmt.Errorf("inference: plot job needs an executable")
	}
	if j.InputFile == "" || j.OutputFile == "" {
		return fmt.Errorf("inference: plot job needs input and output files")
	}
	return nil
}

// Result is the captured outcome of an external tool invocation. Output and
// exit code pass through untranslated; a non-zero exit is not an error here.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Run invokes the inference executable, killing the whole process group if
// the context expires (the wall-clock cutoff).
func Run(ctx context.Context, logger *slog.Logger, job Job) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	return runTool(ctx, logger, job.Executable, job.Args())
}

// RunPlot invokes the plotting executable and verifies that the output image
// exists and is non-empty when the tool exits cleanly.
func RunPlot(ctx context.Context, logger *slog.Logger, job PlotJob) (*Result, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	res, err := runTool(ctx, logger, job.Executable, job.Args())
	if err != nil {
		return nil, err
	}
	if res.ExitCode == 0 {
		info, statErr := os.Stat(job.OutputFile)
		if statErr != nil {
			return nil, fmt.Errorf("inference: plot exited 0 but image missing: %w", statErr)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("inference: plot exited 0 but image %q is empty", job.OutputFile)
		}
	}
	return res, nil
}

func runTool(ctx context.Context, logger *slog.Logger, executable string, args []string) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("invoking external tool", "executable", executable, "args", args)

	cmd := exec.CommandContext(ctx, executable, args...)
	// Own process group so a timeout kills workers the tool spawned too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("inference: start %q: %w", executable, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("inference: %q cancelled after %s: %w",
			executable, time.Since(start).Round(time.Millisecond), ctx.Err())
	case waitErr = <-done:
	}

	exitCode := 0
	if waitErr != nil {
		exitErr, ok := waitErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("inference: run %q: %w", executable, waitErr)
		}
		exitCode = exitErr.ExitCode()
	}

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}
	logger.Info("external tool finished", "executable", executable,
		"exit_code", res.ExitCode, "duration", res.Duration)
	return res, nil
}
