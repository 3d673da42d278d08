// Package runner executes rendered scripts and captures their output. It is
// the command-execution collaborator of the compiler: the compiler never
// starts processes itself.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dmitriyb/ciyaml/internal/render"
)

// Result is the outcome of one script execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Options controls how a script is executed.
type Options struct {
	Flavor render.Flavor
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// Run writes script to a temporary file and executes it with the
// interpreter matching opts.Flavor. A non-zero exit status is reported in
// Result.ExitCode, not as an error; err is set only when the script could
// not be started or ctx was cancelled.
func Run(ctx context.Context, script string, opts Options) (Result, error) {
	dir, err := os.MkdirTemp("", "ciyaml-")
	if err != nil {
		return Result{}, fmt.Errorf("runner: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "job"+opts.Flavor.Ext())
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return Result{}, fmt.Errorf("runner: write script: %w", err)
	}

	var cmd *exec.Cmd
	if opts.Flavor == render.Batch {
		cmd = exec.CommandContext(ctx, "cmd", "/c", path)
	} else {
		cmd = exec.CommandContext(ctx, "bash", path)
	}
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() != nil {
		return res, fmt.Errorf("runner: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		return res, fmt.Errorf("runner: start %s: %w", opts.Flavor, err)
	}
	return res, nil
}
