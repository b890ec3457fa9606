// Package ffexec runs the external media tools (ffmpeg, ffprobe) as
// subprocesses and hands back what they printed.
package ffexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the child is
// killed, since grandchildren may still hold them open.
const waitDelay = 2 * time.Second

// Result holds the outcome of a single subprocess invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// OK reports whether the process exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// StderrText returns the diagnostic channel with surrounding whitespace removed.
func (r Result) StderrText() string {
	return strings.TrimSpace(string(r.Stderr))
}

// Runner starts a program and waits for it to exit.
//
// A non-nil error means the process could not be started or was killed
// because ctx ended. A process that ran and exited non-zero is reported
// through Result.ExitCode with a nil error.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	// Verbose tees the child's stderr to os.Stderr in real time.
	Verbose bool
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	if r.Verbose {
		cmd.Stderr = io.MultiWriter(&stderrBuf, os.Stderr)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	res := Result{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
	}
	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("start %s: %w", name, err)
}

// CommandLine renders name and args the way they would be typed in a shell,
// quoting arguments that contain spaces. Used for logs and dry runs only.
func CommandLine(name string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{name}, args...) {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// LogRunner wraps another Runner and logs every command line before it runs.
type LogRunner struct {
	Next Runner
}

func (r *LogRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	log.Printf("▶ %s", CommandLine(name, args...))
	return r.Next.Run(ctx, name, args...)
}
