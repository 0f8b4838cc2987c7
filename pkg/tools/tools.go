/*
Package tools wraps single external-process invocations behind a
uniform capture-and-check contract: stdout and stderr are captured to
memory, the exit status is inspected by the caller, and a non-zero exit
converts to an error carrying the tool's stderr.
*/
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the outcome of one external-tool invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// ExitError reports a tool that ran to completion with a non-zero
// exit status.
type ExitError struct {
	Stage    string
	ExitCode int
	Stderr   []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: external tool exited with status %d:\n%s", e.Stage, e.ExitCode, e.Stderr)
}

// Run spawns name with args in dir (empty dir means the current
// working directory) and blocks until it exits. There is no timeout: a
// hung child blocks the caller. A non-zero exit is not an error here;
// callers inspect Result.ExitCode or use Check.
func Run(dir string, name string, args ...string) (Result, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if err != nil {
		var xerr *exec.ExitError
		if errors.As(err, &xerr) {
			res.ExitCode = xerr.ExitCode()
			return res, nil
		}
		// the process never started (bad path, permissions)
		return res, err
	}

	return res, nil
}

// Check converts a non-zero exit into an *ExitError naming the stage.
func (r Result) Check(stage string) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &ExitError{Stage: stage, ExitCode: r.ExitCode, Stderr: r.Stderr}
}

// RunChecked runs the tool and checks its exit status in one step.
func RunChecked(dir string, stage string, name string, args ...string) (Result, error) {
	res, err := Run(dir, name, args...)
	if err != nil {
		return res, fmt.Errorf("%s: %w", stage, err)
	}
	return res, res.Check(stage)
}
