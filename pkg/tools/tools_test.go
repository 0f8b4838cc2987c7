package tools

import (
	"errors"
	"strings"
	"testing"
)

func TestRunCapturesOutput(t *testing.T) {
	res, err := Run("", "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code %d", res.ExitCode)
	}
	if string(res.Stdout) != "out\n" {
		t.Errorf("stdout %q", res.Stdout)
	}
	if string(res.Stderr) != "err\n" {
		t.Errorf("stderr %q", res.Stderr)
	}
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	res, err := Run("", "sh", "-c", "echo broken >&2; exit 3")
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code %d, want 3", res.ExitCode)
	}

	cerr := res.Check("sketch")
	if cerr == nil {
		t.Fatal("Check passed a non-zero exit")
	}
	var xerr *ExitError
	if !errors.As(cerr, &xerr) {
		t.Fatalf("Check returned %T", cerr)
	}
	if xerr.Stage != "sketch" || xerr.ExitCode != 3 {
		t.Errorf("ExitError %+v", xerr)
	}
	if !strings.Contains(xerr.Error(), "broken") {
		t.Errorf("stderr not surfaced: %s", xerr.Error())
	}
}

func TestRunMissingBinary(t *testing.T) {
	if _, err := Run("", "definitely-not-a-binary-9f2c"); err == nil {
		t.Errorf("no error for a missing binary")
	}
}

func TestRunChecked(t *testing.T) {
	if _, err := RunChecked("", "paste", "sh", "-c", "exit 1"); err == nil {
		t.Errorf("problem in TestRunChecked()")
	}
	if _, err := RunChecked("", "paste", "true"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
