package mash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubMash writes a shell script standing in for the mash binary. It
// records every invocation's subcommand and first argument to the file
// named by MASH_LOG.
func stubMash(t *testing.T) string {
	t.Helper()

	script := `#!/bin/sh
cmd="$1"; shift
echo "$cmd $1" >> "$MASH_LOG"
case "$cmd" in
sketch)
	out=""
	files=""
	while [ $# -gt 0 ]; do
		if [ "$1" = "-o" ]; then shift; out="$1"; else files="$files $1"; fi
		shift
	done
	printf '%s\n' $files > "$out.msh"
	;;
dist)
	printf 'a.fa\tb.fa\t0.1\t0\t500/1000\n'
	;;
triangle)
	printf '\t3\n'
	printf 'A\n'
	printf 'B\t0.1\n'
	printf 'C\t0.2\t0.3\n'
	;;
info|bounds|screen)
	printf 'stub %s output for %s\n' "$cmd" "$1"
	;;
esac
`

	dir := t.TempDir()
	bin := filepath.Join(dir, "mash")
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	log := filepath.Join(dir, "invocations.log")
	t.Setenv("MASH_LOG", log)

	return bin
}

func invocations(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(os.Getenv("MASH_LOG"))
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func writeInputs(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{"a.fa", "b.fa", "c.fa"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(">seq\nACGT\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSketchRelocatesArtifact(t *testing.T) {
	bin := stubMash(t)
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputs(t, inDir)

	p := New(bin, outDir, false)
	p.Out = new(bytes.Buffer)

	artifact, err := p.Sketch(inDir)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(outDir, "sketches.msh")
	if artifact != want {
		t.Errorf("artifact at %s, want %s", artifact, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("artifact not relocated: %v", err)
	}
	if p.SketchPath != want {
		t.Errorf("pipeline did not record the artifact")
	}
}

func TestSketchThenTriangleConsumesProducedArtifact(t *testing.T) {
	bin := stubMash(t)
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputs(t, inDir)

	p := New(bin, outDir, false)
	p.Out = new(bytes.Buffer)

	artifact, err := p.Sketch(inDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Triangle(p.Input("", inDir)); err != nil {
		t.Fatal(err)
	}

	calls := invocations(t)
	last := calls[len(calls)-1]
	if last != "triangle "+artifact {
		t.Errorf("triangle consumed %q, want the produced artifact %q", last, artifact)
	}

	// the long-format table is named for the artifact stem
	if _, err := os.Stat(filepath.Join(outDir, "sketches_triangle.txt")); err != nil {
		t.Errorf("triangle table not written: %v", err)
	}
}

func TestTriangleAloneConsumesLiteralInput(t *testing.T) {
	bin := stubMash(t)
	outDir := t.TempDir()

	artifact := filepath.Join(t.TempDir(), "mine.msh")
	if err := os.WriteFile(artifact, []byte("binary"), 0644); err != nil {
		t.Fatal(err)
	}

	p := New(bin, outDir, false)
	p.Out = new(bytes.Buffer)

	if err := p.Triangle(p.Input("", artifact)); err != nil {
		t.Fatal(err)
	}

	calls := invocations(t)
	if calls[len(calls)-1] != "triangle "+artifact {
		t.Errorf("triangle consumed %q, want the literal input %q", calls[len(calls)-1], artifact)
	}
}

func TestExplicitOverrideBeatsProducedArtifact(t *testing.T) {
	p := New("mash", ".", false)
	p.SketchPath = "/was/produced.msh"

	if got := p.Input("/explicit.msh", "raw"); got != "/explicit.msh" {
		t.Errorf("got %q", got)
	}
	if got := p.Input("", "raw"); got != "/was/produced.msh" {
		t.Errorf("got %q", got)
	}
	p.SketchPath = ""
	if got := p.Input("", "raw"); got != "raw" {
		t.Errorf("got %q", got)
	}
}

func TestDistWritesHeaderedTable(t *testing.T) {
	bin := stubMash(t)
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeInputs(t, inDir)

	p := New(bin, outDir, false)
	p.Out = new(bytes.Buffer)

	if err := p.Dist(inDir); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(filepath.Join(outDir, "distances.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "seq_A,seq_B,mash_dist,p_val,matching_hashes\na.fa\tb.fa\t0.1\t0\t500/1000\n" {
		t.Errorf("problem in TestDistWritesHeaderedTable():\n%s", b)
	}
}

func TestSketchFailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "mash")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho doom >&2\nexit 1\n"), 0755); err != nil {
		t.Fatal(err)
	}

	inDir := t.TempDir()
	writeInputs(t, inDir)

	p := New(bin, t.TempDir(), false)
	p.Out = new(bytes.Buffer)

	artifact, err := p.Sketch(inDir)
	if err == nil {
		t.Fatal("no error from a failing sketch")
	}
	if artifact != "" {
		t.Errorf("artifact %q returned from a failing sketch", artifact)
	}
	if p.SketchPath != "" {
		t.Errorf("failed sketch recorded on the pipeline")
	}

	// dependent stages fall back to the raw input
	if got := p.Input("", inDir); got != inDir {
		t.Errorf("got %q, want the raw input", got)
	}
}
