package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	dir := t.TempDir()

	artifact := filepath.Join(dir, "sketches.msh")
	if err := os.WriteFile(artifact, []byte("binary"), 0644); err != nil {
		t.Fatal(err)
	}
	manifest := filepath.Join(dir, "inputs.txt")
	if err := os.WriteFile(manifest, []byte("a.fa b.fa"), 0644); err != nil {
		t.Fatal(err)
	}

	in, err := Classify(dir)
	if err != nil {
		t.Fatal(err)
	}
	if in.Kind != Directory {
		t.Errorf("directory classified as %s", in.Kind)
	}

	in, err = Classify(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if in.Kind != Artifact {
		t.Errorf(".msh file classified as %s", in.Kind)
	}

	in, err = Classify(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if in.Kind != Manifest {
		t.Errorf("text file classified as %s", in.Kind)
	}

	if _, err := Classify(filepath.Join(dir, "nonexistent")); err == nil {
		t.Errorf("no error for a missing path")
	}
}

func TestResolveManifest(t *testing.T) {
	dir := t.TempDir()

	manifest := filepath.Join(dir, "inputs.txt")
	if err := os.WriteFile(manifest, []byte("b.fa\na.fa\tb.fa\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// listing order preserved, duplicates kept, missing files tolerated
	files, err := Resolve(manifest)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b.fa", "a.fa", "b.fa"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d", len(files), len(want))
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d: got %s, want %s", i, files[i], want[i])
		}
	}
}

func TestResolveArtifactSingleton(t *testing.T) {
	dir := t.TempDir()

	artifact := filepath.Join(dir, "sketches.msh")
	if err := os.WriteFile(artifact, []byte("binary"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := Resolve(artifact)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != artifact {
		t.Errorf("artifact did not resolve to a singleton: %v", files)
	}
}

func TestArtifacts(t *testing.T) {
	got := Artifacts([]string{"a.fa", "b.msh", "c.MSH", "d.txt"})
	if len(got) != 2 || got[0] != "b.msh" || got[1] != "c.MSH" {
		t.Errorf("problem in TestArtifacts(): %v", got)
	}
}

func TestStem(t *testing.T) {
	if s := Stem("/data/run1.triangle.txt"); s != "run1" {
		t.Errorf("got stem %q", s)
	}
	if s := Stem("plain"); s != "plain" {
		t.Errorf("got stem %q", s)
	}
}
