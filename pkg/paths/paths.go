/*
Package paths normalizes the toolkit's heterogeneous input conventions
(a directory of files, a manifest listing files, or a single sketch
artifact) into ordered lists of filesystem paths.
*/
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactSuffix is the extension of the opaque sketch files produced
// and consumed by mash.
const ArtifactSuffix = ".msh"

// Kind classifies an input path.
type Kind int

const (
	// Directory is a directory whose direct children are the file set.
	Directory Kind = iota
	// Manifest is a text file listing the file set, whitespace-delimited.
	Manifest
	// Artifact is a single sketch file, a one-element file set.
	Artifact
)

func (k Kind) String() string {
	switch k {
	case Directory:
		return "directory"
	case Manifest:
		return "manifest"
	case Artifact:
		return "artifact"
	}
	return "unknown"
}

// Input is a classified input path.
type Input struct {
	Kind Kind
	Path string
}

// Classify stats path and tags it as a Directory, Manifest or Artifact.
// Any regular file without the artifact suffix is treated as a
// manifest; the paths it lists are not checked for existence here, they
// surface lazily when a consuming tool first opens them.
func Classify(path string) (Input, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Input{}, err
	}

	if fi.IsDir() {
		return Input{Kind: Directory, Path: path}, nil
	}
	if strings.EqualFold(filepath.Ext(path), ArtifactSuffix) {
		return Input{Kind: Artifact, Path: path}, nil
	}
	return Input{Kind: Manifest, Path: path}, nil
}

// Files expands the input into its ordered file set. Directory entries
// come back in the order the filesystem reports them; manifest entries
// in listing order; duplicates are preserved.
func (in Input) Files() ([]string, error) {
	switch in.Kind {
	case Directory:
		entries, err := os.ReadDir(in.Path)
		if err != nil {
			return nil, err
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			files = append(files, filepath.Join(in.Path, e.Name()))
		}
		return files, nil

	case Manifest:
		b, err := os.ReadFile(in.Path)
		if err != nil {
			return nil, err
		}
		return strings.Fields(string(b)), nil

	case Artifact:
		return []string{in.Path}, nil
	}

	return nil, fmt.Errorf("unclassifiable input: %s", in.Path)
}

// Resolve is Classify followed by Files.
func Resolve(path string) ([]string, error) {
	in, err := Classify(path)
	if err != nil {
		return nil, err
	}
	return in.Files()
}

// Artifacts filters a file set down to sketch artifacts.
func Artifacts(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ArtifactSuffix) {
			out = append(out, f)
		}
	}
	return out
}

// Stem returns the base name of path up to the first dot, the stem used
// to name every derived output file.
func Stem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i >= 0 {
		return base[:i]
	}
	return base
}
