/*
Package mash orchestrates the external sketching tool: sketch and
pairwise-distance generation, all-pairs triangle matrices, catalog info,
error bounds, containment screening and sketch concatenation. Every
operation is a thin translation of toolkit arguments into one or more
invocations of the mash binary, plus the file plumbing around them.
*/
package mash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/paths"
	"github.com/masht-bio/masht/pkg/tools"
)

// Pipeline carries the context shared by every mash stage in one
// toolkit invocation: where the binary lives, where outputs go, and
// the artifact produced by the most recent sketch stage, which later
// stages consume unless explicitly overridden.
type Pipeline struct {
	// Mash is the path of the mash binary.
	Mash string

	// OutputDir receives every file-writing stage's outputs. It must
	// exist before any stage runs.
	OutputDir string

	// Verbose echoes tool stdout for file-writing stages.
	Verbose bool

	// Out receives console echo (tool stdout, stage banners).
	Out io.Writer

	// SketchPath is the artifact produced by the last Sketch call in
	// this invocation, empty if none (or if sketching failed).
	SketchPath string
}

// New returns a Pipeline writing console output to stdout.
func New(mashBin, outputDir string, verbose bool) *Pipeline {
	return &Pipeline{Mash: mashBin, OutputDir: outputDir, Verbose: verbose, Out: os.Stdout}
}

// Input returns the path a chained stage should consume: the explicit
// override when given, otherwise the artifact from an earlier Sketch
// stage, otherwise the raw input path.
func (p *Pipeline) Input(override, raw string) string {
	if override != "" {
		return override
	}
	if p.SketchPath != "" {
		return p.SketchPath
	}
	return raw
}

// Sketch sketches the whole resolved file set in one call and
// relocates the produced artifact into the output directory as
// sketches.msh. The returned path is recorded on the Pipeline for
// chained stages. On failure no path is recorded and the error is
// returned.
func (p *Pipeline) Sketch(input string) (string, error) {
	logging.Info("creating mash sketches", zap.String("input", input))

	files, err := paths.Resolve(input)
	if err != nil {
		return "", err
	}

	// sketch under a unique temporary name and relocate the result
	// afterwards, so a failed run never clobbers an earlier artifact
	tmp := filepath.Join(p.OutputDir, "sketch_"+uuid.NewString())

	args := append([]string{"sketch"}, files...)
	args = append(args, "-o", tmp)

	res, err := tools.Run("", p.Mash, args...)
	if err != nil {
		return "", fmt.Errorf("sketch: %w", err)
	}
	if err := res.Check("sketch"); err != nil {
		fmt.Fprintf(p.Out, "%s", res.Stderr)
		return "", err
	}
	if p.Verbose {
		fmt.Fprintf(p.Out, "%s", res.Stderr) // mash sketch reports progress on stderr
	}

	out := filepath.Join(p.OutputDir, "sketches"+paths.ArtifactSuffix)
	if err := os.Rename(tmp+paths.ArtifactSuffix, out); err != nil {
		return "", fmt.Errorf("sketch: relocating artifact: %w", err)
	}

	logging.Info("mash sketches created", zap.String("artifact", out))
	p.SketchPath = out
	return out, nil
}

// Dist computes all pairwise distances for the resolved file set in a
// single call and writes distances.tsv: a header line followed by the
// tool's raw tabular output.
func (p *Pipeline) Dist(input string) error {
	logging.Info("calculating mash distances", zap.String("input", input))

	files, err := paths.Resolve(input)
	if err != nil {
		return err
	}

	args := append([]string{"dist"}, files...)
	res, err := tools.Run("", p.Mash, args...)
	if err != nil {
		return fmt.Errorf("dist: %w", err)
	}
	if err := res.Check("dist"); err != nil {
		fmt.Fprintf(p.Out, "%s", res.Stderr)
		return err
	}

	if p.Verbose {
		fmt.Fprintf(p.Out, "%s", res.Stdout)
	}

	out := filepath.Join(p.OutputDir, "distances.tsv")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteString("seq_A,seq_B,mash_dist,p_val,matching_hashes\n"); err != nil {
		return err
	}
	if _, err := f.Write(res.Stdout); err != nil {
		return err
	}

	logging.Info("mash distances calculated", zap.String("table", out))
	return nil
}

// Info prints the catalog of every sketch artifact in the input set.
// Console only, no file is written.
func (p *Pipeline) Info(input string) error {
	fmt.Fprintln(p.Out, "Information on selected files:")
	return p.eachArtifact(input, "info", true, nil)
}

// Bounds writes the mash error bounds of every sketch artifact in the
// input set to <stem>_bounds.txt files.
func (p *Pipeline) Bounds(input string) error {
	fmt.Fprintln(p.Out, "Error bounds of selected file[s]:")
	return p.eachArtifact(input, "bounds", false, nil)
}

// Screen reports containment of the query set within every sketch
// artifact in the input set. The query is resolved independently and
// passed as extra positional arguments. Console only.
func (p *Pipeline) Screen(input, query string) error {
	fmt.Fprintln(p.Out, "Screening selected files:")

	queryFiles, err := paths.Resolve(query)
	if err != nil {
		return err
	}
	return p.eachArtifact(input, "screen", true, queryFiles)
}

// Triangle runs the all-pairs triangle command for every sketch
// artifact in the input set, reformats the lower-triangular output
// into a long-format table, and writes one <stem>_triangle.txt per
// artifact.
func (p *Pipeline) Triangle(input string) error {
	fmt.Fprintln(p.Out, "Matrix of distances between sequences in selected files:")

	files, err := paths.Resolve(input)
	if err != nil {
		return err
	}

	for _, file := range paths.Artifacts(files) {
		fmt.Fprintf(p.Out, "============= %s: =============\n", file)

		res, err := tools.Run("", p.Mash, "triangle", file)
		if err != nil {
			return fmt.Errorf("triangle: %w", err)
		}
		if err := res.Check("triangle"); err != nil {
			fmt.Fprintf(p.Out, "%s", res.Stderr)
			return err
		}
		if p.Verbose {
			fmt.Fprintf(p.Out, "%s", res.Stdout)
		}

		rows, err := ParseTriangle(res.Stdout)
		if err != nil {
			return fmt.Errorf("triangle: %s: %w", file, err)
		}

		out := filepath.Join(p.OutputDir, paths.Stem(file)+"_triangle.txt")
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := WriteLong(f, rows); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		logging.Info("triangle table written", zap.String("table", out))
	}

	return nil
}

// Paste concatenates sketch artifacts into one new artifact named
// fileName in the output directory. The source set comes from a
// manifest, a single artifact, or a directory filtered to artifacts.
func (p *Pipeline) Paste(input, fileName string) error {
	in, err := paths.Classify(input)
	if err != nil {
		return err
	}

	var files []string
	switch in.Kind {
	case paths.Manifest, paths.Artifact:
		files, err = in.Files()
		if err != nil {
			return err
		}
	case paths.Directory:
		all, err := in.Files()
		if err != nil {
			return err
		}
		files = paths.Artifacts(all)
	}

	args := append([]string{"paste", filepath.Join(p.OutputDir, fileName)}, files...)
	res, err := tools.Run("", p.Mash, args...)
	if err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	if err := res.Check("paste"); err != nil {
		fmt.Fprintf(p.Out, "%s", res.Stderr)
		return err
	}

	logging.Info("sketches pasted", zap.String("artifact", filepath.Join(p.OutputDir, fileName)))
	return nil
}

// Raw runs mash with caller-supplied arguments, echoing its output.
func (p *Pipeline) Raw(args []string) error {
	res, err := tools.Run("", p.Mash, args...)
	if err != nil {
		return fmt.Errorf("mash: %w", err)
	}
	fmt.Fprintf(p.Out, "%s", res.Stdout)
	if err := res.Check("mash"); err != nil {
		fmt.Fprintf(p.Out, "%s", res.Stderr)
		return err
	}
	return nil
}

// eachArtifact applies one mash subcommand to every sketch artifact in
// the input set. Console-only subcommands echo stdout unconditionally;
// the rest write <stem>_<subcommand>.txt and echo only when verbose.
func (p *Pipeline) eachArtifact(input, subcommand string, consoleOnly bool, extra []string) error {
	files, err := paths.Resolve(input)
	if err != nil {
		return err
	}

	for _, file := range paths.Artifacts(files) {
		fmt.Fprintf(p.Out, "============= %s: =============\n", file)

		args := []string{subcommand, file}
		args = append(args, extra...)

		res, err := tools.Run("", p.Mash, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", subcommand, err)
		}
		if err := res.Check(subcommand); err != nil {
			fmt.Fprintf(p.Out, "%s", res.Stderr)
			return err
		}

		if consoleOnly || p.Verbose {
			fmt.Fprintf(p.Out, "%s", res.Stdout)
		}

		if !consoleOnly {
			out := filepath.Join(p.OutputDir, paths.Stem(file)+"_"+subcommand+".txt")
			if err := os.WriteFile(out, res.Stdout, 0644); err != nil {
				return err
			}
		}
	}

	return nil
}
