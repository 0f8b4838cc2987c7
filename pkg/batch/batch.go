/*
Package batch fans the sketch/triangle/ordination chain out over many
subdirectories on a bounded worker pool, with per-item failure
isolation: one directory's error is logged and its siblings carry on.
*/
package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/masht-bio/masht/pkg/config"
	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/mash"
	"github.com/masht-bio/masht/pkg/pcoa"
)

// sequence-file suffixes that qualify a directory member as batch
// input
var qualifyingSuffixes = []string{".fasta", ".fa", ".fna", ".fastq", ".fq"}

// Item processes one qualifying subdirectory, writing into its own
// output directory.
type Item func(dir, outDir string) error

// Options controls a batch run.
type Options struct {
	Config    *config.Config
	OutputDir string
	Verbose   bool

	// Workers bounds the pool; 0 means one per CPU.
	Workers int

	// EnforceSymmetry excludes directories holding fewer qualifying
	// files than the largest group, so groups stay comparable.
	EnforceSymmetry bool

	// Item overrides the default sketch -> triangle -> PCoA chain.
	Item Item
}

// AnalyzeAll discovers the qualifying subdirectories of root and runs
// one item per directory on a bounded pool. Item failures are logged
// with the directory identity and do not cancel sibling work; the
// returned error covers only discovery problems.
func AnalyzeAll(root string, opts Options) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	type candidate struct {
		dir   string
		count int
	}
	var candidates []candidate
	maxCount := 0

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		n, err := countQualifying(dir)
		if err != nil {
			logging.Warn("skipping unreadable directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if n == 0 {
			logging.Warn("skipping directory with no qualifying input files", zap.String("dir", dir))
			continue
		}
		candidates = append(candidates, candidate{dir: dir, count: n})
		if n > maxCount {
			maxCount = n
		}
	}

	if len(candidates) == 0 {
		return fmt.Errorf("no qualifying subdirectories under %s", root)
	}

	item := opts.Item
	if item == nil {
		item = defaultItem(opts)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for _, c := range candidates {
		if opts.EnforceSymmetry && c.count < maxCount {
			logging.Warn("excluding directory with deficient input count",
				zap.String("dir", c.dir), zap.Int("count", c.count), zap.Int("required", maxCount))
			continue
		}

		c := c
		g.Go(func() error {
			outDir := filepath.Join(opts.OutputDir, filepath.Base(c.dir))
			if err := os.MkdirAll(outDir, 0755); err != nil {
				logging.Error("batch item failed", zap.String("dir", c.dir), zap.Error(err))
				return nil
			}
			if err := item(c.dir, outDir); err != nil {
				logging.Error("batch item failed", zap.String("dir", c.dir), zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

// defaultItem chains sketch, triangle and PCoA for one directory.
func defaultItem(opts Options) Item {
	return func(dir, outDir string) error {
		p := mash.New(opts.Config.Mash, outDir, opts.Verbose)

		sketch, err := p.Sketch(dir)
		if err != nil {
			return err
		}
		if err := p.Triangle(sketch); err != nil {
			return err
		}

		stage := pcoa.NewStage(outDir, opts.Verbose)
		triangles, err := os.ReadDir(outDir)
		if err != nil {
			return err
		}
		for _, e := range triangles {
			if !strings.HasSuffix(e.Name(), "_triangle.txt") {
				continue
			}
			if _, err := stage.Run(filepath.Join(outDir, e.Name()), 0, true, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

func countQualifying(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if slices.Contains(qualifyingSuffixes, ext) {
			n++
		}
	}
	return n, nil
}
