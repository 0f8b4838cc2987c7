package pcoa

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/mash"
	"github.com/masht-bio/masht/pkg/paths"
)

// Stage runs ordination over resolved input files and persists the
// results.
type Stage struct {
	OutputDir string
	Verbose   bool
	Out       io.Writer
}

// NewStage returns a Stage writing console output to stdout.
func NewStage(outputDir string, verbose bool) *Stage {
	return &Stage{OutputDir: outputDir, Verbose: verbose, Out: os.Stdout}
}

// Run ordinates the input: a distance table, or a directory of them.
// Triangle-format inputs are densified first; otherwise each file must
// hold an already-square numeric matrix. dims == 0 leaves the axis
// count to the sample count minus the trailing degenerate axis.
// plotAxes, when non-nil, names two 1-based axes to render as a
// scatter; a plotting failure is reported but does not abort the
// numeric outputs. The returned path is the last coordinates table
// written, which chained grouped-statistics stages consume.
func (s *Stage) Run(input string, dims int, triangleFormat bool, plotAxes []int) (string, error) {
	in, err := paths.Classify(input)
	if err != nil {
		return "", err
	}

	// a regular file is the data table itself, not a manifest
	files := []string{input}
	if in.Kind == paths.Directory {
		files, err = in.Files()
		if err != nil {
			return "", err
		}
	}

	var coordsPath string
	for _, file := range files {
		res, err := s.ordinateFile(file, dims, triangleFormat)
		if err != nil {
			return "", err
		}

		if s.Verbose {
			s.echo(file, res)
		}

		if plotAxes != nil {
			if err := Plot(res, plotAxes[0], plotAxes[1], filepath.Join(s.OutputDir, "pcoa_plot.png")); err != nil {
				logging.Warn("pcoa plot failed", zap.String("file", file), zap.Error(err))
			}
		}

		stem := paths.Stem(file)
		coordsPath = filepath.Join(s.OutputDir, stem+"_pcoa_coords.csv")
		if err := writeCoords(coordsPath, res); err != nil {
			return "", err
		}
		if err := writeAxisVector(filepath.Join(s.OutputDir, stem+"_pcoa_eigenvals.csv"), "eigenvalue", res.Eigenvalues); err != nil {
			return "", err
		}
		if err := writeAxisVector(filepath.Join(s.OutputDir, stem+"_pcoa_proportions.csv"), "proportion_explained", res.Proportions); err != nil {
			return "", err
		}

		logging.Info("pcoa results written", zap.String("input", file), zap.String("coords", coordsPath))
	}

	return coordsPath, nil
}

func (s *Stage) ordinateFile(file string, dims int, triangleFormat bool) (*Result, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var dist *mat.SymDense
	var ids []string

	if triangleFormat {
		rows, err := mash.ReadLong(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		dist, ids, err = mash.Densify(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	} else {
		dist, ids, err = ReadSquare(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}

	return PCoA(dist, ids, dims)
}

func (s *Stage) echo(file string, res *Result) {
	fmt.Fprintf(s.Out, "********** %s **********\n", paths.Stem(file))
	fmt.Fprintln(s.Out, "========== Coordinates of samples in the ordination space: ==========")
	for i, id := range res.IDs {
		fmt.Fprintf(s.Out, "%s", id)
		for k := 0; k < res.Axes(); k++ {
			fmt.Fprintf(s.Out, "\t%g", res.Coordinates.At(i, k))
		}
		fmt.Fprintln(s.Out)
	}
	fmt.Fprintln(s.Out, "========== Eigenvalues: ==========")
	fmt.Fprintln(s.Out, res.Eigenvalues)
	fmt.Fprintln(s.Out, "========== Proportion explained: ==========")
	fmt.Fprintln(s.Out, res.Proportions)
}

// ReadSquare parses a square numeric matrix with sample ids on both
// axes: a header row of ids (optionally with a leading empty cell),
// then one row per sample beginning with its id. Tab and comma
// delimiters are both accepted.
func ReadSquare(r io.Reader) (*mat.SymDense, []string, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	var header []string
	var rows [][]float64
	var ids []string

	for s.Scan() {
		line := strings.TrimRight(s.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		sep := ","
		if strings.Contains(line, "\t") {
			sep = "\t"
		}
		fields := strings.Split(line, sep)

		if header == nil {
			if fields[0] == "" {
				fields = fields[1:]
			}
			header = fields
			continue
		}

		ids = append(ids, fields[0])
		vals := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %q: bad value %q: %w", fields[0], f, err)
			}
			vals = append(vals, v)
		}
		rows = append(rows, vals)
	}
	if err := s.Err(); err != nil {
		return nil, nil, err
	}

	n := len(ids)
	if n == 0 || len(header) != n {
		return nil, nil, fmt.Errorf("matrix is not square: %d header columns, %d rows", len(header), n)
	}

	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if len(rows[i]) != n {
			return nil, nil, fmt.Errorf("row %q has %d values, want %d", ids[i], len(rows[i]), n)
		}
		for j := i; j < n; j++ {
			if diff := rows[i][j] - rows[j][i]; diff > 1e-9 || diff < -1e-9 {
				return nil, nil, fmt.Errorf("matrix is not symmetric at %s/%s", ids[i], ids[j])
			}
			m.SetSym(i, j, rows[i][j])
		}
	}

	return m, ids, nil
}

func writeCoords(path string, res *Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	w.WriteString("sample")
	for k := 0; k < res.Axes(); k++ {
		fmt.Fprintf(w, ",PC%d", k+1)
	}
	w.WriteString("\n")

	for i, id := range res.IDs {
		w.WriteString(id)
		for k := 0; k < res.Axes(); k++ {
			fmt.Fprintf(w, ",%g", res.Coordinates.At(i, k))
		}
		w.WriteString("\n")
	}

	return w.Flush()
}

func writeAxisVector(path, name string, vals []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "axis,%s\n", name)
	for k, v := range vals {
		fmt.Fprintf(w, "PC%d,%g\n", k+1, v)
	}
	return w.Flush()
}
