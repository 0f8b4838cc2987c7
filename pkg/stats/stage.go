package stats

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
	"github.com/masht-bio/masht/pkg/paths"
)

// FactorSelection describes which grouping columns act as model
// factors: all of them, the first k, or repeated-measures mode.
type FactorSelection struct {
	Repeat bool
	Count  int // 0 means all columns
}

// ParseFactorSelector accepts "n" (all columns), an integer k (first k
// columns) or "repeat" (repeated-measures mode).
func ParseFactorSelector(sel string) (FactorSelection, error) {
	switch sel {
	case "n", "":
		return FactorSelection{}, nil
	case "repeat":
		return FactorSelection{Repeat: true}, nil
	}

	k, err := strconv.Atoi(sel)
	if err != nil || k < 1 {
		return FactorSelection{}, fmt.Errorf("factor selector must be \"n\", \"repeat\" or a positive integer, got %q", sel)
	}
	return FactorSelection{Count: k}, nil
}

func (fs FactorSelection) indices(j *Joined) ([]int, error) {
	n := fs.Count
	if n == 0 {
		n = len(j.Factors)
	}
	if n > len(j.Factors) {
		return nil, fmt.Errorf("%d factors requested, grouping table has %d columns", n, len(j.Factors))
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx, nil
}

// Stage runs grouped statistics over a coordinates table and a
// grouping table and persists the result tables.
type Stage struct {
	OutputDir string
	Verbose   bool
	Out       io.Writer
}

// NewStage returns a Stage writing console output to stdout.
func NewStage(outputDir string, verbose bool) *Stage {
	return &Stage{OutputDir: outputDir, Verbose: verbose, Out: os.Stdout}
}

func (s *Stage) load(coordsPath, groupsPath string) (*Joined, error) {
	cf, err := os.Open(coordsPath)
	if err != nil {
		return nil, err
	}
	defer cf.Close()
	coords, err := ReadTable(cf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", coordsPath, err)
	}

	gf, err := os.Open(groupsPath)
	if err != nil {
		return nil, err
	}
	defer gf.Close()
	groups, err := ReadTable(gf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", groupsPath, err)
	}

	j, dropped, err := Join(coords, groups)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		logging.Warn("samples dropped from join", zap.Strings("samples", dropped))
	}
	return j, nil
}

// clipAxes clips a requested axis count to the usable axes present.
func clipAxes(j *Joined, pcs int) int {
	usable := j.UsableAxes()
	if pcs < 1 || pcs > usable {
		if pcs > usable {
			logging.Warn("requested axes clipped", zap.Int("requested", pcs), zap.Int("usable", usable))
		}
		return usable
	}
	return pcs
}

// ANOVA runs one sum-of-squares table per retained coordinate axis and
// writes each to <stem>_anova_<axis>.csv.
func (s *Stage) ANOVA(coordsPath, groupsPath, selector string, pcs, ssType int) error {
	sel, err := ParseFactorSelector(selector)
	if err != nil {
		return err
	}

	j, err := s.load(coordsPath, groupsPath)
	if err != nil {
		return err
	}

	nAxes := clipAxes(j, pcs)
	stem := outputStem(coordsPath)

	var factorIdx []int
	if !sel.Repeat {
		factorIdx, err = sel.indices(j)
		if err != nil {
			return err
		}
	}

	for axis := 0; axis < nAxes; axis++ {
		var table *AnovaTable
		if sel.Repeat {
			table, err = RepeatedANOVA(j, axis)
		} else {
			table, err = ANOVA(j, factorIdx, axis, ssType)
		}
		if err != nil {
			return fmt.Errorf("anova %s: %w", j.PCs[axis], err)
		}

		out := filepath.Join(s.OutputDir, fmt.Sprintf("%s_anova_%s.csv", stem, table.Response))
		if err := writeAnovaTable(out, table); err != nil {
			return err
		}
		logging.Info("anova table written", zap.String("axis", table.Response), zap.String("table", out))
	}

	return nil
}

// MANOVA fits one multivariate model over the first pcs axes jointly
// and writes one file per test statistic.
func (s *Stage) MANOVA(coordsPath, groupsPath, selector string, pcs int, engine MultivariateTestEngine) error {
	sel, err := ParseFactorSelector(selector)
	if err != nil {
		return err
	}
	if sel.Repeat {
		return fmt.Errorf("repeated-measures mode is not available for MANOVA")
	}

	j, err := s.load(coordsPath, groupsPath)
	if err != nil {
		return err
	}

	nAxes := clipAxes(j, pcs)
	factorIdx, err := sel.indices(j)
	if err != nil {
		return err
	}

	axes := j.PCs[:nAxes]
	factors := make([]string, len(factorIdx))
	for i, fi := range factorIdx {
		factors[i] = j.Factors[fi]
	}

	header := append([]string{"sample"}, axes...)
	header = append(header, factors...)

	rows := make([][]string, len(j.IDs))
	for i, id := range j.IDs {
		row := []string{id}
		for k := 0; k < nAxes; k++ {
			row = append(row, strconv.FormatFloat(j.Coords[i][k], 'g', -1, 64))
		}
		for _, fi := range factorIdx {
			row = append(row, j.Levels[i][fi])
		}
		rows[i] = row
	}

	formula := Formula(axes, factors)
	logging.Debug("manova model", zap.String("formula", formula))

	tables, err := engine.Run(header, rows, factors, formula)
	if err != nil {
		return err
	}

	stem := outputStem(coordsPath)
	for _, t := range tables {
		out := filepath.Join(s.OutputDir, fmt.Sprintf("%s_manova_%s.txt", stem, t.Test))
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		for _, line := range t.Lines {
			fmt.Fprintln(w, line)
		}
		if err := w.Flush(); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logging.Info("manova table written", zap.String("test", t.Test), zap.String("table", out))
	}

	return nil
}

// outputStem names grouped-statistics outputs after the run, not the
// coordinates file: the ordination stage's _pcoa_coords suffix is
// stripped so "run1_pcoa_coords.csv" yields "run1" tables.
func outputStem(coordsPath string) string {
	return strings.TrimSuffix(paths.Stem(coordsPath), "_pcoa_coords")
}

func writeAnovaTable(path string, table *AnovaTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# response: %s, sum-of-squares type %d\n", table.Response, table.SSType)
	w.WriteString("term,df,sum_sq,mean_sq,F,p\n")

	writeRow := func(r AnovaRow) {
		fmt.Fprintf(w, "%s,%d,%g,%g,%s,%s\n", r.Term, r.DF, r.SumSq, r.MeanSq, floatField(r.F), floatField(r.P))
	}
	for _, r := range table.Rows {
		writeRow(r)
	}
	writeRow(table.Residual)

	return w.Flush()
}

func floatField(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
