package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/masht-bio/masht/pkg/tools"
)

// TestTable is one named multivariate test statistic table, kept as
// raw text lines exactly as reported by the engine.
type TestTable struct {
	Test  string
	Lines []string
}

// MultivariateTestEngine computes the multivariate test statistics for
// a MANOVA design. The native univariate machinery in this package is
// deliberately not used for this: the multivariate tests are delegated
// to an external, independently validated statistical environment.
// Substituting an in-process implementation later only requires a new
// engine.
type MultivariateTestEngine interface {
	// Run fits the model described by an R-style formula over the data
	// table (a header row then one row per sample; factor columns are
	// listed in factors) and returns the Wilks, Pillai,
	// Hotelling-Lawley and Roy test tables.
	Run(header []string, rows [][]string, factors []string, formula string) ([]TestTable, error)
}

// manovaTests is the fixed set of tests every engine must report.
var manovaTests = []string{"Wilks", "Pillai", "Hotelling-Lawley", "Roy"}

const manovaScript = `args <- commandArgs(trailingOnly = TRUE)
d <- read.csv(args[1], check.names = FALSE)
for (f in strsplit(args[2], ",", fixed = TRUE)[[1]]) {
    d[[f]] <- as.factor(d[[f]])
}
fit <- manova(as.formula(args[3]), data = d)
for (t in c("Wilks", "Pillai", "Hotelling-Lawley", "Roy")) {
    cat("===TEST", t, "\n")
    print(summary(fit, test = t)$stats)
}
`

// REngine runs the MANOVA in R by shelling out to Rscript.
type REngine struct {
	// Rscript is the path of the Rscript binary.
	Rscript string
}

// Run writes the data and a generated script to a temporary
// directory, invokes Rscript, and splits its output into one table
// per test.
func (e *REngine) Run(header []string, rows [][]string, factors []string, formula string) ([]TestTable, error) {
	dir, err := os.MkdirTemp("", "masht-manova-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	dataPath := filepath.Join(dir, "data.csv")
	var sb strings.Builder
	sb.WriteString(strings.Join(header, ",") + "\n")
	for _, row := range rows {
		sb.WriteString(strings.Join(row, ",") + "\n")
	}
	if err := os.WriteFile(dataPath, []byte(sb.String()), 0644); err != nil {
		return nil, err
	}

	scriptPath := filepath.Join(dir, "manova.R")
	if err := os.WriteFile(scriptPath, []byte(manovaScript), 0644); err != nil {
		return nil, err
	}

	res, err := tools.RunChecked("", "manova", e.Rscript, scriptPath, dataPath, strings.Join(factors, ","), formula)
	if err != nil {
		return nil, err
	}

	return parseEngineOutput(string(res.Stdout))
}

func parseEngineOutput(out string) ([]TestTable, error) {
	var tables []TestTable
	var current *TestTable

	for _, line := range strings.Split(out, "\n") {
		if name, ok := strings.CutPrefix(line, "===TEST "); ok {
			tables = append(tables, TestTable{Test: strings.TrimSpace(name)})
			current = &tables[len(tables)-1]
			continue
		}
		if current != nil && strings.TrimSpace(line) != "" {
			current.Lines = append(current.Lines, line)
		}
	}

	if len(tables) != len(manovaTests) {
		return nil, fmt.Errorf("engine reported %d test tables, want %d", len(tables), len(manovaTests))
	}
	return tables, nil
}

// Formula builds the R-style MANOVA formula for the first pcs axes
// crossed over the given factor names.
func Formula(pcs []string, factors []string) string {
	return fmt.Sprintf("cbind(%s) ~ %s", strings.Join(pcs, ", "), strings.Join(factors, " * "))
}
