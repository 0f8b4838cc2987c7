/*
Package stats joins ordination coordinates to sample groupings and
runs ANOVA, repeated-measures ANOVA and MANOVA over them. The
univariate models are fitted natively; the multivariate tests are
delegated to an external statistical environment through the
MultivariateTestEngine interface.
*/
package stats

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/masht-bio/masht/pkg/logging"
)

// Table is a rectangular text table with a header. The first column
// is always the sample id.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a delimited table, accepting comma or tab
// delimiters per line.
func ReadTable(r io.Reader) (*Table, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	t := &Table{}
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

		if t.Header == nil {
			t.Header = fields
			continue
		}
		if len(fields) != len(t.Header) {
			return nil, fmt.Errorf("row %q has %d fields, header has %d", fields[0], len(fields), len(t.Header))
		}
		t.Rows = append(t.Rows, fields)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if t.Header == nil {
		return nil, fmt.Errorf("empty table")
	}

	return t, nil
}

// Joined is the inner join of a coordinates table and a grouping
// table on sample id, the data every grouped model is fitted over.
type Joined struct {
	IDs     []string
	PCs     []string
	Coords  [][]float64 // row per sample, column per PC
	Factors []string
	Levels  [][]string // row per sample, column per factor
}

// Join inner-joins coordinates to groupings on sample id, preserving
// the coordinate table's row order. Sample ids present on only one
// side, and grouping rows with an empty factor cell, are dropped; the
// dropped ids are returned and logged so mismatches are never silent.
func Join(coords, groups *Table) (*Joined, []string, error) {
	if len(coords.Header) < 2 {
		return nil, nil, fmt.Errorf("coordinates table has no axes")
	}
	if len(groups.Header) < 2 {
		return nil, nil, fmt.Errorf("grouping table has no factor columns")
	}

	groupRows := make(map[string][]string, len(groups.Rows))
	for _, row := range groups.Rows {
		groupRows[row[0]] = row[1:]
	}

	j := &Joined{
		PCs:     coords.Header[1:],
		Factors: groups.Header[1:],
	}

	var dropped []string
	handled := make(map[string]bool)

	for _, row := range coords.Rows {
		id := row[0]
		levels, ok := groupRows[id]
		if !ok {
			dropped = append(dropped, id)
			logging.Warn("sample missing from grouping table, dropped", zap.String("sample", id))
			continue
		}

		empty := false
		for _, l := range levels {
			if strings.TrimSpace(l) == "" {
				empty = true
			}
		}
		if empty {
			handled[id] = true
			dropped = append(dropped, id)
			logging.Warn("sample has an empty factor value, dropped", zap.String("sample", id))
			continue
		}

		vals := make([]float64, len(row)-1)
		for i, f := range row[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("sample %s: bad coordinate %q: %w", id, f, err)
			}
			vals[i] = v
		}

		handled[id] = true
		j.IDs = append(j.IDs, id)
		j.Coords = append(j.Coords, vals)
		j.Levels = append(j.Levels, levels)
	}

	for _, row := range groups.Rows {
		if !handled[row[0]] {
			dropped = append(dropped, row[0])
			logging.Warn("sample missing from coordinates table, dropped", zap.String("sample", row[0]))
		}
	}

	if len(j.IDs) == 0 {
		return nil, dropped, fmt.Errorf("no sample ids shared between coordinates and grouping tables")
	}

	return j, dropped, nil
}

// UsableAxes returns the number of leading axes that are neither
// degenerate nor all-zero, the cap on how many axes a model may use.
func (j *Joined) UsableAxes() int {
	n := 0
	for k := range j.PCs {
		allZero := true
		for i := range j.Coords {
			if j.Coords[i][k] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			break
		}
		n++
	}
	return n
}

// Response extracts one coordinate axis as a response vector.
func (j *Joined) Response(axis int) []float64 {
	y := make([]float64, len(j.Coords))
	for i := range j.Coords {
		y[i] = j.Coords[i][axis]
	}
	return y
}

// FactorColumn extracts one factor's level assignment per sample.
func (j *Joined) FactorColumn(f int) []string {
	col := make([]string, len(j.Levels))
	for i := range j.Levels {
		col[i] = j.Levels[i][f]
	}
	return col
}
