package mash

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// PairDist is one unordered pair of sequence ids and the distance
// between them.
type PairDist struct {
	A, B     string
	Distance float64
}

// ParseTriangle reformats the lower-triangular text emitted by the
// triangle command into long-format rows, one per unordered pair. The
// input's first line holds the sample count; row i carries a sample id
// followed by i distances, one to each earlier sample. For n samples
// the result has exactly n*(n-1)/2 rows.
func ParseTriangle(raw []byte) ([]PairDist, error) {
	s := bufio.NewScanner(bytes.NewReader(raw))
	s.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	if !s.Scan() {
		return nil, fmt.Errorf("empty triangle output")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
	if err != nil {
		return nil, fmt.Errorf("bad sample count line %q: %w", s.Text(), err)
	}
	if n < 1 {
		return nil, fmt.Errorf("bad sample count %d", n)
	}

	ids := make([]string, 0, n)
	rows := make([]PairDist, 0, n*(n-1)/2)

	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields)-1 != len(ids) {
			return nil, fmt.Errorf("row %q: expected %d distances, got %d", fields[0], len(ids), len(fields)-1)
		}

		id := fields[0]
		for j, field := range fields[1:] {
			d, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %q: bad distance %q: %w", id, field, err)
			}
			rows = append(rows, PairDist{A: ids[j], B: id, Distance: d})
		}
		ids = append(ids, id)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	if len(ids) != n {
		return nil, fmt.Errorf("triangle header says %d samples, found %d rows", n, len(ids))
	}

	return rows, nil
}

// WriteLong writes long-format rows as a tab-separated table with a
// seq_A/seq_B/distance header.
func WriteLong(w io.Writer, rows []PairDist) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("seq_A\tseq_B\tdistance\n"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%g\n", r.A, r.B, r.Distance); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLong parses a table written by WriteLong.
func ReadLong(r io.Reader) ([]PairDist, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	first := true
	var rows []PairDist

	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.HasPrefix(line, "seq_A") {
				continue
			}
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("bad long-format row %q", line)
		}
		d, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("bad distance in row %q: %w", line, err)
		}
		rows = append(rows, PairDist{A: fields[0], B: fields[1], Distance: d})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty long-format table")
	}

	return rows, nil
}

// Densify expands long-format rows into the full symmetric distance
// matrix with a zero diagonal, and returns the sample ids indexing
// both axes (sorted). Every unordered pair must appear exactly once.
func Densify(rows []PairDist) (*mat.SymDense, []string, error) {
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.A, r.B)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	n := len(ids)
	if len(rows) != n*(n-1)/2 {
		return nil, nil, fmt.Errorf("%d samples need %d pairs, got %d", n, n*(n-1)/2, len(rows))
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		index[id] = i
	}

	m := mat.NewSymDense(n, nil)
	seen := make(map[[2]int]bool, len(rows))
	for _, r := range rows {
		i, j := index[r.A], index[r.B]
		if i == j {
			return nil, nil, fmt.Errorf("self-pair for sample %s", r.A)
		}
		if i > j {
			i, j = j, i
		}
		if seen[[2]int{i, j}] {
			return nil, nil, fmt.Errorf("duplicate pair %s/%s", r.A, r.B)
		}
		seen[[2]int{i, j}] = true
		m.SetSym(i, j, r.Distance)
	}

	return m, ids, nil
}
