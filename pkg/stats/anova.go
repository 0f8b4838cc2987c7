package stats

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// AnovaRow is one line of a sum-of-squares table.
type AnovaRow struct {
	Term   string
	DF     int
	SumSq  float64
	MeanSq float64
	F      float64
	P      float64
}

// AnovaTable is the sum-of-squares table for one response axis.
type AnovaTable struct {
	Response string
	SSType   int
	Rows     []AnovaRow
	Residual AnovaRow
}

type factor struct {
	name   string
	levels []string
	index  []int // per-sample level index
}

func newFactor(name string, col []string) (*factor, error) {
	levels := append([]string{}, col...)
	slices.Sort(levels)
	levels = slices.Compact(levels)

	if len(levels) < 2 {
		return nil, fmt.Errorf("factor %s has a single level (%q)", name, levels[0])
	}

	f := &factor{name: name, levels: levels, index: make([]int, len(col))}
	for i, v := range col {
		f.index[i], _ = slices.BinarySearch(levels, v)
	}
	return f, nil
}

// contrasts returns the factor's effect-coded (sum-to-zero) design
// columns, L-1 columns of length n. Effect coding keeps type III
// comparisons meaningful.
func (f *factor) contrasts() [][]float64 {
	n := len(f.index)
	last := len(f.levels) - 1

	cols := make([][]float64, last)
	for l := 0; l < last; l++ {
		col := make([]float64, n)
		for i, idx := range f.index {
			switch idx {
			case l:
				col[i] = 1
			case last:
				col[i] = -1
			}
		}
		cols[l] = col
	}
	return cols
}

// term is one model term: a main effect or an interaction between
// factors, carrying its design columns.
type term struct {
	factors []int
	name    string
	cols    [][]float64
	df      int
}

// contains reports whether t's factor set is a superset of other's.
func (t *term) contains(other *term) bool {
	for _, f := range other.factors {
		if !slices.Contains(t.factors, f) {
			return false
		}
	}
	return true
}

// factorialTerms builds every main effect and interaction of the
// given factors, ordered by interaction order then factor position.
func factorialTerms(factors []*factor) []*term {
	var terms []*term

	nSubsets := 1 << len(factors)
	for bits := 1; bits < nSubsets; bits++ {
		var members []int
		for f := range factors {
			if bits&(1<<f) != 0 {
				members = append(members, f)
			}
		}

		t := &term{factors: members, df: 1}
		var names []string
		for _, f := range members {
			names = append(names, factors[f].name)
			t.df *= len(factors[f].levels) - 1
		}
		t.name = strings.Join(names, ":")

		// design columns: cartesian products of one contrast column
		// per member factor
		t.cols = [][]float64{nil}
		for _, f := range members {
			var next [][]float64
			for _, acc := range t.cols {
				for _, c := range factors[f].contrasts() {
					if acc == nil {
						next = append(next, c)
						continue
					}
					prod := make([]float64, len(c))
					for i := range c {
						prod[i] = acc[i] * c[i]
					}
					next = append(next, prod)
				}
			}
			t.cols = next
		}

		terms = append(terms, t)
	}

	slices.SortStableFunc(terms, func(a, b *term) int {
		return len(a.factors) - len(b.factors)
	})

	return terms
}

// fitRSS computes the residual sum of squares and rank of a least
// squares fit of y on an intercept plus the given design columns.
func fitRSS(cols [][]float64, y []float64) (float64, int, error) {
	n := len(y)
	p := len(cols) + 1

	x := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
	}
	for c, col := range cols {
		for i := 0; i < n; i++ {
			x.Set(i, c+1, col[i])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return 0, 0, fmt.Errorf("singular design matrix")
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		return 0, 0, fmt.Errorf("design matrix has rank zero")
	}

	var b mat.Dense
	svd.SolveTo(&b, mat.NewVecDense(n, y), rank)

	var fitted mat.Dense
	fitted.Mul(x, &b)

	var rss float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.At(i, 0)
		rss += r * r
	}

	return rss, rank, nil
}

// ANOVA fits a full factorial linear model of one coordinate axis over
// the selected factors and reports a sum-of-squares table of the
// requested type (1, 2 or 3).
func ANOVA(j *Joined, factorIdx []int, axis int, ssType int) (*AnovaTable, error) {
	if ssType < 1 || ssType > 3 {
		return nil, fmt.Errorf("unsupported sum-of-squares type %d", ssType)
	}

	factors := make([]*factor, len(factorIdx))
	for i, fi := range factorIdx {
		f, err := newFactor(j.Factors[fi], j.FactorColumn(fi))
		if err != nil {
			return nil, err
		}
		factors[i] = f
	}

	y := j.Response(axis)
	terms := factorialTerms(factors)

	fullRSS, fullRank, err := fitRSS(termCols(terms), y)
	if err != nil {
		return nil, err
	}
	dfResid := len(y) - fullRank
	if dfResid <= 0 {
		return nil, fmt.Errorf("no residual degrees of freedom (%d samples, model rank %d)", len(y), fullRank)
	}
	residMS := fullRSS / float64(dfResid)

	table := &AnovaTable{
		Response: j.PCs[axis],
		SSType:   ssType,
		Residual: AnovaRow{
			Term:   "Residuals",
			DF:     dfResid,
			SumSq:  fullRSS,
			MeanSq: residMS,
			F:      math.NaN(),
			P:      math.NaN(),
		},
	}

	fdist := distuv.F{D2: float64(dfResid)}

	for ti, t := range terms {
		var with, without []*term

		switch ssType {
		case 1:
			without = terms[:ti]
			with = terms[:ti+1]
		case 2:
			for _, u := range terms {
				if u != t && !u.contains(t) {
					without = append(without, u)
				}
			}
			with = append(append([]*term{}, without...), t)
		case 3:
			for _, u := range terms {
				if u != t {
					without = append(without, u)
				}
			}
			with = terms
		}

		rss0, _, err := fitRSS(termCols(without), y)
		if err != nil {
			return nil, fmt.Errorf("term %s: %w", t.name, err)
		}
		rss1, _, err := fitRSS(termCols(with), y)
		if err != nil {
			return nil, fmt.Errorf("term %s: %w", t.name, err)
		}

		ss := rss0 - rss1
		if ss < 0 {
			ss = 0
		}
		ms := ss / float64(t.df)
		fstat := ms / residMS

		fdist.D1 = float64(t.df)
		table.Rows = append(table.Rows, AnovaRow{
			Term:   t.name,
			DF:     t.df,
			SumSq:  ss,
			MeanSq: ms,
			F:      fstat,
			P:      fdist.Survival(fstat),
		})
	}

	return table, nil
}

func termCols(terms []*term) [][]float64 {
	var cols [][]float64
	for _, t := range terms {
		cols = append(cols, t.cols...)
	}
	return cols
}

// RepeatedANOVA runs a one-way repeated-measures ANOVA of one
// coordinate axis: the first grouping column names the subject, the
// second the within-subject factor. The design must be complete, one
// observation per subject and level.
func RepeatedANOVA(j *Joined, axis int) (*AnovaTable, error) {
	if len(j.Factors) < 2 {
		return nil, fmt.Errorf("repeated-measures mode needs a subject column and a within-subject factor column")
	}

	subject, err := newFactor(j.Factors[0], j.FactorColumn(0))
	if err != nil {
		return nil, err
	}
	within, err := newFactor(j.Factors[1], j.FactorColumn(1))
	if err != nil {
		return nil, err
	}

	s := len(subject.levels)
	a := len(within.levels)
	y := j.Response(axis)

	if len(y) != s*a {
		return nil, fmt.Errorf("incomplete repeated-measures design: %d observations for %d subjects x %d levels", len(y), s, a)
	}

	cell := make([][]float64, s)
	seen := make([][]bool, s)
	for i := range cell {
		cell[i] = make([]float64, a)
		seen[i] = make([]bool, a)
	}
	for i := range y {
		si, ai := subject.index[i], within.index[i]
		if seen[si][ai] {
			return nil, fmt.Errorf("subject %s has multiple observations at level %s", subject.levels[si], within.levels[ai])
		}
		seen[si][ai] = true
		cell[si][ai] = y[i]
	}

	var grand float64
	for i := range y {
		grand += y[i]
	}
	grand /= float64(len(y))

	var ssTotal, ssSubject, ssWithin float64
	for si := 0; si < s; si++ {
		var m float64
		for ai := 0; ai < a; ai++ {
			d := cell[si][ai] - grand
			ssTotal += d * d
			m += cell[si][ai]
		}
		m /= float64(a)
		ssSubject += float64(a) * (m - grand) * (m - grand)
	}
	for ai := 0; ai < a; ai++ {
		var m float64
		for si := 0; si < s; si++ {
			m += cell[si][ai]
		}
		m /= float64(s)
		ssWithin += float64(s) * (m - grand) * (m - grand)
	}

	ssError := ssTotal - ssSubject - ssWithin
	if ssError < 0 {
		ssError = 0
	}

	dfWithin := a - 1
	dfError := (a - 1) * (s - 1)
	if dfError <= 0 {
		return nil, fmt.Errorf("no error degrees of freedom (%d subjects, %d levels)", s, a)
	}

	msWithin := ssWithin / float64(dfWithin)
	msError := ssError / float64(dfError)
	fstat := msWithin / msError
	p := distuv.F{D1: float64(dfWithin), D2: float64(dfError)}.Survival(fstat)

	return &AnovaTable{
		Response: j.PCs[axis],
		SSType:   1,
		Rows: []AnovaRow{
			{Term: subject.name, DF: s - 1, SumSq: ssSubject, MeanSq: ssSubject / float64(s-1), F: math.NaN(), P: math.NaN()},
			{Term: within.name, DF: dfWithin, SumSq: ssWithin, MeanSq: msWithin, F: fstat, P: p},
		},
		Residual: AnovaRow{Term: "Residuals", DF: dfError, SumSq: ssError, MeanSq: msError, F: math.NaN(), P: math.NaN()},
	}, nil
}
