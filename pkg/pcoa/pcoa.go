/*
Package pcoa implements classical principal coordinate analysis over a
square distance matrix, and the file stage that feeds triangle tables
or square matrices through it.
*/
package pcoa

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Result holds the ordination outputs. Coordinates, Eigenvalues and
// Proportions are index-aligned: column k of the coordinates belongs
// to Eigenvalues[k] and Proportions[k].
type Result struct {
	IDs          []string
	Coordinates  *mat.Dense
	Eigenvalues  []float64
	Proportions  []float64
	nRequested   int
	trailingDrop bool
}

// Axes returns the number of retained ordination axes.
func (r *Result) Axes() int {
	_, c := r.Coordinates.Dims()
	return c
}

// PCoA runs classical principal coordinate analysis on a symmetric
// distance matrix with zero diagonal. dims is the number of axes to
// retain; dims == 0 means "unrequested", which retains one axis per
// sample and then drops the trailing numerically degenerate axis that
// double-centering always produces.
func PCoA(dist *mat.SymDense, ids []string, dims int) (*Result, error) {
	n := dist.SymmetricDim()
	if n != len(ids) {
		return nil, fmt.Errorf("pcoa: %d ids for a %dx%d matrix", len(ids), n, n)
	}
	if n < 2 {
		return nil, fmt.Errorf("pcoa: need at least 2 samples, got %d", n)
	}
	if dims > n {
		return nil, fmt.Errorf("pcoa: %d dimensions requested for %d samples", dims, n)
	}

	// Gower double-centering: B = J (-D.^2 / 2) J, J = I - 11'/n
	a := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			d := dist.At(i, j)
			a.SetSym(i, j, -0.5*d*d)
		}
	}

	rowMeans := make([]float64, n)
	var grandMean float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowMeans[i] += a.At(i, j)
		}
		rowMeans[i] /= float64(n)
		grandMean += rowMeans[i]
	}
	grandMean /= float64(n)

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, a.At(i, j)-rowMeans[i]-rowMeans[j]+grandMean)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(b, true); !ok {
		return nil, fmt.Errorf("pcoa: eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// gonum reports eigenvalues in ascending order; ordination axes go
	// in descending order of explained variance
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool { return vals[order[x]] > vals[order[y]] })

	keep := dims
	trailingDrop := false
	if keep == 0 {
		keep = n
		trailingDrop = true
	}

	var posSum float64
	for _, v := range vals {
		if v > 0 {
			posSum += v
		}
	}

	coords := mat.NewDense(n, keep, nil)
	eigenvalues := make([]float64, keep)
	proportions := make([]float64, keep)

	for k := 0; k < keep; k++ {
		lambda := vals[order[k]]
		eigenvalues[k] = lambda
		if posSum > 0 && lambda > 0 {
			proportions[k] = lambda / posSum
		}

		// negative or zero eigenvalues contribute zero coordinates
		if lambda > 0 {
			scale := math.Sqrt(lambda)
			for i := 0; i < n; i++ {
				coords.Set(i, k, vecs.At(i, order[k])*scale)
			}
		}
	}

	res := &Result{
		IDs:          ids,
		Coordinates:  coords,
		Eigenvalues:  eigenvalues,
		Proportions:  proportions,
		nRequested:   dims,
		trailingDrop: trailingDrop,
	}

	if trailingDrop {
		res.dropTrailingAxis()
	}

	return res, nil
}

// dropTrailingAxis removes the last axis from coordinates, eigenvalues
// and proportions alike, keeping the three index-aligned.
func (r *Result) dropTrailingAxis() {
	_, c := r.Coordinates.Dims()
	if c < 2 {
		return
	}
	r.Coordinates = r.Coordinates.Slice(0, len(r.IDs), 0, c-1).(*mat.Dense)
	r.Eigenvalues = r.Eigenvalues[:c-1]
	r.Proportions = r.Proportions[:c-1]
}
