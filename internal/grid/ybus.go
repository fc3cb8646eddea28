package grid

import (
	"math"
	"math/cmplx"
	"sort"
)

// CSR is a sparse complex matrix in compressed sparse row form. It is
// immutable once built; the continuation trace only needs Y·V products.
type CSR struct {
	N      int
	RowPtr []int
	ColIdx []int
	Val    []complex128
}

type triplet struct {
	row, col int
	val      complex128
}

func newCSR(n int, entries []triplet) *CSR {
	// accumulate duplicates, then sort row-major
	acc := make(map[[2]int]complex128, len(entries))
	for _, e := range entries {
		acc[[2]int{e.row, e.col}] += e.val
	}
	keys := make([][2]int, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	m := &CSR{
		N:      n,
		RowPtr: make([]int, n+1),
		ColIdx: make([]int, 0, len(keys)),
		Val:    make([]complex128, 0, len(keys)),
	}
	row := 0
	for _, k := range keys {
		for row < k[0] {
			row++
			m.RowPtr[row] = len(m.ColIdx)
		}
		m.ColIdx = append(m.ColIdx, k[1])
		m.Val = append(m.Val, acc[k])
	}
	for row < n {
		row++
		m.RowPtr[row] = len(m.ColIdx)
	}
	return m
}

// MulVec computes Y·x.
func (m *CSR) MulVec(x []complex128) []complex128 {
	y := make([]complex128, m.N)
	for i := 0; i < m.N; i++ {
		var s complex128
		for p := m.RowPtr[i]; p < m.RowPtr[i+1]; p++ {
			s += m.Val[p] * x[m.ColIdx[p]]
		}
		y[i] = s
	}
	return y
}

// At returns the entry at (i, j), zero if not stored.
func (m *CSR) At(i, j int) complex128 {
	for p := m.RowPtr[i]; p < m.RowPtr[i+1]; p++ {
		if m.ColIdx[p] == j {
			return m.Val[p]
		}
	}
	return 0
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.Val) }

// BuildYbus assembles the bus admittance matrix from the case branches
// using the standard pi model with off-nominal tap and phase shift.
func BuildYbus(c *Case) *CSR {
	nb := len(c.Buses)
	entries := make([]triplet, 0, 4*len(c.Branches)+nb)
	for _, br := range c.Branches {
		ys := 1 / complex(br.R, br.X)
		bc := complex(0, br.B/2)
		tap := br.Tap
		if tap == 0 {
			tap = 1
		}
		t := cmplx.Rect(tap, br.Shift*math.Pi/180)

		yff := (ys + bc) / (t * cmplx.Conj(t))
		yft := -ys / cmplx.Conj(t)
		ytf := -ys / t
		ytt := ys + bc

		entries = append(entries,
			triplet{br.From, br.From, yff},
			triplet{br.From, br.To, yft},
			triplet{br.To, br.From, ytf},
			triplet{br.To, br.To, ytt},
		)
	}
	return newCSR(nb, entries)
}
