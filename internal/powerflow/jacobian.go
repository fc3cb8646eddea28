package powerflow

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

// Builder assembles the standard Newton-Raphson power-flow Jacobian. It is
// the default JacobianBuilder injected into the continuation engine, so a
// different power-flow formulation can replace it without touching the
// continuation logic.
type Builder struct{}

func (Builder) Build(y *grid.CSR, v []complex128, pvpq, pq []int) *mat.Dense {
	return Jacobian(y, v, pvpq, pq)
}

// Jacobian builds the power-flow Jacobian block
//
//	[ dP/dVa(pvpq,pvpq)  dP/dVm(pvpq,pq) ]
//	[ dQ/dVa(pq,pvpq)    dQ/dVm(pq,pq)   ]
//
// from the complex power derivatives dS/dVa = j·diag(V)·conj(diag(I) − Y·diag(V))
// and dS/dVm = diag(V)·conj(Y·diag(Vnorm)) + conj(diag(I))·diag(Vnorm).
func Jacobian(y *grid.CSR, v []complex128, pvpq, pq []int) *mat.Dense {
	nb := y.N
	npvpq := len(pvpq)
	npq := len(pq)
	nj := npvpq + npq

	ibus := y.MulVec(v)
	vnorm := make([]complex128, nb)
	for i, vi := range v {
		if a := cmplx.Abs(vi); a > 0 {
			vnorm[i] = vi / complex(a, 0)
		}
	}

	// bus index -> equation/unknown positions, -1 when not present
	pvpqPos := make([]int, nb)
	pqPos := make([]int, nb)
	for i := range pvpqPos {
		pvpqPos[i] = -1
		pqPos[i] = -1
	}
	for k, b := range pvpq {
		pvpqPos[b] = k
	}
	for k, b := range pq {
		pqPos[b] = k
	}

	j := mat.NewDense(nj, nj, nil)
	for i := 0; i < nb; i++ {
		rowP := pvpqPos[i]
		rowQ := pqPos[i]
		if rowP < 0 && rowQ < 0 {
			continue
		}
		diagSeen := false
		for p := y.RowPtr[i]; p < y.RowPtr[i+1]; p++ {
			col := y.ColIdx[p]
			yij := y.Val[p]

			dva := 1i * v[i] * cmplx.Conj(-yij*v[col])
			dvm := v[i] * cmplx.Conj(yij*vnorm[col])
			if col == i {
				diagSeen = true
				dva += 1i * v[i] * cmplx.Conj(ibus[i])
				dvm += cmplx.Conj(ibus[i]) * vnorm[i]
			}
			setBlock(j, rowP, rowQ, pvpqPos[col], pqPos[col], npvpq, dva, dvm)
		}
		if !diagSeen {
			dva := 1i * v[i] * cmplx.Conj(ibus[i])
			dvm := cmplx.Conj(ibus[i]) * vnorm[i]
			setBlock(j, rowP, rowQ, pvpqPos[i], pqPos[i], npvpq, dva, dvm)
		}
	}
	return j
}

func setBlock(j *mat.Dense, rowP, rowQ, colVa, colVm, npvpq int, dva, dvm complex128) {
	if rowP >= 0 {
		if colVa >= 0 {
			j.Set(rowP, colVa, j.At(rowP, colVa)+real(dva))
		}
		if colVm >= 0 {
			j.Set(rowP, npvpq+colVm, j.At(rowP, npvpq+colVm)+real(dvm))
		}
	}
	if rowQ >= 0 {
		if colVa >= 0 {
			j.Set(npvpq+rowQ, colVa, j.At(npvpq+rowQ, colVa)+imag(dva))
		}
		if colVm >= 0 {
			j.Set(npvpq+rowQ, npvpq+colVm, j.At(npvpq+rowQ, npvpq+colVm)+imag(dvm))
		}
	}
}
