package cpf

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

// predict computes the normalized tangent direction at the current solution
// and extrapolates a starting guess for the next corrector call. The tangent
// solves J_aug·z = e_lambda, the unit right-hand side selecting the lambda
// direction, with the bordered Jacobian evaluated at the current point. The
// returned z (unit Euclidean norm, full 2·nb+1 layout) feeds both the
// pseudo-arc-length derivatives and the next prediction.
func predict(jb JacobianBuilder, y *grid.CSR, v []complex128, lam float64, sxfr []complex128, pv, pq []int, step float64, z []float64, vPrev []complex128, lamPrev float64, scheme Parametrization) (v0 []complex128, lam0 float64, zOut []float64, err error) {
	nb := len(v)
	pvpq := append(append([]int{}, pv...), pq...)
	npvpq := len(pvpq)
	npq := len(pq)
	nj := npvpq + npq

	dPdV, dPdLam := paramJacobian(scheme, z, v, lam, vPrev, lamPrev, pv, pq, pvpq)
	aug := augmentJacobian(jb, y, v, pvpq, pq, sxfr, dPdV, dPdLam)

	rhs := make([]float64, nj+1)
	rhs[nj] = 1

	var lu mat.LU
	lu.Factorize(aug)
	sol := mat.NewVecDense(nj+1, nil)
	if err := lu.SolveVecTo(sol, false, mat.NewVecDense(nj+1, rhs)); err != nil {
		return nil, 0, z, err
	}

	zOut = append([]float64(nil), z...)
	for k, b := range pvpq {
		zOut[b] = sol.AtVec(k)
	}
	for k, b := range pq {
		zOut[nb+b] = sol.AtVec(npvpq + k)
	}
	zOut[2*nb] = sol.AtVec(nj)

	norm := 0.0
	for _, x := range zOut {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range zOut {
			zOut[i] /= norm
		}
	}

	va := make([]float64, nb)
	vm := make([]float64, nb)
	for i, vi := range v {
		va[i] = cmplx.Phase(vi)
		vm[i] = cmplx.Abs(vi)
	}
	for _, b := range pvpq {
		va[b] += step * zOut[b]
	}
	for _, b := range pq {
		vm[b] += step * zOut[nb+b]
	}
	lam0 = lam + step*zOut[2*nb]

	v0 = make([]complex128, nb)
	for i := range v0 {
		v0[i] = cmplx.Rect(vm[i], va[i])
	}
	return v0, lam0, zOut, nil
}
