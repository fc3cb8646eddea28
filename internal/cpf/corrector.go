package cpf

import (
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
	"github.com/AnthonyZalev/gridtrace/internal/powerflow"
)

// correctorResult is the corrector outcome. Non-convergence is reported, not
// raised: the driver decides what to do with a failed step.
type correctorResult struct {
	V          []complex128
	Lam        float64
	Converged  bool
	Iterations int
	NormF      float64
	Scalc      []complex128
}

// mismatchF evaluates the augmented residual
// [Re(mis)(pvpq), Im(mis)(pq), P] with mis = V∘conj(Y·V) − Sbus − lam·Sxfr.
func mismatchF(y *grid.CSR, v, sbus, sxfr []complex128, lam float64, p float64, pvpq, pq []int) ([]float64, []complex128) {
	scalc := powerflow.Scalc(y, v)
	f := make([]float64, 0, len(pvpq)+len(pq)+1)
	for _, b := range pvpq {
		f = append(f, real(scalc[b]-sbus[b]-complex(lam, 0)*sxfr[b]))
	}
	for _, b := range pq {
		f = append(f, imag(scalc[b]-sbus[b]-complex(lam, 0)*sxfr[b]))
	}
	f = append(f, p)
	return f, scalc
}

// augmentJacobian borders the power-flow Jacobian with the lambda column
// −[Re(Sxfr)(pvpq); Im(Sxfr)(pq)] and the parametrization row [dPdV dPdLam]:
//
//	[   J    dF/dlam ]
//	[ dP/dV  dP/dlam ]
func augmentJacobian(jb JacobianBuilder, y *grid.CSR, v []complex128, pvpq, pq []int, sxfr []complex128, dPdV []float64, dPdLam float64) *mat.Dense {
	npvpq := len(pvpq)
	npq := len(pq)
	nj := npvpq + npq

	j := jb.Build(y, v, pvpq, pq)
	aug := mat.NewDense(nj+1, nj+1, nil)
	aug.Slice(0, nj, 0, nj).(*mat.Dense).Copy(j)
	for k, b := range pvpq {
		aug.Set(k, nj, -real(sxfr[b]))
	}
	for k, b := range pq {
		aug.Set(npvpq+k, nj, -imag(sxfr[b]))
	}
	for k, d := range dPdV {
		aug.Set(nj, k, d)
	}
	aug.Set(nj, nj, dPdLam)
	return aug
}

// correct solves the corrector step: a full Newton-Raphson on the power
// balance augmented with the parametrization constraint, starting from the
// predictor's guess (v0, lam0). A singular augmented Jacobian is treated as
// non-convergence of the step.
func correct(jb JacobianBuilder, y *grid.CSR, sbus, v0 []complex128, pv, pq []int, lam0 float64, sxfr, vPrev []complex128, lamPrev float64, z []float64, step float64, scheme Parametrization, tol float64, maxIter int) correctorResult {
	v := append([]complex128(nil), v0...)
	lam := lam0
	pvpq := append(append([]int{}, pv...), pq...)
	npvpq := len(pvpq)
	npq := len(pq)
	nj := npvpq + npq

	va := make([]float64, len(v))
	vm := make([]float64, len(v))
	for i, vi := range v {
		va[i] = cmplx.Phase(vi)
		vm[i] = cmplx.Abs(vi)
	}

	p := paramValue(scheme, step, z, v, lam, vPrev, lamPrev, pv, pq, pvpq)
	f, scalc := mismatchF(y, v, sbus, sxfr, lam, p, pvpq, pq)
	normF := powerflow.InfNorm(f)
	if normF < tol {
		return correctorResult{V: v, Lam: lam, Converged: true, NormF: normF, Scalc: scalc}
	}

	for it := 1; it <= maxIter; it++ {
		dPdV, dPdLam := paramJacobian(scheme, z, v, lam, vPrev, lamPrev, pv, pq, pvpq)
		aug := augmentJacobian(jb, y, v, pvpq, pq, sxfr, dPdV, dPdLam)

		var lu mat.LU
		lu.Factorize(aug)
		dx := mat.NewVecDense(nj+1, nil)
		if err := lu.SolveVecTo(dx, false, mat.NewVecDense(len(f), f)); err != nil {
			return correctorResult{V: v, Lam: lam, Converged: false, Iterations: it, NormF: normF, Scalc: scalc}
		}

		for k, b := range pvpq {
			va[b] -= dx.AtVec(k)
		}
		for k, b := range pq {
			vm[b] -= dx.AtVec(npvpq + k)
		}
		lam -= dx.AtVec(nj)

		// rebuild V from polar form; re-derive Vm/Va in case a magnitude
		// update wrapped around negative
		for i := range v {
			v[i] = cmplx.Rect(vm[i], va[i])
			vm[i] = cmplx.Abs(v[i])
			va[i] = cmplx.Phase(v[i])
		}

		p = paramValue(scheme, step, z, v, lam, vPrev, lamPrev, pv, pq, pvpq)
		f, scalc = mismatchF(y, v, sbus, sxfr, lam, p, pvpq, pq)
		normF = powerflow.InfNorm(f)
		if normF < tol {
			return correctorResult{V: v, Lam: lam, Converged: true, Iterations: it, NormF: normF, Scalc: scalc}
		}
	}
	return correctorResult{V: v, Lam: lam, Converged: false, Iterations: maxIter, NormF: normF, Scalc: scalc}
}
