package powerflow

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

// Result is the outcome of a one-shot Newton-Raphson power flow.
type Result struct {
	V          []complex128
	Converged  bool
	Iterations int
	NormF      float64
	Scalc      []complex128
}

// Residual evaluates the power-balance mismatch vector
// [Re(mis)(pvpq), Im(mis)(pq)] with mis = V∘conj(Y·V) − Sbus.
func Residual(y *grid.CSR, v, sbus []complex128, pvpq, pq []int) []float64 {
	scalc := Scalc(y, v)
	f := make([]float64, 0, len(pvpq)+len(pq))
	for _, b := range pvpq {
		f = append(f, real(scalc[b]-sbus[b]))
	}
	for _, b := range pq {
		f = append(f, imag(scalc[b]-sbus[b]))
	}
	return f
}

// Scalc computes the complex bus power injections V∘conj(Y·V).
func Scalc(y *grid.CSR, v []complex128) []complex128 {
	yv := y.MulVec(v)
	s := make([]complex128, len(v))
	for i := range v {
		s[i] = v[i] * cmplx.Conj(yv[i])
	}
	return s
}

// InfNorm returns the infinity norm of a vector.
func InfNorm(f []float64) float64 {
	m := 0.0
	for _, x := range f {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

// SolveNR runs a full Newton-Raphson power flow on the snapshot partition.
// Angles are solved at pv∪pq buses, magnitudes at pq buses; the slack bus
// holds the reference. The solved base case seeds the continuation trace.
func SolveNR(y *grid.CSR, sbus, v0 []complex128, pv, pq []int, tol float64, maxIter int) Result {
	v := append([]complex128(nil), v0...)
	pvpq := append(append([]int{}, pv...), pq...)
	npvpq := len(pvpq)
	npq := len(pq)

	va := make([]float64, len(v))
	vm := make([]float64, len(v))
	for i, vi := range v {
		va[i] = cmplx.Phase(vi)
		vm[i] = cmplx.Abs(vi)
	}

	f := Residual(y, v, sbus, pvpq, pq)
	normF := InfNorm(f)
	if normF < tol {
		return Result{V: v, Converged: true, NormF: normF, Scalc: Scalc(y, v)}
	}

	var it int
	for it = 1; it <= maxIter; it++ {
		j := Jacobian(y, v, pvpq, pq)

		var lu mat.LU
		lu.Factorize(j)
		dx := mat.NewVecDense(npvpq+npq, nil)
		if err := lu.SolveVecTo(dx, false, mat.NewVecDense(len(f), f)); err != nil {
			return Result{V: v, Converged: false, Iterations: it, NormF: normF, Scalc: Scalc(y, v)}
		}

		for k, b := range pvpq {
			va[b] -= dx.AtVec(k)
		}
		for k, b := range pq {
			vm[b] -= dx.AtVec(npvpq + k)
		}
		for i := range v {
			v[i] = cmplx.Rect(vm[i], va[i])
			vm[i] = cmplx.Abs(v[i])
			va[i] = cmplx.Phase(v[i])
		}

		f = Residual(y, v, sbus, pvpq, pq)
		normF = InfNorm(f)
		if normF < tol {
			return Result{V: v, Converged: true, Iterations: it, NormF: normF, Scalc: Scalc(y, v)}
		}
	}
	return Result{V: v, Converged: false, Iterations: maxIter, NormF: normF, Scalc: Scalc(y, v)}
}
