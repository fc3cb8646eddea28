package cpf

import "math/cmplx"

// paramValue evaluates the parametrization constraint P(x, lambda) at the
// current iterate.
//
// Natural: ±(lam − lamPrev) − step, signed so P is positive when moving in
// the direction established by the previous step.
//
// ArcLength: squared Euclidean distance from the previous point in
// (angle, magnitude, lambda) space minus step². Sign-indifferent, which is
// what lets the corrector hold a point on either side of the nose.
//
// PseudoArcLength: z·(x − xPrev) − step, the linearization of arc length
// along the previous tangent z.
//
// z is the full-length tangent vector (2·nb+1); only its pvpq angle slots,
// pq magnitude slots and final lambda slot are meaningful.
func paramValue(scheme Parametrization, step float64, z []float64, v []complex128, lam float64, vPrev []complex128, lamPrev float64, pv, pq, pvpq []int) float64 {
	switch scheme {
	case ArcLength:
		sum := 0.0
		for _, b := range pvpq {
			d := cmplx.Phase(v[b]) - cmplx.Phase(vPrev[b])
			sum += d * d
		}
		for _, b := range pq {
			d := cmplx.Abs(v[b]) - cmplx.Abs(vPrev[b])
			sum += d * d
		}
		d := lam - lamPrev
		return sum + d*d - step*step

	case PseudoArcLength:
		nb := len(v)
		p := 0.0
		for _, b := range pvpq {
			p += z[b] * (cmplx.Phase(v[b]) - cmplx.Phase(vPrev[b]))
		}
		for _, b := range pq {
			p += z[nb+b] * (cmplx.Abs(v[b]) - cmplx.Abs(vPrev[b]))
		}
		p += z[2*nb] * (lam - lamPrev)
		return p - step

	default:
		// Natural; also the lenient fallback the options validation
		// keeps out of reach for unknown scheme values.
		if lam >= lamPrev {
			return lam - lamPrev - step
		}
		return lamPrev - lam - step
	}
}

// paramJacobian computes the derivatives of the parametrization constraint:
// dP/dV over the corrector unknowns [angle(pvpq), magnitude(pq)] and dP/dlam.
func paramJacobian(scheme Parametrization, z []float64, v []complex128, lam float64, vPrev []complex128, lamPrev float64, pv, pq, pvpq []int) (dPdV []float64, dPdLam float64) {
	npvpq := len(pvpq)
	npq := len(pq)

	switch scheme {
	case Natural:
		dPdV = make([]float64, npvpq+npq)
		if lam >= lamPrev {
			dPdLam = 1.0
		} else {
			dPdLam = -1.0
		}

	case ArcLength:
		dPdV = make([]float64, npvpq+npq)
		for k, b := range pvpq {
			dPdV[k] = 2 * (cmplx.Phase(v[b]) - cmplx.Phase(vPrev[b]))
		}
		for k, b := range pq {
			dPdV[npvpq+k] = 2 * (cmplx.Abs(v[b]) - cmplx.Abs(vPrev[b]))
		}
		if lam == lamPrev {
			// first step: avoid the zero row [dPdV dPdLam] = 0 that
			// would make the augmented Jacobian singular
			dPdLam = 1.0
		} else {
			dPdLam = 2 * (lam - lamPrev)
		}

	default:
		// PseudoArcLength, and the same fallback the original applies
		nb := len(v)
		dPdV = make([]float64, npvpq+npq)
		for k, b := range pvpq {
			dPdV[k] = z[b]
		}
		for k, b := range pq {
			dPdV[npvpq+k] = z[nb+b]
		}
		dPdLam = z[2*nb]
	}
	return dPdV, dPdLam
}
