package cpf

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/charmbracelet/log"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
	"github.com/AnthonyZalev/gridtrace/internal/powerflow"
)

// Driver traces the continuation curve by alternating tangent prediction and
// Newton correction, adapting the step size and enforcing reactive limits
// between steps. All state that persists across steps (tangent, step size,
// partition, trajectory) is owned here.
type Driver struct {
	in   *Input
	opts Options
	jb   JacobianBuilder
	qc   QController
	log  *log.Logger
}

// New validates the configuration and builds a driver. jb may be nil, in
// which case the standard power-flow Jacobian is used.
func New(in *Input, opts Options, jb JacobianBuilder) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	nb := len(in.SbusBase)
	if len(in.SbusTarget) != nb || len(in.V0) != nb || len(in.Types) != nb {
		return nil, fmt.Errorf("cpf: inconsistent input vector lengths")
	}
	if in.Y == nil || in.Y.N != nb {
		return nil, fmt.Errorf("cpf: admittance matrix size does not match bus count")
	}
	if _, _, _, err := grid.CompileTypes(in.Types); err != nil {
		return nil, err
	}
	if jb == nil {
		jb = powerflow.Builder{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{in: in, opts: opts, jb: jb, qc: controllerFor(opts.QControl), log: logger}, nil
}

// Run executes the trace to a terminal state and returns the accumulated
// trajectory. Corrector failure is not an error: it ends the trace with
// StoppedDiverged and a partial trajectory.
func (d *Driver) Run() *Result {
	nb := len(d.in.SbusBase)
	scheme := d.opts.Scheme
	step := d.opts.Step
	adapt := d.opts.AdaptiveStep

	sxfr := make([]complex128, nb)
	for i := range sxfr {
		sxfr[i] = d.in.SbusTarget[i] - d.in.SbusBase[i]
	}
	sbus := append([]complex128(nil), d.in.SbusBase...)

	types := append([]grid.BusType(nil), d.in.Types...)
	originalTypes := append([]grid.BusType(nil), d.in.Types...)
	_, pv, pq, _ := grid.CompileTypes(types)

	v := append([]complex128(nil), d.in.V0...)
	vPrev := append([]complex128(nil), d.in.V0...)
	lam, lamPrev := 0.0, 0.0

	// tangent starts as the unit vector in the lambda direction
	z := make([]float64, 2*nb+1)
	z[2*nb] = 1

	res := &Result{}
	state := Running

	for state == Running {
		res.Steps++

		v0, lam0, zNew, err := predict(d.jb, d.in.Y, v, lam, sxfr, pv, pq, step, z, vPrev, lamPrev, scheme)
		if err != nil {
			// singular tangent system: same treatment as a failed correction
			if d.opts.Verbose {
				d.log.Warn("tangent solve failed", "step", res.Steps, "err", err)
			}
			res.Voltages = append(res.Voltages, append([]complex128(nil), v...))
			res.Lambdas = append(res.Lambdas, lam)
			state = StoppedDiverged
			break
		}
		z = zNew

		vPrev = append(vPrev[:0], v...)
		lamPrev = lam

		cr := correct(d.jb, d.in.Y, sbus, v0, pv, pq, lam0, sxfr, vPrev, lamPrev, z, step, scheme, d.opts.Tol, d.opts.MaxIter)
		v = cr.V
		lam = cr.Lam
		res.NormF = cr.NormF
		res.Success = cr.Converged

		// the trajectory records every attempted step, failures included
		res.Voltages = append(res.Voltages, append([]complex128(nil), v...))
		res.Lambdas = append(res.Lambdas, lam)

		if !cr.Converged {
			if d.opts.Verbose {
				d.log.Warn("corrector did not converge", "step", res.Steps, "lambda", lam, "iterations", cr.Iterations)
			}
			state = StoppedDiverged
			break
		}
		// only converged points define the maximum loading
		if lam > res.MaxLambda {
			res.MaxLambda = lam
		}
		if d.opts.Verbose {
			d.log.Info("continuation step", "step", res.Steps, "lambda", lam, "iterations", cr.Iterations, "normF", cr.NormF)
		}

		if d.opts.QControl != QControlNone {
			q := make([]float64, nb)
			for i := range q {
				q[i] = imag(cr.Scalc[i])
			}
			adjV, qnew, newTypes, changed := d.qc.Adjust(v, d.in.Vset, q, d.in.Qmax, d.in.Qmin, types, originalTypes)
			if changed {
				v = adjV
				types = newTypes
				for i := range types {
					if types[i] == grid.PQ && originalTypes[i] == grid.PV {
						sbus[i] = complex(real(sbus[i]), qnew[i])
					}
				}
				_, pv, pq, _ = grid.CompileTypes(types)
				if d.opts.Verbose {
					d.log.Info("reactive limits re-partitioned buses", "step", res.Steps, "pv", len(pv), "pq", len(pq))
				}
			}
		}

		if adapt {
			cpfError := stepError(v, v0, lam, lam0, pv, pq)
			step = adaptStep(step, cpfError, d.opts.ErrorTol, d.opts.StepMin, d.opts.StepMax)
		}

		// the overshoot check must see the adapted step, or a grown step
		// can carry the next corrected point below lambda=0
		switch d.opts.StopAt {
		case StopAtFullCurve:
			if math.Abs(lam) < 1e-8 {
				state = StoppedFullCurve
			} else if lam < lamPrev && lam-step < 0 {
				// the next step would overshoot past lambda=0: clamp so
				// the corrector lands on zero, force natural
				// parametrization and freeze the step for the remainder
				// of the trace
				step = math.Abs(lam)
				scheme = Natural
				adapt = false
			}
		case StopAtNose:
			if lam < lamPrev {
				state = StoppedNose
			}
		}

		if d.opts.Observer != nil {
			d.opts.Observer(lam)
		}
	}

	res.State = state
	return res
}

// stepError is the infinity norm of the difference between the corrected and
// predicted points over [angle(pq), |V|(pvpq), lambda].
func stepError(v, v0 []complex128, lam, lam0 float64, pv, pq []int) float64 {
	e := 0.0
	for _, b := range pq {
		if d := math.Abs(cmplx.Phase(v[b]) - cmplx.Phase(v0[b])); d > e {
			e = d
		}
	}
	for _, b := range pv {
		if d := math.Abs(cmplx.Abs(v[b]) - cmplx.Abs(v0[b])); d > e {
			e = d
		}
	}
	for _, b := range pq {
		if d := math.Abs(cmplx.Abs(v[b]) - cmplx.Abs(v0[b])); d > e {
			e = d
		}
	}
	if d := math.Abs(lam - lam0); d > e {
		e = d
	}
	return e
}

// adaptStep applies the continuation step control law: grow the step when the
// corrector needed little correction, shrink it when correction was large.
// A zero error is floored to avoid dividing by zero.
func adaptStep(step, cpfError, errorTol, stepMin, stepMax float64) float64 {
	if cpfError == 0 {
		cpfError = 1e-20
	}
	step = step * errorTol / cpfError
	if step > stepMax {
		step = stepMax
	}
	if step < stepMin {
		step = stepMin
	}
	return step
}
