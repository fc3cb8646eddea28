package powerflow

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

func solvedSnapshot(t *testing.T, name string) (*grid.Snapshot, Result) {
	t.Helper()
	s, err := grid.Compile(grid.Cases[name])
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	res := SolveNR(s.Y, s.Sbus, s.V0, s.Pv, s.Pq, 1e-8, 20)
	if !res.Converged {
		t.Fatalf("%s power flow did not converge, normF = %g", name, res.NormF)
	}
	return s, res
}

func TestSolveNRThreeBus(t *testing.T) {
	s, res := solvedSnapshot(t, "three-bus")

	if res.NormF > 1e-8 {
		t.Errorf("normF = %g, want < 1e-8", res.NormF)
	}

	// slack voltage untouched
	if got := res.V[0]; cmplx.Abs(got-complex(1.02, 0)) > 1e-12 {
		t.Errorf("slack voltage moved: %v", got)
	}
	// PV magnitude held at setpoint
	if got := cmplx.Abs(res.V[1]); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("PV magnitude = %g, want 1.0", got)
	}
	// the load pulls the PQ bus below nominal
	if got := cmplx.Abs(res.V[2]); got >= 1.0 {
		t.Errorf("load bus magnitude = %g, expected below 1.0", got)
	}

	// converged solution satisfies the power balance at the load bus
	mis := res.Scalc[2] - s.Sbus[2]
	if cmplx.Abs(mis) > 1e-7 {
		t.Errorf("load bus mismatch = %v", mis)
	}
}

func TestSolveNRIEEE9(t *testing.T) {
	_, res := solvedSnapshot(t, "ieee9")
	if res.Iterations == 0 || res.Iterations > 10 {
		t.Errorf("unexpected iteration count %d", res.Iterations)
	}
	for i, v := range res.V {
		vm := cmplx.Abs(v)
		if vm < 0.9 || vm > 1.1 {
			t.Errorf("bus %d magnitude %g outside normal band", i, vm)
		}
	}
}

func TestSolveNRAlreadyConverged(t *testing.T) {
	s, res := solvedSnapshot(t, "three-bus")

	again := SolveNR(s.Y, s.Sbus, res.V, s.Pv, s.Pq, 1e-8, 20)
	if !again.Converged {
		t.Fatal("re-solve from solution did not converge")
	}
	if again.Iterations != 0 {
		t.Errorf("expected 0 iterations from a solved start, got %d", again.Iterations)
	}
}

func TestSolveNRDivergence(t *testing.T) {
	s, err := grid.Compile(grid.Cases["three-bus"])
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// demand far beyond the network's capacity
	sbus := append([]complex128(nil), s.Sbus...)
	sbus[2] = complex(-50, -20)

	res := SolveNR(s.Y, sbus, s.V0, s.Pv, s.Pq, 1e-8, 20)
	if res.Converged {
		t.Error("expected divergence on infeasible loading")
	}
}

// TestJacobianFiniteDifference checks the analytic Jacobian against a central
// difference of the residual, column by column.
func TestJacobianFiniteDifference(t *testing.T) {
	s, res := solvedSnapshot(t, "lynn5")

	pvpq := append(append([]int{}, s.Pv...), s.Pq...)
	npvpq := len(pvpq)
	npq := len(s.Pq)
	n := npvpq + npq

	v := res.V
	j := Jacobian(s.Y, v, pvpq, s.Pq)

	perturb := func(k int, h float64) []complex128 {
		vp := append([]complex128(nil), v...)
		if k < npvpq {
			b := pvpq[k]
			vp[b] = cmplx.Rect(cmplx.Abs(v[b]), cmplx.Phase(v[b])+h)
		} else {
			b := s.Pq[k-npvpq]
			vp[b] = cmplx.Rect(cmplx.Abs(v[b])+h, cmplx.Phase(v[b]))
		}
		return vp
	}

	const h = 1e-6
	for col := 0; col < n; col++ {
		fPlus := Residual(s.Y, perturb(col, h), s.Sbus, pvpq, s.Pq)
		fMinus := Residual(s.Y, perturb(col, -h), s.Sbus, pvpq, s.Pq)
		for row := 0; row < n; row++ {
			fd := (fPlus[row] - fMinus[row]) / (2 * h)
			if diff := math.Abs(j.At(row, col) - fd); diff > 1e-5 {
				t.Errorf("J[%d][%d] = %g, finite difference %g", row, col, j.At(row, col), fd)
			}
		}
	}
}

func TestInfNorm(t *testing.T) {
	if got := InfNorm([]float64{1, -3, 2}); got != 3 {
		t.Errorf("InfNorm = %g, want 3", got)
	}
	if got := InfNorm(nil); got != 0 {
		t.Errorf("InfNorm(nil) = %g, want 0", got)
	}
}
