package cpf

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
	"github.com/AnthonyZalev/gridtrace/internal/powerflow"
)

func TestDriverTracesToNose(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)
	opts := DefaultOptions()

	drv, err := New(in, opts, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	res := drv.Run()

	if res.State != StoppedNose {
		t.Fatalf("state = %v, want stopped-nose", res.State)
	}
	if !res.Success {
		t.Error("last correction should have converged")
	}
	if res.MaxLambda <= 0 {
		t.Errorf("max lambda = %g, want > 0", res.MaxLambda)
	}
	if len(res.Voltages) != len(res.Lambdas) || len(res.Lambdas) != res.Steps {
		t.Errorf("trajectory lengths: %d voltages, %d lambdas, %d steps",
			len(res.Voltages), len(res.Lambdas), res.Steps)
	}
	if res.NormF > opts.Tol {
		t.Errorf("final normF = %g, want < %g", res.NormF, opts.Tol)
	}

	// lambda rises monotonically until the final, past-nose point
	for i := 1; i < len(res.Lambdas)-1; i++ {
		if res.Lambdas[i] < res.Lambdas[i-1] {
			t.Errorf("lambda fell at step %d before the nose: %g -> %g",
				i, res.Lambdas[i-1], res.Lambdas[i])
		}
	}
	last := res.Lambdas[len(res.Lambdas)-1]
	if last >= res.MaxLambda {
		t.Errorf("final lambda %g did not turn back from the maximum %g", last, res.MaxLambda)
	}

	// every recorded point satisfies the lambda-scaled power balance:
	// active power at pv and pq buses, reactive power at pq buses
	sxfr := transfer(in)
	_, pv, pq, _ := grid.CompileTypes(in.Types)
	for i, v := range res.Voltages {
		scalc := powerflow.Scalc(in.Y, v)
		for _, b := range pv {
			mis := scalc[b] - in.SbusBase[b] - complex(res.Lambdas[i], 0)*sxfr[b]
			if math.Abs(real(mis)) > 1e-5 {
				t.Errorf("point %d bus %d active mismatch %g", i, b, real(mis))
			}
		}
		for _, b := range pq {
			mis := scalc[b] - in.SbusBase[b] - complex(res.Lambdas[i], 0)*sxfr[b]
			if cmplx.Abs(mis) > 1e-5 {
				t.Errorf("point %d bus %d mismatch %v", i, b, mis)
			}
		}
	}
}

func TestDriverFullCurve(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)
	opts := DefaultOptions()
	opts.StopAt = StopAtFullCurve

	drv, err := New(in, opts, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	res := drv.Run()

	if res.State != StoppedFullCurve {
		t.Fatalf("state = %v, want stopped-full-curve", res.State)
	}
	last := res.Lambdas[len(res.Lambdas)-1]
	if math.Abs(last) > 1e-6 {
		t.Errorf("final lambda = %g, want ~0", last)
	}

	// the adapted step must never carry a corrected point past lambda=0
	for i, lam := range res.Lambdas {
		if lam < -1e-6 {
			t.Errorf("step %d overshot below zero: lambda = %g", i, lam)
		}
	}

	// the trace returns on the lower branch: the final load-bus voltage
	// sits well below the starting one at the same loading
	loadBus := 2
	vStart := cmplx.Abs(res.Voltages[0][loadBus])
	vEnd := cmplx.Abs(res.Voltages[len(res.Voltages)-1][loadBus])
	if vEnd >= vStart {
		t.Errorf("lower-branch voltage %g not below upper-branch %g", vEnd, vStart)
	}
	if res.MaxLambda <= 0 {
		t.Errorf("max lambda = %g, want > 0", res.MaxLambda)
	}
}

func TestDriverNaturalScheme(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)
	opts := DefaultOptions()
	opts.Scheme = Natural
	opts.Step = 0.05
	opts.AdaptiveStep = false

	drv, err := New(in, opts, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	res := drv.Run()

	// natural continuation cannot follow the curve around the nose; the
	// trace ends there either by detection or by corrector failure
	if res.State != StoppedNose && res.State != StoppedDiverged {
		t.Fatalf("state = %v, want nose or diverged", res.State)
	}
	if res.MaxLambda <= 0 {
		t.Errorf("max lambda = %g, want > 0", res.MaxLambda)
	}
}

func TestDriverSchemesAgreeOnNose(t *testing.T) {
	noses := make(map[Parametrization]float64)
	for _, scheme := range []Parametrization{ArcLength, PseudoArcLength} {
		in := solvedInput(t, "lynn5", 3.0)
		opts := DefaultOptions()
		opts.Scheme = scheme

		drv, err := New(in, opts, nil)
		if err != nil {
			t.Fatalf("%v: new driver: %v", scheme, err)
		}
		res := drv.Run()
		if res.State != StoppedNose {
			t.Fatalf("%v: state = %v, want stopped-nose", scheme, res.State)
		}
		noses[scheme] = res.MaxLambda
	}

	// the nose is a property of the network, not of the parametrization
	diff := math.Abs(noses[ArcLength] - noses[PseudoArcLength])
	if diff > 0.05 {
		t.Errorf("schemes disagree on the nose: %v", noses)
	}
}

func TestDriverObserver(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)
	opts := DefaultOptions()
	var seen []float64
	opts.Observer = func(lam float64) { seen = append(seen, lam) }

	drv, err := New(in, opts, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	res := drv.Run()

	if len(seen) == 0 {
		t.Fatal("observer never called")
	}
	if len(seen) != res.Steps {
		t.Errorf("observer called %d times for %d steps", len(seen), res.Steps)
	}
	if seen[len(seen)-1] != res.Lambdas[len(res.Lambdas)-1] {
		t.Errorf("last observed lambda %g != last recorded %g",
			seen[len(seen)-1], res.Lambdas[len(res.Lambdas)-1])
	}
}

func TestDriverQControlReducesMargin(t *testing.T) {
	run := func(mode QControlMode) *Result {
		in := solvedInput(t, "three-bus", 3.0)
		opts := DefaultOptions()
		opts.QControl = mode
		drv, err := New(in, opts, nil)
		if err != nil {
			t.Fatalf("new driver: %v", err)
		}
		return drv.Run()
	}

	unlimited := run(QControlNone)
	if unlimited.State != StoppedNose {
		t.Fatalf("unlimited state = %v, want stopped-nose", unlimited.State)
	}

	// the generator hits Qmax before the unlimited nose; after the switch
	// the trace ends at the reduced nose, or by corrector failure when the
	// switch point already lies past it
	limited := run(QControlDirect)
	if limited.State != StoppedNose && limited.State != StoppedDiverged {
		t.Fatalf("limited state = %v, want nose or diverged", limited.State)
	}
	if limited.MaxLambda <= 0 {
		t.Fatalf("limited max lambda = %g, want > 0", limited.MaxLambda)
	}
	if limited.MaxLambda >= unlimited.MaxLambda {
		t.Errorf("binding reactive limit did not reduce the margin: %g vs %g",
			limited.MaxLambda, unlimited.MaxLambda)
	}

	// the maximum loading comes from converged points only, never from the
	// trailing failed one
	if limited.State == StoppedDiverged {
		maxConverged := 0.0
		for _, lam := range limited.Lambdas[:len(limited.Lambdas)-1] {
			if lam > maxConverged {
				maxConverged = lam
			}
		}
		if limited.MaxLambda != maxConverged {
			t.Errorf("max lambda %g, want %g from the converged trajectory",
				limited.MaxLambda, maxConverged)
		}
	}
}

func TestMaxLambdaExcludesFailedStep(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)
	opts := DefaultOptions()
	// one Newton iteration against a tight tolerance cannot converge, so
	// the very first continuation step fails
	opts.Tol = 1e-12
	opts.MaxIter = 1
	opts.Step = 0.2
	opts.AdaptiveStep = false

	drv, err := New(in, opts, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	res := drv.Run()

	if res.State != StoppedDiverged {
		t.Fatalf("state = %v, want stopped-diverged", res.State)
	}
	if res.Steps != 1 || len(res.Lambdas) != 1 {
		t.Fatalf("steps = %d, lambdas = %d, want 1 each", res.Steps, len(res.Lambdas))
	}
	// the failed point is recorded in the trajectory but must not define
	// the maximum loading
	if res.MaxLambda != 0 {
		t.Errorf("max lambda = %g from a failed step, want 0", res.MaxLambda)
	}
}

func TestDriverInputValidation(t *testing.T) {
	in := solvedInput(t, "three-bus", 3.0)

	t.Run("bad step", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Step = -1
		if _, err := New(in, opts, nil); err == nil {
			t.Error("expected error for negative step")
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		bad := *in
		bad.V0 = bad.V0[:2]
		if _, err := New(&bad, DefaultOptions(), nil); err == nil {
			t.Error("expected error for short V0")
		}
	})

	t.Run("no slack", func(t *testing.T) {
		bad := *in
		bad.Types = []grid.BusType{grid.PQ, grid.PQ, grid.PQ}
		if _, err := New(&bad, DefaultOptions(), nil); err == nil {
			t.Error("expected error for missing slack bus")
		}
	})
}

func TestAdaptStep(t *testing.T) {
	tests := []struct {
		name     string
		step     float64
		cpfError float64
		want     float64
	}{
		{"small error grows", 0.01, 1e-4, 0.1},
		{"large error shrinks", 0.1, 1e-2, 0.01},
		{"clamped to max", 0.1, 1e-6, 0.2},
		{"clamped to min", 0.01, 1e2, 1e-5},
		{"zero error hits max", 0.01, 0, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adaptStep(tt.step, tt.cpfError, 1e-3, 1e-5, 0.2)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("adaptStep = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestStepError(t *testing.T) {
	pv := []int{1}
	pq := []int{2}

	v := []complex128{complex(1, 0), cmplx.Rect(1.01, 0.02), cmplx.Rect(0.95, -0.1)}
	v0 := []complex128{complex(1, 0), cmplx.Rect(1.0, 0.02), cmplx.Rect(0.96, -0.13)}

	// contributions: angle(pq)=0.03, |V|(pv)=0.01, |V|(pq)=0.01, lambda=0.005
	got := stepError(v, v0, 0.5, 0.495, pv, pq)
	if math.Abs(got-0.03) > 1e-10 {
		t.Errorf("stepError = %g, want 0.03", got)
	}

	// identical points have zero error
	if e := stepError(v, v, 0.5, 0.5, pv, pq); e != 0 {
		t.Errorf("stepError at identical points = %g, want 0", e)
	}
}
