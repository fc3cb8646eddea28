package metrics

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/AnthonyZalev/gridtrace/internal/cpf"
)

func traceResult() *cpf.Result {
	return &cpf.Result{
		Voltages: [][]complex128{
			{complex(1.02, 0), complex(0.98, 0)},
			{complex(1.02, 0), complex(0.92, 0)},
			{complex(1.02, 0), complex(0.85, 0)},
		},
		Lambdas:   []float64{0.2, 0.5, 0.45},
		NormF:     3e-9,
		Success:   true,
		State:     cpf.StoppedNose,
		Steps:     3,
		MaxLambda: 0.5,
	}
}

func TestSummarize(t *testing.T) {
	res := traceResult()
	sxfr := []complex128{0, complex(-0.8, -0.3)}

	s := Summarize(res, sxfr, 100)

	if s.Steps != 3 || !s.Success {
		t.Errorf("steps %d success %v", s.Steps, s.Success)
	}
	if s.MaxLambda != 0.5 {
		t.Errorf("max lambda = %g, want 0.5", s.MaxLambda)
	}
	if s.NoseIndex != 1 {
		t.Errorf("nose index = %d, want 1", s.NoseIndex)
	}
	if math.Abs(s.NoseMinVm-0.92) > 1e-12 {
		t.Errorf("nose min vm = %g, want 0.92", s.NoseMinVm)
	}
	wantMargin := 0.5 * cmplx.Abs(complex(-0.8, -0.3)) * 100
	if math.Abs(s.MarginMVA-wantMargin) > 1e-9 {
		t.Errorf("margin = %g, want %g", s.MarginMVA, wantMargin)
	}
	if s.State != "stopped-nose" {
		t.Errorf("state = %q", s.State)
	}
}

func TestSeries(t *testing.T) {
	res := traceResult()

	lams := LambdaSeries(res)
	if len(lams) != 3 || lams[1] != 0.5 {
		t.Errorf("lambda series %v", lams)
	}
	// a copy, not an alias
	lams[0] = 99
	if res.Lambdas[0] == 99 {
		t.Error("LambdaSeries aliases the result")
	}

	vm := VmSeries(res, 1)
	if len(vm) != 3 || math.Abs(vm[2]-0.85) > 1e-12 {
		t.Errorf("vm series %v", vm)
	}
	if out := VmSeries(res, 7); len(out) != 3 {
		t.Errorf("out-of-range bus should still yield a full-length series, got %d", len(out))
	}
}
