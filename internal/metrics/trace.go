// Package metrics computes summary figures of a finished continuation trace.
package metrics

import (
	"math/cmplx"

	"github.com/AnthonyZalev/gridtrace/internal/cpf"
)

// TraceSummary condenses a trace into the numbers a stability study reports.
type TraceSummary struct {
	Steps      int     `json:"steps"`
	MaxLambda  float64 `json:"max_lambda"`
	NoseIndex  int     `json:"nose_index"`
	NoseMinVm  float64 `json:"nose_min_vm"`
	MarginMVA  float64 `json:"margin_mva"`
	FinalNormF float64 `json:"final_norm_f"`
	State      string  `json:"state"`
	Success    bool    `json:"success"`
}

// Summarize derives the loadability margin and nose-point figures from a
// trace result. sxfr is the transfer vector of the trace, baseMVA the case
// power base; the margin is the total transferred apparent power at the
// maximum loading.
func Summarize(res *cpf.Result, sxfr []complex128, baseMVA float64) TraceSummary {
	s := TraceSummary{
		Steps:      res.Steps,
		MaxLambda:  res.MaxLambda,
		FinalNormF: res.NormF,
		State:      res.State.String(),
		Success:    res.Success,
	}
	for i, lam := range res.Lambdas {
		if lam == res.MaxLambda {
			s.NoseIndex = i
			break
		}
	}
	if s.NoseIndex < len(res.Voltages) {
		minVm := 0.0
		for i, v := range res.Voltages[s.NoseIndex] {
			vm := cmplx.Abs(v)
			if i == 0 || vm < minVm {
				minVm = vm
			}
		}
		s.NoseMinVm = minVm
	}
	total := 0.0
	for _, t := range sxfr {
		total += cmplx.Abs(t)
	}
	s.MarginMVA = res.MaxLambda * total * baseMVA
	return s
}

// LambdaSeries returns the loading-parameter trajectory, one entry per
// continuation step.
func LambdaSeries(res *cpf.Result) []float64 {
	return append([]float64(nil), res.Lambdas...)
}

// VmSeries extracts the voltage-magnitude trajectory of one bus.
func VmSeries(res *cpf.Result, bus int) []float64 {
	out := make([]float64, len(res.Voltages))
	for i, v := range res.Voltages {
		if bus < len(v) {
			out[i] = cmplx.Abs(v[bus])
		}
	}
	return out
}
