package cpf

import (
	"fmt"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/mat"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

// Parametrization selects the scalar constraint that completes the Newton
// system of the corrector. Natural continuation cannot represent lambda
// turning around and is only safe before the nose; the arc-length schemes
// trace through it.
type Parametrization int

const (
	Natural Parametrization = iota
	ArcLength
	PseudoArcLength
)

func (p Parametrization) String() string {
	switch p {
	case Natural:
		return "natural"
	case ArcLength:
		return "arc-length"
	case PseudoArcLength:
		return "pseudo-arc-length"
	default:
		return fmt.Sprintf("Parametrization(%d)", int(p))
	}
}

// ParseParametrization maps config spellings to a scheme. Unknown values are
// an error, not a silent fallback.
func ParseParametrization(s string) (Parametrization, error) {
	switch s {
	case "natural":
		return Natural, nil
	case "arc-length", "arclength":
		return ArcLength, nil
	case "pseudo-arc-length", "pseudo", "pseudoarclength":
		return PseudoArcLength, nil
	default:
		return Natural, fmt.Errorf("unknown parametrization %q", s)
	}
}

// StopAt selects when the trace terminates.
type StopAt int

const (
	StopAtNose StopAt = iota
	StopAtFullCurve
)

func (s StopAt) String() string {
	switch s {
	case StopAtNose:
		return "nose"
	case StopAtFullCurve:
		return "full-curve"
	default:
		return fmt.Sprintf("StopAt(%d)", int(s))
	}
}

func ParseStopAt(s string) (StopAt, error) {
	switch s {
	case "nose":
		return StopAtNose, nil
	case "full-curve", "full":
		return StopAtFullCurve, nil
	default:
		return StopAtNose, fmt.Errorf("unknown stop mode %q", s)
	}
}

// QControlMode selects reactive-power-limit enforcement.
type QControlMode int

const (
	QControlNone QControlMode = iota
	QControlDirect
)

func (m QControlMode) String() string {
	switch m {
	case QControlNone:
		return "none"
	case QControlDirect:
		return "direct"
	default:
		return fmt.Sprintf("QControlMode(%d)", int(m))
	}
}

func ParseQControl(s string) (QControlMode, error) {
	switch s {
	case "none", "":
		return QControlNone, nil
	case "direct":
		return QControlDirect, nil
	default:
		return QControlNone, fmt.Errorf("unknown q-control mode %q", s)
	}
}

// State is the driver's terminal condition.
type State int

const (
	Running State = iota
	StoppedNose
	StoppedFullCurve
	StoppedDiverged
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StoppedNose:
		return "stopped-nose"
	case StoppedFullCurve:
		return "stopped-full-curve"
	case StoppedDiverged:
		return "stopped-diverged"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// JacobianBuilder assembles the power-flow Jacobian block for the current
// voltages and bus partition. Injected so the continuation algorithm stays
// independent of the power-flow formulation.
type JacobianBuilder interface {
	Build(y *grid.CSR, v []complex128, pvpq, pq []int) *mat.Dense
}

// Options is the full configuration surface of the continuation driver.
type Options struct {
	Scheme       Parametrization
	Step         float64
	StepMin      float64
	StepMax      float64
	AdaptiveStep bool
	ErrorTol     float64 // step-adaptation error tolerance
	Tol          float64 // Newton convergence tolerance
	MaxIter      int
	StopAt       StopAt
	QControl     QControlMode
	Verbose      bool
	Observer     func(lam float64)
	Logger       *log.Logger
}

func DefaultOptions() Options {
	return Options{
		Scheme:       ArcLength,
		Step:         0.01,
		StepMin:      1e-5,
		StepMax:      0.2,
		AdaptiveStep: true,
		ErrorTol:     1e-3,
		Tol:          1e-6,
		MaxIter:      20,
		StopAt:       StopAtNose,
		QControl:     QControlNone,
	}
}

// Validate rejects malformed configuration before a trace starts, never
// mid-loop.
func (o *Options) Validate() error {
	switch o.Scheme {
	case Natural, ArcLength, PseudoArcLength:
	default:
		return fmt.Errorf("cpf: unrecognized parametrization %d", int(o.Scheme))
	}
	switch o.StopAt {
	case StopAtNose, StopAtFullCurve:
	default:
		return fmt.Errorf("cpf: unrecognized stop mode %d", int(o.StopAt))
	}
	switch o.QControl {
	case QControlNone, QControlDirect:
	default:
		return fmt.Errorf("cpf: unrecognized q-control mode %d", int(o.QControl))
	}
	if o.Step <= 0 {
		return fmt.Errorf("cpf: step must be positive, got %g", o.Step)
	}
	if o.StepMin <= 0 || o.StepMax < o.StepMin {
		return fmt.Errorf("cpf: invalid step bounds [%g, %g]", o.StepMin, o.StepMax)
	}
	if o.Tol <= 0 || o.ErrorTol <= 0 {
		return fmt.Errorf("cpf: tolerances must be positive")
	}
	if o.MaxIter <= 0 {
		return fmt.Errorf("cpf: max iterations must be positive, got %d", o.MaxIter)
	}
	return nil
}

// Input gathers the numerical inputs of a trace, as produced by grid.Compile
// on a solved base case.
type Input struct {
	Y          *grid.CSR
	SbusBase   []complex128
	SbusTarget []complex128
	V0         []complex128 // solved base-case voltages
	Types      []grid.BusType
	Vset       []float64 // PV/slack magnitude setpoints
	Qmax       []float64 // net reactive injection limits, per bus
	Qmin       []float64
}

// Result is the trace outcome. Voltages and Lambdas hold one entry per
// attempted continuation step, the last one included even if its corrector
// failed.
type Result struct {
	Voltages  [][]complex128
	Lambdas   []float64
	NormF     float64
	Success   bool
	State     State
	Steps     int
	MaxLambda float64
}
