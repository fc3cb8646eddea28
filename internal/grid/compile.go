package grid

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// ErrNoSlack is returned when a case has no reference bus; the trace cannot
// start without one.
var ErrNoSlack = errors.New("grid: no slack bus in case")

// CompileTypes partitions bus indices by type. The returned pv and pq sets
// are each in ascending bus order; pvpq ordering (pv first, then pq) is the
// caller's concern. More than one slack bus is tolerated with a warning, the
// extra ones keep behaving as references.
func CompileTypes(types []BusType) (slack, pv, pq []int, err error) {
	for i, t := range types {
		switch t {
		case Slack:
			slack = append(slack, i)
		case PV:
			pv = append(pv, i)
		case PQ:
			pq = append(pq, i)
		default:
			return nil, nil, nil, fmt.Errorf("grid: bus %d has unknown type %v", i, t)
		}
	}
	if len(slack) == 0 {
		return nil, nil, nil, ErrNoSlack
	}
	if len(slack) > 1 {
		log.Warn("more than one slack bus", "count", len(slack))
	}
	return slack, pv, pq, nil
}

// Snapshot is the numerical view of a case: everything the power-flow and
// continuation solvers consume.
type Snapshot struct {
	Case  *Case
	Y     *CSR
	Sbus  []complex128 // net injections, per unit
	V0    []complex128
	Types []BusType
	Slack []int
	Pv    []int
	Pq    []int
	Qmax  []float64 // net reactive injection limits, per unit
	Qmin  []float64
	Vset  []float64
}

// Compile builds the numerical snapshot of a case.
func Compile(c *Case) (*Snapshot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	nb := len(c.Buses)
	s := &Snapshot{
		Case:  c,
		Y:     BuildYbus(c),
		Sbus:  make([]complex128, nb),
		V0:    make([]complex128, nb),
		Types: make([]BusType, nb),
		Qmax:  make([]float64, nb),
		Qmin:  make([]float64, nb),
		Vset:  make([]float64, nb),
	}
	for i, b := range c.Buses {
		t, err := ParseBusType(b.Type)
		if err != nil {
			return nil, err
		}
		s.Types[i] = t
		s.Sbus[i] = complex((b.Pg-b.Pd)/c.BaseMVA, (b.Qg-b.Qd)/c.BaseMVA)
		vm := b.Vset
		if vm == 0 {
			vm = 1.0
		}
		s.Vset[i] = vm
		s.V0[i] = complex(vm, 0)
		// limits apply to the net injection Qg-Qd
		s.Qmax[i] = (b.Qmax - b.Qd) / c.BaseMVA
		s.Qmin[i] = (b.Qmin - b.Qd) / c.BaseMVA
	}
	s.Slack, s.Pv, s.Pq, _ = CompileTypes(s.Types)
	if len(s.Slack) == 0 {
		return nil, ErrNoSlack
	}
	return s, nil
}

// TransferTarget builds the target injection vector for a loadability study:
// every load is scaled by factor, generation held. Sxfr = Starget - Sbus is
// then the loading direction of the trace.
func (s *Snapshot) TransferTarget(factor float64) []complex128 {
	target := make([]complex128, len(s.Sbus))
	base := s.Case.BaseMVA
	for i, b := range s.Case.Buses {
		load := complex(b.Pd/base, b.Qd/base)
		gen := complex(b.Pg/base, b.Qg/base)
		target[i] = gen - load*complex(factor, 0)
	}
	return target
}
