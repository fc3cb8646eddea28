package cpf

import (
	"math/cmplx"

	"github.com/AnthonyZalev/gridtrace/internal/grid"
)

// QController may reclassify buses between continuation steps when computed
// reactive power leaves its limits. Implementations must not mutate their
// arguments; changed reports whether any bus switched type.
type QController interface {
	Adjust(v []complex128, vset, q, qmax, qmin []float64, types, original []grid.BusType) (adjV []complex128, qnew []float64, newTypes []grid.BusType, changed bool)
}

// noQControl leaves the partition alone.
type noQControl struct{}

func (noQControl) Adjust(v []complex128, vset, q, qmax, qmin []float64, types, original []grid.BusType) ([]complex128, []float64, []grid.BusType, bool) {
	return v, q, types, false
}

// directQControl enforces reactive limits by direct bus-type switching:
// a PV bus whose computed Q violates a limit becomes PQ with its injection
// pinned at that limit; a switched bus reverts to PV when its voltage
// magnitude recovers across the setpoint in the releasing direction.
type directQControl struct{}

func (directQControl) Adjust(v []complex128, vset, q, qmax, qmin []float64, types, original []grid.BusType) ([]complex128, []float64, []grid.BusType, bool) {
	adjV := append([]complex128(nil), v...)
	qnew := append([]float64(nil), q...)
	newTypes := append([]grid.BusType(nil), types...)
	changed := false

	for i := range types {
		switch {
		case types[i] == grid.PV:
			if q[i] > qmax[i] {
				newTypes[i] = grid.PQ
				qnew[i] = qmax[i]
				changed = true
			} else if q[i] < qmin[i] {
				newTypes[i] = grid.PQ
				qnew[i] = qmin[i]
				changed = true
			}

		case types[i] == grid.PQ && original[i] == grid.PV:
			vm := cmplx.Abs(v[i])
			// pinned at Qmax: more Q would raise the voltage, so a
			// magnitude above setpoint means the limit is no longer
			// binding; mirrored for Qmin
			atMax := q[i] >= qmax[i]
			if (atMax && vm > vset[i]) || (!atMax && vm < vset[i]) {
				newTypes[i] = grid.PV
				adjV[i] = cmplx.Rect(vset[i], cmplx.Phase(v[i]))
				changed = true
			}
		}
	}
	return adjV, qnew, newTypes, changed
}

func controllerFor(mode QControlMode) QController {
	if mode == QControlDirect {
		return directQControl{}
	}
	return noQControl{}
}
