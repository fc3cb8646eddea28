package grid

// Bundled study cases, usable by name anywhere a case file is accepted.
var Cases = map[string]*Case{
	"three-bus": {
		Name:    "three-bus",
		BaseMVA: 100,
		Buses: []Bus{
			{Name: "slack", Type: "slack", Vset: 1.02},
			{Name: "gen", Type: "pv", Vset: 1.0, Pg: 40, Qmin: -50, Qmax: 50},
			{Name: "load", Type: "pq", Pd: 80, Qd: 30},
		},
		Branches: []Branch{
			{From: 0, To: 1, R: 0.04, X: 0.25, B: 0.02},
			{From: 0, To: 2, R: 0.05, X: 0.35, B: 0.02},
			{From: 1, To: 2, R: 0.04, X: 0.30, B: 0.02},
		},
	},
	"lynn5": {
		Name:    "lynn5",
		BaseMVA: 100,
		Buses: []Bus{
			{Name: "bus1", Type: "slack", Vset: 1.0},
			{Name: "bus2", Type: "pq", Pd: 40, Qd: 20},
			{Name: "bus3", Type: "pq", Pd: 25, Qd: 15},
			{Name: "bus4", Type: "pq", Pd: 40, Qd: 20},
			{Name: "bus5", Type: "pv", Vset: 1.0, Pg: 50, Pd: 50, Qd: 30, Qmin: -40, Qmax: 40},
		},
		Branches: []Branch{
			{From: 0, To: 1, R: 0.05, X: 0.11, B: 0.04},
			{From: 0, To: 2, R: 0.05, X: 0.11, B: 0.04},
			{From: 0, To: 4, R: 0.03, X: 0.08, B: 0.04},
			{From: 1, To: 2, R: 0.04, X: 0.09, B: 0.04},
			{From: 1, To: 4, R: 0.04, X: 0.09, B: 0.04},
			{From: 2, To: 3, R: 0.06, X: 0.13, B: 0.06},
			{From: 3, To: 4, R: 0.04, X: 0.09, B: 0.04},
		},
	},
	"ieee9": {
		Name:    "ieee9",
		BaseMVA: 100,
		Buses: []Bus{
			{Name: "bus1", Type: "slack", Vset: 1.04},
			{Name: "bus2", Type: "pv", Vset: 1.025, Pg: 163, Qmin: -100, Qmax: 150},
			{Name: "bus3", Type: "pv", Vset: 1.025, Pg: 85, Qmin: -100, Qmax: 150},
			{Name: "bus4", Type: "pq"},
			{Name: "bus5", Type: "pq", Pd: 125, Qd: 50},
			{Name: "bus6", Type: "pq", Pd: 90, Qd: 30},
			{Name: "bus7", Type: "pq"},
			{Name: "bus8", Type: "pq", Pd: 100, Qd: 35},
			{Name: "bus9", Type: "pq"},
		},
		Branches: []Branch{
			{From: 0, To: 3, X: 0.0576},
			{From: 1, To: 6, X: 0.0625},
			{From: 2, To: 8, X: 0.0586},
			{From: 3, To: 4, R: 0.010, X: 0.085, B: 0.176},
			{From: 3, To: 5, R: 0.017, X: 0.092, B: 0.158},
			{From: 4, To: 6, R: 0.032, X: 0.161, B: 0.306},
			{From: 5, To: 8, R: 0.039, X: 0.170, B: 0.358},
			{From: 6, To: 7, R: 0.0085, X: 0.072, B: 0.149},
			{From: 7, To: 8, R: 0.0119, X: 0.1008, B: 0.209},
		},
	},
}

// CaseNames lists the bundled cases.
func CaseNames() []string {
	names := make([]string, 0, len(Cases))
	for name := range Cases {
		names = append(names, name)
	}
	return names
}
