package grid

import "fmt"

// BusType classifies a bus for power-flow solving.
type BusType int

const (
	PQ BusType = iota
	PV
	Slack
)

func (t BusType) String() string {
	switch t {
	case PQ:
		return "PQ"
	case PV:
		return "PV"
	case Slack:
		return "Slack"
	default:
		return fmt.Sprintf("BusType(%d)", int(t))
	}
}

// Bus is a node of the network. Power values are in MW/MVAr at the case
// base, voltage setpoints in per unit.
type Bus struct {
	Name string  `yaml:"name"`
	Type string  `yaml:"type"` // "slack", "pv" or "pq"
	Vset float64 `yaml:"vset"`
	Pd   float64 `yaml:"pd"`
	Qd   float64 `yaml:"qd"`
	Pg   float64 `yaml:"pg"`
	Qg   float64 `yaml:"qg"`
	Qmin float64 `yaml:"qmin"`
	Qmax float64 `yaml:"qmax"`
}

// Branch is a pi-model line or transformer between two buses, identified by
// bus index. Impedances are in per unit on the case base; B is the total
// line-charging susceptance. Tap of 0 means 1.0.
type Branch struct {
	From  int     `yaml:"from"`
	To    int     `yaml:"to"`
	R     float64 `yaml:"r"`
	X     float64 `yaml:"x"`
	B     float64 `yaml:"b"`
	Tap   float64 `yaml:"tap"`
	Shift float64 `yaml:"shift"` // degrees
}

// Case is a complete study case.
type Case struct {
	Name     string   `yaml:"name"`
	BaseMVA  float64  `yaml:"base_mva"`
	Buses    []Bus    `yaml:"buses"`
	Branches []Branch `yaml:"branches"`
}

// ParseBusType maps the case-file spelling to a BusType.
func ParseBusType(s string) (BusType, error) {
	switch s {
	case "pq", "PQ", "":
		return PQ, nil
	case "pv", "PV":
		return PV, nil
	case "slack", "Slack", "ref", "vd":
		return Slack, nil
	default:
		return PQ, fmt.Errorf("unknown bus type: %q", s)
	}
}

func (c *Case) Validate() error {
	if len(c.Buses) == 0 {
		return fmt.Errorf("case %q has no buses", c.Name)
	}
	if c.BaseMVA <= 0 {
		return fmt.Errorf("case %q: base_mva must be positive, got %f", c.Name, c.BaseMVA)
	}
	nb := len(c.Buses)
	for i, b := range c.Buses {
		if _, err := ParseBusType(b.Type); err != nil {
			return fmt.Errorf("bus %d: %w", i, err)
		}
	}
	for i, br := range c.Branches {
		if br.From < 0 || br.From >= nb || br.To < 0 || br.To >= nb {
			return fmt.Errorf("branch %d: bus index out of range", i)
		}
		if br.From == br.To {
			return fmt.Errorf("branch %d: from and to are the same bus", i)
		}
		if br.R == 0 && br.X == 0 {
			return fmt.Errorf("branch %d: zero impedance", i)
		}
	}
	return nil
}
