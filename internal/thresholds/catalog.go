// Package thresholds holds the fixed per-subsystem safety and health limits
// that sensor snapshots are checked against.
package thresholds

import "fmt"

// Subsystem names a monitored vehicle subsystem.
type Subsystem string

const (
	Battery    Subsystem = "battery"
	Motor      Subsystem = "motor"
	Brake      Subsystem = "brake"
	Tire       Subsystem = "tire"
	Suspension Subsystem = "suspension"
)

// Component is the capitalised name used for repair lookups and reports.
func (s Subsystem) Component() string {
	switch s {
	case Battery:
		return "Battery"
	case Motor:
		return "Motor"
	case Brake:
		return "Brake"
	case Tire:
		return "Tire"
	case Suspension:
		return "Suspension"
	}
	return string(s)
}

// Kind is the comparison a limit applies.
type Kind int

const (
	// BelowMin is violated when value < Min.
	BelowMin Kind = iota
	// AboveMax is violated when value > Max.
	AboveMax
	// OutsideRange is violated when value < Min or value > Max.
	OutsideRange
)

func (k Kind) String() string {
	switch k {
	case BelowMin:
		return "min"
	case AboveMax:
		return "max"
	case OutsideRange:
		return "range"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Limit is one bound. All comparisons are exclusive: a value equal to the
// bound is within limits.
type Limit struct {
	Key  string
	Kind Kind
	Min  float64
	Max  float64
}

// Violated reports whether v breaks the limit.
func (l Limit) Violated(v float64) bool {
	switch l.Kind {
	case BelowMin:
		return v < l.Min
	case AboveMax:
		return v > l.Max
	case OutsideRange:
		return v < l.Min || v > l.Max
	}
	return false
}

// Threshold returns the bound v is compared against; for ranges, the side it fell past.
func (l Limit) Threshold(v float64) float64 {
	switch l.Kind {
	case BelowMin:
		return l.Min
	case AboveMax:
		return l.Max
	default:
		if v < l.Min {
			return l.Min
		}
		return l.Max
	}
}

func atLeast(key string, v float64) Limit { return Limit{Key: key, Kind: BelowMin, Min: v} }
func atMost(key string, v float64) Limit { return Limit{Key: key, Kind: AboveMax, Max: v} }
func within(key string, lo, hi float64) Limit {
	return Limit{Key: key, Kind: OutsideRange, Min: lo, Max: hi}
}

type entry struct {
	subsystem Subsystem
	limits    []Limit
}

// catalog is fixed at process start and never mutated.
var catalog = []entry{
	{Battery, []Limit{
		atLeast("soc_min", 20),
		atLeast("soh_min", 75),
		atMost("temp_max", 50),
		within("voltage_range", 350, 450),
		atMost("current_max", 150),
	}},
	{Motor, []Limit{
		atMost("temp_max", 90),
		atMost("vibration_max", 1.5),
		within("torque_range", 100, 400),
		atMost("rpm_max", 5000),
	}},
	{Brake, []Limit{
		atLeast("pad_wear_min", 2),
		atLeast("pressure_min", 60),
		atLeast("regen_efficiency_min", 60),
	}},
	{Tire, []Limit{
		atLeast("pressure_min", 28),
		atMost("pressure_max", 40),
		atMost("temp_max", 45),
	}},
	{Suspension, []Limit{
		atMost("load_max", 750),
	}},
}

// Subsystems returns the catalog's subsystems in evaluation order.
func Subsystems() []Subsystem {
	out := make([]Subsystem, len(catalog))
	for i, e := range catalog {
		out[i] = e.subsystem
	}
	return out
}

// Limits returns a copy of the limits for one subsystem.
func Limits(s Subsystem) []Limit {
	for _, e := range catalog {
		if e.subsystem == s {
			out := make([]Limit, len(e.limits))
			copy(out, e.limits)
			return out
		}
	}
	return nil
}
