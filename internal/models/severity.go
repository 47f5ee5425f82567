package models

import "fmt"

// Severity is a rung on the Critical > High > Medium > Low > Normal ladder.
type Severity string

const (
	SeverityNormal   Severity = "Normal"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank orders severities for sorting: Critical=0, High=1, Medium=2, Low=3.
// Normal and unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Higher reports whether s outranks other.
func (s Severity) Higher(other Severity) bool {
	return s.Rank() < other.Rank()
}

// MaxSeverity returns the highest severity given, or Normal for none.
func MaxSeverity(severities ...Severity) Severity {
	highest := SeverityNormal
	for _, s := range severities {
		if s.Higher(highest) {
			highest = s
		}
	}
	return highest
}

// MissingFieldError reports a required metric absent from a snapshot.
type MissingFieldError struct {
	VehicleID string
	Field     string
}

func (e *MissingFieldError) Error() string {
	if e.VehicleID == "" {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("vehicle %s: missing required field %q", e.VehicleID, e.Field)
}
