package diagnosis

import "fmt"

// FallbackReport is the stub text used when no report generator is available.
func FallbackReport(d Diagnosis) string {
	if d.Status == StatusHealthy || len(d.Issues) == 0 {
		return fmt.Sprintf("Vehicle %s is operating normally. All systems are within acceptable parameters.", d.VehicleID)
	}
	primary := d.Issues[0]
	return fmt.Sprintf("Diagnostic Report: Vehicle %s has %d issues requiring attention. Primary concern: %s (%s severity).",
		d.VehicleID, len(d.Issues), primary.Component, primary.Severity)
}

var explanations = map[string]map[string]string{
	ComponentBattery: {
		"State of Health": "Battery health indicates how much of the original capacity remains. Lower values mean reduced range.",
		"Temperature":     "High battery temperature can damage cells and reduce lifespan. Cooling system may need attention.",
		"Voltage":         "Voltage irregularities suggest cell imbalance or failing battery management system.",
	},
	ComponentMotor: {
		"Vibration":   "Excessive vibration often indicates worn bearings or rotor imbalance, which can lead to motor failure.",
		"Temperature": "Motor overheating may be caused by bearing wear, cooling issues, or electrical problems.",
		"Torque":      "Irregular torque output suggests motor controller or winding issues.",
	},
	ComponentBrake: {
		"Pad Wear":                "Brake pads wear naturally but need replacement when too thin to ensure safe stopping.",
		"Hydraulic Pressure":      "Low brake pressure indicates possible fluid leak or pump failure. This is safety critical.",
		"Regenerative Efficiency": "Poor regenerative braking efficiency reduces range and increases brake pad wear.",
	},
}

const defaultExplanation = "Technical issue detected requiring professional inspection."

// ExplainIssue returns a plain-language explanation of a component issue,
// keyed by the anomaly's metric label.
func ExplainIssue(component, issueType string) string {
	if text, ok := explanations[component][issueType]; ok {
		return text
	}
	return defaultExplanation
}
