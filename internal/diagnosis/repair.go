package diagnosis

// Repair components that appear in the reference table.
const (
	ComponentBattery          = "Battery"
	ComponentMotor            = "Motor"
	ComponentBrake            = "Brake"
	ComponentTire             = "Tire"
	ComponentSuspension       = "Suspension"
	ComponentCooling          = "Cooling"
	ComponentPowerElectronics = "Power Electronics"
)

// CostRange is a repair cost estimate in whole currency units.
type CostRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// RepairInfo describes the usual repair work for a component.
type RepairInfo struct {
	CommonFixes   []string  `json:"common_fixes"`
	CostRange     CostRange `json:"avg_cost_range"`
	DurationHours float64   `json:"avg_duration_hours"`
}

var repairTable = map[string]RepairInfo{
	ComponentBattery: {
		CommonFixes: []string{
			"Battery cell balancing",
			"Thermal management system check",
			"Battery management system reset",
			"Cell replacement if SoH < 70%",
		},
		CostRange:     CostRange{500, 3000},
		DurationHours: 4,
	},
	ComponentMotor: {
		CommonFixes: []string{
			"Bearing replacement",
			"Winding inspection and repair",
			"Rotor balancing",
			"Coolant system service",
		},
		CostRange:     CostRange{800, 4000},
		DurationHours: 6,
	},
	ComponentBrake: {
		CommonFixes: []string{
			"Brake pad replacement",
			"Hydraulic system inspection",
			"Regenerative braking calibration",
			"Brake fluid replacement",
		},
		CostRange:     CostRange{200, 1000},
		DurationHours: 2,
	},
	ComponentTire: {
		CommonFixes: []string{
			"Tire pressure adjustment",
			"Tire rotation and balancing",
			"Tire replacement",
			"Alignment check",
		},
		CostRange:     CostRange{100, 800},
		DurationHours: 1,
	},
	ComponentSuspension: {
		CommonFixes: []string{
			"Shock absorber replacement",
			"Spring inspection",
			"Bushing replacement",
			"Alignment adjustment",
		},
		CostRange:     CostRange{400, 2000},
		DurationHours: 3,
	},
	ComponentCooling: {
		CommonFixes: []string{
			"Coolant pump replacement",
			"Radiator cleaning/replacement",
			"Coolant flush and refill",
			"Thermostat replacement",
		},
		CostRange:     CostRange{300, 1500},
		DurationHours: 3,
	},
	ComponentPowerElectronics: {
		CommonFixes: []string{
			"Inverter inspection and repair",
			"DC-DC converter replacement",
			"Connector cleaning and tightening",
			"Software update",
		},
		CostRange:     CostRange{600, 3500},
		DurationHours: 4,
	},
}

// LookupRepair returns the repair reference for a component. Unknown
// components report ok=false and a zero RepairInfo.
func LookupRepair(component string) (RepairInfo, bool) {
	info, ok := repairTable[component]
	if !ok {
		return RepairInfo{}, false
	}
	info.CommonFixes = append([]string(nil), info.CommonFixes...)
	return info, true
}

func repairFor(component string) *RepairInfo {
	info, ok := LookupRepair(component)
	if !ok {
		return nil
	}
	return &info
}
