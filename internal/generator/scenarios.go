package generator

import (
	"math"
	"math/rand"

	"ev-fleet-monitor/internal/diagnosis"
	"ev-fleet-monitor/internal/models"
)

// Scenario is one injectable fault. inject shifts readings in place;
// intensity ramps from 0 to 1 after onset.
type Scenario struct {
	Component string `json:"component"`
	Issue     string `json:"issue"`
	inject    func(rng *rand.Rand, r models.Readings, intensity float64)
}

// Scenarios lists every fault Generate can inject.
var Scenarios = []Scenario{
	{diagnosis.ComponentBattery, "Rapid SoH Degradation", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricSoH] = clip(r[models.MetricSoH]-k*20, 65, 100)
		r[models.MetricBatteryTemp] += k * 30
	}},
	{diagnosis.ComponentBattery, "Cell Imbalance", func(rng *rand.Rand, r models.Readings, k float64) {
		r[models.MetricBatteryVoltage] += (rng.Float64()*100 - 50) * k
		r[models.MetricSoC] = clip(r[models.MetricSoC]-k*15, 5, 100)
	}},
	{diagnosis.ComponentBattery, "Thermal Runaway Risk", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricBatteryTemp] += k * 45
		r[models.MetricBatteryCurrent] += k * 120
	}},
	{diagnosis.ComponentMotor, "Bearing Wear", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricMotorVibration] += k * 2
		r[models.MetricMotorTemp] += k * 40
	}},
	{diagnosis.ComponentMotor, "Rotor Imbalance", func(rng *rand.Rand, r models.Readings, k float64) {
		r[models.MetricMotorVibration] += k * 3
		r[models.MetricMotorTorque] *= 1 + (rng.Float64()*0.6-0.3)*k
	}},
	{diagnosis.ComponentBrake, "Pad Wear Critical", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricBrakePadWear] = math.Max(r[models.MetricBrakePadWear]-k*6, 0.5)
	}},
	{diagnosis.ComponentBrake, "Hydraulic Leak", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricBrakePressure] -= k * 50
	}},
	{diagnosis.ComponentBrake, "Regenerative Braking Failure", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricRegenEfficiency] = math.Max(r[models.MetricRegenEfficiency]-k*40, 30)
	}},
	{diagnosis.ComponentTire, "Low Pressure", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricTirePressureFL] = math.Max(r[models.MetricTirePressureFL]-k*10, 20)
		r[models.MetricTireTemp] += k * 10
	}},
	{diagnosis.ComponentTire, "Uneven Wear", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricTireTemp] += k * 20
	}},
	{diagnosis.ComponentSuspension, "Shock Absorber Failure", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricSuspensionLoad] += k * 300
	}},
	{diagnosis.ComponentCooling, "Coolant Pump Failure", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricBatteryTemp] += k * 25
		r[models.MetricMotorTemp] += k * 35
	}},
	{diagnosis.ComponentCooling, "Radiator Blockage", func(_ *rand.Rand, r models.Readings, k float64) {
		r[models.MetricMotorTemp] += k * 30
		r[models.MetricPowerConsumption] *= 1 - 0.2*k
	}},
}
