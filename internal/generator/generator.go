// Package generator produces synthetic EV fleet telemetry with gradual
// failure injection, for demos and load tests.
package generator

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"ev-fleet-monitor/internal/models"
)

// Options controls a generation run. The same Options always yield the same
// fleet.
type Options struct {
	Vehicles           int
	ReadingsPerVehicle int
	Seed               int64
	// FailureRate is the chance a vehicle develops a fault.
	FailureRate float64
	Start       time.Time
	Interval    time.Duration
}

// DefaultOptions mirrors a month of 10-second readings for a small fleet.
func DefaultOptions() Options {
	return Options{
		Vehicles:           10,
		ReadingsPerVehicle: 1000,
		Seed:               42,
		FailureRate:        0.3,
		Start:              time.Now().UTC().Add(-30 * 24 * time.Hour).Truncate(time.Second),
		Interval:           10 * time.Second,
	}
}

// Fleet is the output of Generate. Readings are grouped by vehicle, oldest
// first within each vehicle.
type Fleet struct {
	Vehicles []models.Vehicle
	Readings []models.SensorSnapshot
	// Faults maps vehicle id to the injected scenario.
	Faults map[string]Scenario
}

var vehicleModels = []string{"Model S", "Model 3", "Ioniq 5", "ID.4", "Mach-E", "EV6", "Bolt EUV", "Leaf"}

var ownerNames = []string{"Avery", "Jordan", "Riley", "Morgan", "Quinn", "Casey", "Rowan", "Sasha"}

const vinAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789"

// Generate builds a fleet according to opts.
func Generate(opts Options) Fleet {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	fleet := Fleet{
		Vehicles: make([]models.Vehicle, 0, opts.Vehicles),
		Readings: make([]models.SensorSnapshot, 0, opts.Vehicles*opts.ReadingsPerVehicle),
		Faults:   make(map[string]Scenario),
	}

	for v := 1; v <= opts.Vehicles; v++ {
		id := fmt.Sprintf("EV-%05d", v)
		owner := ownerNames[rng.Intn(len(ownerNames))]
		fleet.Vehicles = append(fleet.Vehicles, models.Vehicle{
			ID:         id,
			Model:      vehicleModels[rng.Intn(len(vehicleModels))],
			Year:       2019 + rng.Intn(6),
			VIN:        vin(rng),
			OwnerName:  owner,
			OwnerEmail: fmt.Sprintf("%s.%03d@fleet.example", strings.ToLower(owner), v),
			CreatedAt:  opts.Start,
		})

		rampSize := max(1, opts.ReadingsPerVehicle/10)
		var fault *Scenario
		var onset int
		if rng.Float64() < opts.FailureRate {
			s := Scenarios[rng.Intn(len(Scenarios))]
			fault = &s
			fleet.Faults[id] = s
			// Onset falls between 60% and 80% of the run so every fault
			// reaches full intensity before the last reading.
			n := opts.ReadingsPerVehicle
			onset = n*6/10 + rng.Intn(n*2/10+1)
		}

		for i := 0; i < opts.ReadingsPerVehicle; i++ {
			snap := baseline(rng, id, opts.Start.Add(time.Duration(i)*opts.Interval), i)

			if fault != nil && i >= onset {
				intensity := math.Min(float64(i-onset)/float64(rampSize), 1)
				fault.inject(rng, snap.Readings, intensity)
				failing := 0.0
				if i >= onset+rampSize/2 {
					failing = 1
				}
				snap.FailureProbability = models.Float(failing)
				snap.ComponentHealthScore = models.Float(math.Max(0.3, 1-intensity))
				snap.EstimatedRULHours = models.Float(math.Max(10, 1000-intensity*900))
			} else {
				snap.FailureProbability = models.Float(0)
				snap.ComponentHealthScore = models.Float(0.85 + rng.Float64()*0.15)
				snap.EstimatedRULHours = models.Float(float64(500 + rng.Intn(1501)))
			}

			clampReadings(snap.Readings)
			fleet.Readings = append(fleet.Readings, snap)
		}
	}

	return fleet
}

func baseline(rng *rand.Rand, vehicleID string, ts time.Time, i int) models.SensorSnapshot {
	normal := func(mean, sd float64) float64 { return mean + rng.NormFloat64()*sd }

	return models.SensorSnapshot{
		VehicleID: vehicleID,
		Timestamp: ts,
		Readings: models.Readings{
			models.MetricSoC:              clip(normal(75, 15), 20, 100),
			models.MetricSoH:              clip(normal(95, 3), 70, 100),
			models.MetricBatteryVoltage:   normal(400, 10),
			models.MetricBatteryCurrent:   normal(50, 20),
			models.MetricBatteryTemp:      normal(25, 5),
			models.MetricChargeCycles:     float64(50 + rng.Intn(451)),
			models.MetricMotorTemp:        normal(65, 10),
			models.MetricMotorVibration:   normal(0.5, 0.2),
			models.MetricMotorTorque:      normal(250, 50),
			models.MetricMotorRPM:         normal(3000, 500),
			models.MetricPowerConsumption: normal(45, 15),
			models.MetricBrakePadWear:     clip(normal(8, 2), 1, 12),
			models.MetricBrakePressure:    normal(100, 20),
			models.MetricRegenEfficiency:  clip(normal(85, 10), 50, 95),
			models.MetricTirePressureFL:   normal(35, 2),
			models.MetricTirePressureFR:   normal(35, 2),
			models.MetricTirePressureRL:   normal(35, 2),
			models.MetricTirePressureRR:   normal(35, 2),
			models.MetricTireTemp:         normal(30, 5),
			models.MetricSuspensionLoad:   normal(500, 100),
			models.MetricAmbientTemp:      normal(22, 8),
			models.MetricAmbientHumidity:  normal(60, 15),
			models.MetricLoadWeight:       normal(200, 100),
			models.MetricDrivingSpeed:     clip(normal(60, 20), 0, 120),
			models.MetricDistance:         float64(i) * 0.167,
			models.MetricIdleTime:         float64(rng.Intn(301)),
			models.MetricRouteRoughness:   roughness(rng),
		},
	}
}

// roughness draws a 0-3 road grade, mostly smooth.
func roughness(rng *rand.Rand) float64 {
	switch p := rng.Float64(); {
	case p < 0.5:
		return 0
	case p < 0.8:
		return 1
	case p < 0.95:
		return 2
	default:
		return 3
	}
}

// clampReadings keeps generated values inside the ranges ingestion accepts.
func clampReadings(r models.Readings) {
	for _, m := range []string{models.MetricSoC, models.MetricSoH, models.MetricRegenEfficiency, models.MetricAmbientHumidity} {
		r[m] = clip(r[m], 0, 100)
	}
	for _, m := range []string{
		models.MetricMotorVibration, models.MetricMotorRPM, models.MetricBrakePadWear, models.MetricBrakePressure,
		models.MetricTirePressureFL, models.MetricTirePressureFR, models.MetricTirePressureRL, models.MetricTirePressureRR,
		models.MetricSuspensionLoad, models.MetricLoadWeight, models.MetricPowerConsumption,
	} {
		r[m] = math.Max(0, r[m])
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func vin(rng *rand.Rand) string {
	b := make([]byte, 17)
	for i := range b {
		b[i] = vinAlphabet[rng.Intn(len(vinAlphabet))]
	}
	return string(b)
}
