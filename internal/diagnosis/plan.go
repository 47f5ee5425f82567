package diagnosis

import (
	"time"

	"ev-fleet-monitor/internal/models"
)

// Plan types.
const (
	PlanPreventive = "preventive"
	PlanCorrective = "corrective"
	PlanEmergency  = "emergency"
)

// MaintenancePlan groups a diagnosis's issues into work buckets.
type MaintenancePlan struct {
	VehicleID           string    `json:"vehicle_id"`
	PlanType            string    `json:"plan_type"`
	TotalCost           CostRange `json:"total_cost_estimate"`
	TotalDurationHours  float64   `json:"total_duration_hours"`
	Immediate           []Issue   `json:"immediate_tasks"`
	Scheduled           []Issue   `json:"scheduled_tasks"`
	Tasks               []Issue   `json:"tasks"`
	RecommendedSchedule Schedule  `json:"recommended_schedule"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// Schedule counts tasks per urgency bucket.
type Schedule struct {
	Immediate  int `json:"immediate"`
	WithinWeek int `json:"within_week"`
}

// BuildPlan prioritizes d's issues and totals their repair ranges.
// Critical and High issues are immediate; everything else is scheduled.
func BuildPlan(d Diagnosis) MaintenancePlan {
	plan := MaintenancePlan{
		VehicleID:   d.VehicleID,
		PlanType:    PlanPreventive,
		Immediate:   make([]Issue, 0),
		Scheduled:   make([]Issue, 0),
		Tasks:       make([]Issue, 0),
		GeneratedAt: d.Timestamp,
	}
	if len(d.Issues) == 0 {
		return plan
	}

	plan.PlanType = PlanCorrective
	plan.Tasks = Prioritize(d.Issues)
	for _, task := range plan.Tasks {
		// Totals use the full range, unlike the per-issue estimate.
		if task.Repair != nil {
			plan.TotalCost.Min += task.Repair.CostRange.Min
			plan.TotalCost.Max += task.Repair.CostRange.Max
			plan.TotalDurationHours += task.Repair.DurationHours
		}

		switch task.Severity {
		case models.SeverityCritical:
			plan.PlanType = PlanEmergency
			plan.Immediate = append(plan.Immediate, task)
		case models.SeverityHigh:
			plan.Immediate = append(plan.Immediate, task)
		default:
			plan.Scheduled = append(plan.Scheduled, task)
		}
	}

	plan.RecommendedSchedule = Schedule{
		Immediate:  len(plan.Immediate),
		WithinWeek: len(plan.Scheduled),
	}
	return plan
}
