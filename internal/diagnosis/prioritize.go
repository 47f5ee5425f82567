package diagnosis

import (
	"sort"

	"ev-fleet-monitor/internal/models"
)

// Actions attached by Prioritize.
const (
	ActionImmediate           = "immediate_attention"
	ActionScheduleSoon        = "schedule_soon"
	ActionScheduleMaintenance = "schedule_maintenance"
	ActionMonitor             = "monitor"
)

// Priority is the scheduling detail Prioritize attaches to an issue.
type Priority struct {
	PriorityLevel     int     `json:"priority_level"`
	ActionRequired    string  `json:"action_required"`
	MaxDelayHours     int     `json:"max_delay_hours"`
	EstimatedCost     float64 `json:"estimated_cost"`
	EstimatedDuration float64 `json:"estimated_duration"`
	SafetyCritical    bool    `json:"safety_critical"`
}

type severityPolicy struct {
	level         int
	action        string
	maxDelayHours int
}

var severityPolicies = map[models.Severity]severityPolicy{
	models.SeverityCritical: {1, ActionImmediate, 24},
	models.SeverityHigh:     {2, ActionScheduleSoon, 72},
	models.SeverityMedium:   {3, ActionScheduleMaintenance, 168},
	models.SeverityLow:      {4, ActionMonitor, 720},
}

// Prioritize returns a copy of issues with scheduling detail attached,
// ordered by priority level then by estimated cost, most expensive first.
// Unrecognised severities are scheduled like Medium. The input is not modified.
func Prioritize(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		policy, ok := severityPolicies[issue.Severity]
		if !ok {
			policy = severityPolicies[models.SeverityMedium]
		}

		// Single-value estimate: the low end of the range.
		var cost, duration float64
		if info, ok := LookupRepair(issue.Component); ok {
			cost = info.CostRange.Min
			duration = info.DurationHours
		}

		issue.Priority = &Priority{
			PriorityLevel:     policy.level,
			ActionRequired:    policy.action,
			MaxDelayHours:     policy.maxDelayHours,
			EstimatedCost:     cost,
			EstimatedDuration: duration,
			SafetyCritical:    issue.Severity == models.SeverityCritical || issue.Severity == models.SeverityHigh,
		}
		out[i] = issue
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Priority, out[j].Priority
		if a.PriorityLevel != b.PriorityLevel {
			return a.PriorityLevel < b.PriorityLevel
		}
		return a.EstimatedCost > b.EstimatedCost
	})
	return out
}
