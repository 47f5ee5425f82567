package generator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ev-fleet-monitor/internal/models"
)

// CSVHeader is the column order WriteCSV emits; the parser reads it back.
func CSVHeader() []string {
	header := []string{"vehicle_id", "timestamp"}
	header = append(header, models.Metrics...)
	return append(header,
		models.FieldFailureProbability,
		models.FieldComponentHealthScore,
		models.FieldEstimatedRULHours,
	)
}

// WriteCSV writes readings with a header row. Absent values are left empty.
func WriteCSV(w io.Writer, readings []models.SensorSnapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, 0, len(models.Metrics)+5)
	for _, s := range readings {
		row = append(row[:0], s.VehicleID, s.Timestamp.UTC().Format(time.RFC3339))
		for _, m := range models.Metrics {
			if v, ok := s.Readings[m]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		for _, p := range []*float64{s.FailureProbability, s.ComponentHealthScore, s.EstimatedRULHours} {
			if p != nil {
				row = append(row, formatFloat(*p))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
