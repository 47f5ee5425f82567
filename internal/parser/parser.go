package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ev-fleet-monitor/internal/models"
)

// Supported input formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatLog  = "log"
)

// Parser handles parsing of sensor reading files
type Parser struct {
	format string
	logger *zap.Logger
}

// NewParser creates a parser for format. Rows that fail to parse are
// logged and skipped.
func NewParser(format string, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{format: strings.ToLower(format), logger: logger}
}

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".ndjson", ".jsonl":
		return FormatJSON
	case ".log", ".txt":
		return FormatLog
	default:
		return FormatCSV
	}
}

// ParseFile parses a sensor reading file
func (p *Parser) ParseFile(filename string) ([]models.SensorSnapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads snapshots from r in the parser's format.
func (p *Parser) Parse(r io.Reader) ([]models.SensorSnapshot, error) {
	switch p.format {
	case FormatCSV:
		return p.parseCSV(r)
	case FormatJSON:
		return p.parseJSON(r)
	case FormatLog:
		return p.parseLog(r)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

func (p *Parser) warn(line int, err error) {
	p.logger.Warn("skipping record", zap.String("format", p.format), zap.Int("line", line), zap.Error(err))
}

// parseCSV expects a header row naming vehicle_id, timestamp and any metric
// columns. Empty cells leave the metric absent.
func (p *Parser) parseCSV(r io.Reader) ([]models.SensorSnapshot, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := indices["vehicle_id"]; !ok {
		return nil, fmt.Errorf("header has no vehicle_id column")
	}

	results := make([]models.SensorSnapshot, 0)
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNum++
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}

		fields := make(map[string]string, len(indices))
		for key, idx := range indices {
			if idx < len(record) {
				fields[key] = strings.TrimSpace(record[idx])
			}
		}

		s, err := snapshotFromFields(fields)
		if err != nil {
			p.warn(lineNum, err)
			continue
		}
		results = append(results, s)
	}

	return results, nil
}

// snapshotFromFields builds a snapshot from string values keyed by column name.
// Unknown keys are ignored.
func snapshotFromFields(fields map[string]string) (models.SensorSnapshot, error) {
	s := models.SensorSnapshot{Readings: make(models.Readings)}

	s.VehicleID = fields["vehicle_id"]
	if s.VehicleID == "" {
		return s, fmt.Errorf("missing vehicle_id")
	}

	if ts := fields["timestamp"]; ts != "" {
		t, err := models.ParseTimestamp(ts)
		if err != nil {
			return s, fmt.Errorf("invalid timestamp: %w", err)
		}
		s.Timestamp = t
	}

	for key, raw := range fields {
		if raw == "" {
			continue
		}
		var target **float64
		switch key {
		case models.FieldFailureProbability:
			target = &s.FailureProbability
		case models.FieldComponentHealthScore:
			target = &s.ComponentHealthScore
		case models.FieldEstimatedRULHours:
			target = &s.EstimatedRULHours
		default:
			if !models.IsMetric(key) {
				continue
			}
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return s, fmt.Errorf("invalid %s %q", key, raw)
		}
		if target != nil {
			*target = models.Float(v)
		} else {
			s.Readings[key] = v
		}
	}

	return s, nil
}

// parseJSON accepts either a JSON array of snapshots or newline-delimited objects.
func (p *Parser) parseJSON(r io.Reader) ([]models.SensorSnapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		results := make([]models.SensorSnapshot, 0)
		if err := json.Unmarshal(trimmed, &results); err == nil {
			return results, nil
		}
	}

	return p.parseJSONLines(bytes.NewReader(data))
}

// parseJSONLines parses newline-delimited JSON
func (p *Parser) parseJSONLines(r io.Reader) ([]models.SensorSnapshot, error) {
	results := make([]models.SensorSnapshot, 0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}

		// Tolerate pretty-printed arrays with one object per line.
		line = strings.TrimSuffix(line, ",")

		var s models.SensorSnapshot
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			p.warn(lineNum, err)
			continue
		}
		if s.VehicleID == "" {
			p.warn(lineNum, fmt.Errorf("missing vehicle_id"))
			continue
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}

// parseLog parses lines of the form timestamp|vehicle_id|metric=value;metric=value
func (p *Parser) parseLog(r io.Reader) ([]models.SensorSnapshot, error) {
	results := make([]models.SensorSnapshot, 0)
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 3 {
			p.warn(lineNum, fmt.Errorf("insufficient fields"))
			continue
		}

		fields := map[string]string{
			"timestamp":  strings.TrimSpace(parts[0]),
			"vehicle_id": strings.TrimSpace(parts[1]),
		}
		for _, pair := range strings.Split(parts[2], ";") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}

		s, err := snapshotFromFields(fields)
		if err != nil {
			p.warn(lineNum, err)
			continue
		}
		results = append(results, s)
	}

	return results, scanner.Err()
}
