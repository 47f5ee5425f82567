package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ev-fleet-monitor/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evmon.log")
	logger, err := New(config.LoggingConfig{
		Level:     "info",
		Format:    "console",
		File:      path,
		MaxSizeMB: 1,
	})
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("reading stored", zap.String("vehicle_id", "EV-00001"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "reading stored", entry["message"])
	assert.Equal(t, "EV-00001", entry["vehicle_id"])
}
