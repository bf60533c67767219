package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaultsFromDocument(t *testing.T) {
	doc := `
serial:
  device: /dev/ttyUSB0
  baud: 19200
  wait_for_device: true
timing:
  full_travel: 63.5s
  full_turn: 2.8s
tcp:
  listen: 127.0.0.1:1337
mdns:
  enabled: false
log:
  level: debug
`
	dir := t.TempDir()
	path := filepath.Join(dir, "baos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.True(t, cfg.Serial.WaitForDevice)
	assert.Equal(t, 63500*time.Millisecond, cfg.Timing.FullTravel)
	assert.Equal(t, 2800*time.Millisecond, cfg.Timing.FullTurn)
	assert.Equal(t, "127.0.0.1:1337", cfg.TCP.Listen)
	assert.False(t, cfg.MDNS.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load("/nonexistent/baos.yaml")
	assert.Error(t, err)
}

func TestDefaultMatchesDocumentedBaseline(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 19200, cfg.Serial.Baud)
	assert.Equal(t, "0.0.0.0:1337", cfg.TCP.Listen)
}
