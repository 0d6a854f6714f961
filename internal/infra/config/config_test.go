package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluetooth-scanner/internal/domain"
)

// clearEnv unsets every recognised variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Scanner.ScanInterval != 10 {
		t.Errorf("ScanInterval = %d, want 10", cfg.Scanner.ScanInterval)
	}
	if cfg.Scanner.ScanDuration != 5 {
		t.Errorf("ScanDuration = %d, want 5", cfg.Scanner.ScanDuration)
	}
	if cfg.Storage.DBPath != "bluetooth_devices.db" {
		t.Errorf("DBPath = %q", cfg.Storage.DBPath)
	}
	if cfg.Logger.Level != "INFO" {
		t.Errorf("Logger.Level = %q, want INFO", cfg.Logger.Level)
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.Storage.RetentionDays)
	}
	if cfg.Scanner.MinSignalStrength != -90 {
		t.Errorf("MinSignalStrength = %d, want -90", cfg.Scanner.MinSignalStrength)
	}
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	content := `
scanner:
  scan_interval: 30
  adapter_path: /org/bluez/hci1
storage:
  db_path: /var/lib/bt/devices.db
logger:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Scanner.ScanInterval)
	assert.Equal(t, 5, cfg.Scanner.ScanDuration, "unset fields keep defaults")
	assert.Equal(t, "/org/bluez/hci1", cfg.Scanner.AdapterPath)
	assert.Equal(t, "/var/lib/bt/devices.db", cfg.Storage.DBPath)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner: [unclosed"), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "scanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scanner:\n  scan_interval: 30\n"), 0600))

	t.Setenv("SCAN_INTERVAL", "3")
	t.Setenv("SCAN_DURATION", "2")
	t.Setenv("DB_PATH", "env.db")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("MIN_SIGNAL_STRENGTH", "-70")
	t.Setenv("TRACER_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scanner.ScanInterval)
	assert.Equal(t, 2, cfg.Scanner.ScanDuration)
	assert.Equal(t, "env.db", cfg.Storage.DBPath)
	assert.Equal(t, "DEBUG", cfg.Logger.Level)
	assert.Equal(t, 7, cfg.Storage.RetentionDays)
	assert.Equal(t, -70, cfg.Scanner.MinSignalStrength)
	assert.True(t, cfg.Tracer.Enabled)
}

func TestMalformedIntegerFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("RETENTION_DAYS", "thirty")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
	assert.Contains(t, err.Error(), "RETENTION_DAYS")
}

func TestEmptyIntegerFails(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCAN_INTERVAL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
	assert.Contains(t, err.Error(), "SCAN_INTERVAL")
}

func TestEmptyStringSettingKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Storage.DBPath, cfg.Storage.DBPath)
}

func TestSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(*Config) bool
	}{
		{"SCAN_INTERVAL", "1", func(c *Config) bool { return c.Scanner.ScanInterval == 1 }},
		{"scan_duration", "9", func(c *Config) bool { return c.Scanner.ScanDuration == 9 }},
		{"DB_PATH", ":memory:", func(c *Config) bool { return c.Storage.DBPath == ":memory:" }},
		{"LOG_FILE", "/tmp/x.log", func(c *Config) bool { return c.Logger.Output == "/tmp/x.log" }},
		{"CLEANUP_SCHEDULE", "@daily", func(c *Config) bool { return c.Scheduler.CleanupSchedule == "@daily" }},
		{"TRACER_EXPORTER", "stdout", func(c *Config) bool { return c.Tracer.Exporter == "stdout" }},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Defaults()
			require.NoError(t, cfg.Set(tt.key, tt.value))
			assert.True(t, tt.check(cfg))
		})
	}
}

func TestSetUnknownKey(t *testing.T) {
	err := Defaults().Set("NOPE", "1")
	assert.ErrorIs(t, err, domain.ErrConfigLoad)
}

func TestDurations(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 10*time.Second, cfg.ScanIntervalDuration())
	assert.Equal(t, 5*time.Second, cfg.ScanDurationDuration())
	assert.Equal(t, 30*24*time.Hour, cfg.RetentionWindow())
}
