package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bluetooth-scanner/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Scanner   ScannerConfig   `yaml:"scanner"`
	Storage   StorageConfig   `yaml:"storage"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ScannerConfig holds the scan loop tunables.
type ScannerConfig struct {
	ScanInterval      int    `yaml:"scan_interval"` // seconds between cycles
	ScanDuration      int    `yaml:"scan_duration"` // seconds of discovery per cycle
	MinSignalStrength int    `yaml:"min_signal_strength"`
	AdapterPath       string `yaml:"adapter_path"`
}

// StorageConfig holds the SQLite store settings.
type StorageConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"` // log file path, appended to alongside stdout
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// SchedulerConfig holds the retention cleanup schedule.
type SchedulerConfig struct {
	CleanupSchedule string `yaml:"cleanup_schedule"` // cron expression or duration string
}

// Defaults returns a Config with the documented defaults.
func Defaults() *Config {
	return &Config{
		Scanner: ScannerConfig{
			ScanInterval:      10,
			ScanDuration:      5,
			MinSignalStrength: -90,
			AdapterPath:       "/org/bluez/hci0",
		},
		Storage: StorageConfig{
			DBPath:        "bluetooth_devices.db",
			RetentionDays: 30,
		},
		Logger: LoggerConfig{
			Level:  "INFO",
			Output: "bluetooth_scanner.log",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
		Scheduler: SchedulerConfig{
			CleanupSchedule: "1h",
		},
	}
}

// Load reads .env (if present) and an optional YAML file, then applies
// environment overrides. A missing YAML file yields defaults.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfigLoad, path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfigLoad, path, err)
		}
	}

	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKeys lists the environment variables understood by Set, in the order
// ApplyEnvOverrides consults them.
var envKeys = []string{
	"SCAN_INTERVAL",
	"SCAN_DURATION",
	"DB_PATH",
	"LOG_LEVEL",
	"RETENTION_DAYS",
	"MIN_SIGNAL_STRENGTH",
	"LOG_FILE",
	"ADAPTER_PATH",
	"CLEANUP_SCHEDULE",
	"TRACER_ENABLED",
	"TRACER_EXPORTER",
}

// intKeys are the settings parsed as integers. Setting one to an empty
// value is an error rather than a fallback to the default.
var intKeys = map[string]bool{
	"SCAN_INTERVAL":       true,
	"SCAN_DURATION":       true,
	"RETENTION_DAYS":      true,
	"MIN_SIGNAL_STRENGTH": true,
}

// ApplyEnvOverrides maps environment variables to config fields.
// Malformed integers, including empty ones, are returned as errors.
func ApplyEnvOverrides(cfg *Config) error {
	for _, key := range envKeys {
		v, ok := os.LookupEnv(key)
		if !ok || (v == "" && !intKeys[key]) {
			continue
		}
		if err := cfg.Set(key, v); err != nil {
			return err
		}
	}
	return nil
}

// Set overrides a single field by its environment variable name.
func (c *Config) Set(key, value string) error {
	switch strings.ToUpper(key) {
	case "SCAN_INTERVAL":
		return setInt(&c.Scanner.ScanInterval, key, value)
	case "SCAN_DURATION":
		return setInt(&c.Scanner.ScanDuration, key, value)
	case "MIN_SIGNAL_STRENGTH":
		return setInt(&c.Scanner.MinSignalStrength, key, value)
	case "RETENTION_DAYS":
		return setInt(&c.Storage.RetentionDays, key, value)
	case "DB_PATH":
		c.Storage.DBPath = value
	case "LOG_LEVEL":
		c.Logger.Level = value
	case "LOG_FILE":
		c.Logger.Output = value
	case "ADAPTER_PATH":
		c.Scanner.AdapterPath = value
	case "CLEANUP_SCHEDULE":
		c.Scheduler.CleanupSchedule = value
	case "TRACER_ENABLED":
		c.Tracer.Enabled = value == "true" || value == "1"
	case "TRACER_EXPORTER":
		c.Tracer.Exporter = value
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrConfigLoad, key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrConfigLoad, key, value)
	}
	*dst = n
	return nil
}

// ScanIntervalDuration returns the wait between scan cycles.
func (c *Config) ScanIntervalDuration() time.Duration {
	return time.Duration(c.Scanner.ScanInterval) * time.Second
}

// ScanDurationDuration returns the discovery window per cycle.
func (c *Config) ScanDurationDuration() time.Duration {
	return time.Duration(c.Scanner.ScanDuration) * time.Second
}

// RetentionWindow returns the age beyond which observations are purged.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}
