package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"bluetooth-scanner/internal/adapter/bluez"
	"bluetooth-scanner/internal/adapter/storage"
	"bluetooth-scanner/internal/infra/config"
	"bluetooth-scanner/internal/usecase/scheduling"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor(flags cliFlags) error {
	cfgPath := configPath(flags)
	cfg, cfgErr := loadConfig(flags)

	checks := []Check{
		{Name: "Config", Fn: checkConfig(cfgPath, cfgErr)},
		{Name: "Database", Fn: checkDatabase},
		{Name: "Log file", Fn: checkLogFile},
		{Name: "Cleanup schedule", Fn: checkSchedule},
		{Name: "Bluetooth adapter", Fn: checkAdapter},
	}

	fmt.Println("scanner doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return color.GreenString("[PASS]")
	case StatusWarn:
		return color.YellowString("[WARN]")
	case StatusFail:
		return color.RedString("[FAIL]")
	default:
		return "[????]"
	}
}

// checkConfig reports whether configuration loaded, noting when only
// defaults and environment are in effect.
func checkConfig(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: cfgErr.Error(),
				Fix:     "Check the YAML syntax and that numeric settings are integers",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("no %s; using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkDatabase opens the store and counts devices.
func checkDatabase(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.RetentionDays, quiet)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     fmt.Sprintf("Make sure %s is writable", filepath.Dir(absPath(cfg.Storage.DBPath))),
		}
	}
	defer store.Close()

	counts, err := store.DeviceCounts(context.Background())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s: %d devices, %d mobile", cfg.Storage.DBPath, counts.Total, counts.Mobile),
	}
}

// checkLogFile verifies the log file can be appended to.
func checkLogFile(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	switch strings.ToLower(cfg.Logger.Output) {
	case "", "stdout", "stderr":
		return CheckResult{Status: StatusWarn, Message: "logging to console only; no log file is kept"}
	}

	f, err := os.OpenFile(cfg.Logger.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Set LOG_FILE to a writable path",
		}
	}
	f.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("appending to %s", cfg.Logger.Output)}
}

// checkSchedule validates the retention cleanup schedule.
func checkSchedule(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	if _, err := scheduling.ParseSchedule(cfg.Scheduler.CleanupSchedule); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     `Use a cron expression ("0 3 * * *"), a descriptor ("@daily") or a duration ("1h")`,
		}
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("retention of %d days enforced on %q",
			cfg.Storage.RetentionDays, cfg.Scheduler.CleanupSchedule),
	}
}

// checkAdapter connects to BlueZ over the system bus.
func checkAdapter(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}
	a, err := bluez.Open(cfg.Scanner.AdapterPath)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: err.Error(),
			Fix:     "Start bluetoothd, power on the adapter (bluetoothctl power on) or set ADAPTER_PATH",
		}
	}
	a.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is available", cfg.Scanner.AdapterPath)}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
