package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bluetooth-scanner/internal/infra/config"
)

func main() {
	cmd, args := "scan", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help":
		showUsage()
		return
	}

	flags, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\nRun 'scanner --help' for usage information.\n", err)
		os.Exit(1)
	}
	if flags.Help {
		showUsage()
		return
	}

	var runErr error
	switch cmd {
	case "scan":
		runErr = runScan(flags)
	case "dashboard":
		runErr = runDashboard(flags)
	case "history":
		runErr = runHistory(flags)
	case "cleanup":
		runErr = runCleanup(flags)
	case "doctor":
		runErr = runDoctor(flags)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'scanner --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, runErr)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`scanner - Bluetooth device scanner and mobile phone detector

USAGE:
    scanner [COMMAND] [FLAGS]

COMMANDS:
    scan        Poll the Bluetooth adapter and record devices (default)
    dashboard   Live view of recorded devices, refreshed every second
    history     Show the observations of one device
                Usage: scanner history <address> [--days N]
    cleanup     Remove observations older than the retention window
    doctor      Check adapter, database and configuration

FLAGS:
    -h, --help          Show this help message
    --config PATH       YAML config file (default: ./config.yaml, env BTSCANNER_CONFIG)
    --set KEY=VALUE     Override a setting, e.g. --set SCAN_INTERVAL=30 (repeatable)
    --days N            Limit history to the last N days

CONFIGURATION:
    Precedence: environment > config file > defaults. A .env file in the
    working directory is loaded first.
    SCAN_INTERVAL        seconds between scans (10)
    SCAN_DURATION        seconds of discovery per scan (5)
    DB_PATH              SQLite database file (bluetooth_devices.db)
    LOG_LEVEL            DEBUG, INFO, WARNING, ERROR (INFO)
    LOG_FILE             log file, appended (bluetooth_scanner.log)
    RETENTION_DAYS       days of observations to keep (30)
    MIN_SIGNAL_STRENGTH  dashboard dims weaker signals, dBm (-90)
    ADAPTER_PATH         BlueZ adapter object (/org/bluez/hci0)
    CLEANUP_SCHEDULE     cron expression or duration (1h)

EXAMPLES:
    scanner                                   # Scan with defaults
    scanner dashboard                         # Watch devices live
    scanner history AA:BB:CC:DD:EE:FF --days 7
    scanner --set SCAN_INTERVAL=30 --set LOG_LEVEL=DEBUG`)
}

// cliFlags holds the parsed command line.
type cliFlags struct {
	ConfigPath string
	Sets       []string // KEY=VALUE overrides
	Days       int
	Args       []string // positional arguments
	Help       bool
}

// parseFlags extracts --config, --set, --days and positional arguments.
func parseFlags(args []string) (cliFlags, error) {
	var flags cliFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
		case arg == "--config" || arg == "--set" || arg == "--days":
			if i+1 >= len(args) {
				return flags, fmt.Errorf("flag %s requires a value", arg)
			}
			if err := flags.set(arg, args[i+1]); err != nil {
				return flags, err
			}
			i++
		case strings.HasPrefix(arg, "--") && strings.Contains(arg, "="):
			name, value, _ := strings.Cut(arg, "=")
			if err := flags.set(name, value); err != nil {
				return flags, err
			}
		case strings.HasPrefix(arg, "-"):
			return flags, fmt.Errorf("unknown flag: %s", arg)
		default:
			flags.Args = append(flags.Args, arg)
		}
	}
	return flags, nil
}

func (f *cliFlags) set(name, value string) error {
	switch name {
	case "--config":
		f.ConfigPath = value
	case "--set":
		if !strings.Contains(value, "=") {
			return fmt.Errorf("--set expects KEY=VALUE, got %q", value)
		}
		f.Sets = append(f.Sets, value)
	case "--days":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("--days expects a non-negative integer, got %q", value)
		}
		f.Days = n
	default:
		return fmt.Errorf("unknown flag: %s", name)
	}
	return nil
}

func configPath(flags cliFlags) string {
	if flags.ConfigPath != "" {
		return flags.ConfigPath
	}
	if p := os.Getenv("BTSCANNER_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadConfig loads the config file and environment, then applies --set
// overrides on top.
func loadConfig(flags cliFlags) (*config.Config, error) {
	cfg, err := config.Load(configPath(flags))
	if err != nil {
		return nil, err
	}
	for _, kv := range flags.Sets {
		key, value, _ := strings.Cut(kv, "=")
		if err := cfg.Set(strings.TrimSpace(key), value); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// isCleanStop reports whether err is a user-requested shutdown.
func isCleanStop(err error, stops ...error) bool {
	for _, s := range stops {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
