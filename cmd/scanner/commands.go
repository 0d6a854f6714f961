package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"bluetooth-scanner/internal/adapter/bluez"
	"bluetooth-scanner/internal/adapter/storage"
	"bluetooth-scanner/internal/adapter/tui/dashboard"
	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/config"
	"bluetooth-scanner/internal/infra/logger"
	"bluetooth-scanner/internal/infra/tracer"
	"bluetooth-scanner/internal/usecase/classifier"
	"bluetooth-scanner/internal/usecase/scanner"
	"bluetooth-scanner/internal/usecase/scheduling"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func runScan(flags cliFlags) error {
	// 1. Config
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	// 3. Storage
	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.RetentionDays, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	// 4. Retention
	sched, err := retentionScheduler(cfg, store, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	// 5. Adapter & scanner
	var adapter *bluez.Adapter
	open := func() (domain.Adapter, error) {
		a, err := bluez.Open(cfg.Scanner.AdapterPath)
		if err != nil {
			return nil, err
		}
		adapter = a
		return a, nil
	}
	defer func() {
		if adapter != nil {
			adapter.Close()
		}
	}()

	sc := scanner.New(open, store, classifier.New(log), log, scanner.Options{
		ScanDuration: cfg.ScanDurationDuration(),
		ScanInterval: cfg.ScanIntervalDuration(),
	})
	if err := sc.Initialize(ctx); err != nil {
		log.Error("Failed to initialize Bluetooth scanner")
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	log.Info("Starting Bluetooth scanner...")
	err = sc.StartScanning(ctx)
	if ctx.Err() != nil {
		color.Yellow("\nStopping Bluetooth scanner...")
	}
	if err != nil {
		return err
	}
	log.Info("Mobile devices observed", "count", sc.GetMobileDeviceCount(context.Background()))
	return nil
}

// retentionScheduler registers CleanupOldData on the configured schedule.
func retentionScheduler(cfg *config.Config, store *storage.Store, log *slog.Logger) (*scheduling.Scheduler, error) {
	sched := scheduling.NewScheduler(log)
	sched.RegisterAction(scheduling.ActionRetentionCleanup, func(ctx context.Context) error {
		store.CleanupOldData(ctx)
		return nil
	})
	err := sched.AddTask(scheduling.ScheduledTask{
		Name:       "retention",
		Schedule:   cfg.Scheduler.CleanupSchedule,
		Action:     scheduling.ActionRetentionCleanup,
		RunOnStart: true,
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

func runDashboard(flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// The program owns the terminal, so logs go to the file only.
	log, logCloser, err := logger.NewFileOnly(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.RetentionDays, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := dashboard.New(store, dashboard.Options{
		MinSignalStrength: cfg.Scanner.MinSignalStrength,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	_, err = p.Run()
	if err != nil && !isCleanStop(err, tea.ErrProgramKilled, tea.ErrInterrupted) {
		return err
	}
	color.Green("Visualizer stopped.")
	return nil
}

func runHistory(flags cliFlags) error {
	if len(flags.Args) != 1 {
		return fmt.Errorf("usage: scanner history <address> [--days N]")
	}
	address := flags.Args[0]

	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser, err := logger.NewFileOnly(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.RetentionDays, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	device, err := store.GetDevice(ctx, address)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no device with address %s", address)
	}
	if err != nil {
		return err
	}
	history, err := store.GetDeviceHistory(ctx, address, flags.Days)
	if err != nil {
		return err
	}

	writeHistory(os.Stdout, device, history, flags.Days)
	return nil
}

// writeHistory prints a device summary followed by its observations.
func writeHistory(w io.Writer, device *domain.Device, history []domain.Observation, days int) {
	name := device.Name
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(w, "%s (%s)\n", name, device.Address)
	if device.Manufacturer != "" {
		fmt.Fprintf(w, "  Manufacturer: %s\n", device.Manufacturer)
	}
	if device.Class != "" {
		fmt.Fprintf(w, "  Class:        %s\n", device.Class)
	}
	fmt.Fprintf(w, "  First seen:   %s\n", device.FirstSeen.Local().Format(historyTimeLayout))
	fmt.Fprintf(w, "  Last seen:    %s\n", device.LastSeen.Local().Format(historyTimeLayout))

	window := "all time"
	if days > 0 {
		window = fmt.Sprintf("last %d days", days)
	}
	fmt.Fprintf(w, "\n%d observation(s), %s\n", len(history), window)
	if len(history) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Scan Time", "Signal", "Type", "Mobile", "Properties")
	for _, obs := range history {
		mobile := "no"
		if obs.IsMobile {
			mobile = "yes"
		}
		t.Row(
			obs.ScanTime.Local().Format(historyTimeLayout),
			fmt.Sprintf("%d dBm", obs.SignalStrength),
			obs.DeviceType,
			mobile,
			formatProperties(obs.Properties),
		)
	}
	fmt.Fprintln(w, t.Render())
}

func formatProperties(props map[string]string) string {
	if len(props) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + "=" + props[k]
	}
	return out
}

func runCleanup(flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	store, err := storage.New(cfg.Storage.DBPath, cfg.Storage.RetentionDays, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	store.CleanupOldData(context.Background())
	color.Green("Removed observations older than %d days from %s", cfg.Storage.RetentionDays, cfg.Storage.DBPath)
	return nil
}
