// Package scanner drives the discover, enumerate, classify and persist cycle
// against the local Bluetooth adapter.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/logger"
	"bluetooth-scanner/internal/infra/tracer"
	"bluetooth-scanner/internal/usecase/classifier"
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	if s == StateScanning {
		return "scanning"
	}
	return "idle"
}

// AdapterOpener acquires a handle to the local adapter.
type AdapterOpener func() (domain.Adapter, error)

// Store is the persistence the orchestrator writes to.
type Store interface {
	StoreDevice(ctx context.Context, info domain.DeviceInfo)
	StoreScanResult(ctx context.Context, obs domain.Observation) int64
	MobileDeviceCount(ctx context.Context) (int, error)
}

// DeviceClassifier labels a device.
type DeviceClassifier interface {
	Classify(info domain.DeviceInfo) domain.Classification
}

// Detection is one device seen in a cycle together with its verdict.
type Detection struct {
	Info           domain.DeviceInfo
	Classification domain.Classification
	ObservationID  int64
}

// CycleResult is the outcome of one cycle: either the devices found, or an
// empty result carrying the enumeration error.
type CycleResult struct {
	ID         string
	Detections []Detection
	Skipped    int // devices whose properties could not be read
	Err        error
}

// Empty reports whether the cycle produced no detections.
func (r CycleResult) Empty() bool { return len(r.Detections) == 0 }

// Options holds the loop timings.
type Options struct {
	ScanDuration time.Duration
	ScanInterval time.Duration
}

// Scanner is the scan orchestrator.
type Scanner struct {
	open       AdapterOpener
	store      Store
	classifier DeviceClassifier
	logger     *slog.Logger
	opts       Options
	now        func() time.Time

	mu      sync.Mutex
	adapter domain.Adapter
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an idle Scanner.
func New(open AdapterOpener, store Store, cls DeviceClassifier, log *slog.Logger, opts Options) *Scanner {
	return &Scanner{
		open:       open,
		store:      store,
		classifier: cls,
		logger:     log,
		opts:       opts,
		now:        time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Scanner) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Initialize acquires the adapter. Scanning cannot start without it.
func (s *Scanner) Initialize(_ context.Context) error {
	a, err := s.open()
	if err != nil {
		s.logger.Error(fmt.Sprintf("Failed to initialize Bluetooth adapter: %v", err))
		return domain.NewDomainError("Scanner.Initialize", domain.ErrAdapterInit, err.Error())
	}
	s.mu.Lock()
	s.adapter = a
	s.mu.Unlock()
	s.logger.Info("Bluetooth adapter initialized successfully")
	return nil
}

// StartScanning runs the scan loop until ctx is cancelled, StopScanning is
// called, or an adapter discovery call fails. A discovery failure is logged
// and ends the loop like a stop; only initialization errors are returned.
func (s *Scanner) StartScanning(ctx context.Context) error {
	s.mu.Lock()
	needInit := s.adapter == nil
	s.mu.Unlock()
	if needInit {
		if err := s.Initialize(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.state == StateScanning {
		s.mu.Unlock()
		return fmt.Errorf("scanner already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.state = StateScanning
	s.cancel = cancel
	s.done = make(chan struct{})
	adapter := s.adapter
	done := s.done
	s.mu.Unlock()

	s.logger.Info("Starting Bluetooth scanning")

	discovering := false
	defer func() {
		if discovering {
			if err := adapter.StopDiscovery(); err != nil {
				s.logger.Error(fmt.Sprintf("Error stopping scan: %v", err))
			}
		}
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()
		close(done)
		s.logger.Info("Stopped Bluetooth scanning")
	}()

	for {
		if err := adapter.StartDiscovery(); err != nil {
			s.logger.Error(fmt.Sprintf("Error during scanning: %v", err))
			return nil
		}
		discovering = true

		completed := sleep(loopCtx, s.opts.ScanDuration)

		discovering = false
		if err := adapter.StopDiscovery(); err != nil {
			s.logger.Error(fmt.Sprintf("Error during scanning: %v", err))
			return nil
		}
		if !completed {
			return nil
		}

		res := s.RunCycle(loopCtx)
		s.logger.Debug("scan cycle finished",
			"cycle", res.ID, "devices", len(res.Detections), "skipped", res.Skipped)

		if !sleep(loopCtx, s.opts.ScanInterval) {
			return nil
		}
	}
}

// StopScanning ends the loop and waits for it to return to Idle. It is a
// no-op when not scanning.
func (s *Scanner) StopScanning() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunCycle enumerates the devices currently known to the adapter, classifies
// them and persists a device upsert plus an observation for each.
func (s *Scanner) RunCycle(ctx context.Context) CycleResult {
	res := CycleResult{ID: newCycleID(s.now())}
	ctx, span := tracer.StartCycle(ctx, res.ID)
	log := s.logger.With("cycle", res.ID)

	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()
	if adapter == nil {
		res.Err = domain.NewDomainError("Scanner.RunCycle", domain.ErrAdapterInit, "adapter not initialized")
		log.Error(fmt.Sprintf("Error getting discovered devices: %v", res.Err))
		tracer.EndCycle(span, 0, res.Err)
		return res
	}

	paths, err := devicePaths(adapter)
	if err != nil {
		res.Err = err
		log.Error(fmt.Sprintf("Error getting discovered devices: %v", err))
		tracer.EndCycle(span, 0, err)
		return res
	}

	for _, path := range paths {
		props, err := adapter.DeviceProperties(path)
		if err != nil {
			log.Error(fmt.Sprintf("Error getting device properties: %v", err), "path", path)
			res.Skipped++
			continue
		}
		info := normalize(deviceInfoFromProperties(props, s.now()))
		if info.Address == "" {
			log.Warn("device without address skipped", "path", path)
			res.Skipped++
			continue
		}
		logger.LogDeviceDiscovery(log, info)

		cls := s.classifier.Classify(info)

		s.store.StoreDevice(ctx, info)
		id := s.store.StoreScanResult(ctx, domain.Observation{
			DeviceAddress:  info.Address,
			SignalStrength: info.SignalStrength,
			DeviceType:     cls.DeviceType,
			IsMobile:       cls.IsMobile,
		})
		res.Detections = append(res.Detections, Detection{Info: info, Classification: cls, ObservationID: id})
	}

	tracer.EndCycle(span, len(res.Detections), nil)
	return res
}

// GetMobileDeviceCount returns the number of distinct devices ever observed
// as mobile, or 0 when storage is unavailable.
func (s *Scanner) GetMobileDeviceCount(ctx context.Context) int {
	n, err := s.store.MobileDeviceCount(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("Error getting mobile device count: %v", err))
		return 0
	}
	return n
}

// devicePaths returns the sorted object paths implementing Device1.
func devicePaths(adapter domain.Adapter) ([]string, error) {
	objects, err := adapter.ManagedObjects()
	if err != nil {
		return nil, err
	}
	var paths []string
	for path, ifaces := range objects {
		for _, iface := range ifaces {
			if iface == domain.DeviceInterface {
				paths = append(paths, path)
				break
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func normalize(info domain.DeviceInfo) domain.DeviceInfo {
	p := classifier.Properties(info)
	info.Name = p.Name
	info.Manufacturer = p.Manufacturer
	return info
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func newCycleID(t time.Time) string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
