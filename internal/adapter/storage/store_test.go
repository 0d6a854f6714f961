package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/logger"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*Store, *testClock, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log := slog.New(logger.NewLineHandler(&buf, logger.Source, slog.LevelDebug))
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	dbPath := filepath.Join(t.TempDir(), "bluetooth_devices.db")
	store, err := New(dbPath, 30, log, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, clock, &buf
}

const addr = "AA:BB:CC:DD:EE:FF"

func TestStoreDevice_InsertSetsFirstAndLastSeen(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "iPhone 12", Class: "0x5a020c", Manufacturer: "Apple"})

	d, err := store.GetDevice(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "iPhone 12", d.Name)
	assert.Equal(t, "0x5a020c", d.Class)
	assert.Equal(t, "Apple", d.Manufacturer)
	assert.True(t, d.FirstSeen.Equal(clock.Now()))
	assert.True(t, d.LastSeen.Equal(clock.Now()))
}

func TestStoreDevice_UpdatePreservesFirstSeen(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "Phone"})
	first := clock.Now()

	clock.Advance(90 * time.Second)
	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "Alice's iPhone"})

	d, err := store.GetDevice(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "Alice's iPhone", d.Name)
	assert.True(t, d.FirstSeen.Equal(first), "first_seen = %v, want %v", d.FirstSeen, first)
	assert.True(t, d.LastSeen.Equal(clock.Now()), "last_seen = %v, want %v", d.LastSeen, clock.Now())
	assert.True(t, d.LastSeen.After(d.FirstSeen))
}

func TestStoreDevice_EmptyValuesDoNotOverwrite(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "Pixel 7", Class: "0x5a020c", Manufacturer: "Google"})
	clock.Advance(time.Minute)
	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr})

	d, err := store.GetDevice(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "Pixel 7", d.Name)
	assert.Equal(t, "0x5a020c", d.Class)
	assert.Equal(t, "Google", d.Manufacturer)
	assert.True(t, d.LastSeen.Equal(clock.Now()), "last_seen refreshes even without new values")
}

func TestStoreDevice_MissingAddressIsLogged(t *testing.T) {
	store, _, buf := newTestStore(t)

	store.StoreDevice(context.Background(), domain.DeviceInfo{Name: "ghost"})

	assert.Contains(t, buf.String(), "ERROR - Error storing device")
	counts, err := store.DeviceCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
}

func TestGetDevice_NotFound(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.GetDevice(context.Background(), "00:00:00:00:00:00")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreScanResult_UnknownDeviceIsDropped(t *testing.T) {
	store, _, buf := newTestStore(t)
	ctx := context.Background()

	id := store.StoreScanResult(ctx, domain.Observation{DeviceAddress: "11:22:33:44:55:66", SignalStrength: -70})

	assert.Zero(t, id)
	assert.Contains(t, buf.String(), "ERROR - Error storing scan result")
	history, err := store.GetDeviceHistory(ctx, "11:22:33:44:55:66", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetDeviceHistory_OrderAndWindow(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "iPhone"})
	for _, age := range []time.Duration{5 * 24 * time.Hour, time.Hour, 2 * 24 * time.Hour} {
		id := store.StoreScanResult(ctx, domain.Observation{
			DeviceAddress:  addr,
			ScanTime:       now.Add(-age),
			SignalStrength: -60,
			DeviceType:     domain.DeviceTypeMobilePhone,
			IsMobile:       true,
		})
		require.NotZero(t, id)
	}

	all, err := store.GetDeviceHistory(ctx, addr, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].ScanTime.After(all[i].ScanTime), "history must be newest first")
	}
	assert.True(t, all[0].ScanTime.Equal(now.Add(-time.Hour)))
	assert.True(t, all[0].IsMobile)
	assert.Equal(t, domain.DeviceTypeMobilePhone, all[0].DeviceType)
	assert.NotNil(t, all[0].Properties)

	recent, err := store.GetDeviceHistory(ctx, addr, 3)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[1].ScanTime.Equal(now.Add(-2*24*time.Hour)))
}

func TestGetDeviceHistory_ExpandsProperties(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr})
	id := store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, SignalStrength: -50})
	require.NotZero(t, id)
	store.AddProperty(ctx, id, "tx_power", "4")
	store.AddProperty(ctx, id, "uuids", "0000180f-0000-1000-8000-00805f9b34fb")

	history, err := store.GetDeviceHistory(ctx, addr, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, map[string]string{
		"tx_power": "4",
		"uuids":    "0000180f-0000-1000-8000-00805f9b34fb",
	}, history[0].Properties)
}

func TestCleanupOldData(t *testing.T) {
	store, clock, buf := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr})
	old := store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, ScanTime: now.Add(-40 * 24 * time.Hour)})
	fresh := store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, ScanTime: now.Add(-10 * 24 * time.Hour)})
	require.NotZero(t, old)
	require.NotZero(t, fresh)
	store.AddProperty(ctx, old, "note", "expires with its observation")

	store.CleanupOldData(ctx)

	history, err := store.GetDeviceHistory(ctx, addr, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, fresh, history[0].ID)
	assert.Contains(t, buf.String(), "Storage operation: cleanup - Removed data older than 30 days")

	var props int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM device_properties`).Scan(&props))
	assert.Zero(t, props, "properties cascade with their observation")

	_, err = store.GetDevice(ctx, addr)
	assert.NoError(t, err, "devices are never removed by retention")
}

func TestPragmasSurviveConnectionChurn(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()

	// Every statement now runs on a freshly opened connection.
	store.db.SetMaxIdleConns(0)

	var fk, timeout int
	require.NoError(t, store.db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	require.NoError(t, store.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, 1, fk)
	assert.Equal(t, 5000, timeout)

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr})
	old := store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, ScanTime: clock.Now().Add(-40 * 24 * time.Hour)})
	require.NotZero(t, old)
	store.AddProperty(ctx, old, "note", "expires with its observation")

	store.CleanupOldData(ctx)

	var props int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM device_properties`).Scan(&props))
	assert.Zero(t, props)
}

func TestRecentDevicesAndCounts(t *testing.T) {
	store, clock, _ := newTestStore(t)
	ctx := context.Background()
	now := clock.Now()

	store.StoreDevice(ctx, domain.DeviceInfo{Address: addr, Name: "iPhone 12"})
	store.StoreDevice(ctx, domain.DeviceInfo{Address: "11:22:33:44:55:66", Name: "Speaker"})
	store.StoreDevice(ctx, domain.DeviceInfo{Address: "22:33:44:55:66:77", Name: "Never observed"})

	store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, ScanTime: now.Add(-time.Hour), SignalStrength: -80, DeviceType: domain.DeviceTypeMobilePhone, IsMobile: true})
	store.StoreScanResult(ctx, domain.Observation{DeviceAddress: addr, ScanTime: now.Add(-time.Minute), SignalStrength: -40, DeviceType: domain.DeviceTypeMobilePhone, IsMobile: true})
	store.StoreScanResult(ctx, domain.Observation{DeviceAddress: "11:22:33:44:55:66", ScanTime: now.Add(-2 * time.Hour), SignalStrength: -70})

	snaps, err := store.RecentDevices(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, addr, snaps[0].Address)
	assert.Equal(t, -40, snaps[0].SignalStrength, "latest observation wins")
	assert.True(t, snaps[0].IsMobile)
	assert.Equal(t, "Speaker", snaps[1].Name)
	assert.False(t, snaps[1].IsMobile)

	counts, err := store.DeviceCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceCounts{Total: 3, Mobile: 1}, counts)
	assert.Equal(t, 2, counts.Other())

	mobile, err := store.MobileDeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, mobile)
}

func TestNewIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bt.db")
	log := slog.New(logger.NewLineHandler(&bytes.Buffer{}, logger.Source, slog.LevelInfo))

	s1, err := New(dbPath, 30, log)
	require.NoError(t, err)
	s1.StoreDevice(context.Background(), domain.DeviceInfo{Address: addr})
	require.NoError(t, s1.Close())

	s2, err := New(dbPath, 30, log)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.GetDevice(context.Background(), addr)
	assert.NoError(t, err)
}

func TestWritesAfterCloseAreSwallowed(t *testing.T) {
	store, _, buf := newTestStore(t)
	require.NoError(t, store.Close())

	assert.NotPanics(t, func() {
		store.StoreDevice(context.Background(), domain.DeviceInfo{Address: addr})
		store.CleanupOldData(context.Background())
	})
	assert.Contains(t, buf.String(), "Error storing device")
	assert.Contains(t, buf.String(), "Error cleaning up old data")
}
