// Package storage persists devices and scan observations in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	_ "modernc.org/sqlite"

	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/logger"
)

// timeLayout is fixed-width so that text comparison is chronological.
const timeLayout = "2006-01-02 15:04:05.000000"

// Store implements device and observation persistence on a SQLite file.
// Every operation runs in its own transaction. Write operations follow a
// best-effort policy: failures are rolled back, logged and not returned.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (or creates) the SQLite database at dbPath and ensures the
// schema exists. retentionDays sets the CleanupOldData window.
func New(dbPath string, retentionDays int, log *slog.Logger, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)

	// Fail fast on an unopenable file instead of on the first write.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrStorage, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrStorage, err)
	}

	s := &Store{
		db:        db,
		logger:    log,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// connPragmas are applied by the driver to every new connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// dsn appends connPragmas to dbPath as _pragma query parameters.
func dsn(dbPath string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return dbPath + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// session runs fn inside a transaction that is committed on success and
// rolled back otherwise.
func (s *Store) session(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrStorage, err)
	}
	return nil
}

// StoreDevice inserts a device or refreshes an existing one. Name, class and
// manufacturer are only overwritten by non-empty values; last_seen always
// moves to now and first_seen is set once.
func (s *Store) StoreDevice(ctx context.Context, info domain.DeviceInfo) {
	err := s.session(ctx, func(tx *sql.Tx) error {
		if info.Address == "" {
			return fmt.Errorf("%w: device has no address", domain.ErrStorage)
		}
		now := formatTime(s.now())
		const upsert = `
			INSERT INTO devices (mac_address, device_name, device_class, manufacturer, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(mac_address) DO UPDATE SET
				device_name  = CASE WHEN excluded.device_name  <> '' THEN excluded.device_name  ELSE devices.device_name  END,
				device_class = CASE WHEN excluded.device_class <> '' THEN excluded.device_class ELSE devices.device_class END,
				manufacturer = CASE WHEN excluded.manufacturer <> '' THEN excluded.manufacturer ELSE devices.manufacturer END,
				last_seen    = excluded.last_seen
		`
		_, err := tx.ExecContext(ctx, upsert,
			info.Address, info.Name, info.Class, info.Manufacturer, now, now)
		if err != nil {
			return fmt.Errorf("%w: upsert device: %v", domain.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("Error storing device: %v", err), "address", info.Address)
		return
	}
	logger.LogStorageOperation(s.logger, "store_device", "Stored device: "+info.Address)
}

// StoreScanResult appends an observation and returns its id, or 0 when the
// write failed. A zero ScanTime is stamped with now.
func (s *Store) StoreScanResult(ctx context.Context, obs domain.Observation) int64 {
	scanTime := obs.ScanTime
	if scanTime.IsZero() {
		scanTime = s.now()
	}
	deviceType := obs.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}

	var id int64
	err := s.session(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO scan_results (device_mac, scan_time, signal_strength, device_type, is_mobile)
			 VALUES (?, ?, ?, ?, ?)`,
			obs.DeviceAddress, formatTime(scanTime), obs.SignalStrength, deviceType, boolToInt(obs.IsMobile),
		)
		if err != nil {
			return fmt.Errorf("%w: insert scan result: %v", domain.ErrStorage, err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("Error storing scan result: %v", err), "address", obs.DeviceAddress)
		return 0
	}
	logger.LogStorageOperation(s.logger, "store_scan_result", "Stored scan result for device: "+obs.DeviceAddress)
	return id
}

// AddProperty attaches a key/value pair to an existing observation.
func (s *Store) AddProperty(ctx context.Context, observationID int64, name, value string) {
	err := s.session(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO device_properties (scan_result_id, property_name, property_value, timestamp)
			 VALUES (?, ?, ?, ?)`,
			observationID, name, value, formatTime(s.now()),
		)
		if err != nil {
			return fmt.Errorf("%w: insert property: %v", domain.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("Error storing property: %v", err), "observation", observationID, "property", name)
		return
	}
	logger.LogStorageOperation(s.logger, "add_property", fmt.Sprintf("Stored property %s for scan result %d", name, observationID))
}

// GetDeviceHistory returns the observations of a device, newest first.
// When days > 0 only observations from the last days days are returned.
func (s *Store) GetDeviceHistory(ctx context.Context, address string, days int) ([]domain.Observation, error) {
	var history []domain.Observation
	err := s.session(ctx, func(tx *sql.Tx) error {
		query := `SELECT id, device_mac, scan_time, signal_strength, device_type, is_mobile
			FROM scan_results WHERE device_mac = ?`
		args := []any{address}
		if days > 0 {
			query += ` AND scan_time >= ?`
			args = append(args, formatTime(s.now().Add(-time.Duration(days)*24*time.Hour)))
		}
		query += ` ORDER BY scan_time DESC, id DESC`

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%w: query history: %v", domain.ErrStorage, err)
		}
		byID := make(map[int64]int)
		for rows.Next() {
			var o domain.Observation
			var scanTime string
			if err := rows.Scan(&o.ID, &o.DeviceAddress, &scanTime, &o.SignalStrength, &o.DeviceType, &o.IsMobile); err != nil {
				rows.Close()
				return fmt.Errorf("%w: scan history: %v", domain.ErrStorage, err)
			}
			o.ScanTime = parseTime(scanTime)
			o.Properties = map[string]string{}
			byID[o.ID] = len(history)
			history = append(history, o)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(history) == 0 {
			return nil
		}
		return loadProperties(ctx, tx, address, history, byID)
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

func loadProperties(ctx context.Context, tx *sql.Tx, address string, history []domain.Observation, byID map[int64]int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT p.scan_result_id, p.property_name, p.property_value
		 FROM device_properties p JOIN scan_results r ON r.id = p.scan_result_id
		 WHERE r.device_mac = ? ORDER BY p.id`, address)
	if err != nil {
		return fmt.Errorf("%w: query properties: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			return fmt.Errorf("%w: scan property: %v", domain.ErrStorage, err)
		}
		if i, ok := byID[id]; ok {
			history[i].Properties[name] = value
		}
	}
	return rows.Err()
}

// CleanupOldData deletes observations older than the retention window.
// Their properties are removed by cascade.
func (s *Store) CleanupOldData(ctx context.Context) {
	err := s.session(ctx, func(tx *sql.Tx) error {
		cutoff := formatTime(s.now().Add(-s.retention))
		if _, err := tx.ExecContext(ctx, `DELETE FROM scan_results WHERE scan_time < ?`, cutoff); err != nil {
			return fmt.Errorf("%w: delete old scan results: %v", domain.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error(fmt.Sprintf("Error cleaning up old data: %v", err))
		return
	}
	logger.LogStorageOperation(s.logger, "cleanup",
		fmt.Sprintf("Removed data older than %d days", int(s.retention.Hours()/24)))
}

// GetDevice returns a single device by address.
func (s *Store) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	var d domain.Device
	err := s.session(ctx, func(tx *sql.Tx) error {
		var first, last string
		err := tx.QueryRowContext(ctx,
			`SELECT mac_address, device_name, device_class, manufacturer, first_seen, last_seen
			 FROM devices WHERE mac_address = ?`, address,
		).Scan(&d.Address, &d.Name, &d.Class, &d.Manufacturer, &first, &last)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewDomainError("Store.GetDevice", domain.ErrNotFound, address)
		}
		if err != nil {
			return fmt.Errorf("%w: get device: %v", domain.ErrStorage, err)
		}
		d.FirstSeen = parseTime(first)
		d.LastSeen = parseTime(last)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(timeLayout, s, time.UTC)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
