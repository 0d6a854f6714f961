package storage

import (
	"context"
	"database/sql"
	"fmt"

	"bluetooth-scanner/internal/domain"
)

// RecentDevices returns every device that has at least one observation,
// joined with its latest observation, most recently scanned first.
func (s *Store) RecentDevices(ctx context.Context) ([]domain.DeviceSnapshot, error) {
	const query = `
		SELECT d.mac_address, d.device_name, d.device_class, d.manufacturer, d.first_seen, d.last_seen,
		       r.signal_strength, r.device_type, r.is_mobile, r.scan_time
		FROM devices d
		JOIN scan_results r ON r.id = (
			SELECT id FROM scan_results
			WHERE device_mac = d.mac_address
			ORDER BY scan_time DESC, id DESC
			LIMIT 1
		)
		ORDER BY r.scan_time DESC, d.mac_address
	`

	var out []domain.DeviceSnapshot
	err := s.session(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("%w: query recent devices: %v", domain.ErrStorage, err)
		}
		defer rows.Close()

		for rows.Next() {
			var snap domain.DeviceSnapshot
			var first, last, scanTime string
			if err := rows.Scan(
				&snap.Address, &snap.Name, &snap.Class, &snap.Manufacturer, &first, &last,
				&snap.SignalStrength, &snap.DeviceType, &snap.IsMobile, &scanTime,
			); err != nil {
				return fmt.Errorf("%w: scan recent device: %v", domain.ErrStorage, err)
			}
			snap.FirstSeen = parseTime(first)
			snap.LastSeen = parseTime(last)
			snap.ScanTime = parseTime(scanTime)
			out = append(out, snap)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeviceCounts returns the total number of devices and the number of
// distinct devices with at least one mobile observation.
func (s *Store) DeviceCounts(ctx context.Context) (domain.DeviceCounts, error) {
	var c domain.DeviceCounts
	err := s.session(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&c.Total); err != nil {
			return fmt.Errorf("%w: count devices: %v", domain.ErrStorage, err)
		}
		var err error
		c.Mobile, err = countMobile(ctx, tx)
		return err
	})
	return c, err
}

// MobileDeviceCount returns the number of distinct addresses with at least
// one mobile observation.
func (s *Store) MobileDeviceCount(ctx context.Context) (int, error) {
	var n int
	err := s.session(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = countMobile(ctx, tx)
		return err
	})
	return n, err
}

func countMobile(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT device_mac) FROM scan_results WHERE is_mobile = 1`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count mobile devices: %v", domain.ErrStorage, err)
	}
	return n, nil
}
