package storage

import "database/sql"

// migrate creates the schema if absent. There are no versioned migrations.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS devices (
			mac_address  TEXT PRIMARY KEY,
			device_name  TEXT NOT NULL DEFAULT '',
			device_class TEXT NOT NULL DEFAULT '',
			manufacturer TEXT NOT NULL DEFAULT '',
			first_seen   TEXT NOT NULL,
			last_seen    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS scan_results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			device_mac      TEXT NOT NULL REFERENCES devices(mac_address),
			scan_time       TEXT NOT NULL,
			signal_strength INTEGER NOT NULL DEFAULT 0,
			device_type     TEXT NOT NULL DEFAULT 'unknown',
			is_mobile       INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_scan_results_device_time ON scan_results(device_mac, scan_time);
		CREATE INDEX IF NOT EXISTS idx_scan_results_time ON scan_results(scan_time);

		-- Reserved for per-observation extension data; removed with its observation.
		CREATE TABLE IF NOT EXISTS device_properties (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_result_id INTEGER NOT NULL REFERENCES scan_results(id) ON DELETE CASCADE,
			property_name  TEXT NOT NULL,
			property_value TEXT NOT NULL DEFAULT '',
			timestamp      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_device_properties_result ON device_properties(scan_result_id);
	`
	_, err := db.Exec(schema)
	return err
}
