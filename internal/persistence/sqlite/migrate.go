package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations is the ordered schema history. Entries are append-only; applied
// versions are tracked in schema_migrations and never re-run.
var migrations = []string{
	// 1: catalog tables.
	`CREATE TABLE IF NOT EXISTS room_types (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		max_guests INTEGER,
		price_base REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		studio TEXT NOT NULL DEFAULT '',
		duration_min INTEGER NOT NULL DEFAULT 60,
		capacity INTEGER NOT NULL DEFAULT 12,
		price REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS retreats (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 0 CHECK (capacity >= 0),
		price REAL NOT NULL DEFAULT 0,
		closed INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS treatments (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		duration_min INTEGER NOT NULL DEFAULT 60,
		price REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`,

	// 2: scheduling tables.
	`CREATE TABLE IF NOT EXISTS recurring_rules (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL REFERENCES classes(id),
		studio TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		duration_min INTEGER NOT NULL DEFAULT 60,
		rrule TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		exceptions TEXT NOT NULL DEFAULT '[]',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS weekly_grids (
		week_key TEXT PRIMARY KEY,
		grid TEXT NOT NULL DEFAULT '{}',
		updated_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS class_sessions (
		id TEXT PRIMARY KEY,
		class_id TEXT NOT NULL REFERENCES classes(id),
		rule_id TEXT,
		studio TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		capacity INTEGER NOT NULL DEFAULT 12 CHECK (capacity >= 0),
		booked_count INTEGER NOT NULL DEFAULT 0 CHECK (booked_count >= 0),
		status TEXT NOT NULL DEFAULT 'scheduled',
		source TEXT NOT NULL DEFAULT 'recurring',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (class_id, studio, start_at)
	);
	CREATE INDEX IF NOT EXISTS idx_class_sessions_start ON class_sessions(start_at);`,

	// 3: bookings and treatment slots.
	`CREATE TABLE IF NOT EXISTS treatment_slots (
		id TEXT PRIMARY KEY,
		treatment_id TEXT NOT NULL REFERENCES treatments(id),
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		booked INTEGER NOT NULL DEFAULT 0,
		booked_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (treatment_id, start_at)
	);
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		user_id TEXT,
		room_type_id TEXT REFERENCES room_types(id),
		session_id TEXT REFERENCES class_sessions(id),
		retreat_id TEXT REFERENCES retreats(id),
		slot_id TEXT REFERENCES treatment_slots(id),
		check_in TEXT,
		check_out TEXT,
		guest_count INTEGER NOT NULL DEFAULT 1,
		guest_name TEXT NOT NULL DEFAULT '',
		guest_email TEXT NOT NULL DEFAULT '',
		guest_phone TEXT NOT NULL DEFAULT '',
		total_price REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'Pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_bookings_room_window ON bookings(room_type_id, check_in, check_out);
	CREATE INDEX IF NOT EXISTS idx_bookings_session ON bookings(session_id);`,

	// 4: accounts and auth sessions.
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		token TEXT NOT NULL UNIQUE,
		expires_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		revoked_at TEXT
	);`,
}

func (cp *ConnectionPool) migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	var current int
	err := cp.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(migrations[i]); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", version)
			return err
		})
		if err != nil {
			return fmt.Errorf("sqlite: apply migration %d: %w", version, err)
		}
	}
	return nil
}
