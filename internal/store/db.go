package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Migrate creates the schema when missing. Attendance keeps a denormalized
// name/photo/kind copy so history survives member edits and deletion; the
// member reference is nullable for the same reason.
func (d *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id               TEXT PRIMARY KEY,
		number           TEXT UNIQUE NOT NULL,
		name             TEXT NOT NULL,
		birth_date       DATE,
		phone            TEXT,
		emergency_phone  TEXT,
		notes            TEXT,
		photo            TEXT,
		kind             TEXT NOT NULL DEFAULT 'member',
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		registered_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS attendance (
		id           TEXT PRIMARY KEY,
		member_id    TEXT REFERENCES members(id),
		name         TEXT,
		photo        TEXT,
		kind         TEXT NOT NULL DEFAULT 'member',
		date         DATE NOT NULL,
		checked_in_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS admin_users (
		id         TEXT PRIMARY KEY,
		username   TEXT UNIQUE NOT NULL,
		password   TEXT NOT NULL,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'admin',
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_member ON attendance(member_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_date   ON attendance(date);
	`
	if _, err := d.Client.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SeedAdmin inserts a default admin account when none exists, so a fresh
// deployment is reachable.
func (d *DB) SeedAdmin(ctx context.Context, username, password, name string) error {
	var exists bool
	err := d.Client.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_users WHERE role = 'admin')`).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = d.Client.ExecContext(ctx, `
		INSERT INTO admin_users (id, username, password, name, role, active)
		VALUES ($1, $2, $3, $4, 'admin', TRUE)
	`, uuid.NewString(), username, password, name)
	return err
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
