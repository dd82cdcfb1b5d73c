package settings

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/casualjim/signalbus/pkg/retry"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ Backend = (*SQLiteBackend)(nil)

// SQLiteBackend stores settings in a sqlite database file. SQLITE_BUSY and
// SQLITE_LOCKED are reported as retry.ErrBusy.
type SQLiteBackend struct {
	db *sql.DB
}

// SQLite migrates the database at path and opens it.
func SQLite(path string) (*SQLiteBackend, error) {
	if err := migrateUp(path); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	return &SQLiteBackend{db: db}, nil
}

func migrateUp(path string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+path)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (b *SQLiteBackend) Load(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, value FROM settings`)
	if err != nil {
		return nil, busy(err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		out[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, busy(err)
	}
	return out, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, id, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO settings (id, value) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		id, value)
	return busy(err)
}

func (b *SQLiteBackend) Delete(ctx context.Context, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM settings WHERE id = ?`, id)
	return busy(err)
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func busy(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && (serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", retry.ErrBusy, err)
	}
	return err
}
