// Package sqlitecache stores cache slots in a local SQLite file.
package sqlitecache

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

//go:embed schema.sql
var schemaSQL string

type Cache struct {
	db *sql.DB
}

var _ timetable.Cache = (*Cache)(nil)

// Open creates or opens the database at path and applies the schema. Safe to call repeatedly.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite cache")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "connecting to sqlite cache")
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "applying sqlite cache schema")
	}
	return &Cache{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "executing %q", pragma)
		}
	}
	return nil
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) Get(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM cache_slots WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timetable.ErrCacheMiss
	}
	return data, errors.Wrapf(err, "reading slot %q", slot)
}

func (c *Cache) Put(ctx context.Context, slot string, data []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_slots (slot, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot, data, time.Now().UTC().UnixMilli(),
	)
	return errors.Wrapf(err, "writing slot %q", slot)
}

func (c *Cache) Delete(ctx context.Context, slot string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_slots WHERE slot = ?`, slot)
	return errors.Wrapf(err, "deleting slot %q", slot)
}
