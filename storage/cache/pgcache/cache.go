// Package pgcache stores cache slots in the postgres table created by the cache_slots migration.
package pgcache

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
)

type (
	Cache struct {
		db *sqlx.DB
	}

	slotRow struct {
		Slot      string    `db:"slot"`
		Data      []byte    `db:"data"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

var _ timetable.Cache = (*Cache)(nil)

func New(db *sqlx.DB) *Cache {
	return &Cache{db: db}
}

func (c *Cache) Get(ctx context.Context, slot string) ([]byte, error) {
	var row slotRow
	err := c.db.GetContext(ctx, &row, `SELECT slot, data, updated_at FROM cache_slots WHERE slot = $1`, slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timetable.ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading slot %q", slot)
	}
	return row.Data, nil
}

func (c *Cache) Put(ctx context.Context, slot string, data []byte) error {
	row := slotRow{Slot: slot, Data: data, UpdatedAt: time.Now().UTC()}
	_, err := c.db.NamedExecContext(ctx, `
		INSERT INTO cache_slots (slot, data, updated_at) VALUES (:slot, :data, :updated_at)
		ON CONFLICT (slot) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		row,
	)
	return errors.Wrapf(err, "writing slot %q", slot)
}

func (c *Cache) Delete(ctx context.Context, slot string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_slots WHERE slot = $1`, slot)
	return errors.Wrapf(err, "deleting slot %q", slot)
}
