package pgcache

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobias-barakaa/newschool-sub008/core/timetable"
	"github.com/tobias-barakaa/newschool-sub008/storage/database"
)

// needs a disposable postgres, e.g. TEST_DATABASE_URL=postgres://postgres@localhost/newschool_test?sslmode=disable
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db.DB))
	return db
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := New(openTestDB(t))
	slot := "pgcache-test"
	t.Cleanup(func() { _ = c.Delete(ctx, slot) })

	_, err := c.Get(ctx, slot)
	assert.ErrorIs(t, err, timetable.ErrCacheMiss)

	require.NoError(t, c.Put(ctx, slot, []byte("first")))
	require.NoError(t, c.Put(ctx, slot, []byte("second")))
	got, err := c.Get(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	require.NoError(t, c.Delete(ctx, slot))
	_, err = c.Get(ctx, slot)
	assert.ErrorIs(t, err, timetable.ErrCacheMiss)
}
