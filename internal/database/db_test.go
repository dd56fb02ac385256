package database

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, SQLite))
	require.NoError(t, Migrate(ctx, db, SQLite))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tag_usages'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestIsDuplicate_SQLiteUniqueIndex(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(context.Background(), db, SQLite))

	_, err = db.Exec(`INSERT INTO settings (setting_key, value, updated_at) VALUES ('a', '1', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO settings (setting_key, value, updated_at) VALUES ('a', '2', CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
}

func TestIsDuplicate_MySQL(t *testing.T) {
	assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicate(errors.New("boom")))
	assert.False(t, IsDuplicate(nil))
}

func TestDialectUpsert(t *testing.T) {
	cols := []string{"child_id", "irregular"}
	assert.Equal(t,
		"INSERT INTO system_flags (child_id, irregular) VALUES (?,?) ON DUPLICATE KEY UPDATE irregular = VALUES(irregular)",
		MySQL.Upsert("system_flags", cols, "child_id", []string{"irregular"}))
	assert.Equal(t,
		"INSERT INTO system_flags (child_id, irregular) VALUES (?,?) ON CONFLICT(child_id) DO UPDATE SET irregular = excluded.irregular",
		SQLite.Upsert("system_flags", cols, "child_id", []string{"irregular"}))
	assert.Equal(t, " FOR UPDATE", MySQL.ForUpdate())
	assert.Empty(t, SQLite.ForUpdate())
}
