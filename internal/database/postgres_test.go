package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	raw, err := fs.ReadFile(migrations, files[0])
	require.NoError(t, err)
	sql := string(raw)

	assert.True(t, strings.HasPrefix(sql, "-- +goose Up"))
	assert.Contains(t, sql, "-- +goose Down")
	assert.Contains(t, sql, "room_entries_one_active_per_monitor")
	assert.Contains(t, sql, "ON room_entries (monitor_id) WHERE active")
	assert.Contains(t, sql, "alerts_entry_recipient_kind")
	assert.Contains(t, sql, "ON alerts (entry_id, recipient_id, kind)")
	// names the repository maps foreign key errors from
	assert.Contains(t, sql, "room_entries_monitor_id_fkey")
	assert.Contains(t, sql, "room_entries_room_id_fkey")
}
