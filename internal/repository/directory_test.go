package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DS2-PROYECTO-2/ds2-2-back-sub001/internal/models"
)

func TestDirectoryRepository_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDirectoryRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM monitors WHERE id = \$1\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM rooms WHERE id = \$1\)`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`FROM monitors WHERE id = \$1 AND role = 'admin'`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.MonitorExists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.RoomExists(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsAdmin(context.Background(), 99)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepository_AdminsAndMonitors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDirectoryRepository(db, zap.NewNop())

	mock.ExpectQuery(`SELECT id FROM monitors WHERE role = 'admin' ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(98)).AddRow(int64(99)))
	mock.ExpectQuery(`FROM monitors WHERE id = ANY\(\$1\) ORDER BY id`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "role", "verified"}).
			AddRow(int64(1), "Ana Torres", "monitor", true))

	ids, err := repo.AdminIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{98, 99}, ids)

	monitors, err := repo.ListMonitors(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, []models.Monitor{{ID: 1, DisplayName: "Ana Torres", Role: "monitor", Verified: true}}, monitors)

	require.NoError(t, mock.ExpectationsWereMet())
}
