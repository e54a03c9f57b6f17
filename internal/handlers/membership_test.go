package handlers

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestLockAdminsLocksRows(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	orgID := uuid.New()
	mock.ExpectQuery(`SELECT "user_id" FROM "memberships" WHERE .*organization_id = \$1 AND role = \$2.* FOR UPDATE`).
		WithArgs(orgID, "admin").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(uuid.New()).AddRow(uuid.New()))

	admins, err := lockAdmins(db, orgID)
	require.NoError(t, err)
	require.Equal(t, 2, admins)
	require.NoError(t, mock.ExpectationsWereMet())
}
