package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
)

func TestNewUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}
	cfg := config.Default().Postgres
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging postgres")
}

var testSchema = []string{
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (id BIGSERIAL PRIMARY KEY)`,
	`CREATE INDEX IF NOT EXISTS analytics_snapshots_id_idx ON analytics_snapshots (id)`,
}

func newMock(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Wrap(db, "reltime"), mock
}

func TestMigrateAppliesPendingVersions(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := c.Migrate(context.Background(), testSchema)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackFailedVersion(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analytics_snapshots").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	applied, err := c.Migrate(context.Background(), testSchema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	c, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(5))

	_, err := c.Migrate(context.Background(), testSchema)
	assert.ErrorContains(t, err, "newer than this binary")
}
