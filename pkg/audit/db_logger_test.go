package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Nil(t, logger)
		assert.EqualError(t, err, "database connection is required")
	})
}

func TestDBLogger_Log(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("inserts event with metadata", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		event := &Event{
			Timestamp:    ts,
			EventType:    EventTypeShareAccess,
			Status:       EventStatusSuccess,
			TenantID:     "tenant-1",
			ResourceType: ResourceTypeShare,
			ResourceID:   "share-1",
			IPAddress:    "203.0.113.7",
		}
		event.WithMetadata("phase", string(SharePhaseEntry))

		mock.ExpectQuery("INSERT INTO audit_events").
			WithArgs(ts, "share.access", "success",
				"", "tenant-1",
				"share", "share-1",
				"203.0.113.7", "", "",
				"", []byte(`{"phase":"entry"}`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		require.NoError(t, logger.Log(context.Background(), event))
		assert.Equal(t, int64(42), event.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil metadata stored as null", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO audit_events").
			WithArgs(ts, "auth.login", "success",
				"user-1", "", "", "", "", "", "", "", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		err = logger.Log(context.Background(), &Event{
			Timestamp: ts,
			EventType: EventTypeAuthLogin,
			Status:    EventStatusSuccess,
			UserID:    "user-1",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("INSERT INTO audit_events").WillReturnError(errors.New("connection reset"))

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		err = logger.Log(context.Background(), &Event{Timestamp: ts, EventType: EventTypeAuthLogin})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit event")
	})
}
